package roster

import (
	"log/slog"
	"sort"
	"strings"
)

// ParserConfig holds the list-splitting rules.
type ParserConfig struct {
	// Separators split a cell into entries.
	Separators []string
	// CoListSeparator splits one entry into several names.
	CoListSeparator string
	// StopWords are placeholder values that are never names.
	StopWords []string
}

// DefaultParserConfig returns the rules used on the GM sheet.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Separators:      []string{",", "、"},
		CoListSeparator: "・",
		StopWords:       []string{"準備中", "未定", "予定", "GM増やしたい", "やりたい", "仮"},
	}
}

// ParseContext identifies where a cell came from, for diagnostics.
type ParseContext struct {
	Scenario string
	Column   string
	// Only, when non-nil, keeps just these resolved names. Tokens outside
	// the set are dropped without an unmapped warning.
	Only map[string]bool
}

// ListParser splits delimited staff cells into canonical names.
type ListParser struct {
	normalizer *Normalizer
	mapping    *NameMapping
	separators []string
	coList     string
	stop       map[string]bool
	logger     *slog.Logger

	unmapped map[string][]string
}

// NewListParser creates a parser. A nil mapping behaves as an empty one and
// a nil logger uses slog.Default().
func NewListParser(cfg ParserConfig, normalizer *Normalizer, mapping *NameMapping, logger *slog.Logger) *ListParser {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultNormalizerConfig())
	}
	if mapping == nil {
		mapping = NewNameMapping()
	}
	if logger == nil {
		logger = slog.Default()
	}

	stop := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[w] = true
	}

	return &ListParser{
		normalizer: normalizer,
		mapping:    mapping,
		separators: cfg.Separators,
		coList:     cfg.CoListSeparator,
		stop:       stop,
		logger:     logger,
		unmapped:   make(map[string][]string),
	}
}

// Mapping returns the name mapping in use.
func (p *ListParser) Mapping() *NameMapping {
	return p.mapping
}

// Logger returns the parser's logger.
func (p *ListParser) Logger() *slog.Logger {
	return p.logger
}

// Parse splits field and returns canonical names in first-seen order without
// duplicates. Tokens not in the mapping are kept as-is and logged.
func (p *ListParser) Parse(field string, ctx ParseContext) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}

	var result []string
	seen := make(map[string]bool)

	for _, token := range p.tokens(field) {
		name, ok := p.normalizer.Normalize(token)
		if !ok || p.stop[name] {
			continue
		}

		resolved, res := p.mapping.Resolve(name)
		if res == Skipped {
			continue
		}
		if ctx.Only != nil && !ctx.Only[resolved] {
			continue
		}
		if res == Unmapped {
			p.recordUnmapped(name, ctx)
		}

		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		result = append(result, resolved)
	}

	return result
}

// tokens splits on the separators, then splits co-listed names.
func (p *ListParser) tokens(field string) []string {
	entries := []string{field}
	for _, sep := range p.separators {
		var next []string
		for _, e := range entries {
			next = append(next, strings.Split(e, sep)...)
		}
		entries = next
	}

	if p.coList == "" {
		return entries
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, p.coList) {
			out = append(out, strings.Split(e, p.coList)...)
			continue
		}
		out = append(out, e)
	}
	return out
}

func (p *ListParser) recordUnmapped(name string, ctx ParseContext) {
	p.logger.Warn("name not in mapping, using as-is",
		"name", name,
		"scenario", ctx.Scenario,
		"column", ctx.Column,
	)
	p.unmapped[name] = append(p.unmapped[name], ctx.Scenario)
}

// Unmapped returns every token that was used without a mapping entry, sorted.
func (p *ListParser) Unmapped() []string {
	names := make([]string, 0, len(p.unmapped))
	for name := range p.unmapped {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmappedScenarios returns the scenarios an unmapped token appeared in.
func (p *ListParser) UnmappedScenarios(name string) []string {
	return p.unmapped[name]
}
