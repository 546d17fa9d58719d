package catalog

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// keywordSet answers "does this line contain any of these strings" in one
// pass over the line.
type keywordSet struct {
	ac       *ahocorasick.Automaton
	patterns []string
}

func newKeywordSet(patterns []string) (*keywordSet, error) {
	ks := &keywordSet{}
	for _, p := range patterns {
		if p != "" {
			ks.patterns = append(ks.patterns, p)
		}
	}
	if len(ks.patterns) == 0 {
		return ks, nil
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(ks.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "build keyword automaton")
	}
	ks.ac = ac
	return ks, nil
}

// matches returns the indexes of every pattern found in s, each once, in
// order of first occurrence.
func (ks *keywordSet) matches(s string) []int {
	if ks.ac == nil || s == "" {
		return nil
	}
	var out []int
	seen := make(map[int]bool)
	for _, m := range ks.ac.FindAllOverlapping([]byte(s)) {
		if seen[m.PatternID] {
			continue
		}
		seen[m.PatternID] = true
		out = append(out, m.PatternID)
	}
	return out
}

func (ks *keywordSet) any(s string) bool {
	return len(ks.matches(s)) > 0
}

// Parser extracts catalog records from the visible text of the catalog page.
//
// The page renders each scenario as a card: the title line, an optional
// author line, badge lines and label/value pairs for price, player count and
// duration. A line is a title candidate when it is the right length, is not
// a number and contains no skip keyword. The card is kept only when a player
// count was found in the lines that follow.
type Parser struct {
	cfg        ParserConfig
	skip       *keywordSet
	authorStop *keywordSet
	tags       *keywordSet
	logger     *slog.Logger
}

// NewParser compiles the keyword automata for cfg. A nil logger uses
// slog.Default().
func NewParser(cfg ParserConfig, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	skip, err := newKeywordSet(cfg.SkipKeywords)
	if err != nil {
		return nil, err
	}
	authorStop, err := newKeywordSet(cfg.AuthorStopKeywords)
	if err != nil {
		return nil, err
	}
	patterns := make([]string, len(cfg.TagPatterns))
	for i, tp := range cfg.TagPatterns {
		patterns[i] = tp.Pattern
	}
	tags, err := newKeywordSet(patterns)
	if err != nil {
		return nil, err
	}

	return &Parser{
		cfg:        cfg,
		skip:       skip,
		authorStop: authorStop,
		tags:       tags,
		logger:     logger,
	}, nil
}

// Result is the outcome of parsing one page.
type Result struct {
	Records []domain.CatalogRecord
	// Tags is every genre seen, in first-seen order.
	Tags []string
	// Rejected counts cards that failed record validation.
	Rejected int
}

// SplitLines trims every line of text and drops the blank ones.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Parse extracts records from page text. Titles are unique in the result;
// the first card with a given title wins.
func (p *Parser) Parse(text string) *Result {
	lines := SplitLines(text)
	res := &Result{}
	seenTitles := make(map[string]bool)
	seenTags := make(map[string]bool)

	for i, line := range lines {
		if !p.isTitleCandidate(line) || seenTitles[line] {
			continue
		}

		rec, ok := p.parseCard(lines, i)
		if !ok {
			continue
		}

		valid, err := domain.NewCatalogRecord(rec)
		if err != nil {
			p.logger.Warn("catalog card rejected", "title", rec.Title, "error", err)
			res.Rejected++
			continue
		}

		seenTitles[line] = true
		res.Records = append(res.Records, valid)
		for _, tag := range valid.Tags {
			if !seenTags[tag] {
				seenTags[tag] = true
				res.Tags = append(res.Tags, tag)
			}
		}
		p.logger.Debug("catalog card parsed",
			"title", valid.Title,
			"author", valid.Author,
			"tags", len(valid.Tags),
		)
	}

	return res
}

func (p *Parser) isTitleCandidate(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < p.cfg.MinTitleLen || n > p.cfg.MaxTitleLen {
		return false
	}
	if isNumberOnly(line) {
		return false
	}
	return !p.skip.any(line)
}

// parseCard scans the lines after a title. It reports false when no player
// count was found, which means the line was not a title after all.
func (p *Parser) parseCard(lines []string, i int) (domain.CatalogRecord, bool) {
	rec := domain.CatalogRecord{Title: lines[i]}
	end := min(i+p.cfg.LookAhead, len(lines))

	for j := i + 1; j < end; j++ {
		next := lines[j]
		hasValue := j+1 < len(lines)

		switch {
		case next == p.cfg.PriceLabel && hasValue:
			if v, ok := ParsePrice(lines[j+1]); ok {
				rec.Price = domain.IntPtr(v)
			}
		case next == p.cfg.PlayersLabel && hasValue:
			if v, ok := ParsePlayerCount(lines[j+1]); ok {
				rec.PlayerCount = domain.IntPtr(v)
			}
		case next == p.cfg.DurationLabel && hasValue:
			if m := durationRe.FindString(lines[j+1]); m != "" {
				if v, ok := ParseDurationMinutes(m); ok && v > 0 {
					rec.DurationMinutes = domain.IntPtr(v)
				}
			}
		}

		for _, idx := range p.tags.matches(next) {
			rec.Tags = appendUnique(rec.Tags, p.cfg.TagPatterns[idx].Genre)
		}

		if j == i+1 && !p.authorStop.any(next) &&
			utf8.RuneCountInString(next) < p.cfg.MaxAuthorLen && !isNumberOnly(next) {
			rec.Author = next
		}

		if j > i+p.cfg.MinCardLines && rec.PlayerCount != nil && p.isTitleCandidate(next) {
			break
		}
	}

	return rec, rec.PlayerCount != nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
