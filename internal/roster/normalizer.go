// Package roster turns the free-text GM master sheet into resolved staff
// assignments: name normalization, list parsing, mapping and sheet ingest.
package roster

import (
	"regexp"
	"strings"
)

var (
	halfParens = regexp.MustCompile(`\([^)]*\)`)
	fullParens = regexp.MustCompile(`（[^）]*）`)
)

// NormalizerConfig holds the trailing status markers stripped from names.
type NormalizerConfig struct {
	// Suffixes are each stripped at most once, in order.
	Suffixes []string
}

// DefaultNormalizerConfig returns the suffixes used on the GM sheet.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Suffixes: []string{"準備中", "やりたい", "仮", "プレイ予定", "？"},
	}
}

// Normalizer cleans a single staff token.
type Normalizer struct {
	suffixes []string
}

// NewNormalizer creates a normalizer from cfg.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	suffixes := make([]string, 0, len(cfg.Suffixes))
	for _, s := range cfg.Suffixes {
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}
	return &Normalizer{suffixes: suffixes}
}

// Normalize strips annotations and status suffixes from raw.
// ok is false when nothing name-like remains, including tokens that are
// entirely a parenthetical note.
func (n *Normalizer) Normalize(raw string) (name string, ok bool) {
	name = strings.TrimSpace(raw)
	if strings.HasPrefix(name, "(") || strings.HasPrefix(name, "（") {
		return "", false
	}

	name = halfParens.ReplaceAllString(name, "")
	name = fullParens.ReplaceAllString(name, "")

	for _, suffix := range n.suffixes {
		name = strings.TrimSuffix(name, suffix)
	}

	name = strings.TrimSpace(name)
	return name, name != ""
}
