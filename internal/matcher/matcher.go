package matcher

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/madamis-ops/gmsync/internal/domain"
)

// Match reasons recorded on results.
const (
	ReasonExact         = "exact title"
	ReasonExactCore     = "exact core title"
	ReasonContains      = "title containment"
	ReasonCoreContains  = "core title containment"
	ReasonSimilarity    = "similarity"
	ReasonBelow         = "below threshold"
	ReasonLengthGuard   = "length guard"
	ReasonNoCandidates  = "no candidates"
	ReasonClaimedPrefix = "already claimed by "
)

// Matcher scores catalog titles against canonical scenarios.
type Matcher struct {
	cfg    Config
	norm   *normalizer
	logger *slog.Logger
}

// New creates a matcher. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		cfg:    cfg,
		norm:   newNormalizer(cfg),
		logger: logger,
	}
}

// NormalizeTitle reduces a title to its comparison key.
func (m *Matcher) NormalizeTitle(title string) string {
	return m.norm.normalize(title)
}

// CoreTitle extracts the core part of a raw title.
func (m *Matcher) CoreTitle(title string) string {
	return m.norm.core(title)
}

// candidate is a canonical scenario with its comparison keys precomputed.
type candidate struct {
	scenario domain.CanonicalScenario
	norm     string
	core     string
	normLen  int
}

// Pool is a prepared candidate set, reusable across lookups.
type Pool struct {
	items []candidate
}

// Prepare normalizes candidates once for repeated lookups.
func (m *Matcher) Prepare(scenarios []domain.CanonicalScenario) *Pool {
	items := make([]candidate, len(scenarios))
	for i, s := range scenarios {
		norm := m.norm.normalize(s.Title)
		items[i] = candidate{
			scenario: s,
			norm:     norm,
			core:     m.norm.normalize(m.norm.core(s.Title)),
			normLen:  utf8.RuneCountInString(norm),
		}
	}
	return &Pool{items: items}
}

// Len returns the number of candidates.
func (p *Pool) Len() int {
	return len(p.items)
}

// Scenarios returns the candidates in input order.
func (p *Pool) Scenarios() []domain.CanonicalScenario {
	out := make([]domain.CanonicalScenario, len(p.items))
	for i, c := range p.items {
		out[i] = c.scenario
	}
	return out
}

// FindBestMatch returns the best candidate for title and its score, or
// (nil, 0) when nothing reaches threshold.
func (m *Matcher) FindBestMatch(title string, candidates []domain.CanonicalScenario, threshold float64) (*domain.CanonicalScenario, float64) {
	res := m.Lookup(domain.CatalogRecord{Title: title}, m.Prepare(candidates), threshold)
	return res.Scenario, res.Score
}

// Lookup scores record against every candidate in pool.
//
// Candidates are visited in order and the first exact or exact-core match
// returns at once. Otherwise containment scores ContainScore (or
// CoreContainScore for cores), anything else scores the better of the
// full and core sequence ratios, and a strictly higher score replaces the
// current best so ties keep the earlier candidate.
func (m *Matcher) Lookup(record domain.CatalogRecord, pool *Pool, threshold float64) domain.MatchResult {
	result := domain.MatchResult{Catalog: record, Reason: ReasonNoCandidates}
	if pool == nil || len(pool.items) == 0 {
		return result
	}

	catNorm := m.norm.normalize(record.Title)
	catCore := m.norm.normalize(m.norm.core(record.Title))
	catCoreLen := utf8.RuneCountInString(catCore)

	var best *candidate
	bestScore := 0.0
	bestReason := ReasonBelow

	for i := range pool.items {
		c := &pool.items[i]

		if catNorm != "" && catNorm == c.norm {
			return m.accept(result, c, 1.0, ReasonExact)
		}
		if catCoreLen >= m.cfg.MinContainLen && catCore == c.core {
			return m.accept(result, c, 1.0, ReasonExactCore)
		}

		if m.contains(catNorm, c.norm) {
			if m.cfg.ContainScore > bestScore {
				best, bestScore, bestReason = c, m.cfg.ContainScore, ReasonContains
			}
			continue
		}
		if m.contains(catCore, c.core) {
			if m.cfg.CoreContainScore > bestScore {
				best, bestScore, bestReason = c, m.cfg.CoreContainScore, ReasonCoreContains
			}
			continue
		}

		score := max(ratio(catNorm, c.norm), ratio(catCore, c.core))
		if score > bestScore {
			best, bestScore, bestReason = c, score, ReasonSimilarity
		}
	}

	if best == nil {
		result.Reason = ReasonBelow
		return result
	}

	if bestScore < m.cfg.GuardScore {
		catLen := utf8.RuneCountInString(catNorm)
		diff := catLen - best.normLen
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > float64(max(catLen, best.normLen))*m.cfg.GuardLengthRatio {
			m.logger.Debug("match rejected by length guard",
				"title", record.Title,
				"candidate", best.scenario.Title,
				"score", bestScore,
			)
			result.Reason = ReasonLengthGuard
			return result
		}
	}

	if bestScore >= threshold {
		return m.accept(result, best, bestScore, bestReason)
	}

	result.Reason = ReasonBelow
	return result
}

func (m *Matcher) accept(result domain.MatchResult, c *candidate, score float64, reason string) domain.MatchResult {
	s := c.scenario
	result.Scenario = &s
	result.Score = score
	result.Reason = reason
	return result
}

// contains reports whether either key contains the other, with both at
// least MinContainLen runes long.
func (m *Matcher) contains(a, b string) bool {
	if utf8.RuneCountInString(a) < m.cfg.MinContainLen || utf8.RuneCountInString(b) < m.cfg.MinContainLen {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ratio is the SequenceMatcher similarity of two keys compared rune by
// rune. Two empty keys score 0 rather than 1 so titles made only of
// stripped characters never match each other.
func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
