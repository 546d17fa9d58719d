package catalog

import (
	"regexp"
	"unicode/utf8"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Drop reasons reported by Cleaner.
const (
	DropInvalidPattern = "invalid title pattern"
	DropKnownAuthor    = "known author"
	DropTooShort       = "title too short"
	DropDuplicate      = "duplicate title"
)

// Dropped is a record removed by the cleaner.
type Dropped struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Cleaner removes parsed records whose title is really a price, a badge,
// an author name or a repeat.
type Cleaner struct {
	patterns []*regexp.Regexp
	authors  map[string]bool
	minLen   int
}

// NewCleaner compiles cfg.
func NewCleaner(cfg CleanupConfig) (*Cleaner, error) {
	c := &Cleaner{
		authors: make(map[string]bool, len(cfg.KnownAuthors)),
		minLen:  cfg.MinTitleLen,
	}
	for _, p := range cfg.InvalidPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeConfig, "invalid title pattern %q", p)
		}
		c.patterns = append(c.patterns, re)
	}
	for _, a := range cfg.KnownAuthors {
		c.authors[a] = true
	}
	return c, nil
}

// Reason returns why title is not a scenario title, or "" when it is.
func (c *Cleaner) Reason(title string) string {
	for _, re := range c.patterns {
		if re.MatchString(title) {
			return DropInvalidPattern
		}
	}
	if utf8.RuneCountInString(title) < c.minLen {
		return DropTooShort
	}
	if c.authors[title] {
		return DropKnownAuthor
	}
	return ""
}

// Clean keeps valid records in input order, dropping repeats of a title.
func (c *Cleaner) Clean(records []domain.CatalogRecord) (kept []domain.CatalogRecord, dropped []Dropped) {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		reason := c.Reason(r.Title)
		if reason == "" && seen[r.Title] {
			reason = DropDuplicate
		}
		if reason != "" {
			dropped = append(dropped, Dropped{Title: r.Title, Reason: reason})
			continue
		}
		seen[r.Title] = true
		kept = append(kept, r)
	}
	return kept, dropped
}

// CleanSnapshot returns a copy of snap holding only the kept records, with
// its tag list rebuilt from them. The scrape metadata is preserved.
func (c *Cleaner) CleanSnapshot(snap *Snapshot) (*Snapshot, []Dropped) {
	kept, dropped := c.Clean(snap.Scenarios)
	out := NewSnapshot(kept, snap.Source, snap.RunID, snap.ScrapedAt)
	return out, dropped
}

// CollectTags returns every tag of records in first-seen order.
func CollectTags(records []domain.CatalogRecord) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, t := range r.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
