package domain

import (
	"strings"

	"github.com/madamis-ops/gmsync/internal/validation"
)

// CatalogRecord is one scenario scraped from the public catalog.
// Build it through NewCatalogRecord; it is immutable afterwards by convention.
type CatalogRecord struct {
	Title           string   `json:"title" validate:"required"`
	Author          string   `json:"author,omitempty"`
	PlayerCount     *int     `json:"player_count,omitempty" validate:"omitempty,gte=1,lte=100"`
	DurationMinutes *int     `json:"duration,omitempty" validate:"omitempty,gte=1"`
	Price           *int     `json:"price,omitempty" validate:"omitempty,gte=0"`
	Tags            []string `json:"tags,omitempty" validate:"dive,notblank"`
	Description     string   `json:"description,omitempty"`
}

// NewCatalogRecord trims the title and author, drops duplicate tags and
// validates the result.
func NewCatalogRecord(r CatalogRecord) (CatalogRecord, error) {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.Description = strings.TrimSpace(r.Description)
	r.Tags = uniqueTags(r.Tags)

	if err := validation.Default().Validate(r); err != nil {
		return CatalogRecord{}, err
	}
	return r, nil
}

// HasAuthor reports whether the record names a real author.
// "不明" (unknown) is how the catalog marks a missing author.
func (r CatalogRecord) HasAuthor() bool {
	return r.Author != "" && r.Author != "不明"
}

func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
