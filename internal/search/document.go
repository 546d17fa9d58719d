package search

import (
	"github.com/madamis-ops/gmsync/internal/domain"
	"github.com/madamis-ops/gmsync/internal/matcher"
)

// ScenarioDocument is a database scenario as indexed.
type ScenarioDocument struct {
	ID         string
	Title      string
	Normalized string
	Author     string
}

// NewScenarioDocument builds the document for s.
func NewScenarioDocument(s domain.CanonicalScenario) *ScenarioDocument {
	return &ScenarioDocument{
		ID:         s.ID,
		Title:      s.Title,
		Normalized: matcher.NormalizeTitle(s.Title),
		Author:     s.Author,
	}
}

// ToMap converts the document to a map with lowercase field names so they
// match the index mapping.
func (d *ScenarioDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":    d.ID,
		"title": d.Title,
	}
	if d.Normalized != "" {
		m["normalized"] = d.Normalized
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	return m
}
