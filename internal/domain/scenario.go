package domain

import (
	"strings"

	"github.com/madamis-ops/gmsync/internal/validation"
)

// CanonicalScenario is a database scenario row a catalog title can resolve to.
type CanonicalScenario struct {
	ID     string `json:"id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Author string `json:"author,omitempty"`
}

// NewCanonicalScenario validates that the id and title are present.
func NewCanonicalScenario(id, title, author string) (CanonicalScenario, error) {
	s := CanonicalScenario{
		ID:     strings.TrimSpace(id),
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
	}
	if err := validation.Default().Validate(s); err != nil {
		return CanonicalScenario{}, err
	}
	return s, nil
}

// MatchResult pairs a catalog record with the scenario it resolved to.
// Scenario is nil when nothing was accepted.
type MatchResult struct {
	Catalog  CatalogRecord      `json:"catalog"`
	Scenario *CanonicalScenario `json:"scenario,omitempty"`
	Score    float64            `json:"score"`
	Reason   string             `json:"reason,omitempty"`
}

// Matched reports whether a scenario was accepted.
func (m MatchResult) Matched() bool {
	return m.Scenario != nil
}
