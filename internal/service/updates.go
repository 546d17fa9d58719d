package service

import (
	"context"
	"log/slog"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
	"github.com/madamis-ops/gmsync/internal/supabase"
)

// UpdateApplier writes scenario updates to the live database.
type UpdateApplier interface {
	ApplyUpdates(ctx context.Context, updates []domain.ScenarioUpdate) supabase.Tally
}

// UpdateService turns a mapping document into scenario updates.
type UpdateService struct {
	logger *slog.Logger
}

// NewUpdateService creates an update service.
func NewUpdateService(logger *slog.Logger) *UpdateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateService{logger: logger}
}

// Updates builds one update per matched entry with similarity at least
// minSimilarity. Entries that would change nothing are left out.
func (s *UpdateService) Updates(doc *matcher.Document, minSimilarity float64) []domain.ScenarioUpdate {
	var out []domain.ScenarioUpdate
	skipped := 0
	for _, m := range doc.Matched {
		if m.Similarity < minSimilarity {
			skipped++
			continue
		}
		sc := domain.CanonicalScenario{ID: m.DBID, Title: m.DBTitle, Author: m.DBAuthor}
		u := domain.NewScenarioUpdate(sc, m.CatalogData, catalog.Genres(m.CatalogData.Tags))
		if u.Empty() {
			continue
		}
		out = append(out, u)
	}
	if skipped > 0 {
		s.logger.Info("low-similarity matches left out", "count", skipped, "min_similarity", minSimilarity)
	}
	return out
}

// Plan renders updates as a single-migration plan.
func (s *UpdateService) Plan(updates []domain.ScenarioUpdate, opts sqlgen.PlanOptions) *sqlgen.Plan {
	return sqlgen.BuildScenarioUpdatePlan(updates, opts)
}

// Apply sends updates through applier and logs the tally.
func (s *UpdateService) Apply(ctx context.Context, applier UpdateApplier, updates []domain.ScenarioUpdate) supabase.Tally {
	t := applier.ApplyUpdates(ctx, updates)
	s.logger.Info("live update finished",
		"attempted", t.Attempted,
		"scenarios_updated", t.ScenariosUpdated,
		"masters_updated", t.MastersUpdated,
		"no_rows", t.NoRows,
		"failed", len(t.Failures),
		"canceled", t.Canceled,
	)
	return t
}
