package service

import (
	"context"
	"log/slog"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/search"
)

// MappingService matches a catalog snapshot against the database scenarios.
type MappingService struct {
	matcher *matcher.Matcher
	logger  *slog.Logger
}

// NewMappingService creates a mapping service.
func NewMappingService(m *matcher.Matcher, logger *slog.Logger) *MappingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingService{matcher: m, logger: logger}
}

// Map fetches the candidates from source and maps every snapshot record.
func (s *MappingService) Map(ctx context.Context, snap *catalog.Snapshot, source ScenarioSource, threshold float64, runID string) (*matcher.Document, error) {
	if snap == nil || len(snap.Scenarios) == 0 {
		return nil, domainerrors.Validation("catalog snapshot has no scenarios")
	}
	if source == nil {
		return nil, domainerrors.Config("no scenario source configured (set SUPABASE_URL, DATABASE_URL or --scenarios)")
	}

	candidates, err := source.FetchScenarios(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domainerrors.NotFound("scenario source returned no scenarios")
	}
	s.logger.Info("candidates loaded", "scenarios", len(candidates))

	mapping := s.matcher.MapAll(snap.Scenarios, candidates, threshold)
	doc := mapping.Document(runID)

	s.logger.Info("catalog mapped",
		"matched", doc.Stats.MatchedCount,
		"catalog_only", doc.Stats.UnmatchedCatalogCount,
		"db_only", doc.Stats.UnmatchedDBCount,
	)
	return &doc, nil
}

// Suggest indexes the scenarios named in doc and returns index candidates
// for each catalog-only record.
func (s *MappingService) Suggest(doc *matcher.Document, index *search.Index, limit int) (map[string][]search.Suggestion, error) {
	if len(doc.UnmatchedCatalog) == 0 {
		return map[string][]search.Suggestion{}, nil
	}
	if err := index.IndexScenarios(ScenariosFromDocument(doc)); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "index scenarios")
	}

	records := make([]domain.CatalogRecord, len(doc.UnmatchedCatalog))
	for i, e := range doc.UnmatchedCatalog {
		records[i] = e.CatalogRecord
	}
	out, err := index.SuggestAll(records, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "suggest scenarios")
	}
	s.logger.Debug("suggestions built", "records", len(records), "with_candidates", len(out))
	return out, nil
}
