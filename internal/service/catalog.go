package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/scraper"
)

// CatalogService scrapes the public catalog into snapshots.
type CatalogService struct {
	scraper *scraper.Scraper
	cleaner *catalog.Cleaner
	logger  *slog.Logger
	now     func() time.Time
}

// NewCatalogService creates a catalog service. A nil cleaner leaves scraped
// records as parsed.
func NewCatalogService(s *scraper.Scraper, cleaner *catalog.Cleaner, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		scraper: s,
		cleaner: cleaner,
		logger:  logger,
		now:     time.Now,
	}
}

// ScrapeResult is a snapshot plus what was left out of it.
type ScrapeResult struct {
	Snapshot *catalog.Snapshot
	Dropped  []catalog.Dropped
	Failures []scraper.DetailFailure
}

// Scrape reads the catalog page at url. With clean set, records whose title
// is not a scenario are dropped before the snapshot is built.
func (s *CatalogService) Scrape(ctx context.Context, url, runID string, clean bool) (*ScrapeResult, error) {
	if s.scraper == nil {
		return nil, domainerrors.Config("scraper is not configured")
	}
	res, err := s.scraper.Catalog(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.finish(res.Records, url, runID, clean, nil), nil
}

// ScrapeBooking walks the booking listing at listURL and scrapes each
// scenario page. Pages that fail are reported in Failures.
func (s *CatalogService) ScrapeBooking(ctx context.Context, listURL string, maxPages int, runID string, clean bool) (*ScrapeResult, error) {
	if s.scraper == nil {
		return nil, domainerrors.Config("scraper is not configured")
	}
	links, err := s.scraper.BookingLinks(ctx, listURL, maxPages)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, domainerrors.NotFoundf("no booking pages found under %s", listURL)
	}
	s.logger.Info("booking links collected", "links", len(links))

	records, failures, err := s.scraper.Details(ctx, links)
	if err != nil {
		return nil, err
	}
	return s.finish(records, listURL, runID, clean, failures), nil
}

func (s *CatalogService) finish(records []domain.CatalogRecord, source, runID string, clean bool, failures []scraper.DetailFailure) *ScrapeResult {
	snap := catalog.NewSnapshot(records, source, runID, s.now())
	out := &ScrapeResult{Snapshot: snap, Failures: failures}
	if clean && s.cleaner != nil {
		out.Snapshot, out.Dropped = s.cleaner.CleanSnapshot(snap)
	}
	s.logger.Info("catalog snapshot ready",
		"records", len(out.Snapshot.Scenarios),
		"dropped", len(out.Dropped),
		"failures", len(out.Failures),
	)
	return out
}
