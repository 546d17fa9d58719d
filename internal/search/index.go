// Package search keeps a Bleve index of database scenarios and suggests
// candidates for catalog records the matcher could not place.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/madamis-ops/gmsync/internal/domain"
)

// Index wraps a Bleve index of scenario documents.
//
// Thread safety: All public methods are safe for concurrent use.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex

	scenarios map[string]domain.CanonicalScenario
}

// Options configures the index.
type Options struct {
	// DataPath is the directory for an on-disk index. Empty keeps the index
	// in memory, which is what one-shot commands want.
	DataPath string
	Logger   *slog.Logger
}

// mappingVersion is incremented whenever the index mapping changes.
// An on-disk index with another version is rebuilt on open.
const mappingVersion = "1"

// NewIndex creates or opens an index.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Index{
		logger:    logger,
		scenarios: make(map[string]domain.CanonicalScenario),
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		s.index = index
		return s, nil
	}

	s.path = filepath.Join(opts.DataPath, "scenarios.bleve")
	index, err := openOnDisk(s.path, filepath.Join(opts.DataPath, "scenarios.version"), logger)
	if err != nil {
		return nil, err
	}
	s.index = index
	return s, nil
}

// openOnDisk opens the index at indexPath, recreating it when it is missing,
// corrupted or built with an older mapping.
func openOnDisk(indexPath, versionPath string, logger *slog.Logger) (bleve.Index, error) {
	needsRebuild := false
	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err := bleve.Open(indexPath)
		if err == nil {
			logger.Debug("opened existing search index", "path", indexPath)
			return index, nil
		}
		logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
	}

	if err := os.RemoveAll(indexPath); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(indexPath, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
		logger.Warn("failed to write search version file", "error", writeErr)
	}
	logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	return index, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexScenarios indexes scenarios in batches, replacing documents with the
// same id.
func (s *Index) IndexScenarios(scenarios []domain.CanonicalScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const batchSize = 500

	for i := 0; i < len(scenarios); i += batchSize {
		end := min(i+batchSize, len(scenarios))

		batch := s.index.NewBatch()
		for _, sc := range scenarios[i:end] {
			doc := NewScenarioDocument(sc)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
			s.scenarios[sc.ID] = sc
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	s.logger.Debug("scenarios indexed", "count", len(scenarios))
	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}
