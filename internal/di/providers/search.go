package providers

import (
	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/config"
	"github.com/madamis-ops/gmsync/internal/logger"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve index used for report suggestions.
// It lives in memory unless GMSYNC_INDEX_DIR is set.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Paths.IndexDir,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Debug("search index initialized", "documents", docCount, "path", cfg.Paths.IndexDir)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideMatcher provides the title matcher with the default tables.
func ProvideMatcher(i do.Injector) (*matcher.Matcher, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return matcher.New(matcher.DefaultConfig(), log.Logger), nil
}
