package providers

import (
	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/logger"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/roster"
	"github.com/madamis-ops/gmsync/internal/scraper"
	"github.com/madamis-ops/gmsync/internal/search"
	"github.com/madamis-ops/gmsync/internal/service"
)

// ProvideRosterService provides the GM sheet workflow.
func ProvideRosterService(i do.Injector) (*service.RosterService, error) {
	log := do.MustInvoke[*logger.Logger](i)

	normalizer := roster.NewNormalizer(roster.DefaultNormalizerConfig())
	return service.NewRosterService(normalizer, roster.DefaultParserConfig(), log.Logger), nil
}

// ProvideCatalogService provides the scrape workflow.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	cleaner := do.MustInvoke[*catalog.Cleaner](i)

	s, err := do.Invoke[*scraper.Scraper](i)
	if err != nil {
		return nil, err
	}

	return service.NewCatalogService(s, cleaner, log.Logger), nil
}

// ProvideMappingService provides the catalog mapping workflow.
func ProvideMappingService(i do.Injector) (*service.MappingService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*matcher.Matcher](i)

	return service.NewMappingService(m, log.Logger), nil
}

// ProvideUpdateService provides the scenario update workflow.
func ProvideUpdateService(i do.Injector) (*service.UpdateService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewUpdateService(log.Logger), nil
}

// Suggestions resolves the search index and the mapping service and
// returns index candidates for every catalog-only record in doc.
func Suggestions(i do.Injector, doc *matcher.Document) (map[string][]search.Suggestion, error) {
	index, err := do.Invoke[*SearchIndexHandle](i)
	if err != nil {
		return nil, err
	}
	svc := do.MustInvoke[*service.MappingService](i)
	return svc.Suggest(doc, index.Index, suggestionLimit)
}
