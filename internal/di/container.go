// Package di provides dependency injection configuration for the gmsync
// commands.
package di

import (
	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/config"
	"github.com/madamis-ops/gmsync/internal/di/providers"
	"github.com/madamis-ops/gmsync/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
// Providers are lazy: a command only pays for what it resolves, so the
// browser and the database connections start on first use.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, flags)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideSupabase)
	do.Provide(injector, providers.ProvidePostgres)
	do.Provide(injector, providers.ProvideSQLite)
	do.Provide(injector, providers.ProvideScenarioSource)

	// Scraper layer
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideBrowser)
	do.Provide(injector, providers.ProvideCatalogParser)
	do.Provide(injector, providers.ProvideCleaner)
	do.Provide(injector, providers.ProvideScraper)

	// Matching layer
	do.Provide(injector, providers.ProvideMatcher)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Workflows
	do.Provide(injector, providers.ProvideRosterService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideMappingService)
	do.Provide(injector, providers.ProvideUpdateService)

	return injector
}

// Bootstrap loads the configuration and the logger, the two services every
// command needs. Configuration errors surface here, before any work.
func Bootstrap(injector *do.RootScope) (*config.Config, *logger.Logger, error) {
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return nil, nil, err
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
