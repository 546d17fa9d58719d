package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/config"
	"github.com/madamis-ops/gmsync/internal/logger"
	"github.com/madamis-ops/gmsync/internal/ratelimit"
	"github.com/madamis-ops/gmsync/internal/scraper"
)

// BrowserHandle wraps the headless browser with shutdown capability.
type BrowserHandle struct {
	*scraper.Browser
}

// Shutdown implements do.Shutdownable.
func (h *BrowserHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideBrowser starts headless Chrome. Only the scrape command resolves
// it, so other commands never launch a browser.
func ProvideBrowser(i do.Injector) (*BrowserHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	browser, err := scraper.NewBrowser(context.Background(), scraper.BrowserOptions{
		Headless:    cfg.Scraper.Headless,
		Timeout:     cfg.Scraper.Timeout,
		SettleDelay: cfg.Scraper.SettleDelay,
		MaxClicks:   cfg.Scraper.MaxClicks,
		MaxMisses:   cfg.Scraper.MaxMisses,
	})
	if err != nil {
		return nil, err
	}

	log.Info("browser started", "headless", cfg.Scraper.Headless)
	return &BrowserHandle{Browser: browser}, nil
}

// ProvideCatalogParser provides the catalog page-text parser.
func ProvideCatalogParser(i do.Injector) (*catalog.Parser, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return catalog.NewParser(catalog.DefaultParserConfig(), log.Logger)
}

// ProvideCleaner provides the catalog cleanup filter.
func ProvideCleaner(i do.Injector) (*catalog.Cleaner, error) {
	return catalog.NewCleaner(catalog.DefaultCleanupConfig())
}

// ProvideScraper provides the scraper driving the browser.
func ProvideScraper(i do.Injector) (*scraper.Scraper, error) {
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)
	parser := do.MustInvoke[*catalog.Parser](i)

	browser, err := do.Invoke[*BrowserHandle](i)
	if err != nil {
		return nil, err
	}

	return scraper.New(browser.Browser, parser, limiter, log.Logger)
}
