package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/madamis-ops/gmsync/internal/catalog"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/report"
	"github.com/madamis-ops/gmsync/internal/service"
)

// defaultMaxPages bounds the booking listing walk.
const defaultMaxPages = 20

type scrapeOptions struct {
	listURL  string
	maxPages int
	clean    bool
	markdown string
}

func newScrapeCmd(a *app) *cobra.Command {
	var opts scrapeOptions

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the public scenario catalog into a snapshot",
		Long: "Load the catalog page in a headless browser, press \"load more\" until it stops\n" +
			"growing and parse the page text into a snapshot. With --list-url the booking\n" +
			"listing is walked instead and every scenario page is scraped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.CatalogURL, "url", "", "Catalog page URL")
	cmd.Flags().StringVar(&a.flags.CatalogPath, "out", "", "Snapshot JSON output path")
	cmd.Flags().StringVar(&a.flags.Headless, "headless", "", "Run the browser headless (true or false)")
	cmd.Flags().StringVar(&opts.listURL, "list-url", "", "Booking listing URL; scrape scenario pages instead of the catalog")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", defaultMaxPages, "Listing pages to walk with --list-url")
	cmd.Flags().BoolVar(&opts.clean, "clean", true, "Drop records whose title is not a scenario")
	cmd.Flags().StringVar(&opts.markdown, "markdown", "", "Also write a Markdown scenario list to this file")
	return cmd
}

func runScrape(cmd *cobra.Command, a *app, opts scrapeOptions) error {
	if opts.listURL == "" {
		if err := a.cfg.RequireCatalogURL(); err != nil {
			return err
		}
	}

	svc, err := do.Invoke[*service.CatalogService](a.injector)
	if err != nil {
		return err
	}

	var res *service.ScrapeResult
	if opts.listURL != "" {
		res, err = svc.ScrapeBooking(cmd.Context(), opts.listURL, opts.maxPages, a.runID, opts.clean)
	} else {
		res, err = svc.Scrape(cmd.Context(), a.cfg.Scraper.CatalogURL, a.runID, opts.clean)
	}
	if err != nil {
		return err
	}

	for _, f := range res.Failures {
		fmt.Fprintf(a.stdout, "failed: %s (%s)\n", f.Link.URL, f.Error)
	}
	return a.writeSnapshot(res.Snapshot, res.Dropped, opts.markdown)
}

type cleanCatalogOptions struct {
	in       string
	markdown string
}

func newCleanCatalogCmd(a *app) *cobra.Command {
	var opts cleanCatalogOptions

	cmd := &cobra.Command{
		Use:   "clean-catalog",
		Short: "Drop non-scenario records from a catalog snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanCatalog(a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "Snapshot to clean (default: the configured catalog path)")
	cmd.Flags().StringVar(&a.flags.CatalogPath, "out", "", "Cleaned snapshot output path")
	cmd.Flags().StringVar(&opts.markdown, "markdown", "", "Also write a Markdown scenario list to this file")
	return cmd
}

func runCleanCatalog(a *app, opts cleanCatalogOptions) error {
	in := opts.in
	if in == "" {
		in = a.cfg.Paths.CatalogPath
	}
	snap, err := catalog.LoadFile(in, a.log.Logger)
	if err != nil {
		return err
	}

	cleaner := do.MustInvoke[*catalog.Cleaner](a.injector)
	cleaned, dropped := cleaner.CleanSnapshot(snap)
	return a.writeSnapshot(cleaned, dropped, opts.markdown)
}

// writeSnapshot writes snap to the configured catalog path and, when
// markdown is set, the scenario list next to it.
func (a *app) writeSnapshot(snap *catalog.Snapshot, dropped []catalog.Dropped, markdown string) error {
	for _, d := range dropped {
		a.log.Debug("record dropped", "title", d.Title, "reason", d.Reason)
	}

	path := a.cfg.Paths.CatalogPath
	if err := snap.WriteFile(path); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d scenarios, %d tags, %d dropped: %s\n", len(snap.Scenarios), len(snap.Tags), len(dropped), path)

	if markdown == "" {
		return nil
	}
	f, err := os.Create(markdown)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", markdown)
	}
	if err := report.CatalogList(f, snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", markdown)
	}
	fmt.Fprintf(a.stdout, "scenario list: %s\n", markdown)
	return nil
}
