package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/di/providers"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/report"
	"github.com/madamis-ops/gmsync/internal/service"
)

func newMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Match a catalog snapshot against the database scenarios",
		Long: "Fuzzy-match every snapshot record against the scenario rows and write the\n" +
			"mapping JSON. Scenarios come from --scenarios, Supabase or Postgres, in that order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd, a)
		},
	}

	cmd.Flags().StringVar(&a.flags.CatalogPath, "catalog", "", "Catalog snapshot JSON")
	cmd.Flags().StringVar(&a.flags.MappingJSON, "out", "", "Mapping JSON output path")
	cmd.Flags().StringVar(&a.flags.Scenarios, "scenarios", "", "Scenario JSON file to match against instead of the database")
	cmd.Flags().StringVar(&a.flags.Threshold, "threshold", "", "Minimum similarity to accept a match (0-1)")
	return cmd
}

func runMap(cmd *cobra.Command, a *app) error {
	snap, err := catalog.LoadFile(a.cfg.Paths.CatalogPath, a.log.Logger)
	if err != nil {
		return err
	}
	source, err := do.Invoke[service.ScenarioSource](a.injector)
	if err != nil {
		return err
	}

	svc := do.MustInvoke[*service.MappingService](a.injector)
	doc, err := svc.Map(cmd.Context(), snap, source, a.cfg.Matcher.Threshold, a.runID)
	if err != nil {
		return err
	}

	path := a.cfg.Paths.MappingJSON
	f, err := os.Create(path)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", path)
	}
	if err := matcher.WriteDocument(f, *doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", path)
	}

	fmt.Fprintf(a.stdout, "matched %d/%d, catalog only %d, db only %d: %s\n",
		doc.Stats.MatchedCount, doc.Stats.TotalCatalog,
		doc.Stats.UnmatchedCatalogCount, doc.Stats.UnmatchedDBCount, path)
	return nil
}

type reportOptions struct {
	out       string
	noSuggest bool
}

func newReportCmd(a *app) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the mapping JSON as a Markdown report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.MappingJSON, "mapping-json", "", "Mapping JSON written by map")
	cmd.Flags().StringVar(&opts.out, "out", "", "Markdown output path (default: stdout)")
	cmd.Flags().BoolVar(&opts.noSuggest, "no-suggest", false, "Leave out index candidates for catalog-only records")
	return cmd
}

func runReport(a *app, opts reportOptions) error {
	doc, err := a.readMapping()
	if err != nil {
		return err
	}

	reportOpts := report.MappingOptions{}
	if !opts.noSuggest {
		reportOpts.Suggestions, err = providers.Suggestions(a.injector, doc)
		if err != nil {
			return err
		}
	}

	if opts.out == "" {
		return report.Mapping(a.stdout, doc, reportOpts)
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", opts.out)
	}
	if err := report.Mapping(f, doc, reportOpts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", opts.out)
	}
	fmt.Fprintf(a.stdout, "report: %s\n", opts.out)
	return nil
}

// readMapping loads the configured mapping JSON.
func (a *app) readMapping() (*matcher.Document, error) {
	path := a.cfg.Paths.MappingJSON
	f, err := os.Open(path) //#nosec G304 -- mapping path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("mapping JSON %s not found (run map first)", path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "open %s", path)
	}
	defer f.Close()
	return matcher.ReadDocument(f)
}
