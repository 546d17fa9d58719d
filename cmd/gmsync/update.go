package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/service"
	"github.com/madamis-ops/gmsync/internal/supabase"
)

type updateOptions struct {
	minSimilarity float64
	yes           bool
}

func newUpdateSQLCmd(a *app) *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update-sql",
		Short: "Generate scenario UPDATE SQL from the mapping JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateSQL(a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.MappingJSON, "mapping-json", "", "Mapping JSON written by map")
	cmd.Flags().StringVar(&a.flags.OutputDir, "out", "", "Output directory for the SQL file")
	cmd.Flags().StringVar(&a.flags.Dialect, "dialect", "", "SQL dialect: postgres or sqlite")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Skip matches below this similarity")
	return cmd
}

func runUpdateSQL(a *app, opts updateOptions) error {
	doc, err := a.readMapping()
	if err != nil {
		return err
	}
	planOpts, err := a.planOptions()
	if err != nil {
		return err
	}

	svc := do.MustInvoke[*service.UpdateService](a.injector)
	updates := svc.Updates(doc, opts.minSimilarity)
	if len(updates) == 0 {
		fmt.Fprintln(a.stdout, "no scenario updates")
		return nil
	}
	return a.writePlan(svc.Plan(updates, planOpts))
}

func newUpdateLiveCmd(a *app) *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update-live",
		Short: "Update scenarios in the live database from the mapping JSON",
		Long: "Send one update per matched scenario through the Supabase REST API. Rows are\n" +
			"updated one at a time and nothing is rolled back; failures are counted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateLive(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.MappingJSON, "mapping-json", "", "Mapping JSON written by map")
	cmd.Flags().StringVar(&a.flags.SupabaseURL, "supabase-url", "", "Supabase project URL")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Skip matches below this similarity")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runUpdateLive(cmd *cobra.Command, a *app, opts updateOptions) error {
	doc, err := a.readMapping()
	if err != nil {
		return err
	}
	client, err := do.Invoke[*supabase.Client](a.injector)
	if err != nil {
		return err
	}

	svc := do.MustInvoke[*service.UpdateService](a.injector)
	updates := svc.Updates(doc, opts.minSimilarity)
	if len(updates) == 0 {
		fmt.Fprintln(a.stdout, "no scenario updates")
		return nil
	}

	if !opts.yes {
		if !a.confirm(fmt.Sprintf("update %d scenarios in %s?", len(updates), a.cfg.Supabase.URL)) {
			return domainerrors.Canceled("update canceled")
		}
	}

	t := svc.Apply(cmd.Context(), client, updates)
	fmt.Fprintf(a.stdout, "updated %d scenarios, %d masters, %d without rows, %d failed\n",
		t.ScenariosUpdated, t.MastersUpdated, t.NoRows, len(t.Failures))
	for _, f := range t.Failures {
		fmt.Fprintf(a.stdout, "  %s: %s\n", f.Title, f.Error)
	}

	switch {
	case t.Canceled:
		return domainerrors.Canceledf("update interrupted after %d of %d scenarios", t.Attempted, len(updates))
	case len(t.Failures) > 0:
		return domainerrors.Remotef("%d of %d scenario updates failed", len(t.Failures), t.Attempted)
	}
	return nil
}

// confirm asks a yes/no question on stdout. Anything but yes, including
// end of input, is no.
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.stdout, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(a.stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
