package main

import (
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/madamis-ops/gmsync/internal/di/providers"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/roster"
	"github.com/madamis-ops/gmsync/internal/service"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

type applyOptions struct {
	plan string
	yes  bool
}

func newApplyCmd(a *app) *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute a generated plan against Postgres",
		Long: "Run every migration of a plan written by assignments or update-sql, in order,\n" +
			"one transaction per migration. The first failing migration is rolled back and\n" +
			"stops the run; earlier migrations stay committed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.plan, "plan", "", "Plan manifest or its directory (default: the output dir)")
	cmd.Flags().StringVar(&a.flags.PostgresDSN, "dsn", "", "Postgres connection string")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runApply(cmd *cobra.Command, a *app, opts applyOptions) error {
	plan, err := a.readPlan(opts.plan)
	if err != nil {
		return err
	}
	if plan.Dialect != sqlgen.Postgres {
		return domainerrors.Validationf("plan dialect is %s; regenerate it with --dialect postgres", plan.Dialect)
	}

	pg, err := do.Invoke[*providers.PostgresHandle](a.injector)
	if err != nil {
		return err
	}

	if !opts.yes && !a.confirm(fmt.Sprintf("run %d migrations (%d statements)?", len(plan.Migrations), plan.StatementCount())) {
		return domainerrors.Canceled("apply canceled")
	}

	results, err := pg.Apply(cmd.Context(), plan)
	for _, r := range results {
		fmt.Fprintf(a.stdout, "%s: %d statements, %d rows, %s\n", r.Name, r.Statements, r.RowsAffected, r.Duration.Round(time.Millisecond))
	}
	return err
}

type replayOptions struct {
	plan  string
	twice bool
}

func newReplayCmd(a *app) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Dry-run a generated plan against the local SQLite store",
		Long: "Seed the local store with the mapped staff names and the configured scenarios,\n" +
			"then run a plan generated with --dialect sqlite. --twice runs it again and\n" +
			"fails when the second run changes the row counts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.plan, "plan", "", "Plan manifest or its directory (default: the output dir)")
	cmd.Flags().StringVar(&a.flags.LocalDB, "local-db", "", "SQLite database file (default: in-memory)")
	cmd.Flags().StringVar(&a.flags.MappingPath, "mapping", "", "Name mapping file used to seed staff")
	cmd.Flags().StringVar(&a.flags.Scenarios, "scenarios", "", "Scenario JSON file used to seed scenarios")
	cmd.Flags().BoolVar(&opts.twice, "twice", false, "Replay twice and compare row counts")
	return cmd
}

func runReplay(cmd *cobra.Command, a *app, opts replayOptions) error {
	ctx := cmd.Context()

	plan, err := a.readPlan(opts.plan)
	if err != nil {
		return err
	}
	db, err := do.Invoke[*providers.SQLiteHandle](a.injector)
	if err != nil {
		return err
	}
	if err := a.seedLocal(cmd, db); err != nil {
		return err
	}

	results, err := db.Replay(ctx, plan)
	for _, r := range results {
		fmt.Fprintf(a.stdout, "%s: %d statements, %d rows\n", r.Name, r.Statements, r.RowsAffected)
	}
	if err != nil {
		return err
	}

	first, err := db.Counts(ctx)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "count rows")
	}
	fmt.Fprintf(a.stdout, "staff: %d, scenarios: %d, assignments: %d\n", first.Staff, first.Scenarios, first.Assignments)
	if !opts.twice {
		return nil
	}

	if _, err := db.Replay(ctx, plan); err != nil {
		return err
	}
	second, err := db.Counts(ctx)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "count rows")
	}
	if second != first {
		return domainerrors.Conflictf("second replay changed row counts: %+v -> %+v", first, second)
	}
	fmt.Fprintln(a.stdout, "second replay left the row counts unchanged")
	return nil
}

// seedLocal fills the local store with the staff and scenario rows the plan
// joins against. Both sources are optional.
func (a *app) seedLocal(cmd *cobra.Command, db *providers.SQLiteHandle) error {
	ctx := cmd.Context()

	m, err := roster.LoadMapping(a.cfg.Paths.MappingPath, a.log.Logger)
	switch {
	case err == nil:
		n, err := db.SeedStaff(ctx, m.CanonicalNames())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "seed staff")
		}
		a.log.Info("staff seeded", "added", n)
	case domainerrors.Is(err, domainerrors.ErrNotFound):
		a.log.Debug("no mapping file, staff not seeded", "path", a.cfg.Paths.MappingPath)
	default:
		return err
	}

	source, err := do.Invoke[service.ScenarioSource](a.injector)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrConfig) {
			a.log.Debug("no scenario source, scenarios not seeded")
			return nil
		}
		return err
	}
	scenarios, err := source.FetchScenarios(ctx)
	if err != nil {
		return err
	}
	n, err := db.SeedScenarios(ctx, scenarios)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "seed scenarios")
	}
	a.log.Info("scenarios seeded", "added", n)
	return nil
}

// readPlan loads the plan manifest, defaulting to the output dir.
func (a *app) readPlan(path string) (*sqlgen.Plan, error) {
	if path == "" {
		path = a.cfg.Paths.OutputDir
	}
	return sqlgen.ReadManifest(path)
}
