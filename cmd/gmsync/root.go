package main

import (
	"fmt"
	"io"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/madamis-ops/gmsync/internal/config"
	"github.com/madamis-ops/gmsync/internal/di"
	"github.com/madamis-ops/gmsync/internal/id"
	"github.com/madamis-ops/gmsync/internal/logger"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	flags config.Flags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	injector *do.RootScope
	cfg      *config.Config
	log      *logger.Logger
	runID    string
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gmsync",
		Short:         "Sync the GM roster and the scenario catalog with the booking database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.EnvFile, "env-file", "", "Read environment from this file instead of .env.local and .env")
	pf.StringVar(&a.flags.Env, "env", "", "Environment: development, staging or production")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "Log format: json or pretty")
	pf.StringVar(&a.flags.DataDir, "data-dir", "", "Directory relative paths are resolved against")

	cmd.AddCommand(
		newNamesCmd(a),
		newAssignmentsCmd(a),
		newCheckStaffCmd(a),
		newScrapeCmd(a),
		newCleanCatalogCmd(a),
		newMapCmd(a),
		newReportCmd(a),
		newUpdateSQLCmd(a),
		newUpdateLiveCmd(a),
		newApplyCmd(a),
		newReplayCmd(a),
	)
	return cmd
}

// setup builds the container once the flags are parsed.
func (a *app) setup() error {
	a.injector = di.NewContainer(a.flags)

	cfg, log, err := di.Bootstrap(a.injector)
	if err != nil {
		return err
	}
	runID, err := id.NewRunID()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.runID = runID
	a.log = log.WithFields(map[string]any{
		"run": runID,
		"env": cfg.App.Environment,
	})
	return nil
}

// close prints the warning summary and releases everything the command
// opened.
func (a *app) close(err error) {
	if a.injector == nil {
		return
	}
	if a.log != nil {
		counts := a.log.Counts()
		if counts.Warnings() > 0 || counts.Errors() > 0 {
			fmt.Fprintf(a.stderr, "%d warnings, %d errors\n", counts.Warnings(), counts.Errors())
		}
		if err == nil {
			a.log.Debug("command finished")
		}
	}
	if shutdownErr := a.injector.Shutdown(); shutdownErr != nil && a.log != nil {
		a.log.WithError(shutdownErr).Error("shutdown failed")
	}
}

// planOptions builds plan settings from the configuration.
func (a *app) planOptions() (sqlgen.PlanOptions, error) {
	dialect, err := sqlgen.ParseDialect(a.cfg.SQL.Dialect)
	if err != nil {
		return sqlgen.PlanOptions{}, err
	}
	return sqlgen.PlanOptions{
		RunID:     a.runID,
		Dialect:   dialect,
		ChunkSize: a.cfg.SQL.ChunkSize,
	}, nil
}

// writePlan writes the SQL files and the manifest into the output dir.
func (a *app) writePlan(plan *sqlgen.Plan) error {
	dir := a.cfg.Paths.OutputDir
	paths, err := plan.WriteDir(dir)
	if err != nil {
		return err
	}
	manifest, err := plan.WriteManifest(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%d statements in %d files:\n", plan.StatementCount(), len(paths))
	for i, p := range paths {
		fmt.Fprintf(a.stdout, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintf(a.stdout, "plan: %s\n", manifest)
	a.log.WithField("dialect", string(plan.Dialect)).
		Info("plan written", "dir", dir, "files", len(paths), "statements", plan.StatementCount())
	return nil
}
