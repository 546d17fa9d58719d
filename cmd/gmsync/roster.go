package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/madamis-ops/gmsync/internal/di/providers"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/roster"
	"github.com/madamis-ops/gmsync/internal/service"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
	"github.com/madamis-ops/gmsync/internal/supabase"
)

type namesOptions struct {
	template string
	live     bool
}

func newNamesCmd(a *app) *cobra.Command {
	var opts namesOptions

	cmd := &cobra.Command{
		Use:   "names",
		Short: "List every staff name on the GM sheet",
		Long: "List every normalized staff name on the GM sheet. Names that are not known staff\n" +
			"get the closest known names as suggestions. Known names come from the mapping\n" +
			"file, or from the staff table with --live.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNames(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.SheetPath, "sheet", "", "GM sheet (TSV)")
	cmd.Flags().StringVar(&a.flags.MappingPath, "mapping", "", "Name mapping file")
	cmd.Flags().StringVar(&opts.template, "template", "", "Write an identity mapping template to this file")
	cmd.Flags().BoolVar(&opts.live, "live", false, "Read known staff names from Supabase")
	return cmd
}

func runNames(cmd *cobra.Command, a *app, opts namesOptions) error {
	known, err := knownStaff(cmd, a, opts.live)
	if err != nil {
		return err
	}

	svc := do.MustInvoke[*service.RosterService](a.injector)
	res, err := svc.Names(a.cfg.Paths.SheetPath, known)
	if err != nil {
		return err
	}

	for _, name := range res.Names {
		sug, ok := res.Suggestions[name]
		if !ok {
			fmt.Fprintln(a.stdout, name)
			continue
		}
		alts := make([]string, len(sug))
		for i, s := range sug {
			alts[i] = fmt.Sprintf("%s (%.2f)", s.Name, s.Score)
		}
		fmt.Fprintf(a.stdout, "%s\t-> %s\n", name, strings.Join(alts, ", "))
	}

	if opts.template == "" {
		return nil
	}
	f, err := os.Create(opts.template)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", opts.template)
	}
	if err := roster.WriteMappingTemplate(f, res.Names); err != nil {
		f.Close()
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "write %s", opts.template)
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", opts.template)
	}
	a.log.Info("mapping template written", "path", opts.template, "names", len(res.Names))
	return nil
}

// knownStaff returns the staff names suggestions are drawn from. A missing
// mapping file just means there is nothing to suggest.
func knownStaff(cmd *cobra.Command, a *app, live bool) ([]string, error) {
	if live {
		client, err := do.Invoke[*supabase.Client](a.injector)
		if err != nil {
			return nil, err
		}
		return client.FetchStaffNames(cmd.Context())
	}

	m, err := roster.LoadMapping(a.cfg.Paths.MappingPath, a.log.Logger)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.CanonicalNames(), nil
}

type assignmentsOptions struct {
	only []string
}

func newAssignmentsCmd(a *app) *cobra.Command {
	var opts assignmentsOptions

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Generate GM assignment SQL from the GM sheet",
		Long: "Parse the GM sheet through the name mapping and write the import plan:\n" +
			"new staff, delete-all, then the chunked assignment upserts. With --only the\n" +
			"plan upserts the listed staff without wiping the table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignments(a, opts)
		},
	}

	cmd.Flags().StringVar(&a.flags.SheetPath, "sheet", "", "GM sheet (TSV)")
	cmd.Flags().StringVar(&a.flags.MappingPath, "mapping", "", "Name mapping file")
	cmd.Flags().StringVar(&a.flags.OutputDir, "out", "", "Output directory for the SQL files")
	cmd.Flags().StringVar(&a.flags.ChunkSize, "chunk-size", "", "Statements per import file")
	cmd.Flags().StringVar(&a.flags.Dialect, "dialect", "", "SQL dialect: postgres or sqlite")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "Only export these staff names (comma separated)")
	return cmd
}

func runAssignments(a *app, opts assignmentsOptions) error {
	planOpts, err := a.planOptions()
	if err != nil {
		return err
	}

	svc := do.MustInvoke[*service.RosterService](a.injector)
	res, err := svc.Assignments(service.AssignmentRequest{
		SheetPath:   a.cfg.Paths.SheetPath,
		MappingPath: a.cfg.Paths.MappingPath,
		Only:        opts.only,
		Plan:        planOpts,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "scenarios: %d, main GM: %d, experienced: %d, staff: %d\n",
		res.Stats.Scenarios, res.Stats.MainGM, res.Stats.Experienced, res.Stats.UniqueStaff)
	if len(res.NewStaff) > 0 {
		fmt.Fprintf(a.stdout, "new staff: %s\n", strings.Join(res.NewStaff, ", "))
	}
	if len(res.Duplicates) > 0 {
		fmt.Fprintf(a.stdout, "duplicate titles (last row kept): %s\n", strings.Join(res.Duplicates, ", "))
	}
	return a.writePlan(res.Plan)
}

type checkStaffOptions struct {
	local bool
	sql   bool
}

func newCheckStaffCmd(a *app) *cobra.Command {
	var opts checkStaffOptions

	cmd := &cobra.Command{
		Use:   "check-staff [name...]",
		Short: "Report mapped staff names that have no staff row",
		Long: "Check that every canonical name in the mapping file (or the names given) has\n" +
			"a staff row. --sql prints the check query instead of running it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckStaff(cmd, a, opts, args)
		},
	}

	cmd.Flags().StringVar(&a.flags.MappingPath, "mapping", "", "Name mapping file")
	cmd.Flags().StringVar(&a.flags.LocalDB, "local-db", "", "SQLite database used with --local")
	cmd.Flags().StringVar(&a.flags.Dialect, "dialect", "", "SQL dialect for --sql: postgres or sqlite")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Check the local SQLite store instead of Postgres")
	cmd.Flags().BoolVar(&opts.sql, "sql", false, "Print the check query and exit")
	return cmd
}

func runCheckStaff(cmd *cobra.Command, a *app, opts checkStaffOptions, args []string) error {
	names := args
	if len(names) == 0 {
		m, err := roster.LoadMapping(a.cfg.Paths.MappingPath, a.log.Logger)
		if err != nil {
			return err
		}
		names = m.CanonicalNames()
	}
	if len(names) == 0 {
		return domainerrors.Validation("no staff names to check")
	}

	if opts.sql {
		planOpts, err := a.planOptions()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, sqlgen.New(planOpts.Dialect).MissingStaffCheck(names))
		return nil
	}

	var (
		missing []string
		err     error
	)
	if opts.local {
		db, invokeErr := do.Invoke[*providers.SQLiteHandle](a.injector)
		if invokeErr != nil {
			return invokeErr
		}
		missing, err = db.MissingStaff(cmd.Context(), names)
	} else {
		pg, invokeErr := do.Invoke[*providers.PostgresHandle](a.injector)
		if invokeErr != nil {
			return invokeErr
		}
		missing, err = pg.MissingStaff(cmd.Context(), names)
	}
	if err != nil {
		return err
	}

	if len(missing) == 0 {
		fmt.Fprintf(a.stdout, "all %d staff names exist\n", len(names))
		return nil
	}
	for _, name := range missing {
		fmt.Fprintln(a.stdout, name)
	}
	return domainerrors.NotFoundf("%d of %d staff names have no staff row", len(missing), len(names))
}
