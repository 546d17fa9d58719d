// Package postgres executes generated SQL plans against a live database and
// reads the rows the matcher and the staff check need.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

// conn is the subset of *pgxpool.Pool the applier uses.
type conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Applier runs plans on a Postgres database.
type Applier struct {
	db     conn
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// MigrationResult reports one executed migration.
type MigrationResult struct {
	Name         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
}

// Open connects to dsn and pings the server. An empty DSN is a CONFIG error.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Applier, error) {
	if dsn == "" {
		return nil, domainerrors.Config("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "parse database url")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, remoteErr(ctx, err, "connect to database")
	}

	a := newApplier(pool, logger)
	a.pool = pool
	return a, nil
}

func newApplier(db conn, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{db: db, logger: logger}
}

// Close releases the pool.
func (a *Applier) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Apply validates plan and executes its migrations in order, one transaction
// per migration. It stops at the first failing migration; migrations that
// already committed stay committed.
func (a *Applier) Apply(ctx context.Context, plan *sqlgen.Plan) ([]MigrationResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Dialect != "" && plan.Dialect != sqlgen.Postgres {
		return nil, domainerrors.Validationf("plan dialect is %s, want %s", plan.Dialect, sqlgen.Postgres)
	}

	results := make([]MigrationResult, 0, len(plan.Migrations))
	for i, m := range plan.Migrations {
		res, err := a.applyMigration(ctx, m)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		a.logger.Info("migration applied",
			"step", fmt.Sprintf("%d/%d", i+1, len(plan.Migrations)),
			"migration", m.Name,
			"statements", res.Statements,
			"rows", res.RowsAffected,
			"duration", res.Duration)
	}
	return results, nil
}

func (a *Applier) applyMigration(ctx context.Context, m sqlgen.Migration) (MigrationResult, error) {
	start := time.Now()
	res := MigrationResult{Name: m.Name}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return res, remoteErr(ctx, err, "begin "+m.Name)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range m.Statements {
		tag, err := tx.Exec(ctx, stmt)
		if err != nil {
			return res, remoteErr(ctx, err, fmt.Sprintf("%s statement %d", m.Name, i+1))
		}
		res.Statements++
		res.RowsAffected += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return res, remoteErr(ctx, err, "commit "+m.Name)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// FetchScenarios returns every scenario row ordered by title.
func (a *Applier) FetchScenarios(ctx context.Context) ([]domain.CanonicalScenario, error) {
	rows, err := a.db.Query(ctx, `SELECT id::text, title, COALESCE(author, '') FROM scenarios ORDER BY title`)
	if err != nil {
		return nil, remoteErr(ctx, err, "query scenarios")
	}
	defer rows.Close()

	var out []domain.CanonicalScenario
	for rows.Next() {
		var id, title, author string
		if err := rows.Scan(&id, &title, &author); err != nil {
			return nil, remoteErr(ctx, err, "scan scenario")
		}
		s, err := domain.NewCanonicalScenario(id, title, author)
		if err != nil {
			a.logger.Warn("skipping scenario row", "id", id, "error", err)
			continue
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr(ctx, err, "read scenarios")
	}
	return out, nil
}

// MissingStaff returns the names that have no staff row, in input order.
func (a *Applier) MissingStaff(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := a.db.Query(ctx,
		`SELECT n FROM UNNEST($1::text[]) WITH ORDINALITY AS t(n, ord)
		 WHERE NOT EXISTS (SELECT 1 FROM staff s WHERE s.name = t.n)
		 ORDER BY ord`, names)
	if err != nil {
		return nil, remoteErr(ctx, err, "check staff")
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, remoteErr(ctx, err, "read staff check")
	}
	return missing, nil
}

// remoteErr tags err as REMOTE, or CANCELED when ctx is done. Constraint
// violations are CONFLICT.
func remoteErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return domainerrors.Wrap(err, domainerrors.CodeCanceled, msg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" || pgErr.Code == "23503" {
			return domainerrors.Wrapf(err, domainerrors.CodeConflict, "%s: %s", msg, pgErr.Message)
		}
		return domainerrors.Wrapf(err, domainerrors.CodeRemote, "%s: %s (%s)", msg, pgErr.Message, pgErr.Code)
	}
	return domainerrors.Wrap(err, domainerrors.CodeRemote, msg)
}
