package sqlite

import (
	"context"
	"fmt"
	"strings"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

// ReplayResult reports one replayed migration.
type ReplayResult struct {
	Name         string
	Statements   int
	RowsAffected int64
}

// Replay executes plan against the store, one transaction per migration,
// in plan order. The plan must be rendered for the SQLite dialect. A failing
// statement rolls back its migration and stops the replay.
func (s *Store) Replay(ctx context.Context, plan *sqlgen.Plan) ([]ReplayResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Dialect != sqlgen.SQLite {
		return nil, domainerrors.Validationf("plan dialect is %s, want %s", plan.Dialect, sqlgen.SQLite)
	}

	results := make([]ReplayResult, 0, len(plan.Migrations))
	for _, m := range plan.Migrations {
		res, err := s.replayMigration(ctx, m)
		if err != nil {
			return results, err
		}
		s.logger.Debug("migration replayed", "migration", m.Name, "statements", res.Statements, "rows", res.RowsAffected)
		results = append(results, res)
	}
	return results, nil
}

func (s *Store) replayMigration(ctx context.Context, m sqlgen.Migration) (ReplayResult, error) {
	res := ReplayResult{Name: m.Name}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for i, stmt := range m.Statements {
		r, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			if ctx.Err() != nil {
				return res, domainerrors.Wrap(err, domainerrors.CodeCanceled, "replay canceled")
			}
			return res, domainerrors.Wrapf(err, domainerrors.CodeValidation,
				"%s statement %d: %s", m.Name, i+1, firstLine(stmt))
		}
		n, _ := r.RowsAffected()
		res.RowsAffected += n
		res.Statements++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s: %w", m.Name, err)
	}
	return res, nil
}

// MissingStaff runs the generated existence check and returns the names
// without a staff row.
func (s *Store) MissingStaff(ctx context.Context, names []string) ([]string, error) {
	query := sqlgen.New(sqlgen.SQLite).MissingStaffCheck(names)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		missing = append(missing, name)
	}
	return missing, rows.Err()
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}
