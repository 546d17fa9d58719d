package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

// fakeDB records statements per transaction.
type fakeDB struct {
	failOn    string
	failErr   error
	committed [][]string
	rolled    int
	rows      [][]any
	lastQuery string
	lastArgs  []any
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{db: db}, nil
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.lastQuery = sql
	db.lastArgs = args
	return &fakeRows{rows: db.rows, i: -1}, nil
}

type fakeTx struct {
	pgx.Tx
	db    *fakeDB
	stmts []string
	done  bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.failOn != "" && sql == tx.db.failOn {
		return pgconn.CommandTag{}, tx.db.failErr
	}
	tx.stmts = append(tx.stmts, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.done = true
	tx.db.committed = append(tx.db.committed, tx.stmts)
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.done {
		tx.db.rolled++
	}
	return nil
}

type fakeRows struct {
	pgx.Rows
	rows [][]any
	i    int
}

func (r *fakeRows) Next() bool { r.i++; return r.i < len(r.rows) }
func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
		*p = row[i].(string)
	}
	return nil
}

func testPlan() *sqlgen.Plan {
	a := domain.NewMainGMAssignment("えりん", "モノクローム")
	return sqlgen.BuildAssignmentPlan([]string{"新人"}, []domain.Assignment{a}, sqlgen.PlanOptions{
		RunID:       "run-test",
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	assert.ErrorIs(t, err, domainerrors.ErrConfig)
	assert.Equal(t, 2, domainerrors.ExitCode(err))
}

func TestApplier_Apply(t *testing.T) {
	db := &fakeDB{}
	a := newApplier(db, slog.New(slog.DiscardHandler))
	plan := testPlan()

	results, err := a.Apply(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, sqlgen.MigrationAddNewStaff, results[0].Name)
	assert.Equal(t, sqlgen.MigrationDeleteAll, results[1].Name)
	assert.Equal(t, int64(1), results[0].RowsAffected)

	require.Len(t, db.committed, 3)
	for i, m := range plan.Migrations {
		assert.Equal(t, m.Statements, db.committed[i], m.Name)
	}
	assert.Zero(t, db.rolled)
}

func TestApplier_Apply_StopsAtFailure(t *testing.T) {
	plan := testPlan()
	db := &fakeDB{
		failOn:  plan.Migrations[1].Statements[0],
		failErr: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"},
	}
	a := newApplier(db, slog.New(slog.DiscardHandler))

	results, err := a.Apply(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrRemote)
	assert.Contains(t, err.Error(), sqlgen.MigrationDeleteAll)
	assert.Contains(t, err.Error(), "42P01")

	assert.Len(t, results, 1)
	assert.Len(t, db.committed, 1)
	assert.Equal(t, 1, db.rolled)
}

func TestApplier_Apply_RejectsInvalidPlan(t *testing.T) {
	a := newApplier(&fakeDB{}, nil)

	_, err := a.Apply(context.Background(), &sqlgen.Plan{Migrations: []sqlgen.Migration{{Name: ""}}})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = a.Apply(context.Background(), &sqlgen.Plan{Dialect: sqlgen.SQLite})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestRemoteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, domainerrors.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, domainerrors.ErrConflict},
		{"syntax", &pgconn.PgError{Code: "42601"}, domainerrors.ErrRemote},
		{"network", errors.New("connection reset"), domainerrors.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, remoteErr(context.Background(), tt.err, "op"), tt.want)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, remoteErr(ctx, context.Canceled, "op"), domainerrors.ErrCanceled)
}

func TestApplier_FetchScenarios(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{"s1", "モノクローム", "ドニパン"},
		{"", "壊れた行", ""},
		{"s2", "深夜の羊", ""},
	}}
	a := newApplier(db, slog.New(slog.DiscardHandler))

	got, err := a.FetchScenarios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.CanonicalScenario{
		{ID: "s1", Title: "モノクローム", Author: "ドニパン"},
		{ID: "s2", Title: "深夜の羊"},
	}, got)
}

func TestApplier_MissingStaff(t *testing.T) {
	db := &fakeDB{rows: [][]any{{"新人"}}}
	a := newApplier(db, nil)

	got, err := a.MissingStaff(context.Background(), []string{"えりん", "新人"})
	require.NoError(t, err)
	assert.Equal(t, []string{"新人"}, got)
	assert.Equal(t, []any{[]string{"えりん", "新人"}}, db.lastArgs)

	got, err = a.MissingStaff(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
