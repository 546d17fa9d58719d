// Package sqlite is a local replay store. It carries a minimal copy of the
// booking schema so generated SQL plans can be dry-run and checked for
// idempotence without touching the hosted database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/id"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite database holding the replay schema.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the store at path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Replays are single-writer; one connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SeedStaff inserts staff rows for names that are not present yet and
// returns how many were added.
func (s *Store) SeedStaff(ctx context.Context, names []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, name := range names {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO staff (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
			id.NewRowID(), name)
		if err != nil {
			return 0, fmt.Errorf("seed staff %q: %w", name, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// SeedScenarios inserts scenario rows, keeping existing rows with the same
// id. Scenarios without an id get a fresh one. Every scenario also gets a
// scenario_masters row.
func (s *Store) SeedScenarios(ctx context.Context, scenarios []domain.CanonicalScenario) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, sc := range scenarios {
		rowID := sc.ID
		if rowID == "" {
			rowID = id.NewRowID()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO scenarios (id, title, author) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
			rowID, sc.Title, nullString(sc.Author))
		if err != nil {
			return 0, fmt.Errorf("seed scenario %q: %w", sc.Title, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_masters (id, author) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
			rowID, nullString(sc.Author)); err != nil {
			return 0, fmt.Errorf("seed scenario master %q: %w", sc.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Scenarios returns every scenario row ordered by title.
func (s *Store) Scenarios(ctx context.Context) ([]domain.CanonicalScenario, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, COALESCE(author, '') FROM scenarios ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CanonicalScenario
	for rows.Next() {
		var sc domain.CanonicalScenario
		if err := rows.Scan(&sc.ID, &sc.Title, &sc.Author); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// StaffNames returns every staff name, sorted.
func (s *Store) StaffNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM staff ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AssignmentRow is one stored assignment joined with its names.
type AssignmentRow struct {
	StaffName     string
	ScenarioTitle string
	CanMainGM     bool
	CanSubGM      bool
	IsExperienced bool
	HasCanGMAt    bool
	HasExpAt      bool
}

// Assignments returns every assignment ordered by staff then scenario.
func (s *Store) Assignments(ctx context.Context) ([]AssignmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, sc.title, a.can_main_gm, a.can_sub_gm, a.is_experienced,
		       a.can_gm_at IS NOT NULL, a.experienced_at IS NOT NULL
		FROM staff_scenario_assignments a
		JOIN staff s ON s.id = a.staff_id
		JOIN scenarios sc ON sc.id = a.scenario_id
		ORDER BY s.name, sc.title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentRow
	for rows.Next() {
		var r AssignmentRow
		if err := rows.Scan(&r.StaffName, &r.ScenarioTitle, &r.CanMainGM, &r.CanSubGM,
			&r.IsExperienced, &r.HasCanGMAt, &r.HasExpAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts is a row count per table.
type Counts struct {
	Staff       int
	Scenarios   int
	Assignments int
}

// Counts returns the current row counts.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM staff),
		  (SELECT COUNT(*) FROM scenarios),
		  (SELECT COUNT(*) FROM staff_scenario_assignments)`).
		Scan(&c.Staff, &c.Scenarios, &c.Assignments)
	return c, err
}

// ScenarioRow is the catalog-derived state of one scenario.
type ScenarioRow struct {
	ID               string
	Author           string
	PlayerCountMin   *int
	PlayerCountMax   *int
	Duration         *int
	OfficialDuration *int
	Genre            string
}

// Scenario returns the scenario with the given id joined with its master row.
func (s *Store) Scenario(ctx context.Context, scenarioID string) (*ScenarioRow, error) {
	var (
		r                                      ScenarioRow
		author, genre                          sql.NullString
		pmin, pmax, duration, officialDuration sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT sc.id, sc.author, sc.player_count_min, sc.player_count_max, sc.duration,
		       m.official_duration, sc.genre
		FROM scenarios sc
		LEFT JOIN scenario_masters m ON m.id = sc.id
		WHERE sc.id = ?`, scenarioID).
		Scan(&r.ID, &author, &pmin, &pmax, &duration, &officialDuration, &genre)
	if err == sql.ErrNoRows {
		return nil, domainerrors.NotFoundf("scenario %s", scenarioID)
	}
	if err != nil {
		return nil, err
	}
	r.Author = author.String
	r.Genre = genre.String
	r.PlayerCountMin = intPtr(pmin)
	r.PlayerCountMax = intPtr(pmax)
	r.Duration = intPtr(duration)
	r.OfficialDuration = intPtr(officialDuration)
	return &r, nil
}

// nullString returns a sql.NullString, treating "" as NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
