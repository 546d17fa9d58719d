// Package sqlgen renders idempotent SQL for the assignment import and the
// catalog-driven scenario updates.
//
// Statements are plain text meant for a SQL editor or for the apply and
// replay commands. Every literal goes through Quote; nothing is parameterized
// because the output is reviewed and run by hand.
package sqlgen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// DefaultChunkSize is the number of statements per import file.
const DefaultChunkSize = 150

// Dialect selects the dialect-specific fragments of generated SQL.
type Dialect string

const (
	// Postgres is the production backend.
	Postgres Dialect = "postgres"
	// SQLite is the local replay store.
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a config string to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", domainerrors.Configf("unknown SQL dialect %q", s)
	}
}

// Now returns the current-timestamp expression.
func (d Dialect) Now() string {
	if d == SQLite {
		return "CURRENT_TIMESTAMP"
	}
	return "NOW()"
}

// TextArray renders a text-array literal. SQLite stores arrays as JSON text.
func (d Dialect) TextArray(values []string) string {
	if len(values) == 0 {
		return "NULL"
	}
	if d == SQLite {
		b, _ := json.Marshal(values)
		return Quote(string(b))
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return "ARRAY[" + strings.Join(quoted, ", ") + "]"
}

// Literal renders a field value.
func (d Dialect) Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return Quote(val)
	case int:
		return strconv.Itoa(val)
	case []string:
		return d.TextArray(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return Quote(fmt.Sprint(val))
	}
}

// Quote escapes s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var commentReplacer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Comment flattens s onto one line so it cannot end a "--" comment early.
func Comment(s string) string {
	return commentReplacer.Replace(s)
}

// Emitter renders statements for one dialect.
type Emitter struct {
	dialect Dialect
}

// New creates an emitter. An empty dialect means Postgres.
func New(d Dialect) *Emitter {
	if d == "" {
		d = Postgres
	}
	return &Emitter{dialect: d}
}

// Dialect returns the emitter's dialect.
func (e *Emitter) Dialect() Dialect {
	return e.dialect
}

// AssignmentUpsert renders the insert-or-overwrite of one assignment. The
// row is keyed by (staff_id, scenario_id); a conflict overwrites the role
// flags, stamps the assignment's timestamp column and nulls the other one.
// Staff or scenario names missing from the database insert nothing.
func (e *Emitter) AssignmentUpsert(a domain.Assignment) string {
	col := a.TimestampField.Column()
	other := a.TimestampField.Other().Column()

	return fmt.Sprintf(`INSERT INTO staff_scenario_assignments (staff_id, scenario_id, can_main_gm, can_sub_gm, is_experienced, %[1]s)
SELECT
  s.id AS staff_id,
  sc.id AS scenario_id,
  %[3]t AS can_main_gm,
  %[4]t AS can_sub_gm,
  %[5]t AS is_experienced,
  %[6]s AS %[1]s
FROM staff s
CROSS JOIN scenarios sc
WHERE s.name = %[7]s
  AND sc.title = %[8]s
ON CONFLICT (staff_id, scenario_id)
DO UPDATE SET
  can_main_gm = EXCLUDED.can_main_gm,
  can_sub_gm = EXCLUDED.can_sub_gm,
  is_experienced = EXCLUDED.is_experienced,
  %[1]s = EXCLUDED.%[1]s,
  %[2]s = NULL;`,
		col, other,
		a.CanMainGM, a.CanSubGM, a.IsExperienced,
		e.dialect.Now(),
		Quote(a.StaffName), Quote(a.ScenarioTitle),
	)
}

// AssignmentUpserts renders one upsert per assignment in order.
func (e *Emitter) AssignmentUpserts(assignments []domain.Assignment) []string {
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, e.AssignmentUpsert(a))
	}
	return out
}

// NewStaffInsert renders the insert of a staff row that may already exist.
func (e *Emitter) NewStaffInsert(name string) string {
	now := e.dialect.Now()
	return fmt.Sprintf(`INSERT INTO staff (name, status, created_at, updated_at)
VALUES (%s, 'active', %s, %s)
ON CONFLICT (name) DO NOTHING;`, Quote(name), now, now)
}

// NewStaffInserts renders inserts for names in sorted order.
func (e *Emitter) NewStaffInserts(names []string) []string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, e.NewStaffInsert(n))
	}
	return out
}

// DeleteAllAssignments renders the statement that clears every assignment.
func (e *Emitter) DeleteAllAssignments() string {
	return "DELETE FROM staff_scenario_assignments;"
}

// ScenarioUpdates renders the UPDATE statements for scenarios and
// scenario_masters. An update with no fields renders nothing.
func (e *Emitter) ScenarioUpdates(u domain.ScenarioUpdate) []string {
	var out []string
	for _, table := range []string{domain.TableScenarios, domain.TableScenarioMasters} {
		fields := u.Fields(table)
		if len(fields) == 0 {
			continue
		}
		sets := make([]string, 0, len(fields))
		for _, f := range fields {
			sets = append(sets, f.Column+" = "+e.dialect.Literal(f.Value))
		}
		out = append(out, fmt.Sprintf("UPDATE %s SET\n  %s,\n  updated_at = %s\nWHERE id = %s;",
			table, strings.Join(sets, ", "), e.dialect.Now(), Quote(u.ID)))
	}
	return out
}

// MissingStaffCheck renders a query listing the names with no staff row.
func (e *Emitter) MissingStaffCheck(names []string) string {
	if len(names) == 0 {
		return "SELECT name FROM staff WHERE 1 = 0;"
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = Quote(n)
	}

	var required string
	if e.dialect == SQLite {
		rows := make([]string, len(quoted))
		for i, q := range quoted {
			rows[i] = "(" + q + ")"
		}
		required = "required_staff(name) AS (\n  VALUES\n    " + strings.Join(rows, ",\n    ") + "\n)"
	} else {
		required = "required_staff AS (\n  SELECT UNNEST(ARRAY[\n    " + strings.Join(quoted, ",\n    ") + "\n  ]) AS name\n)"
	}

	return "WITH " + required + `
SELECT rs.name AS name
FROM required_staff rs
LEFT JOIN staff s ON rs.name = s.name
WHERE s.name IS NULL
ORDER BY rs.name;`
}

// Chunk splits stmts into groups of at most size statements. A statement
// never straddles two chunks. A non-positive size uses DefaultChunkSize.
func Chunk(stmts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for i := 0; i < len(stmts); i += size {
		end := min(i+size, len(stmts))
		out = append(out, stmts[i:end])
	}
	return out
}
