package sqlgen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Migration names produced by the plan builders.
const (
	MigrationAddNewStaff     = "add_new_staff_from_gm_data"
	MigrationDeleteAll       = "delete_all_gm_assignments"
	MigrationImportPrefix    = "import_gm_assignments_part"
	MigrationScenarioUpdates = "update_scenarios_from_catalog"
	MigrationImportTargeted  = "import_new_staff_assignments"
)

// Migration is one generated SQL file. Statements are executed in order
// inside a single transaction.
type Migration struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	DependsOn  []string `json:"depends_on,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Statements []string `json:"statements"`
	Status     string   `json:"status"`
}

// Plan is an ordered set of migrations. A migration may only depend on
// migrations earlier in the plan.
type Plan struct {
	RunID       string      `json:"run_id"`
	Dialect     Dialect     `json:"dialect"`
	GeneratedAt time.Time   `json:"generated_at"`
	Migrations  []Migration `json:"migrations"`
}

// PlanOptions tunes plan construction.
type PlanOptions struct {
	RunID       string
	Dialect     Dialect
	ChunkSize   int
	GeneratedAt time.Time
}

func (o PlanOptions) withDefaults() PlanOptions {
	if o.Dialect == "" {
		o.Dialect = Postgres
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = time.Now()
	}
	return o
}

// BuildAssignmentPlan orders the assignment import: new staff first (only
// when there are any), then the wipe, then the upserts split into parts.
func BuildAssignmentPlan(newStaff []string, assignments []domain.Assignment, opts PlanOptions) *Plan {
	opts = opts.withDefaults()
	e := New(opts.Dialect)

	plan := &Plan{
		RunID:       opts.RunID,
		Dialect:     opts.Dialect,
		GeneratedAt: opts.GeneratedAt,
	}

	if len(newStaff) > 0 {
		plan.add(Migration{
			Name:       MigrationAddNewStaff,
			Title:      "新規スタッフを追加",
			Notes:      []string{"GMデータから検出された新規スタッフをstaffテーブルに追加"},
			Statements: e.NewStaffInserts(newStaff),
			Status:     "新規スタッフを追加しました",
		})
	}

	plan.add(Migration{
		Name:       MigrationDeleteAll,
		Title:      "既存のGMアサインメントを全削除",
		Notes:      []string{"⚠️ 警告: このSQLは全てのGMアサインメントデータを削除します"},
		Statements: []string{e.DeleteAllAssignments()},
		Status:     "既存のGMアサインメントを削除しました",
	})

	parts := Chunk(e.AssignmentUpserts(assignments), opts.ChunkSize)
	for i, part := range parts {
		n := i + 1
		plan.add(Migration{
			Name:       fmt.Sprintf("%s%d", MigrationImportPrefix, n),
			Title:      fmt.Sprintf("GMアサインメントをインポート (Part %d/%d)", n, len(parts)),
			Statements: part,
			Status:     fmt.Sprintf("Part %d/%d のインポートが完了しました", n, len(parts)),
		})
	}

	return plan
}

// BuildTargetedAssignmentPlan upserts the assignments of a few staff members
// without touching anyone else's rows: no wipe and no staff inserts. The
// staff rows must already exist.
func BuildTargetedAssignmentPlan(targets []string, assignments []domain.Assignment, opts PlanOptions) *Plan {
	opts = opts.withDefaults()
	e := New(opts.Dialect)

	names := append([]string(nil), targets...)
	sort.Strings(names)
	scenarios := make(map[string]bool)
	for _, a := range assignments {
		scenarios[a.ScenarioTitle] = true
	}

	plan := &Plan{
		RunID:       opts.RunID,
		Dialect:     opts.Dialect,
		GeneratedAt: opts.GeneratedAt,
	}
	plan.add(Migration{
		Name:  MigrationImportTargeted,
		Title: "新規追加スタッフのGMアサインメントをインポート",
		Notes: []string{
			"対象スタッフ: " + strings.Join(names, ", "),
			fmt.Sprintf("シナリオ: %d件", len(scenarios)),
		},
		Statements: e.AssignmentUpserts(assignments),
		Status:     fmt.Sprintf("新規スタッフ %d人のアサインメントをインポートしました", len(names)),
	})
	return plan
}

// BuildScenarioUpdatePlan renders one migration updating every matched
// scenario that has something to change. Empty updates are skipped.
func BuildScenarioUpdatePlan(updates []domain.ScenarioUpdate, opts PlanOptions) *Plan {
	opts = opts.withDefaults()
	e := New(opts.Dialect)

	var stmts []string
	count := 0
	for _, u := range updates {
		rendered := e.ScenarioUpdates(u)
		if len(rendered) == 0 {
			continue
		}
		count++
		rendered[0] = fmt.Sprintf("-- %d. %s\n%s", count, Comment(u.Title), rendered[0])
		stmts = append(stmts, rendered...)
	}

	plan := &Plan{
		RunID:       opts.RunID,
		Dialect:     opts.Dialect,
		GeneratedAt: opts.GeneratedAt,
	}
	plan.add(Migration{
		Name:       MigrationScenarioUpdates,
		Title:      "カタログ情報でシナリオを更新",
		Notes:      []string{fmt.Sprintf("マッチしたシナリオ: %d 件", count)},
		Statements: stmts,
		Status:     fmt.Sprintf("合計 %d 件のシナリオを更新しました", count),
	})
	return plan
}

// add appends m, making it depend on the previous migration.
func (p *Plan) add(m Migration) {
	if n := len(p.Migrations); n > 0 && m.DependsOn == nil {
		m.DependsOn = []string{p.Migrations[n-1].Name}
	}
	p.Migrations = append(p.Migrations, m)
}

// Validate checks that names are unique and that every dependency names an
// earlier migration.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Migrations))
	for i, m := range p.Migrations {
		if m.Name == "" {
			return domainerrors.Validationf("migration %d has no name", i+1)
		}
		if seen[m.Name] {
			return domainerrors.Conflictf("duplicate migration %q", m.Name)
		}
		for _, dep := range m.DependsOn {
			if !seen[dep] {
				return domainerrors.Validationf("migration %q depends on %q, which does not run before it", m.Name, dep)
			}
		}
		seen[m.Name] = true
	}
	return nil
}

// FileName returns the file name of the i-th migration (0-based).
func (p *Plan) FileName(i int) string {
	return fmt.Sprintf("%02d_%s.sql", i+1, p.Migrations[i].Name)
}

// StatementCount returns the number of statements across all migrations.
func (p *Plan) StatementCount() int {
	n := 0
	for _, m := range p.Migrations {
		n += len(m.Statements)
	}
	return n
}

// Render writes the i-th migration as a standalone SQL file: a header with
// the run id and execution order, the statements wrapped in a transaction
// and a trailing status query.
func (p *Plan) Render(w io.Writer, i int) error {
	if i < 0 || i >= len(p.Migrations) {
		return domainerrors.NotFoundf("migration %d", i)
	}
	m := p.Migrations[i]

	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n--\n", Comment(m.Title))
	for _, note := range m.Notes {
		fmt.Fprintf(&b, "-- %s\n", Comment(note))
	}
	if len(m.Notes) > 0 {
		b.WriteString("--\n")
	}
	if p.RunID != "" {
		fmt.Fprintf(&b, "-- run: %s\n", Comment(p.RunID))
	}
	fmt.Fprintf(&b, "-- generated: %s\n", p.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "-- dialect: %s\n--\n", p.Dialect)
	b.WriteString("-- 実行順序:\n")
	for j := range p.Migrations {
		marker := ""
		if j == i {
			marker = "  <- this file"
		}
		fmt.Fprintf(&b, "-- %d. %s%s\n", j+1, Comment(p.FileName(j)), marker)
	}
	b.WriteString("\nBEGIN;\n")
	for _, stmt := range m.Statements {
		b.WriteString("\n")
		b.WriteString(stmt)
		b.WriteString("\n")
	}
	b.WriteString("\nCOMMIT;\n\n")
	fmt.Fprintf(&b, "SELECT %s AS status;\n", Quote("✅ "+m.Status))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "write migration %s", m.Name)
	}
	return nil
}

// WriteDir validates the plan and writes one file per migration into dir,
// creating it if needed. It returns the written paths in execution order.
func (p *Plan) WriteDir(dir string) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "create output dir %s", dir)
	}

	paths := make([]string, 0, len(p.Migrations))
	for i := range p.Migrations {
		path := filepath.Join(dir, p.FileName(i))
		if err := p.writeFile(path, i); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (p *Plan) writeFile(path string, i int) error {
	f, err := os.Create(path)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", path)
	}
	if err := p.Render(f, i); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", path)
	}
	return nil
}
