package roster

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Sheet column labels used in diagnostics.
const (
	ColumnMainGM      = "main_gm"
	ColumnExperienced = "experienced"
)

// maxLineBytes bounds one sheet row; descriptions pasted into cells can be long.
const maxLineBytes = 1 << 20

// ScenarioRoles holds the parsed staff lists for one sheet title.
type ScenarioRoles struct {
	Title       string   `json:"title"`
	MainGMs     []string `json:"main_gms"`
	Experienced []string `json:"experienced"`
	Line        int      `json:"line"`
}

// Sheet is the parsed GM master sheet in first-appearance order.
type Sheet struct {
	Scenarios  []ScenarioRoles
	Duplicates []string
	Skipped    int

	index map[string]int
}

// SheetStats summarizes a parsed sheet.
type SheetStats struct {
	Scenarios   int `json:"scenarios"`
	MainGM      int `json:"main_gm"`
	Experienced int `json:"experienced"`
	UniqueStaff int `json:"unique_staff"`
	Duplicates  int `json:"duplicates"`
	Skipped     int `json:"skipped"`
}

// ReadRows splits a TSV sheet into raw rows. The first line is a header and
// is always skipped. Blank lines, lines with fewer than two fields and lines
// with an empty title are skipped and counted.
func ReadRows(r io.Reader) (rows []domain.RawAssignmentRow, lines []int, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum == 1 {
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			skipped++
			continue
		}

		title := strings.TrimSpace(parts[0])
		if title == "" {
			skipped++
			continue
		}

		row := domain.RawAssignmentRow{
			ScenarioTitle: title,
			MainGMField:   parts[1],
		}
		if len(parts) > 2 {
			row.ExperiencedField = parts[2]
		}
		rows = append(rows, row)
		lines = append(lines, lineNum)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, skipped, domainerrors.Wrap(err, domainerrors.CodeValidation, "read sheet")
	}
	return rows, lines, skipped, nil
}

// Ingest parses a GM sheet. When a title repeats, the later row replaces the
// earlier one but keeps its position, and the title is reported in
// Duplicates.
func Ingest(r io.Reader, parser *ListParser) (*Sheet, error) {
	return ingest(r, parser, nil)
}

// IngestOnly parses a GM sheet keeping only the target staff. Scenarios left
// with no target staff are dropped.
func IngestOnly(r io.Reader, parser *ListParser, targets []string) (*Sheet, error) {
	if len(targets) == 0 {
		return nil, domainerrors.Validation("at least one target staff name is required")
	}
	only := make(map[string]bool, len(targets))
	for _, t := range targets {
		only[t] = true
	}
	return ingest(r, parser, only)
}

func ingest(r io.Reader, parser *ListParser, only map[string]bool) (*Sheet, error) {
	rows, lines, skipped, err := ReadRows(r)
	if err != nil {
		return nil, err
	}

	sheet := &Sheet{
		Skipped: skipped,
		index:   make(map[string]int, len(rows)),
	}

	for i, row := range rows {
		roles := ScenarioRoles{
			Title: row.ScenarioTitle,
			MainGMs: parser.Parse(row.MainGMField, ParseContext{
				Scenario: row.ScenarioTitle,
				Column:   ColumnMainGM,
				Only:     only,
			}),
			Experienced: parser.Parse(row.ExperiencedField, ParseContext{
				Scenario: row.ScenarioTitle,
				Column:   ColumnExperienced,
				Only:     only,
			}),
			Line: lines[i],
		}
		if only != nil && len(roles.MainGMs) == 0 && len(roles.Experienced) == 0 {
			continue
		}

		if pos, dup := sheet.index[roles.Title]; dup {
			parser.Logger().Warn("duplicate scenario title in sheet, later row wins",
				"scenario", roles.Title,
				"first_line", sheet.Scenarios[pos].Line,
				"line", roles.Line,
			)
			sheet.Scenarios[pos] = roles
			sheet.Duplicates = append(sheet.Duplicates, roles.Title)
			continue
		}

		sheet.index[roles.Title] = len(sheet.Scenarios)
		sheet.Scenarios = append(sheet.Scenarios, roles)
	}

	return sheet, nil
}

// Lookup returns the roles parsed for title.
func (s *Sheet) Lookup(title string) (ScenarioRoles, bool) {
	pos, ok := s.index[title]
	if !ok {
		return ScenarioRoles{}, false
	}
	return s.Scenarios[pos], true
}

// StaffNames returns every resolved staff name on the sheet, sorted.
func (s *Sheet) StaffNames() []string {
	seen := make(map[string]bool)
	for _, sc := range s.Scenarios {
		for _, n := range sc.MainGMs {
			seen[n] = true
		}
		for _, n := range sc.Experienced {
			seen[n] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats summarizes the sheet. Experienced counts only staff without main GM
// rights on the same scenario, matching the rows Reconcile emits.
func (s *Sheet) Stats() SheetStats {
	stats := SheetStats{
		Scenarios:   len(s.Scenarios),
		UniqueStaff: len(s.StaffNames()),
		Duplicates:  len(s.Duplicates),
		Skipped:     s.Skipped,
	}
	for _, a := range Reconcile(s) {
		if a.CanMainGM {
			stats.MainGM++
		} else {
			stats.Experienced++
		}
	}
	return stats
}

// Reconcile projects the sheet into assignments: main GM rows for each
// scenario first, then experienced rows for staff not already main GM there.
func Reconcile(s *Sheet) []domain.Assignment {
	var out []domain.Assignment
	for _, sc := range s.Scenarios {
		main := make(map[string]bool, len(sc.MainGMs))
		for _, name := range sc.MainGMs {
			main[name] = true
			out = append(out, domain.NewMainGMAssignment(name, sc.Title))
		}
		for _, name := range sc.Experienced {
			if main[name] {
				continue
			}
			out = append(out, domain.NewExperiencedAssignment(name, sc.Title))
		}
	}
	return out
}
