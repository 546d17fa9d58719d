package service

import (
	"log/slog"
	"os"
	"sort"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/roster"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
)

// suggestionsPerName is how many known staff names are offered for each
// unfamiliar sheet name.
const suggestionsPerName = 3

// RosterService turns the GM sheet into staff assignment SQL.
type RosterService struct {
	normalizer *roster.Normalizer
	parserCfg  roster.ParserConfig
	logger     *slog.Logger
}

// NewRosterService creates a roster service.
func NewRosterService(normalizer *roster.Normalizer, parserCfg roster.ParserConfig, logger *slog.Logger) *RosterService {
	if normalizer == nil {
		normalizer = roster.NewNormalizer(roster.DefaultNormalizerConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RosterService{
		normalizer: normalizer,
		parserCfg:  parserCfg,
		logger:     logger,
	}
}

// NamesResult lists every name written on the sheet.
type NamesResult struct {
	Names []string `json:"names"`
	// Suggestions maps names that are not known staff to the closest
	// known names.
	Suggestions map[string][]roster.Suggestion `json:"suggestions,omitempty"`
}

// Names collects the normalized names on the sheet. When known staff names
// are given, each unknown name gets close matches to speed up filling the
// mapping file.
func (s *RosterService) Names(sheetPath string, known []string) (*NamesResult, error) {
	f, err := openInput(sheetPath, "GM sheet")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := roster.UniqueNames(f, s.normalizer, s.parserCfg)
	if err != nil {
		return nil, err
	}

	res := &NamesResult{Names: names}
	if len(known) == 0 {
		return res, nil
	}

	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	res.Suggestions = make(map[string][]roster.Suggestion)
	for _, name := range names {
		if knownSet[name] {
			continue
		}
		if sug := roster.SuggestCanonical(name, known, suggestionsPerName); len(sug) > 0 {
			res.Suggestions[name] = sug
		}
	}
	s.logger.Info("sheet names collected", "names", len(names), "unknown_with_suggestions", len(res.Suggestions))
	return res, nil
}

// AssignmentRequest selects the sheet, mapping and plan settings.
type AssignmentRequest struct {
	SheetPath   string
	MappingPath string
	// Only restricts the export to these staff names. The plan then upserts
	// their rows without wiping the table.
	Only []string
	Plan sqlgen.PlanOptions
}

// AssignmentResult is a parsed sheet and the plan built from it.
type AssignmentResult struct {
	Plan        *sqlgen.Plan
	Assignments []domain.Assignment
	Stats       roster.SheetStats
	NewStaff    []string
	Unmapped    []string
	Duplicates  []string
}

// Assignments parses the sheet through the name mapping and builds the
// import plan.
func (s *RosterService) Assignments(req AssignmentRequest) (*AssignmentResult, error) {
	mapping := roster.NewNameMapping()
	if req.MappingPath != "" {
		m, err := roster.LoadMapping(req.MappingPath, s.logger)
		if err != nil {
			return nil, err
		}
		mapping = m
	}
	parser := roster.NewListParser(s.parserCfg, s.normalizer, mapping, s.logger)

	f, err := openInput(req.SheetPath, "GM sheet")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheet *roster.Sheet
	if len(req.Only) > 0 {
		sheet, err = roster.IngestOnly(f, parser, req.Only)
	} else {
		sheet, err = roster.Ingest(f, parser)
	}
	if err != nil {
		return nil, err
	}

	res := &AssignmentResult{
		Assignments: roster.Reconcile(sheet),
		Stats:       sheet.Stats(),
		Unmapped:    parser.Unmapped(),
		Duplicates:  sheet.Duplicates,
	}

	if len(req.Only) > 0 {
		targets := append([]string(nil), req.Only...)
		sort.Strings(targets)
		res.Plan = sqlgen.BuildTargetedAssignmentPlan(targets, res.Assignments, req.Plan)
	} else {
		res.NewStaff = mapping.NewStaff()
		res.Plan = sqlgen.BuildAssignmentPlan(res.NewStaff, res.Assignments, req.Plan)
	}

	if len(res.Unmapped) > 0 {
		s.logger.Warn("names not in mapping were used as-is", "count", len(res.Unmapped), "names", res.Unmapped)
	}
	s.logger.Info("assignments built",
		"scenarios", res.Stats.Scenarios,
		"main_gm", res.Stats.MainGM,
		"experienced", res.Stats.Experienced,
		"new_staff", len(res.NewStaff),
		"migrations", len(res.Plan.Migrations),
	)
	return res, nil
}

func openInput(path, what string) (*os.File, error) {
	if path == "" {
		return nil, domainerrors.Configf("%s path is required", what)
	}
	f, err := os.Open(path) //#nosec G304 -- input paths come from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("%s %s not found", what, path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "open %s", path)
	}
	return f, nil
}
