package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/roster"
	"github.com/madamis-ops/gmsync/internal/scraper"
	"github.com/madamis-ops/gmsync/internal/search"
	"github.com/madamis-ops/gmsync/internal/sqlgen"
	"github.com/madamis-ops/gmsync/internal/supabase"
)

const testSheet = "シナリオ\t担当GM\t体験済み\n" +
	"モノクローム\tりえぞー、らの\tしらやま\n" +
	"深夜の羊\tりえぞ（仮）\t\n" +
	"赤い部屋\tしらやま\tらの\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRosterService() *RosterService {
	return NewRosterService(nil, roster.DefaultParserConfig(), testLogger())
}

func TestDecodeScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"bare array", `[{"id":"s1","title":"モノクローム"},{"id":"s2","title":"深夜の羊","author":"とんとん"}]`, []string{"s1", "s2"}},
		{"wrapped", `{"scenarios":[{"id":"s1","title":"モノクローム"}]}`, []string{"s1"}},
		{"invalid rows skipped", `[{"id":"","title":"x"},{"id":"s3","title":"  "},{"id":"s4","title":"赤い館"}]`, []string{"s4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeScenarios(strings.NewReader(tt.input), testLogger())
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, sc := range got {
				ids[i] = sc.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := DecodeScenarios(strings.NewReader("{"), testLogger())
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestFileSource(t *testing.T) {
	path := writeFile(t, "scenarios.json", `[{"id":"s1","title":"モノクローム"}]`)

	got, err := FileSource{Path: path}.FetchScenarios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.CanonicalScenario{{ID: "s1", Title: "モノクローム"}}, got)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.FetchScenarios(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestScenariosFromDocument(t *testing.T) {
	doc := &matcher.Document{
		Matched: []matcher.MatchedEntry{
			{DBID: "s1", DBTitle: "モノクローム", DBAuthor: "ドニパン"},
			{DBID: "s1", DBTitle: "モノクローム"},
		},
		UnmatchedDB: []domain.CanonicalScenario{{ID: "s2", Title: "深夜の羊"}},
	}

	assert.Equal(t, []domain.CanonicalScenario{
		{ID: "s1", Title: "モノクローム", Author: "ドニパン"},
		{ID: "s2", Title: "深夜の羊"},
	}, ScenariosFromDocument(doc))
}

func TestRosterService_Names(t *testing.T) {
	sheet := writeFile(t, "gm_data.txt", testSheet)

	res, err := newTestRosterService().Names(sheet, []string{"りえぞー", "しらやま", "らの"})
	require.NoError(t, err)

	assert.Equal(t, []string{"しらやま", "らの", "りえぞ", "りえぞー"}, res.Names)
	require.Contains(t, res.Suggestions, "りえぞ")
	assert.Equal(t, "りえぞー", res.Suggestions["りえぞ"][0].Name)
	assert.NotContains(t, res.Suggestions, "らの")

	_, err = newTestRosterService().Names(filepath.Join(t.TempDir(), "none.txt"), nil)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRosterService_Assignments(t *testing.T) {
	sheet := writeFile(t, "gm_data.txt", testSheet)
	mapping := writeFile(t, "name_mapping.txt", "りえぞ,りえぞー\nりえぞー,りえぞー\nしらやま,しらやま\nらの,NEW\n")

	res, err := newTestRosterService().Assignments(AssignmentRequest{
		SheetPath:   sheet,
		MappingPath: mapping,
		Plan:        sqlgen.PlanOptions{RunID: "run-test", ChunkSize: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"らの"}, res.NewStaff)
	assert.Empty(t, res.Unmapped)
	assert.Equal(t, 3, res.Stats.Scenarios)
	assert.Len(t, res.Assignments, 6)

	require.NoError(t, res.Plan.Validate())
	assert.Equal(t, sqlgen.MigrationAddNewStaff, res.Plan.Migrations[0].Name)
	assert.Equal(t, sqlgen.MigrationDeleteAll, res.Plan.Migrations[1].Name)
	assert.Len(t, res.Plan.Migrations, 5)
}

func TestRosterService_AssignmentsOnly(t *testing.T) {
	sheet := writeFile(t, "gm_data.txt", testSheet)

	res, err := newTestRosterService().Assignments(AssignmentRequest{
		SheetPath: sheet,
		Only:      []string{"らの"},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Assignment{
		domain.NewMainGMAssignment("らの", "モノクローム"),
		domain.NewExperiencedAssignment("らの", "赤い部屋"),
	}, res.Assignments)
	require.Len(t, res.Plan.Migrations, 1)
	assert.Equal(t, sqlgen.MigrationImportTargeted, res.Plan.Migrations[0].Name)
	assert.Empty(t, res.NewStaff)
}

func TestRosterService_AssignmentsMissingMapping(t *testing.T) {
	sheet := writeFile(t, "gm_data.txt", testSheet)

	_, err := newTestRosterService().Assignments(AssignmentRequest{
		SheetPath:   sheet,
		MappingPath: filepath.Join(t.TempDir(), "none.txt"),
	})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = newTestRosterService().Assignments(AssignmentRequest{})
	assert.ErrorIs(t, err, domainerrors.ErrConfig)
}

type staticSource struct {
	scenarios []domain.CanonicalScenario
	err       error
}

func (s staticSource) FetchScenarios(context.Context) ([]domain.CanonicalScenario, error) {
	return s.scenarios, s.err
}

var testCandidates = []domain.CanonicalScenario{
	{ID: "s1", Title: "モノクローム", Author: "ドニパン"},
	{ID: "s2", Title: "深夜の羊"},
	{ID: "s3", Title: "赤い部屋の殺人"},
}

func newTestMappingService() *MappingService {
	return NewMappingService(matcher.New(matcher.DefaultConfig(), testLogger()), testLogger())
}

func TestMappingService_Map(t *testing.T) {
	snap := catalog.NewSnapshot([]domain.CatalogRecord{
		{Title: "モノクローム", Author: "ドニパン", PlayerCount: domain.IntPtr(7)},
		{Title: "全然違う新作"},
	}, "https://catalog.example", "run-test", time.Now())

	doc, err := newTestMappingService().Map(context.Background(), snap, staticSource{scenarios: testCandidates}, 0.5, "run-test")
	require.NoError(t, err)

	require.Len(t, doc.Matched, 1)
	assert.Equal(t, "s1", doc.Matched[0].DBID)
	assert.Equal(t, 1.0, doc.Matched[0].Similarity)
	require.Len(t, doc.UnmatchedCatalog, 1)
	assert.Equal(t, "全然違う新作", doc.UnmatchedCatalog[0].Title)
	assert.Len(t, doc.UnmatchedDB, 2)
	assert.Equal(t, "run-test", doc.RunID)
}

func TestMappingService_MapErrors(t *testing.T) {
	svc := newTestMappingService()
	ctx := context.Background()
	snap := catalog.NewSnapshot([]domain.CatalogRecord{{Title: "モノクローム"}}, "", "", time.Now())

	_, err := svc.Map(ctx, catalog.NewSnapshot(nil, "", "", time.Now()), staticSource{}, 0.5, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.Map(ctx, snap, nil, 0.5, "")
	assert.ErrorIs(t, err, domainerrors.ErrConfig)

	_, err = svc.Map(ctx, snap, staticSource{}, 0.5, "")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.Map(ctx, snap, staticSource{err: domainerrors.Remotef("boom")}, 0.5, "")
	assert.ErrorIs(t, err, domainerrors.ErrRemote)
}

func TestMappingService_Suggest(t *testing.T) {
	doc := &matcher.Document{
		UnmatchedCatalog: []matcher.UnmatchedEntry{
			{CatalogRecord: domain.CatalogRecord{Title: "赤い部屋"}},
			{CatalogRecord: domain.CatalogRecord{Title: "全然違う"}},
		},
		UnmatchedDB: testCandidates,
	}

	index, err := search.NewIndex(search.Options{Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	got, err := newTestMappingService().Suggest(doc, index, 2)
	require.NoError(t, err)
	require.Contains(t, got, "赤い部屋")
	assert.Equal(t, "s3", got["赤い部屋"][0].ID)
	assert.NotContains(t, got, "全然違う")
}

type recordingApplier struct {
	got []domain.ScenarioUpdate
}

func (r *recordingApplier) ApplyUpdates(_ context.Context, updates []domain.ScenarioUpdate) supabase.Tally {
	r.got = updates
	return supabase.Tally{Attempted: len(updates), ScenariosUpdated: len(updates)}
}

func TestUpdateService(t *testing.T) {
	doc := &matcher.Document{Matched: []matcher.MatchedEntry{
		{DBID: "s1", DBTitle: "モノクローム", Similarity: 1.0, CatalogData: domain.CatalogRecord{
			Title: "モノクローム", Author: "ドニパン", PlayerCount: domain.IntPtr(7), Tags: []string{"💀ホラー"},
		}},
		{DBID: "s2", DBTitle: "深夜の羊", Similarity: 0.95, CatalogData: domain.CatalogRecord{Title: "深夜の羊"}},
		{DBID: "s3", DBTitle: "赤い館", Similarity: 0.6, CatalogData: domain.CatalogRecord{Title: "青い館", Author: "別"}},
	}}
	svc := NewUpdateService(testLogger())

	updates := svc.Updates(doc, 0.7)
	require.Len(t, updates, 1)
	assert.Equal(t, "s1", updates[0].ID)
	assert.Equal(t, "ドニパン", updates[0].Author)
	assert.Equal(t, domain.IntPtr(7), updates[0].PlayerCount)
	assert.NotEmpty(t, updates[0].Genres)

	assert.Len(t, svc.Updates(doc, 0), 2)

	plan := svc.Plan(updates, sqlgen.PlanOptions{RunID: "run-test"})
	require.Len(t, plan.Migrations, 1)
	assert.Equal(t, sqlgen.MigrationScenarioUpdates, plan.Migrations[0].Name)

	applier := &recordingApplier{}
	tally := svc.Apply(context.Background(), applier, updates)
	assert.Equal(t, 1, tally.ScenariosUpdated)
	assert.Equal(t, updates, applier.got)
}

type pageFetcher map[string]*scraper.Page

func (f pageFetcher) Fetch(_ context.Context, pageURL string, _ bool) (*scraper.Page, error) {
	if p, ok := f[pageURL]; ok {
		return p, nil
	}
	return &scraper.Page{URL: pageURL}, nil
}

func TestCatalogService_Scrape(t *testing.T) {
	const u = "https://catalog.example/catalog"
	// The author line followed by the card body parses as a card of its own.
	text := "モノクローム\nドニパン\n料金\n4,000円\n参加人数\n7人\n"

	s, err := scraper.New(pageFetcher{u: {Text: text}}, nil, nil, testLogger())
	require.NoError(t, err)
	cleaner, err := catalog.NewCleaner(catalog.DefaultCleanupConfig())
	require.NoError(t, err)

	svc := NewCatalogService(s, cleaner, testLogger())
	fixed := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	raw, err := svc.Scrape(context.Background(), u, "run-test", false)
	require.NoError(t, err)

	cleaned, err := svc.Scrape(context.Background(), u, "run-test", true)
	require.NoError(t, err)

	assert.Len(t, raw.Snapshot.Scenarios, 2)
	require.Len(t, cleaned.Snapshot.Scenarios, 1)
	assert.Equal(t, "モノクローム", cleaned.Snapshot.Scenarios[0].Title)
	assert.Equal(t, []catalog.Dropped{{Title: "ドニパン", Reason: catalog.DropKnownAuthor}}, cleaned.Dropped)
	assert.True(t, fixed.Equal(cleaned.Snapshot.ScrapedAt))
	assert.Equal(t, u, cleaned.Snapshot.Source)

	_, err = NewCatalogService(nil, nil, testLogger()).Scrape(context.Background(), u, "", false)
	assert.ErrorIs(t, err, domainerrors.ErrConfig)
}
