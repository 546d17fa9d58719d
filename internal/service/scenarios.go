// Package service holds the workflows behind the gmsync commands. Each
// service wires the parsing, matching and emitting packages together and
// leaves flag handling and output to the caller.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/matcher"
)

// ScenarioSource lists the canonical scenarios catalog records are matched
// against. The Supabase client, the Postgres applier and the local SQLite
// store all satisfy it.
type ScenarioSource interface {
	FetchScenarios(ctx context.Context) ([]domain.CanonicalScenario, error)
}

// FileSource reads canonical scenarios from a JSON export.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

// FetchScenarios implements ScenarioSource.
func (f FileSource) FetchScenarios(ctx context.Context) ([]domain.CanonicalScenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeCanceled, "read scenarios")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("scenario file %s", f.Path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s", f.Path)
	}
	return DecodeScenarios(bytes.NewReader(data), f.Logger)
}

// DecodeScenarios accepts a bare array of {id, title, author} objects or an
// object with a "scenarios" array. Invalid rows are skipped with a warning.
func DecodeScenarios(r io.Reader, logger *slog.Logger) ([]domain.CanonicalScenario, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read scenarios")
	}

	var rows []domain.CanonicalScenario
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Scenarios []domain.CanonicalScenario `json:"scenarios"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		rows = wrapped.Scenarios
	} else {
		err = json.Unmarshal(trimmed, &rows)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "decode scenarios")
	}

	out := make([]domain.CanonicalScenario, 0, len(rows))
	for i, row := range rows {
		sc, err := domain.NewCanonicalScenario(row.ID, row.Title, row.Author)
		if err != nil {
			logger.Warn("skipping invalid scenario", "index", i, "id", row.ID, "title", row.Title, "error", err)
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// ScenariosFromDocument rebuilds the candidate list a mapping document was
// produced from: every matched scenario plus every unmatched one.
func ScenariosFromDocument(doc *matcher.Document) []domain.CanonicalScenario {
	out := make([]domain.CanonicalScenario, 0, len(doc.Matched)+len(doc.UnmatchedDB))
	seen := make(map[string]bool)
	for _, m := range doc.Matched {
		if m.DBID == "" || seen[m.DBID] {
			continue
		}
		seen[m.DBID] = true
		out = append(out, domain.CanonicalScenario{ID: m.DBID, Title: m.DBTitle, Author: m.DBAuthor})
	}
	for _, sc := range doc.UnmatchedDB {
		if seen[sc.ID] {
			continue
		}
		seen[sc.ID] = true
		out = append(out, sc)
	}
	return out
}
