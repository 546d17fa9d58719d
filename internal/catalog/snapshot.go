// Package catalog turns the public catalog page into validated records and
// persists them as a JSON snapshot.
package catalog

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Snapshot is one scrape of the catalog.
type Snapshot struct {
	Scenarios []domain.CatalogRecord `json:"scenarios"`
	Tags      []string               `json:"tags"`
	ScrapedAt time.Time              `json:"scraped_at"`
	Source    string                 `json:"source,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
}

// NewSnapshot wraps records, collecting their tags.
func NewSnapshot(records []domain.CatalogRecord, source, runID string, at time.Time) *Snapshot {
	if records == nil {
		records = []domain.CatalogRecord{}
	}
	tags := CollectTags(records)
	if tags == nil {
		tags = []string{}
	}
	return &Snapshot{
		Scenarios: records,
		Tags:      tags,
		ScrapedAt: at.UTC(),
		Source:    source,
		RunID:     runID,
	}
}

// Write encodes s as indented JSON with non-ASCII text left readable.
func (s *Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode catalog snapshot")
	}
	return nil
}

// WriteFile writes s to path.
func (s *Snapshot) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "create %s", path)
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "close %s", path)
	}
	return nil
}

// rawRecord accepts both the current numeric fields and the legacy display
// strings ("7人", "2.5時間", "4,000円").
type rawRecord struct {
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	PlayerCount json.RawMessage `json:"player_count"`
	Players     json.RawMessage `json:"players"`
	Duration    json.RawMessage `json:"duration"`
	Price       json.RawMessage `json:"price"`
	Tags        []string        `json:"tags"`
	Categories  []string        `json:"categories"`
	Description string          `json:"description"`
}

type rawSnapshot struct {
	Scenarios []rawRecord `json:"scenarios"`
	Tags      []string    `json:"tags"`
	ScrapedAt string      `json:"scraped_at"`
	Source    string      `json:"source"`
	RunID     string      `json:"run_id"`
}

// legacyTimeLayout is the naive ISO timestamp older snapshots carry.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

// LoadFile reads a snapshot from path.
func LoadFile(path string, logger *slog.Logger) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("catalog snapshot %s", path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s", path)
	}
	return Load(bytes.NewReader(data), logger)
}

// Load decodes a snapshot. A bare JSON array of records is accepted as a
// snapshot with no metadata. Records that fail validation are skipped with
// a warning.
func Load(r io.Reader, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "read catalog snapshot")
	}

	var raw rawSnapshot
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &raw.Scenarios)
	} else {
		err = json.Unmarshal(trimmed, &raw)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "decode catalog snapshot")
	}

	snap := &Snapshot{
		Scenarios: make([]domain.CatalogRecord, 0, len(raw.Scenarios)),
		Tags:      raw.Tags,
		Source:    raw.Source,
		RunID:     raw.RunID,
		ScrapedAt: parseScrapedAt(raw.ScrapedAt),
	}

	for i, rr := range raw.Scenarios {
		rec, err := domain.NewCatalogRecord(rr.record())
		if err != nil {
			logger.Warn("skipping invalid catalog record", "index", i, "title", rr.Title, "error", err)
			continue
		}
		snap.Scenarios = append(snap.Scenarios, rec)
	}
	if snap.Tags == nil {
		snap.Tags = CollectTags(snap.Scenarios)
	}

	return snap, nil
}

func (rr rawRecord) record() domain.CatalogRecord {
	players := rr.PlayerCount
	if len(players) == 0 {
		players = rr.Players
	}
	tags := rr.Tags
	if len(tags) == 0 {
		tags = rr.Categories
	}
	return domain.CatalogRecord{
		Title:           rr.Title,
		Author:          rr.Author,
		PlayerCount:     flexInt(players, ParsePlayerCount),
		DurationMinutes: flexInt(rr.Duration, ParseDurationMinutes),
		Price:           flexInt(rr.Price, ParsePrice),
		Tags:            tags,
		Description:     rr.Description,
	}
}

// flexInt decodes a JSON number as is, or a JSON string through parse.
// Null, empty and unparseable values are nil.
func flexInt(raw json.RawMessage, parse func(string) (int, bool)) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return nil
		}
		return domain.IntPtr(int(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	v, ok := parse(strings.TrimSpace(s))
	if !ok || v <= 0 {
		return nil
	}
	return domain.IntPtr(v)
}

func parseScrapedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
