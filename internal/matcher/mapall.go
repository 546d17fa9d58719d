package matcher

import (
	"encoding/json"
	"io"
	"math"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Stats summarizes a catalog mapping run.
type Stats struct {
	MatchedCount          int            `json:"matched_count"`
	UnmatchedCatalogCount int            `json:"unmatched_catalog_count"`
	UnmatchedDBCount      int            `json:"unmatched_db_count"`
	TotalCatalog          int            `json:"total_catalog"`
	TotalDB               int            `json:"total_db"`
	Tiers                 map[string]int `json:"tiers,omitempty"`
}

// Mapping is the outcome of matching a whole catalog.
//
// Every input record appears exactly once, in Matched or UnmatchedCatalog.
// Each canonical scenario is claimed by at most one record.
type Mapping struct {
	Matched             []domain.MatchResult
	UnmatchedCatalog    []domain.MatchResult
	UnmatchedCandidates []domain.CanonicalScenario
	Stats               Stats
}

// MapAll matches records in input order against candidates.
//
// Claims are first-wins: the first record whose best match is a given
// scenario claims it. A later record whose best match is already claimed
// is reported unmatched with the claiming title in its reason. Claimed
// scenarios stay in the comparison pool, so a later record never falls
// back to its second-best candidate.
func (m *Matcher) MapAll(records []domain.CatalogRecord, candidates []domain.CanonicalScenario, threshold float64) *Mapping {
	pool := m.Prepare(candidates)
	claimedBy := make(map[string]string, len(candidates))

	out := &Mapping{
		Stats: Stats{
			TotalCatalog: len(records),
			TotalDB:      len(candidates),
			Tiers:        make(map[string]int),
		},
	}

	for _, rec := range records {
		res := m.Lookup(rec, pool, threshold)
		if !res.Matched() {
			out.UnmatchedCatalog = append(out.UnmatchedCatalog, res)
			continue
		}

		if owner, taken := claimedBy[res.Scenario.ID]; taken {
			m.logger.Warn("scenario already claimed",
				"title", rec.Title,
				"scenario", res.Scenario.Title,
				"claimed_by", owner,
				"score", res.Score,
			)
			res.Reason = ReasonClaimedPrefix + owner
			res.Scenario = nil
			res.Score = 0
			out.UnmatchedCatalog = append(out.UnmatchedCatalog, res)
			continue
		}

		claimedBy[res.Scenario.ID] = rec.Title
		out.Matched = append(out.Matched, res)
		out.Stats.Tiers[ConfidenceOf(res.Score).String()]++
	}

	for _, c := range candidates {
		if _, taken := claimedBy[c.ID]; !taken {
			out.UnmatchedCandidates = append(out.UnmatchedCandidates, c)
		}
	}

	out.Stats.MatchedCount = len(out.Matched)
	out.Stats.UnmatchedCatalogCount = len(out.UnmatchedCatalog)
	out.Stats.UnmatchedDBCount = len(out.UnmatchedCandidates)

	m.logger.Info("catalog mapped",
		"matched", out.Stats.MatchedCount,
		"unmatched_catalog", out.Stats.UnmatchedCatalogCount,
		"unmatched_db", out.Stats.UnmatchedDBCount,
		"threshold", threshold,
	)

	return out
}

// MatchedEntry is one matched row of the mapping document.
type MatchedEntry struct {
	CatalogTitle string               `json:"catalog_title"`
	DBID         string               `json:"db_id"`
	DBTitle      string               `json:"db_title"`
	DBAuthor     string               `json:"db_author,omitempty"`
	Similarity   float64              `json:"similarity"`
	Reason       string               `json:"reason,omitempty"`
	CatalogData  domain.CatalogRecord `json:"catalog_data"`
}

// UnmatchedEntry is a catalog record that resolved to nothing.
type UnmatchedEntry struct {
	domain.CatalogRecord
	Reason string `json:"reason,omitempty"`
}

// Document is the JSON form of a Mapping consumed by the report and
// update commands.
type Document struct {
	Matched          []MatchedEntry             `json:"matched"`
	UnmatchedCatalog []UnmatchedEntry           `json:"unmatched_catalog"`
	UnmatchedDB      []domain.CanonicalScenario `json:"unmatched_db"`
	Stats            Stats                      `json:"stats"`
	RunID            string                     `json:"run_id,omitempty"`
}

// Document converts the mapping to its JSON form. Similarities are rounded
// to three decimals.
func (mp *Mapping) Document(runID string) Document {
	doc := Document{
		Matched:          make([]MatchedEntry, 0, len(mp.Matched)),
		UnmatchedCatalog: make([]UnmatchedEntry, 0, len(mp.UnmatchedCatalog)),
		UnmatchedDB:      mp.UnmatchedCandidates,
		Stats:            mp.Stats,
		RunID:            runID,
	}
	if doc.UnmatchedDB == nil {
		doc.UnmatchedDB = []domain.CanonicalScenario{}
	}

	for _, r := range mp.Matched {
		doc.Matched = append(doc.Matched, MatchedEntry{
			CatalogTitle: r.Catalog.Title,
			DBID:         r.Scenario.ID,
			DBTitle:      r.Scenario.Title,
			DBAuthor:     r.Scenario.Author,
			Similarity:   math.Round(r.Score*1000) / 1000,
			Reason:       r.Reason,
			CatalogData:  r.Catalog,
		})
	}
	for _, r := range mp.UnmatchedCatalog {
		doc.UnmatchedCatalog = append(doc.UnmatchedCatalog, UnmatchedEntry{
			CatalogRecord: r.Catalog,
			Reason:        r.Reason,
		})
	}
	return doc
}

// WriteDocument encodes doc as indented JSON without escaping non-ASCII.
func WriteDocument(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode mapping document")
	}
	return nil
}

// ReadDocument decodes a mapping document.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "decode mapping document")
	}
	return &doc, nil
}
