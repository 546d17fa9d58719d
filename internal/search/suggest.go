package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/madamis-ops/gmsync/internal/domain"
	"github.com/madamis-ops/gmsync/internal/matcher"
)

// DefaultSuggestions is the number of candidates listed per record.
const DefaultSuggestions = 3

// Suggestion is a scenario that may be what a catalog record refers to.
type Suggestion struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Author string  `json:"author,omitempty"`
	Score  float64 `json:"score"`
}

// Suggest returns up to limit scenarios whose title shares bigrams with the
// record's title, best first. The record's author, when known, breaks ties.
func (s *Index) Suggest(rec domain.CatalogRecord, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	q := buildSuggestQuery(rec)
	if q == nil {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	result, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", rec.Title, err)
	}

	out := make([]Suggestion, 0, len(result.Hits))
	for _, hit := range result.Hits {
		sc, ok := s.scenarios[hit.ID]
		if !ok {
			// On-disk index from an earlier run; the id is all we know.
			sc = domain.CanonicalScenario{ID: hit.ID}
		}
		out = append(out, Suggestion{
			ID:     sc.ID,
			Title:  sc.Title,
			Author: sc.Author,
			Score:  hit.Score,
		})
	}
	return out, nil
}

// SuggestAll runs Suggest for every record and keys the non-empty results
// by record title.
func (s *Index) SuggestAll(records []domain.CatalogRecord, limit int) (map[string][]Suggestion, error) {
	out := make(map[string][]Suggestion)
	for _, rec := range records {
		suggestions, err := s.Suggest(rec, limit)
		if err != nil {
			return nil, err
		}
		if len(suggestions) > 0 {
			out[rec.Title] = suggestions
		}
	}
	return out, nil
}

// buildSuggestQuery requires a title match or a normalized match on the
// core title. A known author only raises the score.
func buildSuggestQuery(rec domain.CatalogRecord) query.Query {
	var textQueries []query.Query

	if rec.Title != "" {
		titleMatch := bleve.NewMatchQuery(rec.Title)
		titleMatch.SetField("title")
		titleMatch.SetBoost(2.0)
		textQueries = append(textQueries, titleMatch)
	}

	if core := matcher.NormalizeTitle(matcher.CoreTitle(rec.Title)); core != "" {
		normMatch := bleve.NewMatchQuery(core)
		normMatch.SetField("normalized")
		normMatch.SetBoost(1.5)
		textQueries = append(textQueries, normMatch)
	}

	if len(textQueries) == 0 {
		return nil
	}
	text := bleve.NewDisjunctionQuery(textQueries...)
	if !rec.HasAuthor() {
		return text
	}

	authorMatch := bleve.NewMatchQuery(rec.Author)
	authorMatch.SetField("author")
	authorMatch.SetBoost(0.3)
	return query.NewBooleanQuery([]query.Query{text}, []query.Query{authorMatch}, nil)
}
