package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/matcher"
	"github.com/madamis-ops/gmsync/internal/search"
)

// MappingOptions controls the mapping report.
type MappingOptions struct {
	GeneratedAt time.Time
	// Suggestions are index candidates for catalog-only records, keyed by
	// catalog title. Nil omits the column.
	Suggestions map[string][]search.Suggestion
}

// Histogram counts matched entries per confidence bucket.
type Histogram struct {
	Exact  int
	High   int
	Medium int
	Low    int
}

// NewHistogram buckets the similarities of matched entries.
func NewHistogram(entries []matcher.MatchedEntry) Histogram {
	var h Histogram
	for _, e := range entries {
		switch matcher.ConfidenceOf(e.Similarity) {
		case matcher.ConfidenceExact:
			h.Exact++
		case matcher.ConfidenceHigh:
			h.High++
		case matcher.ConfidenceMedium:
			h.Medium++
		default:
			h.Low++
		}
	}
	return h
}

// ReviewQueue returns the matched entries a human should confirm, least
// similar first.
func ReviewQueue(entries []matcher.MatchedEntry) []matcher.MatchedEntry {
	var out []matcher.MatchedEntry
	for _, e := range entries {
		if matcher.ConfidenceOf(e.Similarity).NeedsReview() {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b matcher.MatchedEntry) int {
		return cmp.Compare(a.Similarity, b.Similarity)
	})
	return out
}

// Mapping writes the Markdown mapping report for doc.
func Mapping(w io.Writer, doc *matcher.Document, opts MappingOptions) error {
	if doc == nil {
		return domainerrors.Validation("mapping document is required")
	}
	at := opts.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}

	var b strings.Builder
	b.WriteString("# シナリオマッピングレポート\n\n")
	fmt.Fprintf(&b, "生成日: %s\n", stamp(at))
	if doc.RunID != "" {
		fmt.Fprintf(&b, "実行ID: %s\n", doc.RunID)
	}
	b.WriteString("\n")

	writeSummary(&b, doc)
	writeHistogram(&b, NewHistogram(doc.Matched))
	writeCatalogOnly(&b, doc.UnmatchedCatalog, opts.Suggestions)
	writeDBOnly(&b, doc)
	writeReview(&b, ReviewQueue(doc.Matched))
	writeMatched(&b, doc.Matched)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "write mapping report")
	}
	return nil
}

func writeSummary(b *strings.Builder, doc *matcher.Document) {
	s := doc.Stats
	b.WriteString("## 統計サマリー\n\n")
	b.WriteString("| 項目 | 件数 |\n|---|---|\n")
	fmt.Fprintf(b, "| カタログ総数 | %d |\n", s.TotalCatalog)
	fmt.Fprintf(b, "| DB総数 | %d |\n", s.TotalDB)
	fmt.Fprintf(b, "| マッチ済み | %d |\n", len(doc.Matched))
	fmt.Fprintf(b, "| カタログのみ | %d |\n", len(doc.UnmatchedCatalog))
	fmt.Fprintf(b, "| DBのみ | %d |\n", len(doc.UnmatchedDB))
	b.WriteString("\n")
}

func writeHistogram(b *strings.Builder, h Histogram) {
	b.WriteString("## マッチング精度の分布\n\n")
	fmt.Fprintf(b, "- 完全一致（100%%）: %d件\n", h.Exact)
	fmt.Fprintf(b, "- 高精度（90-99%%）: %d件\n", h.High)
	fmt.Fprintf(b, "- 中精度（70-89%%）: %d件\n", h.Medium)
	fmt.Fprintf(b, "- 低精度（70%%未満）: %d件\n", h.Low)
	b.WriteString("\n")
}

func writeCatalogOnly(b *strings.Builder, entries []matcher.UnmatchedEntry, suggestions map[string][]search.Suggestion) {
	fmt.Fprintf(b, "## カタログのみ（DBに未登録）: %d件\n\n", len(entries))
	if len(entries) == 0 {
		b.WriteString("なし\n\n")
		return
	}

	withSuggestions := suggestions != nil
	if withSuggestions {
		b.WriteString("| タイトル | 作者 | 人数 | 料金 | タグ | 候補 |\n|---|---|---|---|---|---|\n")
	} else {
		b.WriteString("| タイトル | 作者 | 人数 | 料金 | タグ |\n|---|---|---|---|---|\n")
	}
	for _, e := range entries {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |",
			cell(e.Title),
			authorCell(e.Author),
			players(e.PlayerCount),
			yen(e.Price),
			tags(e.Tags, maxReportTags),
		)
		if withSuggestions {
			fmt.Fprintf(b, " %s |", suggestionCell(suggestions[e.Title]))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func suggestionCell(list []search.Suggestion) string {
	if len(list) == 0 {
		return emptyCell
	}
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = fmt.Sprintf("%s (%s)", s.Title, s.ID)
	}
	return cell(strings.Join(parts, " / "))
}

func writeDBOnly(b *strings.Builder, doc *matcher.Document) {
	fmt.Fprintf(b, "## DBのみ（カタログに未掲載）: %d件\n\n", len(doc.UnmatchedDB))
	if len(doc.UnmatchedDB) == 0 {
		b.WriteString("なし\n\n")
		return
	}
	b.WriteString("| タイトル | 作者 | ID |\n|---|---|---|\n")
	for _, sc := range doc.UnmatchedDB {
		fmt.Fprintf(b, "| %s | %s | `%s` |\n", cell(sc.Title), authorCell(sc.Author), sc.ID)
	}
	b.WriteString("\n")
}

func writeReview(b *strings.Builder, entries []matcher.MatchedEntry) {
	fmt.Fprintf(b, "## 要確認（類似度90%%未満）: %d件\n\n", len(entries))
	if len(entries) == 0 {
		b.WriteString("なし\n\n")
		return
	}
	b.WriteString("| カタログ | DB | 類似度 |\n|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(b, "| %s | %s | %s |\n", cell(e.CatalogTitle), cell(e.DBTitle), percent(e.Similarity))
	}
	b.WriteString("\n")
}

func writeMatched(b *strings.Builder, entries []matcher.MatchedEntry) {
	b.WriteString("## マッチ済みリスト\n\n")
	fmt.Fprintf(b, "<details>\n<summary>クリックして展開（全 %d 件）</summary>\n\n", len(entries))
	b.WriteString("| カタログ | DB | 作者 | タグ |\n|---|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			cell(e.CatalogTitle),
			cell(e.DBTitle),
			authorCell(e.CatalogData.Author),
			tags(e.CatalogData.Tags, maxReportTags),
		)
	}
	b.WriteString("\n</details>\n")
}
