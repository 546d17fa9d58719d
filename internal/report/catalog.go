package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// CatalogList writes the scraped catalog as a Markdown table, largest
// player count first.
func CatalogList(w io.Writer, snap *catalog.Snapshot) error {
	if snap == nil {
		return domainerrors.Validation("catalog snapshot is required")
	}

	var b strings.Builder
	b.WriteString("# カタログ シナリオリスト\n\n")
	if snap.Source != "" {
		fmt.Fprintf(&b, "出典: %s\n\n", snap.Source)
	}

	if len(snap.Tags) > 0 {
		b.WriteString("## カテゴリタグ一覧\n\n")
		sorted := slices.Clone(snap.Tags)
		slices.Sort(sorted)
		for _, t := range sorted {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	b.WriteString("## シナリオ一覧\n\n")
	b.WriteString("| タイトル | 作者 | 人数 | 時間 | 料金 | タグ |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, rec := range byPlayersDesc(snap.Scenarios) {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(rec.Title),
			cell(rec.Author),
			players(rec.PlayerCount),
			duration(rec.DurationMinutes),
			yen(rec.Price),
			tags(rec.Tags, 0),
		)
	}

	fmt.Fprintf(&b, "\n---\n*合計: %d シナリオ*\n", len(snap.Scenarios))
	if !snap.ScrapedAt.IsZero() {
		fmt.Fprintf(&b, "*取得日時: %s*\n", stamp(snap.ScrapedAt))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "write catalog list")
	}
	return nil
}

// byPlayersDesc sorts a copy of records by player count, largest first.
// Records without a count go last; ties keep input order.
func byPlayersDesc(records []domain.CatalogRecord) []domain.CatalogRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b domain.CatalogRecord) int {
		return cmp.Compare(playerKey(b), playerKey(a))
	})
	return out
}

func playerKey(rec domain.CatalogRecord) int {
	if rec.PlayerCount == nil {
		return -1
	}
	return *rec.PlayerCount
}
