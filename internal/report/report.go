// Package report renders Markdown documents for humans: the catalog list
// produced after a scrape and the mapping report produced after a map run.
package report

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	dateLayout     = "2006-01-02 15:04:05"
	unknownAuthor  = "不明"
	emptyCell      = "-"
	tagSeparator   = ", "
	maxReportTags  = 3
	reportLocation = "Asia/Tokyo"
)

var printer = message.NewPrinter(language.Japanese)

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyCell
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func authorCell(author string) string {
	if strings.TrimSpace(author) == "" {
		return unknownAuthor
	}
	return cell(author)
}

func players(n *int) string {
	if n == nil {
		return emptyCell
	}
	return printer.Sprintf("%d人", *n)
}

func yen(n *int) string {
	if n == nil {
		return emptyCell
	}
	return printer.Sprintf("%d円", *n)
}

// duration renders minutes as hours, keeping a half hour as ".5".
func duration(minutes *int) string {
	if minutes == nil {
		return emptyCell
	}
	m := *minutes
	if m%60 == 0 {
		return printer.Sprintf("%d時間", m/60)
	}
	if m%30 == 0 {
		return printer.Sprintf("%.1f時間", float64(m)/60)
	}
	return printer.Sprintf("%d分", m)
}

func tags(list []string, limit int) string {
	if len(list) == 0 {
		return emptyCell
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return cell(strings.Join(list, tagSeparator))
}

func percent(score float64) string {
	return printer.Sprintf("%.0f%%", score*100)
}

// stamp formats t in Japan time, falling back to UTC when the zone
// database is unavailable.
func stamp(t time.Time) string {
	if loc, err := time.LoadLocation(reportLocation); err == nil {
		t = t.In(loc)
	} else {
		t = t.UTC()
	}
	return t.Format(dateLayout)
}
