package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
)

var (
	taxIncludedPriceRe = regexp.MustCompile(`([\d,]+)円\s*\(税込\)`)
	anyPriceRe         = regexp.MustCompile(`([\d,]+)円`)

	// Tried in order; a pattern with two groups is a range.
	playerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`プレイ人数[：:]\s*(\d+)(?:\s*[-~〜]\s*(\d+))?\s*[人名]`),
		regexp.MustCompile(`参加人数[：:]\s*(\d+)(?:\s*[-~〜]\s*(\d+))?\s*[人名]`),
		regexp.MustCompile(`(\d+)\s*[-~〜]\s*(\d+)\s*[人名]`),
		regexp.MustCompile(`(\d+)\s*[人名]用`),
		regexp.MustCompile(`(\d+)\s*[人名]プレイ`),
	}

	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`プレイ時間[：:]\s*約?\s*(\d+)(?:\s*[-~〜]\s*(\d+))?\s*時間`),
		regexp.MustCompile(`所要時間[：:]\s*約?\s*(\d+)(?:\s*[-~〜]\s*(\d+))?\s*時間`),
		regexp.MustCompile(`(\d+)\s*時間\s*半`),
		regexp.MustCompile(`(\d+)\s*[-~〜]\s*(\d+)\s*時間`),
		regexp.MustCompile(`約\s*(\d+)\s*時間`),
		regexp.MustCompile(`(\d+)\s*時間程度`),
		regexp.MustCompile(`(\d+)\s*時間`),
	}

	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:シナリオ)?制作[：:／/]\s*([^\n\r【】（）()]+)`),
		regexp.MustCompile(`作者[：:／/]\s*([^\n\r【】（）()]+)`),
		regexp.MustCompile(`著者[：:／/]\s*([^\n\r【】（）()]+)`),
		regexp.MustCompile(`(?:by|By)[：:\s]+([^\n\r【】（）()]+)`),
	}
)

const maxAuthorRunes = 50

// ParseDetail reads price, player count, duration and author from the
// visible text of a booking page. Ranges keep their lower bound. Fields
// that cannot be found stay unset.
func ParseDetail(title, text string) (domain.CatalogRecord, error) {
	rec := domain.CatalogRecord{Title: title}

	m := taxIncludedPriceRe.FindStringSubmatch(text)
	if m == nil {
		m = anyPriceRe.FindStringSubmatch(text)
	}
	if m != nil {
		if p, ok := catalog.ParsePrice(m[1]); ok {
			rec.Price = &p
		}
	}

	for _, re := range playerPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				rec.PlayerCount = &n
			}
			break
		}
	}

	for _, re := range durationPatterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		hours, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || hours <= 0 {
			break
		}
		minutes := hours * 60
		// "3時間半" and "約3時間 半" both add half an hour.
		if strings.Contains(window(text, loc[0], loc[1], 10), "半") {
			minutes += 30
		}
		rec.DurationMinutes = &minutes
		break
	}

	for _, re := range authorPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			author := []rune(strings.TrimSpace(m[1]))
			if len(author) > maxAuthorRunes {
				author = author[:maxAuthorRunes]
			}
			rec.Author = string(author)
			break
		}
	}

	return domain.NewCatalogRecord(rec)
}

// window returns text[start:end] widened by n runes on each side.
func window(text string, start, end, n int) string {
	before := []rune(text[:start])
	after := []rune(text[end:])
	from := max(len(before)-n, 0)
	to := min(n, len(after))
	return string(before[from:]) + text[start:end] + string(after[:to])
}
