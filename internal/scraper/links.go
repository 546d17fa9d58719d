package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Link is a booking page found on a listing page.
type Link struct {
	Title    string `json:"title"`
	RawTitle string `json:"raw_title"`
	URL      string `json:"url"`
}

// LinkRules decides which anchors on a listing page are scenario pages.
type LinkRules struct {
	// Href must contain this substring.
	HrefContains string
	// Hrefs containing any of these are navigation, not scenarios.
	HrefExclude []string
	// Anchor text must start with this prefix.
	TextPrefix string
	// Anchor texts containing any of these are not scenarios.
	SkipKeywords []string
}

// DefaultLinkRules returns the rules for the booking site listing.
func DefaultLinkRules() LinkRules {
	return LinkRules{
		HrefExclude:  []string{"booking_pages", "legal", "services"},
		TextPrefix:   "【",
		SkipKeywords: []string{"貸切予約枠", "貸切申し込み", "特定商取引法", "キャンセル", "問い合わせ", "サービス"},
	}
}

var bracketRe = regexp.MustCompile(`【[^】]*】`)

// CleanBookingTitle removes 【…】 labels from a booking page title.
func CleanBookingTitle(s string) string {
	return strings.TrimSpace(bracketRe.ReplaceAllString(s, ""))
}

// ExtractLinks returns the scenario links in html, resolving relative hrefs
// against base. seen carries titles across pages; a title already in seen
// is skipped and new titles are added to it.
func ExtractLinks(html, base string, rules LinkRules, seen map[string]bool) ([]Link, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid base url %q", base)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "parse listing html")
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !rules.acceptHref(href) {
			return
		}
		text := strings.TrimSpace(a.Text())
		if !strings.HasPrefix(text, rules.TextPrefix) || containsAny(text, rules.SkipKeywords) {
			return
		}

		title := CleanBookingTitle(text)
		if len([]rune(title)) < 2 || seen[title] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[title] = true
		links = append(links, Link{
			Title:    title,
			RawTitle: text,
			URL:      baseURL.ResolveReference(ref).String(),
		})
	})
	return links, nil
}

func (r LinkRules) acceptHref(href string) bool {
	if href == "" {
		return false
	}
	if r.HrefContains != "" && !strings.Contains(href, r.HrefContains) {
		return false
	}
	return !containsAny(href, r.HrefExclude)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
