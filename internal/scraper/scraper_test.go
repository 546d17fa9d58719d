package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

const catalogText = `公演カタログ
もっと見る
モノクローム
ドニパン
✨ 新作
料金
4,000円
参加人数
7人
所用
2.5~3時間
`

// fakeFetcher serves canned pages by URL.
type fakeFetcher struct {
	pages   map[string]*Page
	fail    map[string]error
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string, loadMore bool) (*Page, error) {
	f.fetched = append(f.fetched, pageURL)
	if err := f.fail[pageURL]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[pageURL]; ok {
		return p, nil
	}
	return &Page{URL: pageURL}, nil
}

func newTestScraper(t *testing.T, f Fetcher) *Scraper {
	t.Helper()
	s, err := New(f, nil, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s
}

func TestScraper_Catalog(t *testing.T) {
	const u = "https://catalog.example/catalog"
	f := &fakeFetcher{pages: map[string]*Page{u: {Text: catalogText, Clicks: 3}}}

	res, err := newTestScraper(t, f).Catalog(context.Background(), u)
	require.NoError(t, err)

	require.NotEmpty(t, res.Records)
	mono := res.Records[0]
	assert.Equal(t, "モノクローム", mono.Title)
	assert.Equal(t, "ドニパン", mono.Author)
	assert.Equal(t, domain.IntPtr(7), mono.PlayerCount)
	assert.Equal(t, domain.IntPtr(150), mono.DurationMinutes)
}

func TestScraper_Catalog_FallsBackToHTML(t *testing.T) {
	const u = "https://catalog.example/catalog"
	var html strings.Builder
	html.WriteString("<body><script>var x = 1;</script>")
	for _, line := range strings.Split(strings.TrimSpace(catalogText), "\n") {
		fmt.Fprintf(&html, "<div>%s</div>", line)
	}
	html.WriteString("</body>")

	f := &fakeFetcher{pages: map[string]*Page{u: {Text: "", HTML: html.String()}}}

	res, err := newTestScraper(t, f).Catalog(context.Background(), u)
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	assert.Equal(t, "モノクローム", res.Records[0].Title)
}

func TestScraper_Catalog_Errors(t *testing.T) {
	s := newTestScraper(t, &fakeFetcher{})

	_, err := s.Catalog(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrConfig)

	_, err = s.Catalog(context.Background(), "https://catalog.example/empty")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	boom := domainerrors.Remotef("fetch %s failed", "page 1")
	s = newTestScraper(t, &fakeFetcher{fail: map[string]error{"https://catalog.example/x": boom}})
	_, err = s.Catalog(context.Background(), "https://catalog.example/x")
	assert.ErrorIs(t, err, domainerrors.ErrRemote)
}

const listingPage1 = `<body>
<a href="/queens-waltz/booking_pages?page=2">次へ</a>
<a href="/queens-waltz/123">【新作】モノクローム</a>
<a href="https://coubic.com/queens-waltz/456">【公演】深夜の羊【7人】</a>
<a href="/queens-waltz/789">【貸切予約枠】貸切</a>
<a href="/queens-waltz/legal">【特定商取引】legal</a>
<a href="/queens-waltz/999">モノクローム詳細</a>
<a href="/queens-waltz/124">【再演】モノクローム</a>
<a href="/queens-waltz/125">【X】</a>
</body>`

func TestExtractLinks(t *testing.T) {
	seen := map[string]bool{}
	links, err := ExtractLinks(listingPage1, "https://coubic.com/queens-waltz/booking_pages?page=1", DefaultLinkRules(), seen)
	require.NoError(t, err)

	assert.Equal(t, []Link{
		{Title: "モノクローム", RawTitle: "【新作】モノクローム", URL: "https://coubic.com/queens-waltz/123"},
		{Title: "深夜の羊", RawTitle: "【公演】深夜の羊【7人】", URL: "https://coubic.com/queens-waltz/456"},
	}, links)
	assert.True(t, seen["モノクローム"])

	again, err := ExtractLinks(listingPage1, "https://coubic.com/queens-waltz/booking_pages?page=1", DefaultLinkRules(), seen)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCleanBookingTitle(t *testing.T) {
	tests := map[string]string{
		"【新作】モノクローム":     "モノクローム",
		"【公演】深夜の羊【7人】":   "深夜の羊",
		"  そのまま  ":        "そのまま",
		"【only】":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanBookingTitle(in), in)
	}
}

func TestScraper_BookingLinks(t *testing.T) {
	const list = "https://coubic.com/queens-waltz/booking_pages"
	f := &fakeFetcher{pages: map[string]*Page{
		list + "?page=1": {Text: "【新作】モノクローム", HTML: listingPage1},
		list + "?page=2": {Text: "【再演】…", HTML: `<a href="/queens-waltz/124">【再演】モノクローム</a><a href="/queens-waltz/200">【公演】赤い部屋</a>`},
		list + "?page=3": {Text: "ページがありません", HTML: "<p>empty</p>"},
		list + "?page=4": {Text: "【never】", HTML: `<a href="/queens-waltz/300">【公演】幻</a>`},
	}}

	links, err := newTestScraper(t, f).BookingLinks(context.Background(), list, 10)
	require.NoError(t, err)

	got := make([]string, len(links))
	for i, l := range links {
		got[i] = l.Title
	}
	assert.Equal(t, []string{"モノクローム", "深夜の羊", "赤い部屋"}, got)
	assert.Len(t, f.fetched, 3)
}

func TestScraper_BookingLinks_StopsAtMaxPages(t *testing.T) {
	const list = "https://coubic.com/queens-waltz/booking_pages"
	f := &fakeFetcher{pages: map[string]*Page{}}
	for n := 1; n <= 5; n++ {
		f.pages[fmt.Sprintf("%s?page=%d", list, n)] = &Page{
			Text: "【】",
			HTML: fmt.Sprintf(`<a href="/queens-waltz/%d">【公演】シナリオ%d</a>`, n, n),
		}
	}

	links, err := newTestScraper(t, f).BookingLinks(context.Background(), list, 2)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Len(t, f.fetched, 2)

	_, err = newTestScraper(t, f).BookingLinks(context.Background(), "not a url", 2)
	assert.ErrorIs(t, err, domainerrors.ErrConfig)
}

func TestScraper_Details(t *testing.T) {
	links := []Link{
		{Title: "モノクローム", URL: "https://coubic.com/queens-waltz/123"},
		{Title: "深夜の羊", URL: "https://coubic.com/queens-waltz/456"},
	}
	f := &fakeFetcher{
		pages: map[string]*Page{links[0].URL: {Text: "4,000円 (税込)\nプレイ人数：5〜6人\nプレイ時間：約3時間\nシナリオ制作：ドニパン"}},
		fail:  map[string]error{links[1].URL: errors.New("timeout")},
	}

	records, failures, err := newTestScraper(t, f).Details(context.Background(), links)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "ドニパン", records[0].Author)
	require.Len(t, failures, 1)
	assert.Equal(t, "深夜の羊", failures[0].Link.Title)
	assert.Equal(t, "timeout", failures[0].Error)
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		price    *int
		players  *int
		duration *int
		author   string
	}{
		{
			name:     "labeled fields",
			text:     "4,000円 (税込)\nプレイ人数：5〜6人\nプレイ時間：約3時間\nシナリオ制作：ドニパン\n",
			price:    domain.IntPtr(4000),
			players:  domain.IntPtr(5),
			duration: domain.IntPtr(180),
			author:   "ドニパン",
		},
		{
			name:     "half hour",
			text:     "所要時間：3時間半\n6名用",
			players:  domain.IntPtr(6),
			duration: domain.IntPtr(210),
		},
		{
			name:     "untaxed price and range",
			text:     "3,500円\n4-5人\n2〜3時間\nBy 山田",
			price:    domain.IntPtr(3500),
			players:  domain.IntPtr(4),
			duration: domain.IntPtr(120),
			author:   "山田",
		},
		{
			name: "nothing found",
			text: "お知らせ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseDetail("シナリオ", tt.text)
			require.NoError(t, err)
			assert.Equal(t, "シナリオ", rec.Title)
			assert.Equal(t, tt.price, rec.Price)
			assert.Equal(t, tt.players, rec.PlayerCount)
			assert.Equal(t, tt.duration, rec.DurationMinutes)
			assert.Equal(t, tt.author, rec.Author)
		})
	}

	_, err := ParseDetail("", "4人")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestBrowserOptions_Defaults(t *testing.T) {
	o := BrowserOptions{}.withDefaults()
	assert.Equal(t, defaultTimeout, o.Timeout)
	assert.Equal(t, defaultSettleDelay, o.SettleDelay)
	assert.Equal(t, defaultMaxClicks, o.MaxClicks)
	assert.Equal(t, defaultMaxMisses, o.MaxMisses)

	o = BrowserOptions{MaxClicks: -1, SettleDelay: -1}.withDefaults()
	assert.Zero(t, o.MaxClicks)
	assert.Zero(t, o.SettleDelay)
}
