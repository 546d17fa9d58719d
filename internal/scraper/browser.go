package scraper

import (
	"context"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultSettleDelay = 2 * time.Second
	defaultMaxClicks   = 50
	defaultMaxMisses   = 5

	scrollDelay = 500 * time.Millisecond
	clickDelay  = time.Second

	// LoadMoreLabel is the text of the catalog's pagination button.
	LoadMoreLabel = "もっと見る"
)

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	Headless    bool
	ExecPath    string
	Timeout     time.Duration // per page
	SettleDelay time.Duration // after navigation
	MaxClicks   int           // "load more" clicks per page
	MaxMisses   int           // consecutive failed clicks before giving up
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	} else if o.SettleDelay == 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.MaxClicks < 0 {
		o.MaxClicks = 0
	} else if o.MaxClicks == 0 {
		o.MaxClicks = defaultMaxClicks
	}
	if o.MaxMisses < 1 {
		o.MaxMisses = defaultMaxMisses
	}
	return o
}

// Browser drives one Chrome process. Each Fetch opens a new tab.
type Browser struct {
	opts          BrowserOptions
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewBrowser starts Chrome. Close must be called to stop it.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "start chrome")
	}

	return &Browser{
		opts:          opts,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Close stops the browser.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// Fetch loads pageURL and returns its visible text and HTML. With loadMore
// it keeps clicking the "load more" button until it disappears, stops
// responding MaxMisses times in a row, or MaxClicks is reached.
func (b *Browser) Fetch(ctx context.Context, pageURL string, loadMore bool) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	page := &Page{URL: pageURL}
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.opts.SettleDelay),
	)
	if err != nil {
		return nil, fetchErr(ctx, err, pageURL)
	}

	if loadMore {
		page.Clicks = b.clickLoadMore(tabCtx)
	}

	err = chromedp.Run(tabCtx,
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.Sleep(clickDelay),
		chromedp.Text("body", &page.Text, chromedp.ByQuery),
		chromedp.OuterHTML("body", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fetchErr(ctx, err, pageURL)
	}
	return page, nil
}

// clickScript clicks the first element whose own text contains the label
// and reports whether one was found.
var clickScript = `(() => {
	const r = document.evaluate(` + strconv.Quote("//*[contains(normalize-space(text()), '"+LoadMoreLabel+"')]") + `,
		document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	const el = r.singleNodeValue;
	if (!el) return false;
	el.scrollIntoView();
	el.click();
	return true;
})()`

func (b *Browser) clickLoadMore(ctx context.Context) int {
	clicks, misses := 0, 0
	for clicks < b.opts.MaxClicks && misses < b.opts.MaxMisses {
		var clicked bool
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(scrollDelay),
			chromedp.Evaluate(clickScript, &clicked),
		)
		if err != nil || !clicked {
			misses++
			continue
		}
		clicks++
		misses = 0
		if err := chromedp.Run(ctx, chromedp.Sleep(clickDelay)); err != nil {
			break
		}
	}
	return clicks
}

func fetchErr(ctx context.Context, err error, pageURL string) error {
	if ctx.Err() != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeCanceled, "fetch %s", pageURL)
	}
	return domainerrors.Wrapf(err, domainerrors.CodeRemote, "fetch %s", pageURL)
}
