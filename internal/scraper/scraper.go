// Package scraper collects scenario records from the public catalog page and
// from the booking site's per-scenario pages.
//
// Pages are fetched through a Fetcher, normally a headless Chrome (Browser).
// Parsing is done on the fetched text and HTML, so everything after the
// fetch can be tested without a browser.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/madamis-ops/gmsync/internal/catalog"
	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/ratelimit"
)

const defaultMaxPages = 70

// Page is one fetched page.
type Page struct {
	URL    string
	Text   string // rendered innerText of body
	HTML   string // outer HTML of body
	Clicks int    // "load more" clicks performed
}

// Fetcher loads pages.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, loadMore bool) (*Page, error)
}

// Scraper fetches and parses catalog pages.
type Scraper struct {
	fetcher Fetcher
	parser  *catalog.Parser
	limiter *ratelimit.KeyedRateLimiter
	rules   LinkRules
	logger  *slog.Logger
}

// New creates a scraper. A nil limiter means no pacing; a nil parser uses
// the default catalog parser.
func New(fetcher Fetcher, parser *catalog.Parser, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		p, err := catalog.NewParser(catalog.DefaultParserConfig(), logger)
		if err != nil {
			return nil, err
		}
		parser = p
	}
	if limiter == nil {
		limiter = ratelimit.New(0, 1)
	}
	return &Scraper{
		fetcher: fetcher,
		parser:  parser,
		limiter: limiter,
		rules:   DefaultLinkRules(),
		logger:  logger,
	}, nil
}

// SetLinkRules replaces the booking link rules.
func (s *Scraper) SetLinkRules(r LinkRules) {
	s.rules = r
}

// Catalog scrapes the catalog page at catalogURL. The rendered text is
// parsed first; when it yields nothing the HTML is converted to text and
// parsed again. A page with no records is NOT_FOUND.
func (s *Scraper) Catalog(ctx context.Context, catalogURL string) (*catalog.Result, error) {
	if catalogURL == "" {
		return nil, domainerrors.Config("catalog URL is required")
	}
	if err := s.limiter.WaitURL(ctx, catalogURL); err != nil {
		return nil, err
	}

	s.logger.Info("fetching catalog", "url", catalogURL)
	page, err := s.fetcher.Fetch(ctx, catalogURL, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("catalog fetched", "clicks", page.Clicks, "chars", len(page.Text))

	res := s.parser.Parse(page.Text)
	if len(res.Records) == 0 && page.HTML != "" {
		text, err := catalog.TextFromHTML(strings.NewReader(page.HTML))
		if err != nil {
			return nil, err
		}
		s.logger.Warn("no cards in rendered text, parsing HTML instead", "url", catalogURL)
		res = s.parser.Parse(text)
	}
	if len(res.Records) == 0 {
		return nil, domainerrors.NotFoundf("no scenarios found on %s", catalogURL)
	}

	s.logger.Info("catalog parsed", "records", len(res.Records), "tags", len(res.Tags), "rejected", res.Rejected)
	return res, nil
}

// BookingLinks walks the numbered listing pages (listURL?page=N) and
// collects scenario links, stopping at maxPages, at a failed page, or at
// the first page with no new links that shows no bracketed titles at all.
func (s *Scraper) BookingLinks(ctx context.Context, listURL string, maxPages int) ([]Link, error) {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	var links []Link
	seen := make(map[string]bool)

	for n := 1; n <= maxPages; n++ {
		pageURL, err := withPage(listURL, n)
		if err != nil {
			return nil, err
		}
		if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
			return links, err
		}

		page, err := s.fetcher.Fetch(ctx, pageURL, false)
		if err != nil {
			if ctx.Err() != nil {
				return links, err
			}
			s.logger.Warn("listing page failed, stopping", "page", n, "error", err)
			break
		}

		found, err := ExtractLinks(page.HTML, pageURL, s.rules, seen)
		if err != nil {
			return links, err
		}
		s.logger.Info("listing page scanned", "page", n, "links", len(found))
		links = append(links, found...)

		if len(found) == 0 && !strings.Contains(page.Text, s.rules.TextPrefix) {
			s.logger.Debug("last listing page", "page", n)
			break
		}
	}
	return links, nil
}

// DetailFailure is a booking page that could not be scraped.
type DetailFailure struct {
	Link  Link
	Error string
}

// Details fetches every link and parses its page. Failures are logged and
// returned alongside the records; the batch continues.
func (s *Scraper) Details(ctx context.Context, links []Link) ([]domain.CatalogRecord, []DetailFailure, error) {
	var (
		records  []domain.CatalogRecord
		failures []DetailFailure
	)
	for i, link := range links {
		if err := s.limiter.WaitURL(ctx, link.URL); err != nil {
			return records, failures, err
		}

		page, err := s.fetcher.Fetch(ctx, link.URL, false)
		if err != nil {
			if ctx.Err() != nil {
				return records, failures, err
			}
			s.logger.Warn("detail page failed", "title", link.Title, "error", err)
			failures = append(failures, DetailFailure{Link: link, Error: err.Error()})
			continue
		}

		rec, err := ParseDetail(link.Title, page.Text)
		if err != nil {
			s.logger.Warn("detail page rejected", "title", link.Title, "error", err)
			failures = append(failures, DetailFailure{Link: link, Error: err.Error()})
			continue
		}
		records = append(records, rec)
		s.logger.Debug("detail parsed",
			"progress", fmt.Sprintf("%d/%d", i+1, len(links)),
			"title", rec.Title,
			"author", rec.Author)
	}
	return records, failures, nil
}

func withPage(listURL string, n int) (string, error) {
	u, err := url.Parse(listURL)
	if err != nil || u.Host == "" {
		return "", domainerrors.Configf("invalid listing url %q", listURL)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
