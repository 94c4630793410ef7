package finviz

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/types"
)

const (
	pageSize       = 20
	tickerSelector = "a.screener-link-primary"
)

// Options configures a Scraper. Zero values are replaced by defaults.
type Options struct {
	UserAgent string
	Throttle  time.Duration
	MaxPages  int
	Timeout   time.Duration
}

// Scraper pulls ticker symbols out of Finviz screener result pages.
type Scraper struct {
	opts Options
}

var _ interfaces.WatchlistSource = (*Scraper)(nil)

func NewScraper(opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Scraper{opts: opts}
}

// FetchWatchlist walks every screener URL page by page and returns the
// symbols in first-seen order. Any failed page makes the whole watchlist
// unavailable.
func (s *Scraper) FetchWatchlist(ctx context.Context, urls []string) ([]string, error) {
	seen := make(map[string]struct{})
	var tickers []string

	for _, base := range urls {
		pages, err := s.fetchScreen(ctx, base, seen)
		if err != nil {
			return nil, err
		}
		tickers = append(tickers, pages...)
	}

	logger.Debug(ctx, "Watchlist fetched", "urls", len(urls), "tickers", len(tickers))
	return tickers, nil
}

func (s *Scraper) fetchScreen(ctx context.Context, base string, seen map[string]struct{}) ([]string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid screener url %q", types.ErrSourceUnavailable, base)
	}

	c := s.newCollector(ctx, u.Hostname())
	var (
		page     []string
		parseErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page, parseErr = extractTickers(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Screener page failed", err, "url", r.Request.URL.String(), "status", r.StatusCode)
	})

	// an explicit r= pins the query to one page
	singlePage := u.Query().Has("r")

	var out []string
	for p := 0; p < s.opts.MaxPages; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageURL := base
		if !singlePage {
			pageURL = withRow(u, 1+p*pageSize)
		}

		page, parseErr = nil, nil
		if err := c.Visit(pageURL); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrSourceUnavailable, pageURL, err)
		}
		c.Wait()
		if parseErr != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", types.ErrSourceUnavailable, pageURL, parseErr)
		}

		added := 0
		for _, t := range page {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
			added++
		}
		// finviz repeats the last page once r runs past the end
		if singlePage || added == 0 || len(page) < pageSize {
			break
		}
	}
	return out, nil
}

func (s *Scraper) newCollector(ctx context.Context, host string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(host),
		colly.UserAgent(s.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.Context = ctx
	c.SetRequestTimeout(s.opts.Timeout)
	if s.opts.Throttle > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: s.opts.Throttle}); err != nil {
			logger.Warn(ctx, "Screener throttle not applied", "host", host, "error", err)
		}
	}
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})
	return c
}

func withRow(u *url.URL, row int) string {
	cp := *u
	q := cp.Query()
	q.Set("r", strconv.Itoa(row))
	cp.RawQuery = q.Encode()
	return cp.String()
}

// extractTickers returns the symbols linked from a results page, upper-cased
// and restricted to plain letters.
func extractTickers(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find(tickerSelector).Each(func(_ int, sel *goquery.Selection) {
		t := strings.ToUpper(strings.TrimSpace(sel.Text()))
		if isTicker(t) {
			out = append(out, t)
		}
	})
	return out, nil
}

func isTicker(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
