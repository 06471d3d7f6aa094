// Package pagination walks a paginated HTML listing page by page and
// yields one parsed item per result card.
package pagination

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/metrics"
)

// Fetcher returns the HTML body at a URL.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// ItemParser turns one matched item into a T. position counts items across
// the whole walk, starting at zero.
type ItemParser[T any] func(item *goquery.Selection, pageURL string, position int) (T, error)

// NextPageFunc returns the href of the next page, or "" when doc is the last page.
type NextPageFunc func(doc *goquery.Document, pageURL string) (string, error)

type config struct {
	itemSelector string
	nextPage     NextPageFunc
	failFast     bool
	maxPages     int
	metrics      *metrics.Metrics
}

// Option configures a Walker.
type Option func(*config)

// WithItemSelector sets the CSS selector matching one item on a page.
func WithItemSelector(selector string) Option {
	return func(c *config) {
		c.itemSelector = selector
	}
}

// WithNextPage sets how the next page link is found.
func WithNextPage(fn NextPageFunc) Option {
	return func(c *config) {
		c.nextPage = fn
	}
}

// WithFailFast controls whether an item that fails to parse ends the walk
// (the default) or is logged and skipped.
func WithFailFast(enabled bool) Option {
	return func(c *config) {
		c.failFast = enabled
	}
}

// WithMaxPages stops the walk with an error after n pages. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(c *config) {
		c.maxPages = max(n, 0)
	}
}

// WithMetrics counts fetched pages.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Walker yields the items of every page of a listing, in page order.
type Walker[T any] struct {
	fetcher Fetcher
	parse   ItemParser[T]
	cfg     config
}

// New creates a Walker. Without WithNextPage the walk stops after the first page.
func New[T any](fetcher Fetcher, parse ItemParser[T], opts ...Option) *Walker[T] {
	cfg := config{
		itemSelector: "body",
		nextPage:     func(*goquery.Document, string) (string, error) { return "", nil },
		failFast:     true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Walker[T]{fetcher: fetcher, parse: parse, cfg: cfg}
}

// Walk returns a lazy sequence over all items reachable from startURL.
//
// A page is fetched only once every item of the previous page has been
// consumed. Errors are yielded with the zero T; page-level errors always
// end the sequence, item errors end it only in fail-fast mode.
func (w *Walker[T]) Walk(ctx context.Context, startURL string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		pageURL := startURL
		position := 0
		seen := map[string]bool{}

		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			if w.cfg.maxPages > 0 && page > w.cfg.maxPages {
				yield(zero, errors.NewParseError(pageURL, fmt.Sprintf("listing has more than %d pages", w.cfg.maxPages)))
				return
			}
			if seen[pageURL] {
				yield(zero, errors.NewParseError(pageURL, "pager links back to a page already visited"))
				return
			}
			seen[pageURL] = true

			slog.Debug("Fetching listing page", "page", page, "url", pageURL)
			html, err := w.fetcher.FetchPage(ctx, pageURL)
			if err != nil {
				yield(zero, fmt.Errorf("fetching listing page %d: %w", page, err))
				return
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				yield(zero, &errors.ParseError{URL: pageURL, Reason: "invalid HTML", Err: err})
				return
			}
			w.cfg.metrics.IncPage()

			items := doc.Find(w.cfg.itemSelector)
			slog.Debug("Parsed listing page", "page", page, "items", items.Length())
			for i := range items.Length() {
				item, err := w.parse(items.Eq(i), pageURL, position)
				position++
				if err != nil {
					if w.cfg.failFast {
						yield(zero, err)
						return
					}
					slog.Warn("Skipping unparseable item", "url", pageURL, "position", position-1, "error", err)
					continue
				}
				if !yield(item, nil) {
					return
				}
			}

			href, err := w.cfg.nextPage(doc, pageURL)
			if err != nil {
				yield(zero, err)
				return
			}
			if href == "" {
				slog.Debug("Reached last listing page", "pages", page, "items", position)
				return
			}
			next, err := resolve(pageURL, href)
			if err != nil {
				yield(zero, &errors.ParseError{URL: pageURL, Reason: "invalid next page link " + href, Err: err})
				return
			}
			pageURL = next
		}
	}
}

// resolve makes href absolute relative to base. A relative base (as used
// when the fetcher resolves URLs itself) leaves href relative too.
func resolve(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
