// Package covers downloads cover images and keeps them keyed by ISBN so
// later runs reuse them without a request.
package covers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lepinkainen/librarylookup/internal/catalog"
	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/fileutil"
	"github.com/lepinkainen/librarylookup/internal/metrics"
	"github.com/lepinkainen/librarylookup/internal/retry"
	"golang.org/x/sync/singleflight"
)

// PlaceholderName is the file the image host redirects to when it has no cover.
const PlaceholderName = "blank.gif"

const maxErrorBody = 512

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Cache saves cover images into a Store.
type Cache struct {
	store   Store
	client  HTTPDoer
	policy  *retry.Policy
	metrics *metrics.Metrics
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c HTTPDoer) Option {
	return func(cache *Cache) {
		if c != nil {
			cache.client = c
		}
	}
}

// WithRetryPolicy sets the retry policy for downloads.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(cache *Cache) {
		if p != nil {
			cache.policy = p
		}
	}
}

// WithMetrics records cover outcomes and download timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cache *Cache) {
		cache.metrics = m
	}
}

// New creates a Cache backed by store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		policy: retry.New(retry.WithName("covers")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LargeImageURL asks the image service for the large rendition (SIZE=l).
func LargeImageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("SIZE", "l")
	u.RawQuery = q.Encode()
	return u.String()
}

// ISBNFromURL returns the ISBN query parameter, or "" when there is none.
func ISBNFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("ISBN")
}

// Save returns the local copy of the cover at imageURL, downloading it
// when no file for its ISBN is stored yet. Concurrent calls for the same
// cover share one lookup.
func (c *Cache) Save(ctx context.Context, imageURL string) (catalog.SavedImage, error) {
	large := LargeImageURL(imageURL)
	isbn := ISBNFromURL(large)

	key := isbn
	if key == "" {
		key = large
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.save(ctx, large, isbn)
	})
	if err != nil {
		return catalog.SavedImage{}, err
	}
	if shared {
		slog.Debug("Shared cover lookup", "isbn", isbn)
	}
	return v.(catalog.SavedImage), nil
}

func (c *Cache) save(ctx context.Context, imageURL, isbn string) (catalog.SavedImage, error) {
	if isbn != "" {
		p, ok, err := c.store.Find(isbn)
		if err != nil {
			return catalog.SavedImage{}, err
		}
		if ok {
			slog.Debug("Cover already cached", "isbn", isbn, "path", p)
			c.metrics.IncCover("cached")
			return catalog.SavedImage{URL: imageURL, Path: &p}, nil
		}
	}

	var finalURL *url.URL
	var data []byte
	err := c.policy.Do(ctx, "GET "+imageURL, func(ctx context.Context) error {
		var err error
		finalURL, data, err = c.download(ctx, imageURL)
		return err
	})
	if err != nil {
		return catalog.SavedImage{}, fmt.Errorf("downloading cover: %w", err)
	}

	name := path.Base(finalURL.Path)
	if name == PlaceholderName {
		slog.Debug("No cover available", "url", imageURL)
		c.metrics.IncCover("placeholder")
		return catalog.SavedImage{URL: imageURL}, nil
	}
	if name == "/" || name == "." {
		return catalog.SavedImage{}, errors.NewParseError(finalURL.String(), "cover URL has no file name")
	}

	p, err := c.store.Create(fileutil.SanitizeFilename(name), data)
	if err != nil {
		return catalog.SavedImage{}, err
	}
	slog.Info("Downloaded cover", "isbn", isbn, "path", p)
	c.metrics.IncCover("downloaded")
	return catalog.SavedImage{URL: imageURL, Path: &p}, nil
}

// download fetches imageURL, following redirects, and returns the final URL with the body.
func (c *Cache) download(ctx context.Context, imageURL string) (*url.URL, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveRequest("cover", "transport_error", time.Since(start))
		return nil, nil, errors.NewTransportError(imageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveRequest("cover", fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, nil, errors.NewHTTPStatusError(imageURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest("cover", "transport_error", time.Since(start))
		return nil, nil, errors.NewTransportError(imageURL, err)
	}
	c.metrics.ObserveRequest("cover", "ok", time.Since(start))

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return final, data, nil
}
