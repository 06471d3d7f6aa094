// Package crawl runs the catalogue crawl: log in, walk the saved list,
// extract every title with bounded concurrency, merge duplicates and write
// the dataset.
package crawl

import (
	"context"
	stdErrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/lepinkainen/librarylookup/internal/cache"
	"github.com/lepinkainen/librarylookup/internal/catalog"
	"github.com/lepinkainen/librarylookup/internal/concurrently"
	"github.com/lepinkainen/librarylookup/internal/config"
	"github.com/lepinkainen/librarylookup/internal/covers"
	"github.com/lepinkainen/librarylookup/internal/fileutil"
	"github.com/lepinkainen/librarylookup/internal/merge"
	"github.com/lepinkainen/librarylookup/internal/metrics"
	"github.com/lepinkainen/librarylookup/internal/pagination"
	"github.com/lepinkainen/librarylookup/internal/retry"
	"github.com/lepinkainen/librarylookup/internal/session"
	"github.com/lepinkainen/librarylookup/internal/tint"
)

// Options controls one crawl.
type Options struct {
	BaseURL           string
	ListURL           string
	Authority         string
	AnomaliesFile     string
	Output            string
	CoversDir         string
	Concurrency       int
	RequestsPerSecond float64
	FailFast          bool
	MetricsFile       string
	CacheDBFile       string
	CacheTTL          time.Duration
	Credentials       session.Credentials

	RetryMaxAttempts int
	RetryBase        time.Duration
	RetryMax         time.Duration

	// HTTPClient overrides the client used for catalogue and image requests.
	HTTPClient *http.Client
	// Now overrides the clock used for generated_at.
	Now func() time.Time
}

// OptionsFromConfig builds Options from the resolved configuration.
func OptionsFromConfig() Options {
	return Options{
		BaseURL:           config.BaseURL,
		ListURL:           config.ListURL,
		Authority:         config.Authority,
		AnomaliesFile:     config.AnomaliesFile,
		Output:            config.Output,
		CoversDir:         config.CoversDir,
		Concurrency:       config.Concurrency,
		RequestsPerSecond: config.RequestsPerSecond,
		FailFast:          config.FailFast,
		MetricsFile:       config.MetricsFile,
		CacheDBFile:       config.CacheDBFile,
		CacheTTL:          config.CacheTTL,
		Credentials:       session.Credentials{CardNumber: config.CardNumber, Password: config.Password},
		RetryMaxAttempts:  config.RetryMaxAttempts,
		RetryBase:         config.RetryBase,
		RetryMax:          config.RetryMax,
	}
}

// Dataset is the emitted JSON document.
type Dataset struct {
	GeneratedAt string                 `json:"generated_at"`
	Books       []catalog.CatalogEntry `json:"books"`
	Branches    []string               `json:"branches"`
}

// Run crawls the catalogue and writes the dataset to opts.Output. Nothing is
// written when the crawl fails.
func Run(ctx context.Context, opts Options) error {
	if err := opts.Credentials.Validate(); err != nil {
		return err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := metrics.New()
	defer func() {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics", "error", err)
		}
	}()

	dataset, err := crawl(ctx, opts, m, now)
	if err != nil {
		return err
	}

	if _, err := fileutil.WriteJSONFile(dataset, opts.Output, true); err != nil {
		return err
	}
	slog.Info("Crawl complete", "books", len(dataset.Books), "branches", len(dataset.Branches), "output", opts.Output)

	return exportDataset(dataset)
}

func crawl(ctx context.Context, opts Options, m *metrics.Metrics, now func() time.Time) (Dataset, error) {
	started := now()

	client, err := session.Login(ctx, session.Options{
		BaseURL:           opts.BaseURL,
		RequestsPerSecond: opts.RequestsPerSecond,
		Metrics:           m,
		HTTPClient:        opts.HTTPClient,
	}, opts.Credentials)
	if err != nil {
		return Dataset{}, err
	}

	listURL, err := resolveList(ctx, client, opts.ListURL)
	if err != nil {
		return Dataset{}, err
	}

	fetcher := newRetryPolicy(opts, "catalogue", m).WrapFetcher(client)
	extractor, closeExtractor, err := newExtractor(opts, fetcher, m)
	if err != nil {
		return Dataset{}, err
	}
	defer closeExtractor()

	walker := pagination.New(fetcher, catalog.ParseFragment,
		pagination.WithItemSelector(catalog.ItemSelector),
		pagination.WithNextPage(catalog.NextPageURL),
		pagination.WithFailFast(opts.FailFast),
		pagination.WithMetrics(m),
	)

	var walkErr error
	fragments := untilError(walker.Walk(ctx, listURL), &walkErr)

	runOpts := []concurrently.Option{concurrently.WithMaxConcurrency(opts.Concurrency)}
	if opts.FailFast {
		runOpts = append(runOpts, concurrently.WithStopOnError(func(error) bool { return true }))
	}

	var entries []catalog.CatalogEntry
	var firstErr error
	for r := range concurrently.Run(ctx, fragments, extractor.Extract, runOpts...) {
		if r.Err != nil {
			m.IncItem("failed")
			if opts.FailFast {
				if firstErr == nil {
					firstErr = r.Err
				}
				continue
			}
			slog.Warn("Skipping title", "title", r.Input.Title, "url", r.Input.DetailURL, "error", r.Err)
			continue
		}
		m.IncItem("ok")
		slog.Debug("Extracted title", "title", r.Output.Title, "position", r.Output.Position)
		entries = append(entries, r.Output)
	}

	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	if walkErr != nil {
		return Dataset{}, fmt.Errorf("walking list %s: %w", listURL, walkErr)
	}
	if firstErr != nil {
		return Dataset{}, firstErr
	}

	books := merge.Entries(entries)
	if books == nil {
		books = []catalog.CatalogEntry{}
	}
	slog.Info("Merged titles", "extracted", len(entries), "books", len(books), "elapsed", now().Sub(started).Round(time.Millisecond))

	return Dataset{
		GeneratedAt: now().Format(time.RFC3339),
		Books:       books,
		Branches:    catalog.AvailableBranches(books),
	}, nil
}

func resolveList(ctx context.Context, client *session.Client, listURL string) (string, error) {
	if listURL != "" {
		return client.Resolve(listURL)
	}
	list, err := client.DefaultList(ctx)
	if err != nil {
		return "", fmt.Errorf("finding default list: %w", err)
	}
	slog.Info("Found default list", "url", list.URL, "titles", list.Count)
	return list.URL, nil
}

func newRetryPolicy(opts Options, name string, m *metrics.Metrics) *retry.Policy {
	retryOpts := []retry.Option{retry.WithName(name), retry.WithMetrics(m)}
	if opts.RetryMaxAttempts > 0 {
		retryOpts = append(retryOpts, retry.WithMaxAttempts(opts.RetryMaxAttempts))
	}
	retryOpts = append(retryOpts, retry.WithBackoff(opts.RetryBase, opts.RetryMax))
	return retry.New(retryOpts...)
}

// newExtractor wires the cover cache and tint chooser. The returned func
// closes the tint cache.
func newExtractor(opts Options, fetcher catalog.Fetcher, m *metrics.Metrics) (*catalog.Extractor, func(), error) {
	anomalies, err := catalog.LoadAnomalies(opts.AnomaliesFile)
	if err != nil {
		return nil, nil, err
	}

	coverOpts := []covers.Option{
		covers.WithRetryPolicy(newRetryPolicy(opts, "covers", m)),
		covers.WithMetrics(m),
	}
	if opts.HTTPClient != nil {
		coverOpts = append(coverOpts, covers.WithHTTPClient(opts.HTTPClient))
	}
	images := covers.New(covers.NewDirStore(opts.CoversDir), coverOpts...)

	closeCache := func() {}
	var tintCache *cache.CacheDB
	if opts.CacheDBFile != "" {
		tintCache, err = cache.Open(opts.CacheDBFile, opts.CacheTTL)
		if err != nil {
			slog.Warn("Tint cache unavailable, computing every colour", "path", opts.CacheDBFile, "error", err)
			tintCache = nil
		} else {
			closeCache = func() {
				if err := tintCache.Close(); err != nil {
					slog.Warn("Failed to close tint cache", "error", err)
				}
			}
		}
	}

	extractorOpts := []catalog.ExtractorOption{
		catalog.WithAnomalies(anomalies),
		catalog.WithTinter(tint.New(tint.WithCache(tintCache))),
	}
	if opts.Authority != "" {
		extractorOpts = append(extractorOpts, catalog.WithAuthority(opts.Authority))
	}
	return catalog.NewExtractor(fetcher, images, extractorOpts...), closeCache, nil
}

// untilError turns the walker's sequence into a plain fragment sequence. The
// first error is stored in errp and ends the sequence.
func untilError(seq iter.Seq2[catalog.Fragment, error], errp *error) iter.Seq[catalog.Fragment] {
	return func(yield func(catalog.Fragment) bool) {
		for f, err := range seq {
			if err != nil {
				if !stdErrors.Is(err, context.Canceled) {
					*errp = err
				}
				return
			}
			if !yield(f) {
				return
			}
		}
	}
}
