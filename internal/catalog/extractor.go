package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Fetcher returns the HTML of a catalogue page. Relative URLs are resolved
// against the catalogue's base URL by the implementation.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// ImageSaver stores a cover image locally.
type ImageSaver interface {
	Save(ctx context.Context, imageURL string) (SavedImage, error)
}

// Tinter picks an accent colour for a saved cover image.
type Tinter interface {
	TintFor(ctx context.Context, path string) (string, error)
}

// Extractor turns a result card into a full CatalogEntry by fetching the
// title's detail page, its availability popover and its cover.
type Extractor struct {
	fetcher   Fetcher
	images    ImageSaver
	tinter    Tinter
	authority string
	anomalies AnomalyTable
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithAuthority sets which library network's branches are kept.
func WithAuthority(authority string) ExtractorOption {
	return func(e *Extractor) {
		e.authority = authority
	}
}

// WithAnomalies replaces the built-in anomaly table.
func WithAnomalies(table AnomalyTable) ExtractorOption {
	return func(e *Extractor) {
		e.anomalies = table
	}
}

// WithTinter enables tint colour selection for covers.
func WithTinter(t Tinter) ExtractorOption {
	return func(e *Extractor) {
		e.tinter = t
	}
}

// NewExtractor creates an Extractor. fetcher should already retry transient failures.
func NewExtractor(fetcher Fetcher, images ImageSaver, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		fetcher:   fetcher,
		images:    images,
		authority: DefaultAuthority,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.anomalies == nil {
		e.anomalies = DefaultAnomalies()
	}
	return e
}

// Extract builds the entry for one card. Errors name the card's title and detail URL.
func (e *Extractor) Extract(ctx context.Context, f Fragment) (CatalogEntry, error) {
	entry, err := e.extract(ctx, f)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("extracting %q (%s): %w", f.Title, f.DetailURL, err)
	}
	return entry, nil
}

func (e *Extractor) extract(ctx context.Context, f Fragment) (CatalogEntry, error) {
	details, err := e.recordDetails(ctx, f.DetailURL)
	if err != nil {
		return CatalogEntry{}, err
	}

	image, err := e.images.Save(ctx, f.ImageURL)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("saving cover: %w", err)
	}

	title, author, year := ResolveTitleAuthor(f.Title, f.RecDetails, e.anomalies)

	availability, err := e.availability(ctx, f.AvailabilityURL)
	if err != nil {
		return CatalogEntry{}, err
	}

	entry := CatalogEntry{
		Title:           title,
		Author:          author,
		PublicationYear: year,
		RecordDetails:   details,
		Image:           &image,
		Availability:    availability,
		Format:          DetectFormat(details),
		Position:        f.Position,
	}
	if author != nil {
		entry.DisplayAuthor = DisplayAuthorName(*author)
	}

	if e.tinter != nil && image.Path != nil {
		tint, err := e.tinter.TintFor(ctx, *image.Path)
		if err != nil {
			slog.Warn("Failed to choose tint colour", "title", title, "path", *image.Path, "error", err)
		} else {
			entry.TintColor = &tint
		}
	}

	return entry, nil
}

func (e *Extractor) recordDetails(ctx context.Context, url string) (RecordDetails, error) {
	html, err := e.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching record details: %w", err)
	}
	doc, err := ParseDocument(html, url)
	if err != nil {
		return nil, err
	}
	return ParseRecordDetails(doc, url)
}

func (e *Extractor) availability(ctx context.Context, url string) ([]AvailabilityRecord, error) {
	html, err := e.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching availability: %w", err)
	}
	doc, err := ParseDocument(html, url)
	if err != nil {
		return nil, err
	}
	return ParseAvailability(doc, url, e.authority)
}
