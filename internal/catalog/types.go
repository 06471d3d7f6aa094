// Package catalog parses Spydus catalogue pages into typed records.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AvailabilityRecord is one branch holding of a title.
type AvailabilityRecord struct {
	Location   string `json:"location"`
	Collection string `json:"collection"`
	Status     string `json:"status"`
	CallNumber string `json:"call_number"`
}

// SavedImage points at a locally cached cover. Path is nil when the
// image host only had its placeholder.
type SavedImage struct {
	URL  string  `json:"url"`
	Path *string `json:"path"`
}

// DetailValue is a record-detail field: either a single string or a list.
type DetailValue struct {
	values []string
	list   bool
}

// Scalar creates a single-valued DetailValue.
func Scalar(v string) DetailValue {
	return DetailValue{values: []string{v}}
}

// List creates a list-valued DetailValue. An empty list is allowed.
func List(vs ...string) DetailValue {
	if vs == nil {
		vs = []string{}
	}
	return DetailValue{values: vs, list: true}
}

// IsList reports whether the value serializes as a JSON array.
func (v DetailValue) IsList() bool { return v.list }

// Values returns every value; a scalar yields a one-element slice.
func (v DetailValue) Values() []string { return v.values }

// String returns the scalar, or the list joined with "; ".
func (v DetailValue) String() string { return strings.Join(v.values, "; ") }

func (v DetailValue) MarshalJSON() ([]byte, error) {
	if v.list {
		return json.Marshal(v.values)
	}
	if len(v.values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(v.values[0])
}

func (v *DetailValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Scalar(s)
		return nil
	}
	var vs []string
	if err := json.Unmarshal(data, &vs); err != nil {
		return fmt.Errorf("record detail must be a string or list of strings: %w", err)
	}
	*v = List(vs...)
	return nil
}

// RecordDetails maps a detail caption ("ISBN", "Imprint", ...) to its value.
type RecordDetails map[string]DetailValue

// CatalogEntry is one extracted title.
type CatalogEntry struct {
	Title           string               `json:"title"`
	Author          *string              `json:"author"`
	PublicationYear *string              `json:"publication_year"`
	RecordDetails   RecordDetails        `json:"record_details"`
	Image           *SavedImage          `json:"image"`
	Availability    []AvailabilityRecord `json:"availability"`
	Format          *string              `json:"format,omitempty"`
	DisplayAuthor   string               `json:"display_author,omitempty"`
	TintColor       *string              `json:"tint_color,omitempty"`

	// Position is the entry's place in the list walk (page order, then card order).
	Position int `json:"-"`
}

// MergeKey identifies entries that describe the same work.
type MergeKey struct {
	Title     string
	Author    string
	HasAuthor bool
}

// Key returns the entry's merge key.
func (e CatalogEntry) Key() MergeKey {
	k := MergeKey{Title: e.Title}
	if e.Author != nil {
		k.Author = *e.Author
		k.HasAuthor = true
	}
	return k
}

// Fragment is the part of one result card read straight from the list page.
type Fragment struct {
	Title           string
	DetailURL       string
	ImageURL        string
	RecDetails      []string
	AvailabilityURL string
	RawHTML         string
	PageURL         string
	Position        int
}
