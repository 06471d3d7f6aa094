package catalog

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/librarylookup/internal/errors"
)

// DefaultAuthority is the library authority whose branches are kept.
const DefaultAuthority = "Hertfordshire County Council"

// ParseAvailability reads the availability popover table. Rows whose
// location is not marked with "(authority)" belong to other library
// networks and are dropped; the marker is removed from kept rows.
func ParseAvailability(doc *goquery.Document, url, authority string) ([]AvailabilityRecord, error) {
	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, &errors.ParseError{URL: url, Reason: "availability table has no body"}
	}

	marker := "(" + authority + ")"
	records := []AvailabilityRecord{}
	tbody.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := func(caption string) string {
			return selText(row.Find(`td[data-caption="` + caption + `"]`).First())
		}

		rec := AvailabilityRecord{
			Location:   cell("Location"),
			Collection: cell("Collection"),
			Status:     cell("Status/Desc"),
			CallNumber: cell("Call number"),
		}
		if !strings.Contains(rec.Location, marker) {
			return
		}
		rec.Location = strings.TrimSpace(strings.ReplaceAll(rec.Location, " "+marker, ""))
		records = append(records, rec)
	})

	return records, nil
}

// AvailableBranches returns the sorted set of locations where any entry is
// currently on the shelf.
func AvailableBranches(entries []CatalogEntry) []string {
	seen := map[string]bool{}
	branches := []string{}
	for _, e := range entries {
		for _, av := range e.Availability {
			if av.Status != "Available" || seen[av.Location] {
				continue
			}
			seen[av.Location] = true
			branches = append(branches, av.Location)
		}
	}
	slices.Sort(branches)
	return branches
}
