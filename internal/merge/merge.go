// Package merge folds catalogue entries describing the same work (for
// example a paperback and a hardback edition) into one entry.
package merge

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strconv"

	"github.com/lepinkainen/librarylookup/internal/catalog"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// SortYear returns the first four-digit run in year ("c2019" → 2019).
// ok is false when year is nil or has no such run.
func SortYear(year *string) (int, bool) {
	if year == nil {
		return 0, false
	}
	m := yearPattern.FindString(*year)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// compareMembers orders group members by year (unknown years first), then
// by their position in the listing.
func compareMembers(a, b catalog.CatalogEntry) int {
	ay, aok := SortYear(a.PublicationYear)
	by, bok := SortYear(b.PublicationYear)
	switch {
	case aok != bok:
		if !aok {
			return -1
		}
		return 1
	case aok && ay != by:
		return cmp.Compare(ay, by)
	}
	return cmp.Compare(a.Position, b.Position)
}

// Entries groups entries by their merge key and collapses each group into
// its earliest-year member, whose availability becomes the concatenation of
// every member's availability in year order. No other field is reconciled.
//
// The result is ordered by each base entry's position, so it does not
// depend on the order entries arrived in. The input is not modified.
func Entries(entries []catalog.CatalogEntry) []catalog.CatalogEntry {
	groups := map[catalog.MergeKey][]catalog.CatalogEntry{}
	var keys []catalog.MergeKey
	for _, e := range entries {
		k := e.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}

	merged := make([]catalog.CatalogEntry, 0, len(keys))
	for _, k := range keys {
		merged = append(merged, fold(groups[k]))
	}
	slices.SortStableFunc(merged, func(a, b catalog.CatalogEntry) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return merged
}

func fold(group []catalog.CatalogEntry) catalog.CatalogEntry {
	if len(group) == 1 {
		return group[0]
	}
	slices.SortStableFunc(group, compareMembers)

	base := group[0]
	availability := make([]catalog.AvailabilityRecord, 0)
	for _, member := range group {
		availability = append(availability, member.Availability...)
	}
	base.Availability = availability

	slog.Debug("Merged duplicate entries", "title", base.Title, "editions", len(group), "holdings", len(availability))
	return base
}
