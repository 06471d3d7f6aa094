package catalog

import (
	"regexp"
	"strings"
)

var (
	lifeYears     = regexp.MustCompile(`, \d{4}(?:-(?:\d{4})?)?$`)
	qualifierNote = regexp.MustCompile(` \([A-Za-z ]+\)$`)
)

// DisplayAuthorName turns a catalogue heading such as "Le Guin, Ursula K., 1929-2018"
// into "Ursula K. Le Guin". Labels that are not "Last, First" are returned unchanged.
func DisplayAuthorName(label string) string {
	trimmed := lifeYears.ReplaceAllString(label, "")

	last, first, ok := strings.Cut(trimmed, ",")
	if !ok || strings.Contains(first, ",") {
		return label
	}

	first = qualifierNote.ReplaceAllString(strings.TrimSpace(first), "")
	return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
}
