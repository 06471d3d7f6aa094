package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed anomalies.yaml
var builtinAnomalies []byte

// Anomaly overrides the author/year (and optionally the title) of a card
// whose author/year block does not follow the usual two-span shape.
type Anomaly struct {
	Title           string `yaml:"title"`
	Spans           int    `yaml:"spans"`
	CorrectedTitle  string `yaml:"corrected_title"`
	Author          string `yaml:"author"`
	PublicationYear string `yaml:"publication_year"`
}

// AnomalyTable is keyed by the exact card title.
type AnomalyTable map[string]Anomaly

// DefaultAnomalies returns the built-in table.
func DefaultAnomalies() AnomalyTable {
	table, err := parseAnomalies(builtinAnomalies)
	if err != nil {
		panic(fmt.Sprintf("embedded anomalies.yaml is invalid: %v", err))
	}
	return table
}

// LoadAnomalies returns the built-in table with entries from path layered
// on top. An empty path returns the built-in table.
func LoadAnomalies(path string) (AnomalyTable, error) {
	table := DefaultAnomalies()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read anomalies file: %w", err)
	}
	extra, err := parseAnomalies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse anomalies file %s: %w", path, err)
	}
	for title, a := range extra {
		table[title] = a
	}
	slog.Debug("Loaded anomaly overrides", "file", path, "count", len(extra))
	return table, nil
}

func parseAnomalies(data []byte) (AnomalyTable, error) {
	var entries []Anomaly
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	table := make(AnomalyTable, len(entries))
	for i, a := range entries {
		if a.Title == "" {
			return nil, fmt.Errorf("entry %d has no title", i)
		}
		if a.Spans == 0 {
			a.Spans = 1
		}
		table[a.Title] = a
	}
	return table, nil
}

// ResolveTitleAuthor derives the title, author and publication year of a card.
//
// The usual card has two spans: author then year. Known exceptions come
// from the anomaly table. Anything else keeps the title and leaves author
// and year unknown; that is logged but not an error.
func ResolveTitleAuthor(title string, spans []string, anomalies AnomalyTable) (string, *string, *string) {
	if a, ok := anomalies[title]; ok && a.Spans == len(spans) {
		slog.Debug("Applying known data anomaly", "title", title)
		if a.CorrectedTitle != "" {
			title = a.CorrectedTitle
		}
		var author, year *string
		if a.Author != "" {
			author = ptr(a.Author)
		}
		if a.PublicationYear != "" {
			year = ptr(a.PublicationYear)
		}
		return title, author, year
	}

	if len(spans) != 2 {
		slog.Warn("Unexpected author/year block, leaving author and year unknown", "title", title, "spans", len(spans))
		return title, nil, nil
	}
	return title, ptr(spans[0]), ptr(spans[1])
}
