package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// cleanText collapses runs of whitespace and normalizes to NFC, so the same
// title scraped from two pages compares equal.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func selText(sel *goquery.Selection) string {
	return cleanText(sel.Text())
}

func outerHTML(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return html
}

func ptr[T any](v T) *T {
	return &v
}
