package catalog

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/librarylookup/internal/errors"
)

// SummaryKey is always present in parsed record details.
const SummaryKey = "Summary"

// multiValued lists the captions that are kept as lists even with one value.
var multiValued = map[string]bool{
	"Added title":      true,
	"Author":           true,
	"Dewey class":      true,
	"Language":         true,
	"Local class":      true,
	"More Information": true,
	"Notes":            true,
	"Series title":     true,
	"Subject":          true,
}

// IsMultiValued reports whether caption is always stored as a list.
func IsMultiValued(caption string) bool {
	return multiValued[caption]
}

// ParseRecordDetails reads the "Record details" tab of a title page.
//
//	<div id="tabRECDETAILS-body">
//	  <div class="row">
//	    <div class="fd-caption"><span>Imprint:</span></div>
//	    <div class="col"><span class="d-block">London : Simon & Schuster, 2022.</span></div>
//	  </div>
//	</div>
func ParseRecordDetails(doc *goquery.Document, url string) (RecordDetails, error) {
	body := doc.Find("div#tabRECDETAILS-body").First()
	if body.Length() == 0 {
		return nil, &errors.ParseError{URL: url, Reason: "record details tab not found"}
	}

	details := RecordDetails{}
	var rowErr error
	body.Find("div.row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		caption := row.Find("div.fd-caption").First()
		if caption.Length() == 0 {
			rowErr = &errors.ParseError{URL: url, Reason: "record detail row has no caption", Fragment: outerHTML(row)}
			return false
		}
		key := strings.TrimSuffix(selText(caption), ":")

		values := []string{}
		row.Find("span.d-block").Each(func(_ int, span *goquery.Selection) {
			values = append(values, selText(span))
		})

		switch {
		case multiValued[key]:
			details[key] = List(values...)
		case len(values) == 1:
			details[key] = Scalar(values[0])
		default:
			slog.Warn("Record detail had multiple entries", "key", key, "count", len(values), "url", url)
			details[key] = List(values...)
		}
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	// The summary lives in its own tab and is not truncated there.
	summary := []string{}
	doc.Find("div#divtabSUMMARY span").Each(func(_ int, span *goquery.Selection) {
		summary = append(summary, selText(span))
	})
	details[SummaryKey] = List(summary...)

	return details, nil
}

// DetectFormat guesses paperback or hardback from the ISBN detail
// ("9781529100136 (pbk)"). It returns nil when neither marker is present.
func DetectFormat(details RecordDetails) *string {
	isbn, ok := details["ISBN"]
	if !ok {
		return nil
	}
	text := isbn.String()
	switch {
	case strings.Contains(text, "pbk"):
		return ptr("paperback")
	case strings.Contains(text, "hbk"):
		return ptr("hardback")
	}
	return nil
}
