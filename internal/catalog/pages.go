package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/librarylookup/internal/errors"
)

// ItemSelector matches one result card on a list page.
const ItemSelector = "#result-content-list fieldset"

// ParseFragment reads the parts of a result card needed to extract the full record.
func ParseFragment(card *goquery.Selection, pageURL string, position int) (Fragment, error) {
	raw := outerHTML(card)
	fail := func(reason string) (Fragment, error) {
		return Fragment{}, &errors.ParseError{URL: pageURL, Reason: reason, Fragment: raw}
	}

	heading := card.Find("h2.card-title").First()
	if heading.Length() == 0 {
		return fail("result card has no title")
	}
	detailURL, ok := heading.Find("a[href]").First().Attr("href")
	if !ok {
		return fail("result card title has no link")
	}

	imageURL, ok := card.Find("img[longdesc]").First().Attr("longdesc")
	if !ok {
		return fail("result card has no cover image")
	}

	recdetails := card.Find("div.recdetails").First()
	if recdetails.Length() == 0 {
		return fail("result card has no author/year block")
	}
	spans := []string{}
	recdetails.Find("span").Each(func(_ int, span *goquery.Selection) {
		spans = append(spans, selText(span))
	})

	availabilityURL, ok := card.Find("div.availability a[href]").First().Attr("href")
	if !ok {
		return fail("result card has no availability link")
	}

	return Fragment{
		Title:           selText(heading),
		DetailURL:       detailURL,
		ImageURL:        imageURL,
		RecDetails:      spans,
		AvailabilityURL: availabilityURL,
		RawHTML:         raw,
		PageURL:         pageURL,
		Position:        position,
	}, nil
}

// NextPageURL returns the href of the "next page" link, or "" on the last page.
//
//	<nav class="prvnxt result-pages-prvnxt">
//	  <ul>
//	    <li class="list-inline-item nxt"><a href="/cgi-bin/spydus.exe/...">Next</a></li>
//	  </ul>
//	</nav>
//
// The pager itself is present on every list page, so its absence means the
// page is not what we expected.
func NextPageURL(doc *goquery.Document, pageURL string) (string, error) {
	nav := doc.Find("nav.result-pages-prvnxt").First()
	if nav.Length() == 0 {
		return "", &errors.ParseError{URL: pageURL, Reason: "list page has no pager"}
	}
	next := nav.Find("li.nxt").First()
	if next.Length() == 0 {
		return "", &errors.ParseError{URL: pageURL, Reason: "pager has no next item"}
	}
	href, ok := next.Find("a[href]").First().Attr("href")
	if !ok {
		return "", nil
	}
	return href, nil
}

// DefaultList describes the user's "Default" saved list.
type DefaultList struct {
	URL   string
	Count int
}

// ParseSavedLists reads the saved-lists table and returns the "Default" list.
func ParseSavedLists(doc *goquery.Document, pageURL string) (DefaultList, error) {
	titles := doc.Find(`td[data-caption="Titles"]`).First()
	if titles.Length() == 0 {
		return DefaultList{}, &errors.ParseError{URL: pageURL, Reason: "saved lists table has no titles column"}
	}
	count, err := strconv.Atoi(selText(titles))
	if err != nil {
		return DefaultList{}, &errors.ParseError{URL: pageURL, Reason: "saved list title count is not a number", Err: err}
	}

	href, ok := FindLinkByText(doc.Selection, "Default")
	if !ok {
		return DefaultList{}, &errors.ParseError{URL: pageURL, Reason: `no link to the "Default" list`}
	}
	return DefaultList{URL: href, Count: count}, nil
}

// FindLinkByText returns the href of the first anchor whose text is exactly text.
func FindLinkByText(sel *goquery.Selection, text string) (string, bool) {
	var href string
	var found bool
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if selText(a) != text {
			return true
		}
		href, found = a.Attr("href")
		return false
	})
	return href, found
}

// ParseDocument wraps goquery's string parsing with the URL for error context.
func ParseDocument(html, url string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errors.ParseError{URL: url, Reason: fmt.Sprintf("invalid HTML (%d bytes)", len(html)), Err: err}
	}
	return doc, nil
}
