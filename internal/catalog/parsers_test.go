package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := ParseDocument(string(data), "https://library.test/"+name)
	require.NoError(t, err)
	return doc
}

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseAvailabilityKeepsOnlyAuthorityBranches(t *testing.T) {
	doc := loadFixture(t, "availability.html")

	got, err := ParseAvailability(doc, "https://library.test/avail", DefaultAuthority)
	require.NoError(t, err)

	assert.Equal(t, []AvailabilityRecord{
		{
			Location:   "St Albans Library",
			Collection: "Fiction",
			Status:     "Onloan - Due: 02 Jun 2024",
			CallNumber: "Science fiction paperback",
		},
		{
			Location:   "Stevenage Central Library",
			Collection: "Fiction",
			Status:     "Available",
			CallNumber: "Science fiction paperback",
		},
	}, got)
}

func TestParseAvailabilityOtherAuthority(t *testing.T) {
	doc := loadFixture(t, "availability.html")

	got, err := ParseAvailability(doc, "", "Luton Culture")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Luton Central Library", got[0].Location)
}

func TestParseAvailabilityMissingCellsAreEmpty(t *testing.T) {
	doc := parseHTML(t, `<table><tbody><tr>
		<td data-caption="Location">Harpenden Library (Hertfordshire County Council)</td>
	</tr></tbody></table>`)

	got, err := ParseAvailability(doc, "", DefaultAuthority)
	require.NoError(t, err)
	assert.Equal(t, []AvailabilityRecord{{Location: "Harpenden Library"}}, got)
}

func TestParseAvailabilityEmptyTable(t *testing.T) {
	doc := parseHTML(t, `<table><tbody></tbody></table>`)

	got, err := ParseAvailability(doc, "", DefaultAuthority)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseAvailabilityWithoutTableBody(t *testing.T) {
	doc := parseHTML(t, `<p>Session must be logged in to display this page</p>`)

	_, err := ParseAvailability(doc, "https://library.test/avail", DefaultAuthority)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestParseRecordDetails(t *testing.T) {
	doc := loadFixture(t, "record_details.html")

	details, err := ParseRecordDetails(doc, "https://library.test/full/1")
	require.NoError(t, err)

	isbn := details["ISBN"]
	assert.True(t, isbn.IsList(), "repeated non-allowlisted field stays a list")
	assert.Equal(t, []string{"9781398502352 (pbk)", "1398502359 (pbk)"}, isbn.Values())

	imprint := details["Imprint"]
	assert.False(t, imprint.IsList(), "single-valued field collapses to a scalar")
	assert.Equal(t, "London : Simon & Schuster, 2022.", imprint.String())

	assert.Equal(t, "A Cuban girl's guide to tea and tomorrow / Laura Taylor Namey.", details["Main title"].String())

	subject := details["Subject"]
	assert.True(t, subject.IsList(), "allowlisted field is a list even with one value")
	assert.Equal(t, []string{"Young adult fiction"}, subject.Values())
	assert.True(t, details["Author"].IsList())

	summary, ok := details[SummaryKey]
	require.True(t, ok)
	assert.Equal(t, []string{"Lila Reyes had a plan.", "Then her summer in England happened."}, summary.Values())
}

func TestParseRecordDetailsJSON(t *testing.T) {
	doc := loadFixture(t, "record_details.html")

	details, err := ParseRecordDetails(doc, "https://library.test/full/1")
	require.NoError(t, err)

	data, err := json.Marshal(details)
	require.NoError(t, err)

	testutil.NewGoldenHelper(t, filepath.Join("testdata", "golden")).AssertGoldenJSON("record_details.json", data)
}

func TestParseRecordDetailsSummaryAlwaysPresent(t *testing.T) {
	doc := parseHTML(t, `<div id="tabRECDETAILS-body">
		<div class="row"><div class="fd-caption"><span>Imprint:</span></div><span class="d-block">Leeds, 2020.</span></div>
	</div>`)

	details, err := ParseRecordDetails(doc, "")
	require.NoError(t, err)

	summary, ok := details[SummaryKey]
	require.True(t, ok)
	assert.True(t, summary.IsList())
	assert.Empty(t, summary.Values())

	data, err := json.Marshal(details)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Imprint":"Leeds, 2020.","Summary":[]}`, string(data))
}

func TestParseRecordDetailsErrors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{name: "no details tab", html: `<div id="somethingElse"></div>`},
		{name: "row without caption", html: `<div id="tabRECDETAILS-body"><div class="row"><span class="d-block">x</span></div></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecordDetails(parseHTML(t, tt.html), "https://library.test/full/1")
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
			assert.Contains(t, err.Error(), "https://library.test/full/1")
		})
	}
}

func TestDetailValueJSON(t *testing.T) {
	details := RecordDetails{
		"ISBN":    List("1", "2"),
		"Imprint": Scalar("London"),
	}

	data, err := json.Marshal(details)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ISBN":["1","2"],"Imprint":"London"}`, string(data))

	var back RecordDetails
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, details, back)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		details RecordDetails
		want    *string
	}{
		{name: "paperback", details: RecordDetails{"ISBN": Scalar("9780241988862 (pbk)")}, want: ptr("paperback")},
		{name: "hardback in list", details: RecordDetails{"ISBN": List("9780571364886 (hbk)", "0571364880")}, want: ptr("hardback")},
		{name: "no marker", details: RecordDetails{"ISBN": Scalar("9780241988862")}, want: nil},
		{name: "no isbn", details: RecordDetails{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.details))
		})
	}
}

func TestParseFragment(t *testing.T) {
	doc := loadFixture(t, "list_page.html")
	cards := doc.Find(ItemSelector)
	require.Equal(t, 2, cards.Length())

	f, err := ParseFragment(cards.First(), "https://library.test/list/1", 7)
	require.NoError(t, err)

	assert.Equal(t, "The Heron's Cry", f.Title)
	assert.Equal(t, "/cgi-bin/spydus.exe/FULL/WPAC/BIBENQ/1/101,1", f.DetailURL)
	assert.Equal(t, "https://www.bibdsl.co.uk/xmla/image-service.asp?ISBN=9780008384395&SIZE=s&DBM=B", f.ImageURL)
	assert.Equal(t, []string{"Cleeves, Ann", "2021"}, f.RecDetails)
	assert.Equal(t, "/cgi-bin/spydus.exe/XHLD/WPAC/BIBENQ/101?RECDISP=REC", f.AvailabilityURL)
	assert.Equal(t, "https://library.test/list/1", f.PageURL)
	assert.Equal(t, 7, f.Position)
	assert.Contains(t, f.RawHTML, "<fieldset")
}

func TestParseFragmentMissingPieces(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		reason string
	}{
		{
			name:   "no title",
			html:   `<fieldset><img longdesc="x"></fieldset>`,
			reason: "no title",
		},
		{
			name:   "title without link",
			html:   `<fieldset><h2 class="card-title">T</h2></fieldset>`,
			reason: "title has no link",
		},
		{
			name:   "no image",
			html:   `<fieldset><h2 class="card-title"><a href="/x">T</a></h2></fieldset>`,
			reason: "no cover image",
		},
		{
			name:   "no recdetails",
			html:   `<fieldset><h2 class="card-title"><a href="/x">T</a></h2><img longdesc="i"></fieldset>`,
			reason: "author/year",
		},
		{
			name:   "no availability link",
			html:   `<fieldset><h2 class="card-title"><a href="/x">T</a></h2><img longdesc="i"><div class="recdetails"></div></fieldset>`,
			reason: "availability link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseHTML(t, tt.html)
			_, err := ParseFragment(doc.Find("fieldset").First(), "https://library.test/list/3", 0)
			require.Error(t, err)

			var parseErr *errors.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Reason, tt.reason)
			assert.Contains(t, parseErr.Fragment, "<fieldset>")
			assert.Equal(t, "https://library.test/list/3", parseErr.URL)
		})
	}
}

func TestNextPageURL(t *testing.T) {
	t.Run("has next", func(t *testing.T) {
		next, err := NextPageURL(loadFixture(t, "list_page.html"), "")
		require.NoError(t, err)
		assert.Equal(t, "/cgi-bin/spydus.exe/PGE/WPAC/BIBENQ/2?QRY=LIST", next)
	})

	t.Run("last page", func(t *testing.T) {
		next, err := NextPageURL(loadFixture(t, "list_last_page.html"), "")
		require.NoError(t, err)
		assert.Empty(t, next)
	})

	t.Run("no pager", func(t *testing.T) {
		_, err := NextPageURL(parseHTML(t, `<div id="result-content-list"></div>`), "https://library.test/list")
		require.Error(t, err)
		assert.True(t, errors.IsParseError(err))
	})

	t.Run("pager without next item", func(t *testing.T) {
		_, err := NextPageURL(parseHTML(t, `<nav class="result-pages-prvnxt"><ul><li class="prv"></li></ul></nav>`), "")
		require.Error(t, err)
		assert.True(t, errors.IsParseError(err))
	})
}

func TestParseSavedLists(t *testing.T) {
	list, err := ParseSavedLists(loadFixture(t, "saved_lists.html"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultList{URL: "/cgi-bin/spydus.exe/MSGTRN/WPAC/SAVEDLIST?LSTID=1", Count: 42}, list)

	_, err = ParseSavedLists(parseHTML(t, `<td data-caption="Titles">many</td>`), "")
	assert.True(t, errors.IsParseError(err))
}

func TestAvailableBranches(t *testing.T) {
	entries := []CatalogEntry{
		{Availability: []AvailabilityRecord{
			{Location: "Stevenage Central Library", Status: "Available"},
			{Location: "St Albans Library", Status: "Onloan - Due: 02 Jun 2024"},
		}},
		{Availability: []AvailabilityRecord{
			{Location: "Hitchin Library", Status: "Available"},
			{Location: "Stevenage Central Library", Status: "Available"},
		}},
		{},
	}

	assert.Equal(t, []string{"Hitchin Library", "Stevenage Central Library"}, AvailableBranches(entries))
	assert.Equal(t, []string{}, AvailableBranches(nil))
}
