package crawl

import (
	"github.com/lepinkainen/librarylookup/internal/catalog"
	"github.com/lepinkainen/librarylookup/internal/cmdutil"
	"github.com/lepinkainen/librarylookup/internal/datastore"
)

type bookRow struct {
	ID              int
	Title           string
	Author          *string
	DisplayAuthor   string
	PublicationYear *string
	Format          *string
	TintColor       *string
	ImageURL        *string
	ImagePath       *string
	RecordDetails   catalog.RecordDetails
	GeneratedAt     string
}

type availabilityRow struct {
	BookID     int
	Copy       int
	Location   string
	Collection string
	Status     string
	CallNumber string
}

var bookRowOptions = cmdutil.StructToMapOptions{
	JSONFields: map[string]bool{"RecordDetails": true},
}

func bookRows(d Dataset) []bookRow {
	rows := make([]bookRow, len(d.Books))
	for i, b := range d.Books {
		rows[i] = bookRow{
			ID:              i,
			Title:           b.Title,
			Author:          b.Author,
			DisplayAuthor:   b.DisplayAuthor,
			PublicationYear: b.PublicationYear,
			Format:          b.Format,
			TintColor:       b.TintColor,
			RecordDetails:   b.RecordDetails,
			GeneratedAt:     d.GeneratedAt,
		}
		if b.Image != nil {
			rows[i].ImageURL = &b.Image.URL
			rows[i].ImagePath = b.Image.Path
		}
	}
	return rows
}

func availabilityRows(d Dataset) []availabilityRow {
	var rows []availabilityRow
	for i, b := range d.Books {
		for n, av := range b.Availability {
			rows = append(rows, availabilityRow{
				BookID:     i,
				Copy:       n,
				Location:   av.Location,
				Collection: av.Collection,
				Status:     av.Status,
				CallNumber: av.CallNumber,
			})
		}
	}
	return rows
}

// exportDataset writes the dataset to the configured datastore, if any.
func exportDataset(d Dataset) error {
	err := cmdutil.WriteToDatastore(bookRows(d), datastore.BooksSchema, datastore.BooksTable, "books",
		func(r bookRow) map[string]any { return cmdutil.StructToMap(r, bookRowOptions) })
	if err != nil {
		return err
	}
	return cmdutil.WriteToDatastore(availabilityRows(d), datastore.AvailabilitySchema, datastore.AvailabilityTable, "availability",
		func(r availabilityRow) map[string]any { return cmdutil.StructToMap(r, cmdutil.StructToMapOptions{}) })
}
