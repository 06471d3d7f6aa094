package datastore

// Table names of the exported dataset.
const (
	BooksTable        = "books"
	AvailabilityTable = "availability"
)

// BooksSchema recreates the books table. Each export is a full snapshot.
const BooksSchema = `
DROP TABLE IF EXISTS books;
CREATE TABLE books (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT,
	display_author TEXT,
	publication_year TEXT,
	format TEXT,
	tint_color TEXT,
	image_url TEXT,
	image_path TEXT,
	record_details TEXT,
	generated_at TEXT
);
`

// AvailabilitySchema recreates the availability table, one row per holding.
const AvailabilitySchema = `
DROP TABLE IF EXISTS availability;
CREATE TABLE availability (
	book_id INTEGER NOT NULL,
	copy INTEGER NOT NULL,
	location TEXT NOT NULL,
	collection TEXT,
	status TEXT,
	call_number TEXT,
	PRIMARY KEY (book_id, copy)
);

CREATE INDEX idx_availability_location ON availability(location);
`
