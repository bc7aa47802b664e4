// Package canon provides the compiled-in catalog of the 66 books of the
// Protestant canon and the lookups the cross-reference pipeline needs.
//
// The catalog is read-only reference data. Book ordinal (0..65) is the identity
// used for book-matrix indexing, and canon order is the sort key for chapter id
// assignment.
package canon

import (
	"fmt"
	"strconv"
)

// Testament identifies the Old or New Testament.
type Testament string

// Testament constants.
const (
	OT Testament = "OT"
	NT Testament = "NT"
)

// BookCount is the number of books in the catalog.
const BookCount = 66

// Book holds metadata for a single book of the Bible.
type Book struct {
	Name      string    `json:"name"`
	Abbrev    string    `json:"abbrev"`
	Chapters  int       `json:"chapters"`
	Testament Testament `json:"testament"`
}

// books contains all canonical Bible books in canonical order.
var books = [BookCount]Book{
	// ── Old Testament ──────────────────────────────────────────────────────────
	{"Genesis", "Gen", 50, OT},
	{"Exodus", "Exod", 40, OT},
	{"Leviticus", "Lev", 27, OT},
	{"Numbers", "Num", 36, OT},
	{"Deuteronomy", "Deut", 34, OT},
	{"Joshua", "Josh", 24, OT},
	{"Judges", "Judg", 21, OT},
	{"Ruth", "Ruth", 4, OT},
	{"1 Samuel", "1Sam", 31, OT},
	{"2 Samuel", "2Sam", 24, OT},
	{"1 Kings", "1Kgs", 22, OT},
	{"2 Kings", "2Kgs", 25, OT},
	{"1 Chronicles", "1Chr", 29, OT},
	{"2 Chronicles", "2Chr", 36, OT},
	{"Ezra", "Ezra", 10, OT},
	{"Nehemiah", "Neh", 13, OT},
	{"Esther", "Esth", 10, OT},
	{"Job", "Job", 42, OT},
	{"Psalms", "Ps", 150, OT},
	{"Proverbs", "Prov", 31, OT},
	{"Ecclesiastes", "Eccl", 12, OT},
	{"Song of Solomon", "Song", 8, OT},
	{"Isaiah", "Isa", 66, OT},
	{"Jeremiah", "Jer", 52, OT},
	{"Lamentations", "Lam", 5, OT},
	{"Ezekiel", "Ezek", 48, OT},
	{"Daniel", "Dan", 12, OT},
	{"Hosea", "Hos", 14, OT},
	{"Joel", "Joel", 3, OT},
	{"Amos", "Amos", 9, OT},
	{"Obadiah", "Obad", 1, OT},
	{"Jonah", "Jonah", 4, OT},
	{"Micah", "Mic", 7, OT},
	{"Nahum", "Nah", 3, OT},
	{"Habakkuk", "Hab", 3, OT},
	{"Zephaniah", "Zeph", 3, OT},
	{"Haggai", "Hag", 2, OT},
	{"Zechariah", "Zech", 14, OT},
	{"Malachi", "Mal", 4, OT},
	// ── New Testament ─────────────────────────────────────────────────────────
	{"Matthew", "Matt", 28, NT},
	{"Mark", "Mark", 16, NT},
	{"Luke", "Luke", 24, NT},
	{"John", "John", 21, NT},
	{"Acts", "Acts", 28, NT},
	{"Romans", "Rom", 16, NT},
	{"1 Corinthians", "1Cor", 16, NT},
	{"2 Corinthians", "2Cor", 13, NT},
	{"Galatians", "Gal", 6, NT},
	{"Ephesians", "Eph", 6, NT},
	{"Philippians", "Phil", 4, NT},
	{"Colossians", "Col", 4, NT},
	{"1 Thessalonians", "1Thess", 5, NT},
	{"2 Thessalonians", "2Thess", 3, NT},
	{"1 Timothy", "1Tim", 6, NT},
	{"2 Timothy", "2Tim", 4, NT},
	{"Titus", "Titus", 3, NT},
	{"Philemon", "Phlm", 1, NT},
	{"Hebrews", "Heb", 13, NT},
	{"James", "Jas", 5, NT},
	{"1 Peter", "1Pet", 5, NT},
	{"2 Peter", "2Pet", 3, NT},
	{"1 John", "1John", 5, NT},
	{"2 John", "2John", 1, NT},
	{"3 John", "3John", 1, NT},
	{"Jude", "Jude", 1, NT},
	{"Revelation", "Rev", 22, NT},
}

// Catalog is an immutable view over a book table with derived lookup maps.
type Catalog struct {
	books    []Book
	byAbbrev map[string]int
	byName   map[string]int
	chapters int
}

var defaultCatalog = New(books[:])

// Default returns the process-wide catalog of the 66 canonical books.
func Default() *Catalog {
	return defaultCatalog
}

// New builds a catalog over the given books in the given order.
// The slice is copied; later changes to it do not affect the catalog.
func New(list []Book) *Catalog {
	c := &Catalog{
		books:    append([]Book(nil), list...),
		byAbbrev: make(map[string]int, len(list)),
		byName:   make(map[string]int, len(list)),
	}
	for i, b := range c.books {
		c.byAbbrev[b.Abbrev] = i
		c.byName[b.Name] = i
		c.chapters += b.Chapters
	}
	return c
}

// Len returns the number of books.
func (c *Catalog) Len() int {
	return len(c.books)
}

// TotalChapters returns the number of chapters across every book.
func (c *Catalog) TotalChapters() int {
	return c.chapters
}

// Books returns a copy of the book table in canon order.
func (c *Catalog) Books() []Book {
	return append([]Book(nil), c.books...)
}

// Book returns the book at ordinal index i.
func (c *Catalog) Book(i int) (Book, bool) {
	if i < 0 || i >= len(c.books) {
		return Book{}, false
	}
	return c.books[i], true
}

// ByAbbreviation resolves an OSIS-style abbreviation such as "Gen" or "1John".
// The lookup is exact and case-sensitive. A miss is not an error: callers drop
// the record that carried the abbreviation.
func (c *Catalog) ByAbbreviation(abbr string) (Book, int, bool) {
	i, ok := c.byAbbrev[abbr]
	if !ok {
		return Book{}, -1, false
	}
	return c.books[i], i, true
}

// OrdinalIndex returns the canon-order index of the book with the given full name.
func (c *Catalog) OrdinalIndex(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// EachChapter calls fn for every (book, chapter) pair in canon order, chapters
// ascending within a book. Iteration stops early if fn returns false.
func (c *Catalog) EachChapter(fn func(bookIndex int, book Book, chapter int) bool) {
	for i, b := range c.books {
		for ch := 1; ch <= b.Chapters; ch++ {
			if !fn(i, b, ch) {
				return
			}
		}
	}
}

// ChapterKey is the string identity of a chapter before a numeric id exists.
type ChapterKey struct {
	Book    string
	Chapter int
}

// String renders the key as "{Book} {Chapter}", e.g. "Song of Solomon 2".
func (k ChapterKey) String() string {
	return k.Book + " " + strconv.Itoa(k.Chapter)
}

// GoString is used by %#v in test failures.
func (k ChapterKey) GoString() string {
	return fmt.Sprintf("canon.ChapterKey{%q, %d}", k.Book, k.Chapter)
}
