package xref

// Record is one verse-to-verse cross-reference with its vote count.
// Votes may be negative in the source data.
type Record struct {
	From  VerseRef `json:"from"`
	To    VerseRef `json:"to"`
	Votes int      `json:"votes"`
}

// Weight returns the absolute vote count, the contribution of this record to
// any aggregate.
func (r Record) Weight() int {
	if r.Votes < 0 {
		return -r.Votes
	}
	return r.Votes
}

// SameChapter reports whether both endpoints fall in the same chapter.
func (r Record) SameChapter() bool {
	return r.From.ChapterKey() == r.To.ChapterKey()
}

// SameBook reports whether both endpoints fall in the same book.
func (r Record) SameBook() bool {
	return r.From.BookIndex == r.To.BookIndex
}
