// Package xref parses verse tokens and models verse-to-verse cross-reference records.
package xref

import (
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/errors"
)

// tokenFormat names the format in ParseErrors produced by this package.
const tokenFormat = "osis-token"

// VerseRef is a resolved verse reference. It is only produced by Parser.
type VerseRef struct {
	// Book is the full book name (e.g., "Genesis", "1 John").
	Book string `json:"book"`

	// Abbrev is the abbreviation as it appeared in the token (e.g., "Gen").
	Abbrev string `json:"book_abbrev"`

	// Chapter is the chapter number as written; it is not range-checked.
	Chapter int `json:"chapter"`

	// Verse is the verse number as written; it is not range-checked.
	Verse int `json:"verse"`

	// BookIndex is the canon-order ordinal of Book (0..65).
	BookIndex int `json:"book_index"`

	// Testament is OT or NT.
	Testament canon.Testament `json:"testament"`

	// FullRef is a human-readable form for diagnostics, e.g. "Genesis 1:1".
	FullRef string `json:"full_ref"`
}

// ChapterKey returns the chapter grouping key of the reference.
func (r VerseRef) ChapterKey() canon.ChapterKey {
	return canon.ChapterKey{Book: r.Book, Chapter: r.Chapter}
}

// String returns the OSIS form of the reference, e.g. "Gen.1.1".
func (r VerseRef) String() string {
	var sb strings.Builder
	sb.WriteString(r.Abbrev)
	sb.WriteString(".")
	sb.WriteString(strconv.Itoa(r.Chapter))
	sb.WriteString(".")
	sb.WriteString(strconv.Itoa(r.Verse))
	return sb.String()
}

// tokenGrammar is the participle grammar for dotted verse tokens.
// Examples: "Gen.1.1", "1John.3.16", "Ps.23.1.extra"
//
// Parts after the verse are accepted and ignored.
//
//nolint:govet // participle grammar tags are not standard struct tags
type tokenGrammar struct {
	Abbrev  string   `@Ident`
	Chapter string   `"." @Int`
	Verse   string   `"." @Int`
	Extra   []string `( "." @( Ident | Int )? )*`
}

// tokenLexer defines the lexer for verse tokens.
// Ident is tried before Int so that "1Sam" lexes as one identifier and a
// chapter such as "1a" lexes as an Ident and is rejected by the grammar.
var tokenLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[0-9]*[A-Za-z][A-Za-z0-9]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Dot", Pattern: `\.`},
})

// tokenParser is the participle parser for verse tokens.
var tokenParser = participle.MustBuild[tokenGrammar](
	participle.Lexer(tokenLexer),
)

// Parser resolves raw tokens against a book catalog.
type Parser struct {
	catalog *canon.Catalog
}

// NewParser returns a parser that resolves abbreviations with cat.
// A nil catalog selects canon.Default().
func NewParser(cat *canon.Catalog) *Parser {
	if cat == nil {
		cat = canon.Default()
	}
	return &Parser{catalog: cat}
}

// Catalog returns the catalog the parser resolves against.
func (p *Parser) Catalog() *canon.Catalog {
	return p.catalog
}

// Parse converts a raw token such as "Gen.1.1" or "Ps.23.1-Ps.23.2" into a
// VerseRef. For a range only the start endpoint is kept.
//
// Parsing is total: every input yields either a VerseRef or a *errors.ParseError
// (which matches errors.ErrInvalidInput). Callers drop the record on error.
func (p *Parser) Parse(token string) (VerseRef, error) {
	start, _, _ := strings.Cut(token, "-")
	if start == "" {
		return VerseRef{}, errors.NewParse(tokenFormat, token, "empty reference")
	}

	parsed, err := tokenParser.ParseString("", start)
	if err != nil {
		return VerseRef{}, errors.NewParse(tokenFormat, token, "expected Book.Chapter.Verse: "+err.Error())
	}

	book, idx, ok := p.catalog.ByAbbreviation(parsed.Abbrev)
	if !ok {
		return VerseRef{}, errors.NewParse(tokenFormat, token, "unknown book abbreviation "+strconv.Quote(parsed.Abbrev))
	}

	chapter, verse := number(parsed.Chapter), number(parsed.Verse)
	return VerseRef{
		Book:      book.Name,
		Abbrev:    parsed.Abbrev,
		Chapter:   chapter,
		Verse:     verse,
		BookIndex: idx,
		Testament: book.Testament,
		FullRef:   book.Name + " " + strconv.Itoa(chapter) + ":" + strconv.Itoa(verse),
	}, nil
}

// number converts a lexed Int. Values too large for int saturate at
// math.MaxInt, which no canon chapter reaches, so the record is kept and only
// its chapter edge is dropped.
func number(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt
	}
	return n
}

var defaultParser = NewParser(nil)

// ParseToken parses a token against the default catalog.
func ParseToken(token string) (VerseRef, error) {
	return defaultParser.Parse(token)
}
