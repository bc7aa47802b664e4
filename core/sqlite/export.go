package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FocuswithJustin/xrefgraph/core/graph"
)

const schema = `
DROP TABLE IF EXISTS metadata;
DROP TABLE IF EXISTS books;
DROP TABLE IF EXISTS chapters;
DROP TABLE IF EXISTS connections;
DROP TABLE IF EXISTS book_links;

CREATE TABLE metadata (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE books (
	idx       INTEGER PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	abbrev    TEXT NOT NULL UNIQUE,
	chapters  INTEGER NOT NULL,
	testament TEXT NOT NULL
);

CREATE TABLE chapters (
	id         INTEGER PRIMARY KEY,
	label      TEXT NOT NULL,
	book       TEXT NOT NULL,
	chapter    INTEGER NOT NULL,
	book_index INTEGER NOT NULL REFERENCES books(idx),
	testament  TEXT NOT NULL
);

CREATE TABLE connections (
	source INTEGER NOT NULL REFERENCES chapters(id),
	target INTEGER NOT NULL REFERENCES chapters(id),
	weight INTEGER NOT NULL,
	PRIMARY KEY (source, target)
);
CREATE INDEX idx_connections_weight ON connections(weight DESC);
CREATE INDEX idx_connections_target ON connections(target);

CREATE TABLE book_links (
	from_book INTEGER NOT NULL REFERENCES books(idx),
	to_book   INTEGER NOT NULL REFERENCES books(idx),
	weight    INTEGER NOT NULL,
	PRIMARY KEY (from_book, to_book)
);
`

// Counts holds the row count of each exported table.
type Counts struct {
	Books       int
	Chapters    int
	Connections int
	BookLinks   int
}

// WriteGraph replaces the graph tables in db with the contents of a, in one
// transaction. Only non-zero book matrix cells are stored in book_links.
func WriteGraph(ctx context.Context, db *sql.DB, a *graph.Artifact) (Counts, error) {
	var counts Counts

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return counts, fmt.Errorf("create schema: %w", err)
	}

	meta := []struct {
		key   string
		value int
	}{
		{"total_books", a.Metadata.TotalBooks},
		{"total_chapters", a.Metadata.TotalChapters},
		{"total_connections", a.Metadata.TotalConnections},
		{"total_verse_refs", a.Metadata.TotalVerseRefs},
	}
	for _, m := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, m.key, m.value); err != nil {
			return counts, fmt.Errorf("insert metadata %s: %w", m.key, err)
		}
	}

	err = insertAll(ctx, tx, `INSERT INTO books (idx, name, abbrev, chapters, testament) VALUES (?, ?, ?, ?, ?)`,
		len(a.Books), func(i int) []any {
			b := a.Books[i]
			return []any{i, b.Name, b.Abbrev, b.Chapters, string(b.Testament)}
		})
	if err != nil {
		return counts, fmt.Errorf("insert books: %w", err)
	}
	counts.Books = len(a.Books)

	err = insertAll(ctx, tx, `INSERT INTO chapters (id, label, book, chapter, book_index, testament) VALUES (?, ?, ?, ?, ?, ?)`,
		len(a.Chapters), func(i int) []any {
			n := a.Chapters[i]
			return []any{n.ID, n.Label, n.Book, n.Chapter, n.BookIndex, string(n.Testament)}
		})
	if err != nil {
		return counts, fmt.Errorf("insert chapters: %w", err)
	}
	counts.Chapters = len(a.Chapters)

	err = insertAll(ctx, tx, `INSERT INTO connections (source, target, weight) VALUES (?, ?, ?)`,
		len(a.Connections), func(i int) []any {
			c := a.Connections[i]
			return []any{c.Source, c.Target, c.Weight}
		})
	if err != nil {
		return counts, fmt.Errorf("insert connections: %w", err)
	}
	counts.Connections = len(a.Connections)

	if a.BookMatrix != nil {
		cells := a.BookMatrix.Cells()
		err = insertAll(ctx, tx, `INSERT INTO book_links (from_book, to_book, weight) VALUES (?, ?, ?)`,
			len(cells), func(i int) []any {
				return []any{cells[i].From, cells[i].To, cells[i].Weight}
			})
		if err != nil {
			return counts, fmt.Errorf("insert book links: %w", err)
		}
		counts.BookLinks = len(cells)
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, row func(int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// Link is a connection joined with its chapter labels.
type Link struct {
	Source      int    `json:"source"`
	Target      int    `json:"target"`
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
	Weight      int    `json:"weight"`
}

// TopConnections returns the n heaviest connections, ties ordered by
// (source, target).
func TopConnections(ctx context.Context, db *sql.DB, n int) ([]Link, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.source, c.target, s.label, t.label, c.weight
		FROM connections c
		JOIN chapters s ON s.id = c.source
		JOIN chapters t ON t.id = c.target
		ORDER BY c.weight DESC, c.source, c.target
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top connections: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.Source, &l.Target, &l.SourceLabel, &l.TargetLabel, &l.Weight); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ReadCounts returns the row counts of the exported tables.
func ReadCounts(ctx context.Context, db *sql.DB) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"books", &c.Books},
		{"chapters", &c.Chapters},
		{"connections", &c.Connections},
		{"book_links", &c.BookLinks},
	}
	for _, t := range targets {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return c, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Export opens (or creates) the database at path and writes a into it.
func Export(ctx context.Context, path string, a *graph.Artifact) (Counts, error) {
	db, err := Open(path)
	if err != nil {
		return Counts{}, err
	}
	defer db.Close()
	return WriteGraph(ctx, db, a)
}
