package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/xrefgraph/core/aggregate"
	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName == "" || info.DriverType == "" || info.Package == "" {
		t.Errorf("incomplete driver info: %+v", info)
	}
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}

	t.Logf("SQLite driver: %s (%s) from %s", info.DriverName, info.DriverType, info.Package)
}

func testArtifact(t *testing.T) *graph.Artifact {
	t.Helper()
	var records []xref.Record
	for _, row := range [][3]any{
		{"Gen.1.1", "John.3.16", 5},
		{"Gen.1.2", "John.3.16", 3},
		{"Gen.1.1", "Gen.1.2", 10},
		{"Ps.22.1", "Matt.27.46", 12},
		{"Isa.53.5", "1Pet.2.24", -8},
	} {
		from, err := xref.ParseToken(row[0].(string))
		if err != nil {
			t.Fatal(err)
		}
		to, err := xref.ParseToken(row[1].(string))
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, xref.Record{From: from, To: to, Votes: row[2].(int)})
	}
	a, _ := graph.Build(canon.Default(), aggregate.Chapters(records), aggregate.Books(records), len(records))
	return a
}

func TestWriteGraph(t *testing.T) {
	ctx := context.Background()
	a := testArtifact(t)
	path := filepath.Join(t.TempDir(), "graph.db")

	counts, err := Export(ctx, path, a)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := Counts{Books: 66, Chapters: 1189, Connections: 3, BookLinks: 3}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}

	db, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer db.Close()

	got, err := ReadCounts(ctx, db)
	if err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}
	if got != want {
		t.Errorf("ReadCounts = %+v, want %+v", got, want)
	}

	var weight int
	err = db.QueryRowContext(ctx,
		`SELECT weight FROM book_links WHERE from_book = ? AND to_book = ?`, 0, 42).Scan(&weight)
	if err != nil || weight != 8 {
		t.Errorf("book_links Genesis->John = %d, %v", weight, err)
	}

	var refs int
	if err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'total_verse_refs'`).Scan(&refs); err != nil || refs != 5 {
		t.Errorf("total_verse_refs = %d, %v", refs, err)
	}
}

func TestTopConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	if _, err := Export(ctx, path, testArtifact(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	links, err := TopConnections(ctx, db, 2)
	if err != nil {
		t.Fatalf("TopConnections: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].SourceLabel != "Psalms 22" || links[0].TargetLabel != "Matthew 27" || links[0].Weight != 12 {
		t.Errorf("first link = %+v", links[0])
	}
	if links[1].SourceLabel != "Genesis 1" || links[1].Weight != 8 {
		t.Errorf("second link = %+v", links[1])
	}
}

func TestWriteGraphReplaces(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	a := testArtifact(t)
	if _, err := Export(ctx, path, a); err != nil {
		t.Fatalf("first Export: %v", err)
	}

	empty, _ := graph.Build(canon.Default(), nil, nil, 0)
	counts, err := Export(ctx, path, empty)
	if err != nil {
		t.Fatalf("second Export: %v", err)
	}
	if counts.Connections != 0 || counts.BookLinks != 0 || counts.Chapters != 1189 {
		t.Errorf("counts after replace = %+v", counts)
	}
}
