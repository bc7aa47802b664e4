package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
)

var (
	// local-name() keeps the selectors independent of the OSIS namespace.
	crossRefNotes = xpath.MustCompile(`//*[local-name()='note'][@type='crossReference']`)
	noteTargets   = xpath.MustCompile(`.//*[local-name()='reference'][@osisRef]`)
)

// ReadOSIS reads crossReference notes from an OSIS document.
//
// A note's source verse is its osisRef (or annotateRef) attribute, falling
// back to the osisID of the enclosing verse element. Each nested reference
// element yields one record with a vote of 1. Candidates are counted per
// (note, reference) pair.
func ReadOSIS(ctx context.Context, r io.Reader, cat *canon.Catalog) (*Result, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing OSIS: %w", err)
	}

	parser := xref.NewParser(cat)
	res := &Result{}
	candidate := 0

	for i, note := range xmlquery.QuerySelectorAll(doc, crossRefNotes) {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		targets := xmlquery.QuerySelectorAll(note, noteTargets)
		srcToken := noteSource(note)
		from, srcErr := parser.Parse(srcToken)

		for _, ref := range targets {
			candidate++
			res.Report.Lines++
			if srcErr != nil {
				res.skip(candidate, "unparseable source reference", "token", srcToken)
				continue
			}
			dstToken := osisToken(ref.SelectAttr("osisRef"))
			to, err := parser.Parse(dstToken)
			if err != nil {
				res.skip(candidate, "unparseable target reference", "token", dstToken)
				continue
			}
			res.Records = append(res.Records, xref.Record{From: from, To: to, Votes: 1})
			res.Report.Parsed++
		}
	}
	return res, nil
}

func noteSource(note *xmlquery.Node) string {
	for _, attr := range []string{"osisRef", "annotateRef"} {
		if v := note.SelectAttr(attr); v != "" {
			return osisToken(v)
		}
	}
	for n := note.Parent; n != nil; n = n.Parent {
		if n.Type == xmlquery.ElementNode && n.Data == "verse" {
			if v := n.SelectAttr("osisID"); v != "" {
				return osisToken(v)
			}
		}
	}
	return ""
}

// osisToken reduces an OSIS reference attribute to a single verse token:
// the first of a space-separated list, without a work prefix such as "Bible:".
func osisToken(v string) string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}
	tok := fields[0]
	if i := strings.IndexByte(tok, ':'); i >= 0 {
		tok = tok[i+1:]
	}
	return tok
}
