package source

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// cancelCheckInterval is how many lines are read between context checks.
const cancelCheckInterval = 4096

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// ReadTSV reads the tab-separated cross-reference layout from r.
//
// The first line is a header and is discarded. Every other line is trimmed and
// split on tabs; lines with fewer than three fields, an unparseable verse token
// or more than maxLineSize bytes are skipped. A vote field that is not an
// integer counts as 0 and the record is kept.
func ReadTSV(ctx context.Context, r io.Reader, cat *canon.Catalog) (*Result, error) {
	parser := xref.NewParser(cat)
	res := &Result{}

	br := bufio.NewReader(r)
	var buf []byte

	lineNo := 0
	for {
		line, tooLong, err := readLine(br, buf[:0])
		if err != nil && err != io.EOF {
			return nil, err
		}
		buf = line

		if len(line) > 0 || tooLong {
			lineNo++
			if lineNo%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if lineNo > 1 {
				res.Report.Lines++
				if tooLong {
					res.skip(lineNo, "line too long")
				} else {
					res.addLine(parser, lineNo, string(line))
				}
			}
		}

		if err == io.EOF {
			return res, nil
		}
	}
}

// addLine parses one data line into a record or counts it as skipped.
func (r *Result) addLine(parser *xref.Parser, lineNo int, line string) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) < 3 {
		r.skip(lineNo, "too few fields")
		return
	}

	from, err := parser.Parse(parts[0])
	if err != nil {
		r.skip(lineNo, "unparseable source reference", "token", parts[0])
		return
	}
	to, err := parser.Parse(parts[1])
	if err != nil {
		r.skip(lineNo, "unparseable target reference", "token", parts[1])
		return
	}

	votes, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		votes = 0
		r.Report.BadVotes++
		logging.Debug("votes_defaulted", "line", lineNo, "votes", parts[2])
	}

	r.Records = append(r.Records, xref.Record{From: from, To: to, Votes: votes})
	r.Report.Parsed++
}

// readLine appends the next line from br, newline included, to buf. A line
// longer than maxLineSize is consumed through its newline and reported with
// tooLong set and an empty result.
func readLine(br *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	for {
		frag, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(frag) > maxLineSize {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, frag...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return buf, tooLong, err
	}
}
