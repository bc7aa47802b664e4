package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// ErrDataFilesNotFound is returned by Load when the input file is missing.
var ErrDataFilesNotFound = stderrors.New("data files not found")

// Format names an input layout.
type Format string

const (
	FormatAuto Format = ""
	FormatTSV  Format = "tsv"
	FormatOSIS Format = "osis"
)

// ParseFormat validates a format name; the empty string and "auto" select
// detection by file extension.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatAuto, "auto":
		return FormatAuto, nil
	case FormatTSV:
		return FormatTSV, nil
	case FormatOSIS, "xml":
		return FormatOSIS, nil
	}
	return FormatAuto, &errors.ValidationError{Field: "format", Value: s, Message: "must be tsv, osis or auto"}
}

// DetectFormat picks a layout from the file name, ignoring compression
// suffixes. Anything that is not .xml or .osis is read as TSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(trimCompression(path))) {
	case ".xml", ".osis":
		return FormatOSIS
	}
	return FormatTSV
}

// Report counts what a reader did with its input.
type Report struct {
	// Lines is the number of candidate records seen (header excluded).
	Lines int `json:"lines"`
	// Parsed is the number of records kept.
	Parsed int `json:"parsed"`
	// Skipped is the number of candidates dropped as malformed.
	Skipped int `json:"skipped"`
	// BadVotes counts kept records whose vote field defaulted to 0.
	BadVotes int `json:"bad_votes"`
}

// Result is the output of a reader.
type Result struct {
	Records []xref.Record
	Report  Report
}

func (r *Result) skip(line int, reason string, args ...any) {
	r.Report.Skipped++
	logging.RecordSkipped(line, reason, args...)
}

// Load reads the dataset at path with the given layout.
func Load(ctx context.Context, path string, format Format, cat *canon.Catalog) (*Result, error) {
	if cat == nil {
		cat = canon.Default()
	}
	if format == FormatAuto {
		format = DetectFormat(path)
	}

	rc, err := Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "data file", ID: path, Err: ErrDataFilesNotFound}
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer rc.Close()

	var res *Result
	switch format {
	case FormatTSV:
		res, err = ReadTSV(ctx, rc, cat)
	case FormatOSIS:
		res, err = ReadOSIS(ctx, rc, cat)
	default:
		return nil, errors.NewUnsupported("input format", string(format))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return res, nil
}
