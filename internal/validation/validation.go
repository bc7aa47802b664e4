// Package validation checks file names and paths that reach the pipeline from
// the command line or the artifact API, and sniffs dataset files before they
// are read.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on user-supplied names.
const (
	MaxNameLength = 255
	MaxPathLength = 4096
)

// Validation errors.
var (
	ErrEmptyPath       = errors.New("path cannot be empty")
	ErrPathTooLong     = errors.New("path too long")
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrInvalidName     = errors.New("invalid file name")
	ErrContentMismatch = errors.New("file content does not match its name")
)

// Within resolves userPath under baseDir and returns the joined path. It
// rejects absolute paths and anything that escapes baseDir after cleaning.
func Within(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}
	if strings.ContainsRune(userPath, 0) {
		return "", fmt.Errorf("%w: null byte", ErrInvalidName)
	}

	clean := filepath.Clean(userPath)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	full := filepath.Join(absBase, clean)
	rel, err := filepath.Rel(absBase, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return full, nil
}

// ArtifactName checks that name is a bare file name usable inside an output
// directory.
func ArtifactName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved name", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidName)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: cannot start with a hyphen", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidName)
		}
	}
	return nil
}

// Kind is a sniffed file content type.
type Kind string

// Kinds recognised by Sniff.
const (
	KindXZ      Kind = "xz"
	KindGzip    Kind = "gzip"
	KindSQLite  Kind = "sqlite"
	KindXML     Kind = "xml"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

var signatures = []struct {
	kind  Kind
	magic []byte
}{
	{KindXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{KindGzip, []byte{0x1f, 0x8b}},
	{KindSQLite, []byte("SQLite format 3\x00")},
}

// Sniff classifies the first bytes of r.
func Sniff(r io.Reader) (Kind, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return KindUnknown, fmt.Errorf("read header: %w", err)
	}
	buf = buf[:n]

	for _, sig := range signatures {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.kind, nil
		}
	}
	if !isLikelyText(buf) {
		return KindUnknown, nil
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return KindXML, nil
	}
	return KindText, nil
}

// expectedKind maps a dataset file name to the content it should carry.
func expectedKind(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xz":
		return KindXZ
	case ".gz":
		return KindGzip
	case ".xml", ".osis":
		return KindXML
	}
	return KindText
}

// CheckDataset sniffs the file at path and verifies that its content agrees
// with its extension: .xz and .gz must be compressed, .xml and .osis must be
// XML, and anything else must be text.
func CheckDataset(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	got, err := Sniff(f)
	if err != nil {
		return KindUnknown, err
	}
	want := expectedKind(path)
	if got == want {
		return got, nil
	}
	return got, fmt.Errorf("%w: %s holds %s data", ErrContentMismatch, filepath.Base(path), got)
}

// isLikelyText reports whether buf is mostly printable.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r' || b >= 0x20 && b != 0x7f:
			printable++
		default:
			control++
		}
	}
	return float64(printable)/float64(printable+control) > 0.95
}
