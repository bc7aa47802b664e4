// Package source reads cross-reference datasets into parsed records.
//
// Two layouts are supported: the tab-separated OpenBible export
// (cross_references.txt, optionally .xz or .gz compressed) and OSIS XML
// documents carrying crossReference notes.
package source

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// file wraps an input file with its decompressor.
type file struct {
	io.Reader
	f            *os.File
	decompressor io.Closer
}

func (r *file) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Open opens path for reading, decompressing .xz and .gz files transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &file{Reader: f, f: f}
	switch {
	case strings.HasSuffix(path, ".xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		r.Reader = xzr
	case strings.HasSuffix(path, ".gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		r.Reader = gzr
		r.decompressor = gzr
	}
	return r, nil
}

// trimCompression strips a compression suffix from a file name.
func trimCompression(path string) string {
	for _, ext := range []string{".xz", ".gz"} {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}
