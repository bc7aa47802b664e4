// Package fileutil provides atomic file writes and size reporting for
// pipeline artifacts.
package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// AtomicWrite creates path by streaming fn's output into a temp file in the
// same directory and renaming it into place. Parent directories are created.
// On any error the temp file is removed and path is left untouched.
func AtomicWrite(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	bw := bufio.NewWriterSize(tempFile, 64<<10)
	if err := fn(bw); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Rename to final path (atomic on POSIX)
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

// AtomicWriteFile writes data to path atomically.
func AtomicWriteFile(path string, data []byte) error {
	return AtomicWrite(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Size returns the size of the file at path in bytes.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// HumanSize formats a byte count the way artifact reports print it ("1.2 MB").
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
