// Package cas fingerprints emitted artifacts and keeps content-addressed
// snapshots of them.
//
// Snapshots are stored by SHA-256 under blobs/sha256/<prefix>/<hash>, with a
// BLAKE3 pointer file per blob and an optional xz-compressed variant under
// blobs/sha256-xz/ for large artifacts.
package cas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
)

// ErrBlobNotFound is returned when no blob exists for a hash.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash is not a 64-character hex string.
var ErrInvalidHash = errors.New("invalid hash format")

// Store is a content-addressed blob store rooted at a directory.
type Store struct {
	root string
}

type blake3Pointer struct {
	SHA256 string `json:"sha256"`
}

// NewStore opens or creates a store at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "sha256"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores data uncompressed and returns its digest. Storing content that is
// already present is a no-op.
func (s *Store) Put(data []byte) (Digest, error) {
	d := Sum(data)
	if err := s.writeOnce(s.plainPath(d.SHA256), data); err != nil {
		return Digest{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := s.writePointer(d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// PutCompressed stores data xz-compressed, addressed by the digest of the
// uncompressed content.
func (s *Store) PutCompressed(data []byte) (Digest, error) {
	d := Sum(data)

	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return Digest{}, fmt.Errorf("failed to compress blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Digest{}, fmt.Errorf("failed to compress blob: %w", err)
	}

	if err := s.writeOnce(s.compressedPath(d.SHA256), buf.Bytes()); err != nil {
		return Digest{}, fmt.Errorf("failed to write compressed blob: %w", err)
	}
	if err := s.writePointer(d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// Get returns the content for a SHA-256 hash, decompressing if only the xz
// variant exists. The content is verified against the hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	data, err := os.ReadFile(s.plainPath(hash))
	if os.IsNotExist(err) {
		data, err = s.readCompressed(hash)
	}
	if err != nil {
		return nil, err
	}
	if got := Hash(data); got != hash {
		return nil, fmt.Errorf("blob %s is corrupt: content hashes to %s", hash, got)
	}
	return data, nil
}

// GetByBlake3 resolves a BLAKE3 hash through its pointer file and returns the
// content.
func (s *Store) GetByBlake3(blake3Hash string) ([]byte, error) {
	if !isValidHash(blake3Hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(blake3Hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read pointer: %w", err)
	}
	var p blake3Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pointer: %w", err)
	}
	return s.Get(p.SHA256)
}

// Has reports whether either variant of a blob exists.
func (s *Store) Has(hash string) bool {
	if !isValidHash(hash) {
		return false
	}
	if _, err := os.Stat(s.plainPath(hash)); err == nil {
		return true
	}
	_, err := os.Stat(s.compressedPath(hash))
	return err == nil
}

func (s *Store) readCompressed(hash string) ([]byte, error) {
	f, err := os.Open(s.compressedPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	defer f.Close()

	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open xz blob: %w", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob: %w", err)
	}
	return data, nil
}

func (s *Store) writePointer(d Digest) error {
	data, err := json.Marshal(blake3Pointer{SHA256: d.SHA256})
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}
	if err := s.writeOnce(s.pointerPath(d.BLAKE3), data); err != nil {
		return fmt.Errorf("failed to create BLAKE3 pointer: %w", err)
	}
	return nil
}

// writeOnce writes data to path atomically unless path already exists.
func (s *Store) writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(path, data)
}

func (s *Store) plainPath(hash string) string {
	return filepath.Join(s.root, "blobs", "sha256", hash[:2], hash)
}

func (s *Store) compressedPath(hash string) string {
	return filepath.Join(s.root, "blobs", "sha256-xz", hash[:2], hash+".xz")
}

func (s *Store) pointerPath(blake3Hash string) string {
	return filepath.Join(s.root, "blobs", "blake3", blake3Hash[:2], blake3Hash+".json")
}
