package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// hexPattern matches a lowercase 256-bit hex digest (64 characters).
var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Digest holds both hashes of a piece of content.
type Digest struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Sum computes the digest of data.
func Sum(data []byte) Digest {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return Digest{
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
	}
}

// SumReader computes the digest of everything read from r in one pass.
func SumReader(r io.Reader) (Digest, error) {
	s := sha256.New()
	b := blake3.New()
	n, err := io.Copy(io.MultiWriter(s, b), r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		Size:   n,
		SHA256: hex.EncodeToString(s.Sum(nil)),
		BLAKE3: hex.EncodeToString(b.Sum(nil)),
	}, nil
}

// SumFile computes the digest of the file at path.
func SumFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()
	return SumReader(f)
}

// Hash computes the SHA-256 hex digest of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hex digest of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

func isValidHash(hash string) bool {
	return hexPattern.MatchString(hash)
}
