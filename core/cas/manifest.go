package cas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
)

// ManifestName is the file name of a build manifest.
const ManifestName = "manifest.json"

// Entry is one fingerprinted file. Path is relative to the manifest's
// directory for artifacts and as given for the input.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Digest
}

// Manifest records the inputs and outputs of one build run.
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Version   string    `json:"version,omitempty"`
	Input     Entry     `json:"input"`
	Artifacts []Entry   `json:"artifacts"`

	// SnapshotDir is the content-addressed store the artifacts were copied into.
	SnapshotDir string `json:"snapshot_dir,omitempty"`
}

// NewManifest starts a manifest for a run over the input file at path.
func NewManifest(inputPath, version string) (*Manifest, error) {
	d, err := SumFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint input: %w", err)
	}
	return &Manifest{
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Version:   version,
		Input:     Entry{Name: "input", Path: inputPath, Digest: d},
	}, nil
}

// Add fingerprints the artifact at path. baseDir is the directory the
// manifest will be written to.
func (m *Manifest) Add(name, path, baseDir string) (Entry, error) {
	d, err := SumFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to fingerprint %s: %w", name, err)
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		rel = path
	}
	e := Entry{Name: name, Path: filepath.ToSlash(rel), Digest: d}
	m.Artifacts = append(m.Artifacts, e)
	sort.Slice(m.Artifacts, func(i, j int) bool {
		return m.Artifacts[i].Name < m.Artifacts[j].Name
	})
	return e, nil
}

// Artifact returns the entry with the given name.
func (m *Manifest) Artifact(name string) (Entry, bool) {
	for _, e := range m.Artifacts {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Write stores the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return fileutil.AtomicWriteFile(path, append(data, '\n'))
}

// LoadManifest reads a manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Mismatch describes a file whose current content differs from its entry.
type Mismatch struct {
	Name     string
	Path     string
	Expected Digest
	Actual   Digest
	Err      error
}

func (mm Mismatch) String() string {
	if mm.Err != nil {
		return fmt.Sprintf("%s (%s): %v", mm.Name, mm.Path, mm.Err)
	}
	return fmt.Sprintf("%s (%s): sha256 %s, expected %s", mm.Name, mm.Path, mm.Actual.SHA256, mm.Expected.SHA256)
}

// Verify re-fingerprints every artifact relative to baseDir and returns the
// entries that no longer match. When checkInput is set the input file is
// checked too.
func (m *Manifest) Verify(baseDir string, checkInput bool) []Mismatch {
	var out []Mismatch
	check := func(e Entry, path string) {
		d, err := SumFile(path)
		if err != nil {
			out = append(out, Mismatch{Name: e.Name, Path: e.Path, Expected: e.Digest, Err: err})
			return
		}
		if d != e.Digest {
			out = append(out, Mismatch{Name: e.Name, Path: e.Path, Expected: e.Digest, Actual: d})
		}
	}

	if checkInput {
		check(m.Input, m.Input.Path)
	}
	for _, e := range m.Artifacts {
		check(e, resolve(baseDir, e.Path))
	}
	return out
}

// Snapshot copies every artifact into store, xz-compressing those whose name
// is in compress.
func (m *Manifest) Snapshot(store *Store, baseDir string, compress map[string]bool) error {
	for _, e := range m.Artifacts {
		data, err := os.ReadFile(resolve(baseDir, e.Path))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Name, err)
		}
		put := store.Put
		if compress[e.Name] {
			put = store.PutCompressed
		}
		d, err := put(data)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", e.Name, err)
		}
		if d != e.Digest {
			return fmt.Errorf("%s changed since it was fingerprinted", e.Name)
		}
	}
	m.SnapshotDir = store.Root()
	return nil
}

func resolve(baseDir, path string) string {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
