package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
)

// EncodeJSON writes v as 2-space indented JSON without HTML escaping.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSON writes v to path atomically as indented JSON.
func WriteJSON(path string, v any) error {
	err := fileutil.AtomicWrite(path, func(w io.Writer) error {
		return EncodeJSON(w, v)
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// Decode reads a graph artifact from r.
func Decode(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, &errors.ParseError{Format: "graph artifact", Message: err.Error()}
	}
	if a.BookMatrix == nil {
		return nil, &errors.ParseError{Format: "graph artifact", Message: "missing book_matrix"}
	}
	for i, n := range a.Chapters {
		if n.ID != i && !a.Metadata.IsPreview {
			return nil, &errors.ParseError{
				Format:  "graph artifact",
				Message: fmt.Sprintf("chapter at position %d has id %d", i, n.ID),
			}
		}
	}
	return &a, nil
}

// Load reads a graph artifact from path.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("graph artifact", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	a, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return a, nil
}

// WritePreviewScript writes a preview artifact as a script file assigning it
// to the PREVIEW_DATA constant, with a CommonJS export for bundlers.
func WritePreviewScript(path string, preview *Artifact, sourceConnections int) error {
	err := fileutil.AtomicWrite(path, func(w io.Writer) error {
		return EncodePreviewScript(w, preview, sourceConnections)
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// EncodePreviewScript writes the preview script body to w.
func EncodePreviewScript(w io.Writer, preview *Artifact, sourceConnections int) error {
	header := fmt.Sprintf("// Bible Cross-Reference Preview Data\n"+
		"// Auto-generated from graph_data.json\n"+
		"// Contains top %d connections for instant loading\n"+
		"// Full dataset (%d connections) loads in background\n\n",
		len(preview.Connections), sourceConnections)
	if _, err := io.WriteString(w, header+"const PREVIEW_DATA = "); err != nil {
		return err
	}

	data, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preview: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}

	_, err = io.WriteString(w, ";\n\n"+
		"// Export for use in data-loader.js\n"+
		"if (typeof module !== \"undefined\" && module.exports) {\n"+
		"    module.exports = PREVIEW_DATA;\n"+
		"}\n")
	return err
}
