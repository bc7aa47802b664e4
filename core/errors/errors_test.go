package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "data file", ID: "cross_references.txt"},
			wantMsg:  "data file not found: cross_references.txt",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "graph artifact"},
			wantMsg:  "graph artifact not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		err := &NotFoundError{Resource: "data file", ID: "x.txt", Err: fs.ErrNotExist}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected errors.Is(err, fs.ErrNotExist)")
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected errors.Is(err, ErrNotFound)")
		}
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidation("preview-limit", "must be positive")
	if got, want := err.Error(), "validation failed for preview-limit: must be positive"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected ValidationError to unwrap to ErrInvalidInput")
	}

	bare := &ValidationError{Message: "bad"}
	if got, want := bare.Error(), "validation failed: bad"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *ParseError
		want string
	}{
		{"token", NewParse("osis-token", "BadToken", "too few parts"), `failed to parse osis-token "BadToken": too few parts`},
		{"line and input", &ParseError{Format: "tsv", Input: "x", Line: 4, Message: "m"}, `failed to parse tsv "x" at line 4: m`},
		{"line only", &ParseError{Format: "tsv", Line: 4, Message: "m"}, "failed to parse tsv at line 4: m"},
		{"bare", &ParseError{Format: "JSON", Message: "m"}, "failed to parse JSON: m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("expected ParseError to unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("disk full")
	err := NewIO("write", "graph_data.json", underlying)
	if got, want := err.Error(), "failed to write graph_data.json: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected IOError to unwrap to underlying error")
	}

	noPath := &IOError{Operation: "flush", Err: underlying}
	if got, want := noPath.Error(), "failed to flush: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("input format", "csv")
	if got, want := err.Error(), "unsupported input format: csv"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("expected UnsupportedError to unwrap to ErrUnsupported")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	base := NewNotFound("book", "Tob")
	wrapped := Wrapf(base, "resolving %s", "Tob.1.1")
	if got, want := wrapped.Error(), "resolving Tob.1.1: book not found: Tob"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
	var nf *NotFoundError
	if !As(wrapped, &nf) || nf.ID != "Tob" {
		t.Errorf("As() failed to extract NotFoundError: %v", nf)
	}
}
