package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/google/uuid"
)

// Sink stores downloaded export bytes somewhere the user can reach them
type Sink interface {
	// Save stores body under key and returns where it ended up
	Save(ctx context.Context, key string, contentType string, body []byte) (string, error)
}

// Linker is implemented by sinks that can hand out a temporary download link
type Linker interface {
	Link(ctx context.Context, location string) (string, error)
}

// ErrUnsafeKey is returned when a key would resolve outside the sink's directory
var ErrUnsafeKey = errors.New("export key escapes the export directory")

// ObjectKey creates a unique key for an export of kind. Only the last element
// of filename is kept; an empty or dot name becomes "<kind>_details.xlsx".
func ObjectKey(kind domain.Kind, filename string) string {
	return path.Join(string(kind), fmt.Sprintf("%s_%s", uuid.New().String(), safeFilename(kind, filename)))
}

func safeFilename(kind domain.Kind, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return string(kind) + "_details.xlsx"
	}
	return name
}

// FileSink writes exports below a local directory
type FileSink struct {
	Dir string
}

// NewFileSink creates a FileSink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Save implements Sink
func (s *FileSink) Save(ctx context.Context, key string, contentType string, body []byte) (string, error) {
	target := filepath.Join(s.Dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.Dir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeKey, key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return target, nil
}
