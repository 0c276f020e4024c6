package poi

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads a catalog snapshot from disk. The file holds either a saved API
// response or a JSON array of records.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch implements Source.
func (f *FileSource) Fetch(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	return decode(body)
}
