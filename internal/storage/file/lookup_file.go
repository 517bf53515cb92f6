package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/interfaces"
)

// LookupFile keeps the attribute lookup in a JSON file on disk so it can be
// reviewed and edited by hand between reconciliations.
type LookupFile struct {
	path   string
	logger arbor.ILogger

	mu          sync.Mutex
	lastWritten []byte
}

// NewLookupFile creates a file-backed lookup store at path
func NewLookupFile(logger arbor.ILogger, path string) *LookupFile {
	return &LookupFile{
		path:   filepath.Clean(path),
		logger: logger,
	}
}

// Path returns the file location
func (f *LookupFile) Path() string {
	return f.path
}

// Load reads the lookup file
func (f *LookupFile) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrLookupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup file %s: %w", f.path, err)
	}
	return data, nil
}

// Save writes the lookup to a temp file in the same directory and renames it
// over the target, so readers never observe a partial file.
func (f *LookupFile) Save(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lookup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".lookup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lookup file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp lookup file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp lookup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lookup file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set lookup file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to replace lookup file: %w", err)
	}

	f.lastWritten = append(f.lastWritten[:0], data...)
	f.logger.Debug().Str("path", f.path).Int("bytes", len(data)).Msg("Attribute lookup file written")
	return nil
}

// Exists reports whether the lookup file is present
func (f *LookupFile) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat lookup file: %w", err)
	}
	return true, nil
}

// wroteLast reports whether data matches the last content written by Save
func (f *LookupFile) wroteLast(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWritten != nil && bytes.Equal(f.lastWritten, data)
}
