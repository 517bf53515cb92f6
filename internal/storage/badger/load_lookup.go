package badger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ternarybob/benchdash/internal/models"
)

// SeedLookupFromFile imports a lookup JSON file when Badger holds no lookup yet.
// An existing record is never overwritten, so the file only matters on first start.
// Returns true when the file was imported.
func (m *Manager) SeedLookupFromFile(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	exists, err := m.lookup.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		m.logger.Debug().Str("file", path).Msg("Attribute lookup already stored, skipping seed file")
		return false, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn().Str("file", path).Msg("Lookup seed file not found")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read lookup seed file: %w", err)
	}

	lookup, err := models.ParseAttributeLookup(content)
	if err != nil {
		return false, fmt.Errorf("failed to parse lookup seed file %s: %w", path, err)
	}

	if err := m.lookup.Save(ctx, content); err != nil {
		return false, err
	}

	m.logger.Info().
		Str("file", path).
		Int("dictionaries", len(lookup.Attributes)).
		Int("tests", len(lookup.MinifiedTests)).
		Msg("Attribute lookup seeded from file")

	return true, nil
}
