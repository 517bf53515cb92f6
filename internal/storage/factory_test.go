package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/services/events"
	"github.com/ternarybob/benchdash/internal/storage/file"
)

func TestNewStorageManager_FileLookup(t *testing.T) {
	ctx := context.Background()
	logger := arbor.NewLogger()
	path := filepath.Join(t.TempDir(), "lookup.json")

	config := common.NewDefaultConfig()
	config.Storage.Type = "file"
	config.Storage.Badger.InMemory = true
	config.Storage.File.LookupPath = path

	eventService := events.NewService(logger)
	defer eventService.Close()

	manager, err := NewStorageManager(ctx, logger, config, eventService)
	require.NoError(t, err)
	defer manager.Close()

	lookup, ok := manager.LookupStorage().(*file.LookupFile)
	require.True(t, ok, "file storage should serve the lookup from disk")
	assert.Equal(t, path, lookup.Path())

	require.NoError(t, manager.LookupStorage().Save(ctx, []byte(`{"attributes":{},"tests":{}}`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"attributes":{},"tests":{}}`, string(data))

	count, err := manager.RunStorage().CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewStorageManager_BadgerSeedsLookup(t *testing.T) {
	ctx := context.Background()
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"attributes":{},"tests":{}}`), 0644))

	config := common.NewDefaultConfig()
	config.Storage.Badger.InMemory = true
	config.Storage.Badger.SeedLookupPath = seed

	manager, err := NewStorageManager(ctx, arbor.NewLogger(), config, nil)
	require.NoError(t, err)
	defer manager.Close()

	exists, err := manager.LookupStorage().Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewStorageManager_FileWatchFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	config := common.NewDefaultConfig()
	config.Storage.Type = "file"
	config.Storage.Badger.InMemory = true
	config.Storage.File.LookupPath = filepath.Join(blocker, "lookup.json")
	config.Storage.File.Watch = true

	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	_, err := NewStorageManager(context.Background(), arbor.NewLogger(), config, eventService)
	assert.ErrorContains(t, err, "failed to watch lookup file")
}

func TestNewStorageManager_UnsupportedType(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Storage.Type = "postgres"

	_, err := NewStorageManager(context.Background(), arbor.NewLogger(), config, nil)
	assert.ErrorContains(t, err, "unsupported storage type")
}
