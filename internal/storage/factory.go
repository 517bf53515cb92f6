package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/storage/badger"
	"github.com/ternarybob/benchdash/internal/storage/file"
)

// NewStorageManager creates a new storage manager based on config.
// Runs and settings always live in Badger. With storage.type "file" the
// attribute lookup is read from and written to a JSON file instead, and when
// storage.file.watch is set, hand edits to that file are published as events.
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config, events interfaces.EventService) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case "badger", "":
		db, err := badger.NewManager(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		if _, err := db.SeedLookupFromFile(ctx, config.Storage.Badger.SeedLookupPath); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "file":
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'file')", config.Storage.Type)
	}

	db, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	lookup := file.NewLookupFile(logger, config.Storage.File.LookupPath)
	manager := &fileLookupManager{Manager: db, lookup: lookup}

	if config.Storage.File.Watch && events != nil {
		watcher, err := file.NewWatcher(lookup, events, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			db.Close()
			return nil, fmt.Errorf("failed to watch lookup file: %w", err)
		}
		manager.watcher = watcher
	}

	logger.Info().
		Str("lookup_path", lookup.Path()).
		Bool("watch", manager.watcher != nil).
		Msg("Attribute lookup stored in file")

	return manager, nil
}

// fileLookupManager serves the lookup from a file and everything else from Badger
type fileLookupManager struct {
	*badger.Manager
	lookup  *file.LookupFile
	watcher *file.Watcher
}

func (m *fileLookupManager) LookupStorage() interfaces.LookupStorage {
	return m.lookup
}

func (m *fileLookupManager) Close() error {
	var errs []error
	if m.watcher != nil {
		if err := m.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.Manager.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
