package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

const lookupRecordKey = "attribute_lookup"

// lookupRecord wraps the raw lookup JSON so badgerhold stores it under a fixed key
type lookupRecord struct {
	Key       string
	Data      []byte
	UpdatedAt time.Time
}

// LookupStorage keeps the attribute lookup as a single Badger record
type LookupStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLookupStorage creates a Badger-backed lookup store
func NewLookupStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LookupStorage {
	return &LookupStorage{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored lookup JSON
func (s *LookupStorage) Load(ctx context.Context) ([]byte, error) {
	var record lookupRecord
	err := s.db.Store().Get(lookupRecordKey, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrLookupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute lookup: %w", err)
	}
	return record.Data, nil
}

// Save replaces the stored lookup JSON
func (s *LookupStorage) Save(ctx context.Context, data []byte) error {
	record := lookupRecord{
		Key:       lookupRecordKey,
		Data:      append([]byte(nil), data...),
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(lookupRecordKey, &record); err != nil {
		return fmt.Errorf("failed to save attribute lookup: %w", err)
	}

	s.logger.Debug().Int("bytes", len(data)).Msg("Attribute lookup saved to Badger")
	return nil
}

// Exists reports whether a lookup record is present
func (s *LookupStorage) Exists(ctx context.Context) (bool, error) {
	var record lookupRecord
	err := s.db.Store().Get(lookupRecordKey, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check attribute lookup: %w", err)
	}
	return true, nil
}
