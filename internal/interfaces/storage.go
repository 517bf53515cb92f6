// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 10:02:11 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/benchdash/internal/models"
)

var (
	// ErrLookupNotFound is returned when no attribute lookup has been stored yet
	ErrLookupNotFound = errors.New("attribute lookup not found")

	// ErrRunNotFound is returned when a run ID is unknown
	ErrRunNotFound = errors.New("run not found")
)

// LookupStorage persists the attribute lookup.
// The stored bytes are the lookup JSON exactly as written, so hand-edited
// files and existing tooling keep working.
type LookupStorage interface {
	// Load returns the raw lookup JSON, or ErrLookupNotFound
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored lookup
	Save(ctx context.Context, data []byte) error

	// Exists reports whether a lookup has been stored
	Exists(ctx context.Context) (bool, error)
}

// RunStorage persists uploaded benchmark runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	// ListRuns returns runs newest first; limit <= 0 returns all
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)
	// LatestRun returns the most recently uploaded run, or ErrRunNotFound
	LatestRun(ctx context.Context) (*models.Run, error)
	DeleteRun(ctx context.Context, id string) error
	CountRuns(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage backends
type StorageManager interface {
	LookupStorage() LookupStorage
	RunStorage() RunStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
