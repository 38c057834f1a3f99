package repository

import (
	"context"
	"errors"

	"github.com/bassista/court_watch/internal/model"
)

var (
	// ErrSnapshotNotFound means nothing has been stored yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptSnapshot means stored data exists but cannot be reassembled.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	// ErrDocumentTooLarge means the snapshot does not fit in a single document.
	ErrDocumentTooLarge = errors.New("snapshot exceeds maximum document size")
)

// Loader reads the most recent snapshot.
type Loader interface {
	Load(ctx context.Context) (*model.Dataset, error)
}

// Saver persists a snapshot, replacing the previous one.
// Small interface used by the cycle driver at the end of each cycle.
type Saver interface {
	Save(ctx context.Context, ds model.Dataset) error
}

// SnapshotStore abstracts persistence of the previous poll.
// JSONRepository, DocumentRepository and ChunkedRepository implement it.
type SnapshotStore interface {
	Loader
	Saver
}
