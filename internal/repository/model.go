package repository

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bassista/court_watch/internal/model"
)

// SnapshotVersion is the envelope format written by every store.
const SnapshotVersion = 1

// Metadata holds bookkeeping about a stored snapshot.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate" validate:"gte=0"` // Unix timestamp in milliseconds
	SlotCount  int   `json:"slotCount" validate:"gte=0"`
}

// SnapshotDocument is the persisted JSON structure of the file and document stores.
type SnapshotDocument struct {
	Version  int           `json:"version" validate:"required,eq=1"`
	Metadata Metadata      `json:"metadata"`
	Slots    model.Dataset `json:"slots"`
}

// Manifest is the root document of a chunked snapshot. Generation selects
// the chunk set; zero is the unsuffixed layout of older manifests.
type Manifest struct {
	Version    int      `json:"version" validate:"required,eq=1"`
	Metadata   Metadata `json:"metadata"`
	Chunks     int      `json:"chunks" validate:"gte=0"`
	Generation int64    `json:"generation,omitempty" validate:"gte=0"`
}

func newSnapshotDocument(ds model.Dataset, now time.Time) *SnapshotDocument {
	if ds == nil {
		ds = model.Dataset{}
	}
	return &SnapshotDocument{
		Version:  SnapshotVersion,
		Metadata: Metadata{LastUpdate: now.UnixMilli(), SlotCount: len(ds)},
		Slots:    ds,
	}
}

// ApplyDefaults sets fallback values after decode.
func (d *SnapshotDocument) ApplyDefaults() {
	if d.Slots == nil {
		d.Slots = model.Dataset{}
	}
}

// validate checks the envelope; slot contents are never rejected.
func (d *SnapshotDocument) validate(v *validator.Validate) error {
	if v != nil {
		if err := v.Struct(d); err != nil {
			return err
		}
	}
	if d.Metadata.SlotCount != len(d.Slots) {
		return fmt.Errorf("%w: metadata says %d slots, found %d", ErrCorruptSnapshot, d.Metadata.SlotCount, len(d.Slots))
	}
	return nil
}
