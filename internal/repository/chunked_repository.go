package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bassista/court_watch/internal/docstore"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
)

// ChunkedRepository spreads one snapshot over several bounded-size documents.
//
// Layout:
//   - <id>                      manifest (version, metadata, chunk count, generation)
//   - <id>/g<gen>/chunk-0000..N JSON arrays of slots, each at most chunkBytes
//     long unless a single slot is larger on its own.
//
// Save writes a new generation of chunks, then swaps the manifest, then
// removes the previous generation. Until the swap the old manifest still
// points at a complete, untouched chunk set.
type ChunkedRepository struct {
	backend    docstore.Backend
	id         string
	chunkBytes int
	validator  *validator.Validate
}

func NewChunkedRepository(backend docstore.Backend, id string, chunkBytes int) (*ChunkedRepository, error) {
	if backend == nil {
		return nil, errors.New("document backend is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("document id is required")
	}
	if chunkBytes <= 2 {
		return nil, fmt.Errorf("chunk size must be greater than 2 bytes, got %d", chunkBytes)
	}
	return &ChunkedRepository{backend: backend, id: id, chunkBytes: chunkBytes, validator: validator.New()}, nil
}

func (r *ChunkedRepository) chunkID(gen int64, i int) string {
	if gen == 0 {
		return fmt.Sprintf("%s/chunk-%04d", r.id, i)
	}
	return fmt.Sprintf("%s/g%d/chunk-%04d", r.id, gen, i)
}

func (r *ChunkedRepository) loadManifest(ctx context.Context) (*Manifest, error) {
	body, err := r.backend.Get(ctx, r.id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest %s: %w", r.id, err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", r.id, err)
	}
	if err := r.validator.Struct(&m); err != nil {
		return nil, fmt.Errorf("validate manifest %s: %w", r.id, err)
	}
	return &m, nil
}

func (r *ChunkedRepository) Load(ctx context.Context) (*model.Dataset, error) {
	m, err := r.loadManifest(ctx)
	if err != nil {
		return nil, err
	}

	ds := make(model.Dataset, 0, m.Metadata.SlotCount)
	for i := 0; i < m.Chunks; i++ {
		body, err := r.backend.Get(ctx, r.chunkID(m.Generation, i))
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: chunk %d of %d missing", ErrCorruptSnapshot, i+1, m.Chunks)
		}
		if err != nil {
			return nil, fmt.Errorf("get chunk %d: %w", i, err)
		}
		var part model.Dataset
		if err := json.Unmarshal(body, &part); err != nil {
			return nil, fmt.Errorf("%w: decode chunk %d: %v", ErrCorruptSnapshot, i, err)
		}
		ds = append(ds, part...)
	}

	if len(ds) != m.Metadata.SlotCount {
		return nil, fmt.Errorf("%w: manifest says %d slots, chunks hold %d", ErrCorruptSnapshot, m.Metadata.SlotCount, len(ds))
	}
	return &ds, nil
}

func (r *ChunkedRepository) Save(ctx context.Context, ds model.Dataset) error {
	log := logger.WithComponent("chunk-repo")

	old, err := r.loadManifest(ctx)
	gen := int64(1)
	switch {
	case err == nil:
		gen = old.Generation + 1
	case errors.Is(err, ErrSnapshotNotFound):
		old = nil
	default:
		// Unknown previous generation: pick one that cannot collide with it.
		log.Warnf("cannot read previous manifest, stale chunks will not be cleaned: %v", err)
		old = nil
		gen = time.Now().UnixNano()
	}

	chunks, err := splitSlots(ds, r.chunkBytes)
	if err != nil {
		return err
	}
	for i, body := range chunks {
		if err := r.backend.Put(ctx, r.chunkID(gen, i), body); err != nil {
			return fmt.Errorf("put chunk %d: %w", i, err)
		}
	}

	manifest := Manifest{
		Version:    SnapshotVersion,
		Metadata:   Metadata{LastUpdate: time.Now().UnixMilli(), SlotCount: len(ds)},
		Chunks:     len(chunks),
		Generation: gen,
	}
	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := r.backend.Put(ctx, r.id, body); err != nil {
		return fmt.Errorf("put manifest %s: %w", r.id, err)
	}

	previousChunks := 0
	if old != nil {
		previousChunks = old.Chunks
		for i := 0; i < old.Chunks; i++ {
			if err := r.backend.Delete(ctx, r.chunkID(old.Generation, i)); err != nil {
				// The manifest no longer references it; leaving it is harmless.
				log.Warnf("cannot delete chunk %d of generation %d: %v", i, old.Generation, err)
			}
		}
	}
	log.Debugf("saved %d slots in %d chunks, generation %d (previously %d chunks)", len(ds), len(chunks), gen, previousChunks)
	return nil
}

// splitSlots packs slots greedily into JSON arrays of at most limit bytes.
// A slot that alone exceeds limit gets a chunk of its own.
func splitSlots(ds model.Dataset, limit int) ([][]byte, error) {
	var (
		chunks [][]byte
		buf    bytes.Buffer
		n      int
	)
	flush := func() {
		buf.WriteByte(']')
		chunks = append(chunks, append([]byte(nil), buf.Bytes()...))
		buf.Reset()
		n = 0
	}

	for _, s := range ds {
		enc, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("marshal slot: %w", err)
		}
		// +1 for the separator or the opening bracket, +1 for the closing one.
		if n > 0 && buf.Len()+1+len(enc)+1 > limit {
			flush()
		}
		if n == 0 {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}
		buf.Write(enc)
		n++
	}
	if n > 0 {
		flush()
	}
	return chunks, nil
}
