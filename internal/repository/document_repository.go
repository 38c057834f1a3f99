package repository

import (
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

// DocumentRepository keeps the whole snapshot in one backend document.
type DocumentRepository struct {
	backend   docstore.Backend
	id        string
	maxBytes  int
	validator *validator.Validate
}

// NewDocumentRepository stores the snapshot under id. maxBytes <= 0 disables
// the size check.
func NewDocumentRepository(backend docstore.Backend, id string, maxBytes int) (*DocumentRepository, error) {
	if backend == nil {
		return nil, errors.New("document backend is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("document id is required")
	}
	return &DocumentRepository{backend: backend, id: id, maxBytes: maxBytes, validator: validator.New()}, nil
}

func (r *DocumentRepository) Load(ctx context.Context) (*model.Dataset, error) {
	body, err := r.backend.Get(ctx, r.id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", r.id, err)
	}

	var doc SnapshotDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.id, err)
	}
	doc.ApplyDefaults()
	if err := doc.validate(r.validator); err != nil {
		return nil, fmt.Errorf("validate document %s: %w", r.id, err)
	}
	return &doc.Slots, nil
}

func (r *DocumentRepository) Save(ctx context.Context, ds model.Dataset) error {
	doc := newSnapshotDocument(ds, time.Now())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if r.maxBytes > 0 && len(body) > r.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrDocumentTooLarge, len(body), r.maxBytes)
	}
	if err := r.backend.Put(ctx, r.id, body); err != nil {
		return fmt.Errorf("put document %s: %w", r.id, err)
	}
	logger.WithComponent("doc-repo").Debugf("saved %d slots (%d bytes) to %s", len(doc.Slots), len(body), r.id)
	return nil
}
