package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
)

// JSONRepository keeps the snapshot in a local JSON file.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex
}

// NewJSONRepository creates a repository for the given JSON file path.
// The parent directory is created on first save.
func NewJSONRepository(path string) (*JSONRepository, error) {
	if path == "" {
		return nil, errors.New("snapshot file path is required")
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}
	return &JSONRepository{path: path, dir: dir, base: base, validator: validator.New()}, nil
}

// Path returns the snapshot file location.
func (r *JSONRepository) Path() string {
	return r.path
}

// Load reads the JSON file, parses and validates it.
func (r *JSONRepository) Load(ctx context.Context) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

// loadUnlocked reads the JSON file without acquiring the lock (caller must hold it).
func (r *JSONRepository) loadUnlocked() (*model.Dataset, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	var doc SnapshotDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	doc.ApplyDefaults()
	if err := doc.validate(r.validator); err != nil {
		return nil, fmt.Errorf("validate snapshot file: %w", err)
	}
	logger.WithComponent("json-repo").Debugf("loaded %d slots saved at %s", len(doc.Slots), time.UnixMilli(doc.Metadata.LastUpdate).Format(time.RFC3339))
	return &doc.Slots, nil
}

// Save writes the dataset atomically to disk.
func (r *JSONRepository) Save(ctx context.Context, ds model.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := newSnapshotDocument(ds, time.Now())
	if err := doc.validate(r.validator); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveUnlocked(doc)
}

// saveUnlocked writes the document without acquiring the lock (caller must hold it).
func (r *JSONRepository) saveUnlocked(doc *SnapshotDocument) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	logger.WithComponent("json-repo").Debugf("saved %d slots to %s", doc.Metadata.SlotCount, r.path)
	return nil
}
