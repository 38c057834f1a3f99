package repository

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bassista/court_watch/internal/docstore"
)

const (
	StoreTypeFile     = "file"
	StoreTypeDocument = "document"
	StoreTypeChunked  = "chunked"

	// DefaultMaxDocumentBytes mirrors the 1 MiB item limit common to document databases.
	DefaultMaxDocumentBytes = 1 << 20
	// DefaultChunkBytes leaves headroom below DefaultMaxDocumentBytes for the envelope.
	DefaultChunkBytes = 900 << 10
)

// Options selects and parameterises a SnapshotStore.
type Options struct {
	Type string

	// file
	FilePath string

	// document / chunked
	Backend          docstore.Config
	DocumentID       string
	MaxDocumentBytes int
	ChunkBytes       int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewStoreFromConfig creates a SnapshotStore based on opts.Type.
// If Type is "file" (default), it creates a JSONRepository.
// "document" and "chunked" open the configured docstore backend; the returned
// Closer releases it.
func NewStoreFromConfig(ctx context.Context, opts Options) (SnapshotStore, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Type)) {
	case StoreTypeFile, "":
		repo, err := NewJSONRepository(opts.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, nopCloser{}, nil
	case StoreTypeDocument:
		backend, err := docstore.Open(ctx, opts.Backend)
		if err != nil {
			return nil, nil, fmt.Errorf("open document backend: %w", err)
		}
		repo, err := NewDocumentRepository(backend, opts.DocumentID, opts.MaxDocumentBytes)
		if err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		return repo, backend, nil
	case StoreTypeChunked:
		backend, err := docstore.Open(ctx, opts.Backend)
		if err != nil {
			return nil, nil, fmt.Errorf("open document backend: %w", err)
		}
		repo, err := NewChunkedRepository(backend, opts.DocumentID, opts.ChunkBytes)
		if err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		return repo, backend, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type: %s (supported: %s, %s, %s)", opts.Type, StoreTypeFile, StoreTypeDocument, StoreTypeChunked)
	}
}
