// Package docstore provides small key -> bytes document backends used by the
// remote snapshot stores.
//
// It currently supports:
//   - postgres (pgx connection pool)
//   - sqlite   (modernc.org/sqlite, pure Go)
//   - memory   (tests and dry runs)
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Backend stores opaque documents by id.
type Backend interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, body []byte) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config selects and parameterises a backend.
type Config struct {
	Driver string
	// DSN is a postgres connection string or a sqlite file path.
	DSN   string
	Table string
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Open initialises the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "snapshots"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, cfg.DSN, table)
	case DriverSQLite, "sqlite3":
		return OpenSQLite(ctx, cfg.DSN, table)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown document backend: %s (supported: %s, %s, %s)", cfg.Driver, DriverPostgres, DriverSQLite, DriverMemory)
	}
}
