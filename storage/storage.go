// Package storage defines the pluggable persistence layer for log records and
// provides the sqlite, file and elasticsearch backends.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("log record not found")

// ErrUnsupported is returned by backends that do not implement the full
// query/aggregate surface. Backend capability is fixed at configuration time;
// callers are expected to pick a backend that covers their needs.
var ErrUnsupported = errors.New("operation not supported by storage backend")

// Backend is the persistence contract for log records. Store errors propagate
// to the caller; the logging facade is responsible for absorbing them.
type Backend interface {
	// Store persists one record.
	Store(ctx context.Context, rec *models.LogRecord) error
	// Query returns one page of matching records, newest first.
	Query(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error)
	// Count returns the number of matching records.
	Count(ctx context.Context, f models.Filter) (int64, error)
	// Stats aggregates the matching records.
	Stats(ctx context.Context, f models.Filter) (*models.Stats, error)
	// Delete removes the matching records and reports how many went away.
	Delete(ctx context.Context, f models.Filter) (int64, error)
	// Resolve and Unresolve toggle the record's resolution flag.
	Resolve(ctx context.Context, id string) error
	Unresolve(ctx context.Context, id string) error
	// Close releases backend resources.
	Close() error
}

// Open resolves the configured driver name to a concrete backend, wrapping it
// in the async queue when enabled. An unsupported driver fails fast. The
// fallback logger receives the queue worker's store failures.
func Open(cfg *config.Config, fallback zerolog.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Storage.Driver {
	case "sqlite":
		backend, err = OpenSQLite(cfg.Storage.DatabasePath)
	case "file":
		backend, err = OpenFile(cfg.Storage.FilePath)
	case "elasticsearch":
		backend, err = OpenElasticsearch(cfg.Storage.Elasticsearch)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Performance.UseQueue {
		backend = NewQueued(backend, cfg.Performance.QueueSize, fallback)
	}
	return backend, nil
}
