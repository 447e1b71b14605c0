package logger

import (
	"context"
	"io"

	"github.com/simorgh/advanced-logger/export"
	"github.com/simorgh/advanced-logger/models"
)

// Read-path operations propagate errors to the caller: unlike logging itself
// there is no safe silent fallback for a dashboard or API read.

// GetLogs returns one page of records matching the filter, newest first.
func (s *Service) GetLogs(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error) {
	return s.backend.Query(ctx, f, page)
}

// GetStats aggregates the records matching the filter.
func (s *Service) GetStats(ctx context.Context, f models.Filter) (*models.Stats, error) {
	return s.backend.Stats(ctx, f)
}

// ClearLogs deletes the records matching the filter and reports how many were
// removed.
func (s *Service) ClearLogs(ctx context.Context, f models.Filter) (int64, error) {
	return s.backend.Delete(ctx, f)
}

// Resolve marks a record as resolved.
func (s *Service) Resolve(ctx context.Context, id string) error {
	return s.backend.Resolve(ctx, id)
}

// Unresolve clears a record's resolution flag.
func (s *Service) Unresolve(ctx context.Context, id string) error {
	return s.backend.Unresolve(ctx, id)
}

// ExportLogs streams every record matching the filter to w in the requested
// format, fetching from storage in bounded batches.
func (s *Service) ExportLogs(ctx context.Context, w io.Writer, f models.Filter, format export.Format) error {
	enc, err := export.NewEncoder(w, format)
	if err != nil {
		return err
	}

	batch := models.Page{Number: 1, Size: s.cfg.Performance.BatchSize}
	for {
		page, err := s.backend.Query(ctx, f, batch)
		if err != nil {
			return err
		}
		for i := range page.Items {
			if err := enc.Write(&page.Items[i]); err != nil {
				return err
			}
		}
		if batch.Number >= page.TotalPages {
			break
		}
		batch.Number++
	}
	return enc.Close()
}
