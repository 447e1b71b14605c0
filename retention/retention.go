// Package retention implements the cleanup primitives behind the log
// retention policy: counting and previewing expired records, best-effort
// day-grouped archival, and deletion. It operates purely through the storage
// backend's query interface.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/export"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/storage"
)

// sampleSize bounds the dry-run preview.
const sampleSize = 10

// Options control one cleanup run.
type Options struct {
	// Days overrides the configured retention window when > 0.
	Days     int
	Level    string
	Category string
	DryRun   bool
	Compress bool
}

// Report describes what a run found and did.
type Report struct {
	Cutoff   time.Time          `json:"cutoff"`
	Days     int                `json:"days"`
	Count    int64              `json:"count"`
	Sample   []models.LogRecord `json:"sample,omitempty"`
	Deleted  int64              `json:"deleted"`
	Archives []string           `json:"archives,omitempty"`
	DryRun   bool               `json:"dry_run"`
}

// Cleaner deletes records older than the retention window.
type Cleaner struct {
	cfg     *config.Config
	backend storage.Backend
	log     zerolog.Logger
	now     func() time.Time
}

// NewCleaner builds a cleaner over the given backend.
func NewCleaner(cfg *config.Config, backend storage.Backend, log zerolog.Logger) *Cleaner {
	return &Cleaner{cfg: cfg, backend: backend, log: log, now: time.Now}
}

// Run executes one cleanup pass. In dry-run mode it only reports the matching
// count and a bounded sample. Archival failures never block deletion.
func (c *Cleaner) Run(ctx context.Context, opts Options) (*Report, error) {
	days := opts.Days
	if days <= 0 {
		days = c.cfg.RetentionDays()
	}
	cutoff := c.now().AddDate(0, 0, -days)

	f := models.Filter{DateTo: &cutoff}
	if opts.Level != "" {
		level, err := models.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		f.Levels = []models.Level{level}
	}
	if opts.Category != "" {
		f.Categories = []string{opts.Category}
	}

	report := &Report{Cutoff: cutoff, Days: days, DryRun: opts.DryRun}

	count, err := c.backend.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("counting expired records: %w", err)
	}
	report.Count = count
	if count == 0 {
		return report, nil
	}

	page, err := c.backend.Query(ctx, f, models.Page{Number: 1, Size: sampleSize})
	if err != nil {
		return nil, fmt.Errorf("sampling expired records: %w", err)
	}
	report.Sample = page.Items

	if opts.DryRun {
		return report, nil
	}

	if opts.Compress && c.cfg.Retention.CompressBeforeDelete {
		archives, err := c.archive(ctx, f)
		if err != nil {
			// Best effort only.
			c.log.Error().Err(err).Msg("archival failed, proceeding with deletion")
		}
		report.Archives = archives
	}

	deleted, err := c.backend.Delete(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("deleting expired records: %w", err)
	}
	report.Deleted = deleted
	return report, nil
}

// archive writes the matching records, grouped by calendar day, to
// gzip-compressed JSON files under the configured archive path. Records are
// fetched in bounded batches.
func (c *Cleaner) archive(ctx context.Context, f models.Filter) ([]string, error) {
	if err := os.MkdirAll(c.cfg.Retention.ArchivePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	type dayArchive struct {
		file *os.File
		gz   *gzip.Writer
		enc  export.Encoder
	}
	days := make(map[string]*dayArchive)
	var paths []string

	closeAll := func() error {
		var firstErr error
		for _, a := range days {
			if err := a.enc.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := a.gz.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := a.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	batch := models.Page{Number: 1, Size: c.cfg.Performance.BatchSize}
	for {
		page, err := c.backend.Query(ctx, f, batch)
		if err != nil {
			closeAll()
			return paths, err
		}
		for i := range page.Items {
			rec := &page.Items[i]
			day := rec.CreatedAt.UTC().Format("2006-01-02")
			a, ok := days[day]
			if !ok {
				path := filepath.Join(c.cfg.Retention.ArchivePath, fmt.Sprintf("logs-%s.json.gz", day))
				file, err := os.Create(path)
				if err != nil {
					closeAll()
					return paths, err
				}
				gz := gzip.NewWriter(file)
				enc, err := export.NewEncoder(gz, export.FormatJSON)
				if err != nil {
					file.Close()
					closeAll()
					return paths, err
				}
				a = &dayArchive{file: file, gz: gz, enc: enc}
				days[day] = a
				paths = append(paths, path)
			}
			if err := a.enc.Write(rec); err != nil {
				closeAll()
				return paths, err
			}
		}
		if batch.Number >= page.TotalPages {
			break
		}
		batch.Number++
	}

	if err := closeAll(); err != nil {
		return paths, err
	}
	c.log.Info().Int("files", len(paths)).Msg("archived expired records")
	return paths, nil
}
