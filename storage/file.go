package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/simorgh/advanced-logger/models"
)

// FileBackend appends records as JSON lines to one file per calendar day.
// It supports a reduced surface: Store plus scan-based Query/Count. Deletion,
// aggregation and resolution require the relational backend.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// OpenFile creates the log directory if needed.
func OpenFile(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Store appends the record to today's file.
func (b *FileBackend) Store(ctx context.Context, rec *models.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	name := filepath.Join(b.dir, rec.CreatedAt.UTC().Format("2006-01-02")+".log")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Query scans the day files newest-first and applies the filter in memory.
func (b *FileBackend) Query(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error) {
	page = page.Normalize()

	matched, err := b.scan(ctx, f)
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return &models.PagedResult{
		Items:      matched[start:end],
		Total:      total,
		Page:       page.Number,
		PerPage:    page.Size,
		TotalPages: totalPages,
	}, nil
}

// Count scans the day files and counts matching records.
func (b *FileBackend) Count(ctx context.Context, f models.Filter) (int64, error) {
	matched, err := b.scan(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Stats is not supported by the file backend.
func (b *FileBackend) Stats(ctx context.Context, f models.Filter) (*models.Stats, error) {
	return nil, ErrUnsupported
}

// Delete is not supported by the file backend.
func (b *FileBackend) Delete(ctx context.Context, f models.Filter) (int64, error) {
	return 0, ErrUnsupported
}

// Resolve is not supported by the file backend.
func (b *FileBackend) Resolve(ctx context.Context, id string) error {
	return ErrUnsupported
}

// Unresolve is not supported by the file backend.
func (b *FileBackend) Unresolve(ctx context.Context, id string) error {
	return ErrUnsupported
}

// Close is a no-op; files are opened per write.
func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) scan(ctx context.Context, f models.Filter) ([]models.LogRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(b.dir, "*.log"))
	if err != nil {
		return nil, err
	}

	var matched []models.LogRecord
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := scanFile(name, f, &matched); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

func scanFile(name string, f models.Filter, out *[]models.LogRecord) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Skip corrupt lines rather than failing the whole read.
			continue
		}
		if matches(rec, f, time.Now()) {
			*out = append(*out, rec)
		}
	}
	return scanner.Err()
}

func matches(rec models.LogRecord, f models.Filter, now time.Time) bool {
	if len(f.Levels) > 0 && !containsLevel(f.Levels, rec.Level) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, rec.Category) {
		return false
	}
	if f.Search != "" &&
		!strings.Contains(rec.Message, f.Search) &&
		!strings.Contains(rec.ExceptionMessage, f.Search) {
		return false
	}
	if f.UserID != nil && (rec.UserID == nil || *rec.UserID != *f.UserID) {
		return false
	}
	for _, tag := range f.Tags {
		if !containsString(rec.Tags, tag) {
			return false
		}
	}
	if f.RequestID != "" && rec.RequestID != f.RequestID {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if f.IsResolved != nil && rec.IsResolved != *f.IsResolved {
		return false
	}
	if f.DateFrom != nil && rec.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && rec.CreatedAt.After(*f.DateTo) {
		return false
	}
	if from, to, ok := f.Period.Range(now); ok {
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			return false
		}
	}
	return true
}

func containsLevel(levels []models.Level, l models.Level) bool {
	for _, candidate := range levels {
		if candidate == l {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}
