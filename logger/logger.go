// Package logger is the logging facade: it assembles canonical log records
// from chained per-call state, sanitizes them, persists them through the
// configured storage backend and triggers alert evaluation. Logging calls
// never return errors to the host application; storage failures go to a
// best-effort fallback sink.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/simorgh/advanced-logger/alert"
	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/sanitize"
	"github.com/simorgh/advanced-logger/storage"
)

// Service is the long-lived facade. It holds no per-call state; chained state
// lives on the Entry values it hands out, so concurrent requests cannot bleed
// into each other.
type Service struct {
	cfg       *config.Config
	backend   storage.Backend
	alerts    *alert.Engine
	sanitizer *sanitize.Sanitizer
	fallback  zerolog.Logger

	now    func() time.Time
	memory func() *int64
}

// New wires the facade together. The fallback logger is the always-available
// sink used when storage or alert delivery fails.
func New(cfg *config.Config, backend storage.Backend, alerts *alert.Engine, fallback zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		backend: backend,
		alerts:  alerts,
		sanitizer: sanitize.New(
			cfg.Security.SensitivePatterns,
			cfg.Security.MaskReplacement,
			cfg.Security.SanitizeSensitiveData,
		),
		fallback: fallback,
		now:      time.Now,
		memory:   processMemory(),
	}
}

// processMemory returns a sampler for the current process RSS.
func processMemory() func() *int64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return func() *int64 { return nil }
	}
	return func() *int64 {
		info, err := proc.MemoryInfo()
		if err != nil || info == nil {
			return nil
		}
		rss := int64(info.RSS)
		return &rss
	}
}

// Category starts a chain with the category set.
func (s *Service) Category(name string) *Entry {
	return s.entry().Category(name)
}

// Context starts a chain with accumulated context.
func (s *Service) Context(ctx models.Context) *Entry {
	return s.entry().Context(ctx)
}

// User starts a chain with the acting user set.
func (s *Service) User(id int64) *Entry {
	return s.entry().User(id)
}

// Request starts a chain carrying the ambient request identity.
func (s *Service) Request(info models.RequestInfo) *Entry {
	return s.entry().Request(info)
}

func (s *Service) entry() *Entry {
	return &Entry{svc: s}
}

// Log records a message at the given level.
func (s *Service) Log(ctx context.Context, level models.Level, message string, kv models.Context) {
	s.entry().Log(ctx, level, message, kv)
}

// Emergency logs at the emergency level.
func (s *Service) Emergency(ctx context.Context, message string, kv models.Context) {
	s.entry().Emergency(ctx, message, kv)
}

// Alert logs at the alert level.
func (s *Service) Alert(ctx context.Context, message string, kv models.Context) {
	s.entry().Alert(ctx, message, kv)
}

// Critical logs at the critical level.
func (s *Service) Critical(ctx context.Context, message string, kv models.Context) {
	s.entry().Critical(ctx, message, kv)
}

// Error logs at the error level.
func (s *Service) Error(ctx context.Context, message string, kv models.Context) {
	s.entry().Error(ctx, message, kv)
}

// Warning logs at the warning level.
func (s *Service) Warning(ctx context.Context, message string, kv models.Context) {
	s.entry().Warning(ctx, message, kv)
}

// Notice logs at the notice level.
func (s *Service) Notice(ctx context.Context, message string, kv models.Context) {
	s.entry().Notice(ctx, message, kv)
}

// Info logs at the info level.
func (s *Service) Info(ctx context.Context, message string, kv models.Context) {
	s.entry().Info(ctx, message, kv)
}

// Debug logs at the debug level.
func (s *Service) Debug(ctx context.Context, message string, kv models.Context) {
	s.entry().Debug(ctx, message, kv)
}

// Exception logs an error with its class, message, stack trace and origin.
func (s *Service) Exception(ctx context.Context, err error, kv models.Context) {
	s.entry().Exception(ctx, err, kv)
}

// Performance logs an operation timing at the info level.
func (s *Service) Performance(ctx context.Context, operation string, duration float64, kv models.Context) {
	s.entry().Performance(ctx, operation, duration, kv)
}

// Security logs a security event at the warning level.
func (s *Service) Security(ctx context.Context, event string, kv models.Context) {
	s.entry().Security(ctx, event, kv)
}

// Backend exposes the active storage backend for collaborators (retention,
// export, dashboards).
func (s *Service) Backend() storage.Backend {
	return s.backend
}

// Alerts exposes the alert engine for stats and channel testing.
func (s *Service) Alerts() *alert.Engine {
	return s.alerts
}

// Close releases the storage backend (draining the async queue if enabled).
func (s *Service) Close() error {
	return s.backend.Close()
}
