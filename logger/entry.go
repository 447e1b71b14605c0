package logger

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/simorgh/advanced-logger/models"
)

// Entry is the pending log being built up through chained calls. Each chaining
// method returns a new value, so an Entry can be held and reused without one
// terminal call's state leaking into the next; a terminal call on the Service
// itself always starts from a clean Entry.
type Entry struct {
	svc      *Service
	category string
	context  models.Context
	userID   *int64
	request  *models.RequestInfo
}

func (e *Entry) clone() *Entry {
	copied := *e
	if e.context != nil {
		copied.context = make(models.Context, len(e.context))
		for k, v := range e.context {
			copied.context[k] = v
		}
	}
	return &copied
}

// Category sets the category for the pending log.
func (e *Entry) Category(name string) *Entry {
	out := e.clone()
	out.category = name
	return out
}

// Context merges additional context into the pending log.
func (e *Entry) Context(ctx models.Context) *Entry {
	out := e.clone()
	if out.context == nil {
		out.context = make(models.Context, len(ctx))
	}
	for k, v := range ctx {
		out.context[k] = v
	}
	return out
}

// User sets the acting user for the pending log. It takes precedence over the
// ambient request identity.
func (e *Entry) User(id int64) *Entry {
	out := e.clone()
	out.userID = &id
	return out
}

// Request attaches the ambient request identity for the pending log,
// overriding whatever is on the call's context.
func (e *Entry) Request(info models.RequestInfo) *Entry {
	out := e.clone()
	out.request = &info
	return out
}

// Log is the terminal call: it normalizes, sanitizes, persists and triggers
// alert evaluation. It never returns an error; storage failures are written
// to the fallback sink along with the dropped record's level and message.
func (e *Entry) Log(ctx context.Context, level models.Level, message string, kv models.Context) {
	s := e.svc
	if !s.cfg.Enabled {
		return
	}

	normalized, err := models.ParseLevel(string(level))
	if err != nil {
		// A bad level must not make logging crash; degrade to error.
		normalized = models.LevelError
	}

	// Call-supplied context wins on key conflict.
	merged := make(models.Context, len(e.context)+len(kv))
	for k, v := range e.context {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}

	merged = s.sanitizer.Apply(merged)
	tags, extra, merged := extractReserved(merged)

	rec := &models.LogRecord{
		ID:          uuid.New().String(),
		Level:       normalized,
		Category:    e.category,
		Message:     message,
		Context:     merged,
		Tags:        tags,
		Extra:       extra,
		MemoryUsage: s.memory(),
		CreatedAt:   s.now(),
	}
	e.applyIdentity(ctx, rec)
	applyExceptionFields(rec)

	if err := s.backend.Store(ctx, rec); err != nil {
		s.fallback.Error().Err(err).
			Str("level", string(rec.Level)).
			Str("message", rec.Message).
			Msg("log storage failed, record dropped")
		return
	}

	s.alerts.Check(ctx, rec)
}

// applyIdentity fills the correlation fields from the explicitly chained state
// first, then the ambient request info carried on the context.
func (e *Entry) applyIdentity(ctx context.Context, rec *models.LogRecord) {
	info := e.request
	if info == nil {
		if ambient, ok := RequestFromContext(ctx); ok {
			info = &ambient
		}
	}
	if info != nil {
		rec.IPAddress = info.IPAddress
		rec.UserAgent = info.UserAgent
		rec.RequestID = info.RequestID
		rec.SessionID = info.SessionID
		rec.RouteName = info.RouteName
		rec.Method = info.Method
		rec.URL = info.URL
		rec.UserID = info.UserID
	}
	if e.userID != nil {
		rec.UserID = e.userID
	}
	if rec.RequestID == "" {
		rec.RequestID = uuid.New().String()
	}
}

// Emergency logs at the emergency level.
func (e *Entry) Emergency(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelEmergency, message, kv)
}

// Alert logs at the alert level.
func (e *Entry) Alert(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelAlert, message, kv)
}

// Critical logs at the critical level.
func (e *Entry) Critical(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelCritical, message, kv)
}

// Error logs at the error level.
func (e *Entry) Error(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelError, message, kv)
}

// Warning logs at the warning level.
func (e *Entry) Warning(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelWarning, message, kv)
}

// Notice logs at the notice level.
func (e *Entry) Notice(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelNotice, message, kv)
}

// Info logs at the info level.
func (e *Entry) Info(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelInfo, message, kv)
}

// Debug logs at the debug level.
func (e *Entry) Debug(ctx context.Context, message string, kv models.Context) {
	e.Log(ctx, models.LevelDebug, message, kv)
}

// Exception logs err at the error level with its type, message, stack trace
// and the caller's file and line.
func (e *Entry) Exception(ctx context.Context, err error, kv models.Context) {
	merged := make(models.Context, len(kv)+5)
	for k, v := range kv {
		merged[k] = v
	}
	merged["exception_class"] = fmt.Sprintf("%T", err)
	merged["exception_message"] = err.Error()
	merged["stack_trace"] = string(debug.Stack())
	if _, file, line, ok := runtime.Caller(1); ok {
		merged["file"] = file
		merged["line"] = line
	}
	e.Log(ctx, models.LevelError, fmt.Sprintf("Exception: %s", err.Error()), merged)
}

// Performance logs an operation timing (seconds) at the info level.
func (e *Entry) Performance(ctx context.Context, operation string, duration float64, kv models.Context) {
	merged := make(models.Context, len(kv)+2)
	for k, v := range kv {
		merged[k] = v
	}
	merged["operation"] = operation
	merged["duration"] = duration
	e.Log(ctx, models.LevelInfo, fmt.Sprintf("Performance: %s took %gs", operation, duration), merged)
}

// Security logs an event under the fixed "security" category at the warning
// level.
func (e *Entry) Security(ctx context.Context, event string, kv models.Context) {
	e.Category("security").Log(ctx, models.LevelWarning, fmt.Sprintf("Security: %s", event), kv)
}

// extractReserved pulls the reserved _tags and _extra keys out of the context.
// Wrong-typed values degrade to empty.
func extractReserved(ctx models.Context) ([]string, models.Context, models.Context) {
	var tags []string
	var extra models.Context

	if raw, ok := ctx["_tags"]; ok {
		delete(ctx, "_tags")
		switch v := raw.(type) {
		case []string:
			tags = v
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tags = append(tags, s)
				}
			}
		}
	}
	if raw, ok := ctx["_extra"]; ok {
		delete(ctx, "_extra")
		switch v := raw.(type) {
		case models.Context:
			extra = v
		case map[string]any:
			extra = models.Context(v)
		}
	}
	return tags, extra, ctx
}

// applyExceptionFields hoists the well-known exception keys from context onto
// the record's dedicated columns.
func applyExceptionFields(rec *models.LogRecord) {
	ctx := rec.Context
	if v, ok := ctx["exception_class"].(string); ok {
		rec.ExceptionClass = v
		delete(ctx, "exception_class")
	}
	if v, ok := ctx["exception_message"].(string); ok {
		rec.ExceptionMessage = v
		delete(ctx, "exception_message")
	}
	if v, ok := ctx["stack_trace"].(string); ok {
		rec.StackTrace = v
		delete(ctx, "stack_trace")
	}
	if v, ok := ctx["file"].(string); ok {
		rec.File = v
		delete(ctx, "file")
	}
	if v, ok := ctx["line"].(int); ok {
		rec.Line = v
		delete(ctx, "line")
	}
	if v, ok := ctx["duration"].(float64); ok {
		rec.ExecutionTime = &v
	}
	if v, ok := ctx["execution_time"].(float64); ok {
		rec.ExecutionTime = &v
		delete(ctx, "execution_time")
	}
	if v, ok := ctx["status_code"].(int); ok {
		rec.StatusCode = &v
		delete(ctx, "status_code")
	}
}

type requestInfoKey struct{}

// WithRequest returns a context carrying the request identity; log calls made
// with the returned context inherit its correlation fields.
func WithRequest(ctx context.Context, info models.RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestFromContext extracts the ambient request identity, if any.
func RequestFromContext(ctx context.Context) (models.RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(models.RequestInfo)
	return info, ok
}
