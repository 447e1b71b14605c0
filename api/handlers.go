package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simorgh/advanced-logger/export"
	"github.com/simorgh/advanced-logger/logger"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/retention"
	"github.com/simorgh/advanced-logger/storage"
)

// LogHandler handles HTTP requests for log querying and operator actions.
type LogHandler struct {
	svc     *logger.Service
	cleaner *retention.Cleaner
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(svc *logger.Service, cleaner *retention.Cleaner) *LogHandler {
	return &LogHandler{svc: svc, cleaner: cleaner}
}

// List returns one page of logs matching the filter query parameters.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.GetLogs(r.Context(), f, parsePage(r))
	if err != nil {
		http.Error(w, "Failed to retrieve logs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Stats returns the aggregate view over the filtered records.
func (h *LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.svc.GetStats(r.Context(), f)
	if err != nil {
		http.Error(w, "Failed to compute stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// Clear deletes the matching records and reports the count.
func (h *LogHandler) Clear(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deleted, err := h.svc.ClearLogs(r.Context(), f)
	if err != nil {
		http.Error(w, "Failed to clear logs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"deleted": deleted})
}

// Export streams the matching records in the requested format.
func (h *LogHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}

	switch format {
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case export.FormatXML:
		w.Header().Set("Content-Type", "application/xml")
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=logs-%s.%s", time.Now().Format("2006-01-02"), format))

	if err := h.svc.ExportLogs(r.Context(), w, f, format); err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Export failed: "+err.Error(), http.StatusInternalServerError)
	}
}

// Resolve marks a record as resolved.
func (h *LogHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.setResolved(w, r, h.svc.Resolve)
}

// Unresolve clears a record's resolution flag.
func (h *LogHandler) Unresolve(w http.ResponseWriter, r *http.Request) {
	h.setResolved(w, r, h.svc.Unresolve)
}

func (h *LogHandler) setResolved(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	id := chi.URLParam(r, "id")
	if err := op(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "log record not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update record: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"id": id, "status": "ok"})
}

// AlertStats reports the standing of every configured threshold.
func (h *LogHandler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Alerts().Stats(r.Context())
	if err != nil {
		http.Error(w, "Failed to compute alert stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// TestChannels sends a synthetic alert through every enabled channel.
func (h *LogHandler) TestChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Alerts().TestChannels(r.Context()))
}

// Cleanup triggers a retention run. Accepts days, level, category, dry_run
// and compress query parameters.
func (h *LogHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))

	report, err := h.cleaner.Run(r.Context(), retention.Options{
		Days:     days,
		Level:    q.Get("level"),
		Category: q.Get("category"),
		DryRun:   q.Get("dry_run") == "true",
		Compress: q.Get("compress") == "true",
	})
	if err != nil {
		http.Error(w, "Cleanup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseFilter reads the shared filter vocabulary from query parameters.
// level and category accept comma-separated lists.
func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter

	for _, raw := range splitList(q.Get("level")) {
		level, err := models.ParseLevel(raw)
		if err != nil {
			return f, err
		}
		f.Levels = append(f.Levels, level)
	}
	f.Categories = splitList(q.Get("category"))
	f.Search = q.Get("search")
	f.Tags = splitList(q.Get("tags"))
	f.RequestID = q.Get("request_id")
	f.SessionID = q.Get("session_id")
	f.Period = models.Period(q.Get("period"))

	if v := q.Get("is_resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid is_resolved value %q", v)
		}
		f.IsResolved = &resolved
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid user_id value %q", v)
		}
		f.UserID = &id
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid date_from value %q", v)
		}
		f.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid date_to value %q", v)
		}
		f.DateTo = &t
	}
	return f, nil
}

func parsePage(r *http.Request) models.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("per_page"))
	return models.Page{Number: page, Size: size}.Normalize()
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
