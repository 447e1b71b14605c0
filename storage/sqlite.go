package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/simorgh/advanced-logger/models"
)

// timeLayout keeps a fixed-width fractional part so stored timestamps compare
// correctly as strings.
const timeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteBackend is the primary relational backend with the full filter and
// aggregate surface.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file and applies the
// schema.
func OpenSQLite(dataSourceName string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// migrate runs the SQL statements to set up the log table and its indexes.
func (b *SQLiteBackend) migrate() error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS logs (
		id TEXT NOT NULL PRIMARY KEY,
		level TEXT NOT NULL,
		category TEXT,
		message TEXT NOT NULL,
		context_json TEXT,
		tags_json TEXT,
		extra_json TEXT,
		user_id INTEGER,
		ip_address TEXT,
		user_agent TEXT,
		request_id TEXT,
		session_id TEXT,
		route_name TEXT,
		method TEXT,
		url TEXT,
		status_code INTEGER,
		execution_time REAL,
		memory_usage INTEGER,
		exception_class TEXT,
		exception_message TEXT,
		stack_trace TEXT,
		file TEXT,
		line INTEGER,
		is_resolved INTEGER NOT NULL DEFAULT 0,
		resolved_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs (level);
	CREATE INDEX IF NOT EXISTS idx_logs_category ON logs (category);
	CREATE INDEX IF NOT EXISTS idx_logs_user ON logs (user_id);
	CREATE INDEX IF NOT EXISTS idx_logs_request ON logs (request_id);
	CREATE INDEX IF NOT EXISTS idx_logs_session ON logs (session_id);
	CREATE INDEX IF NOT EXISTS idx_logs_resolved ON logs (is_resolved);
	CREATE INDEX IF NOT EXISTS idx_logs_level_created ON logs (level, created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_category_created ON logs (category, created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_user_created ON logs (user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_level_category_created ON logs (level, category, created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_resolved_created ON logs (is_resolved, created_at);
	`
	_, err := b.db.Exec(sqlStmt)
	return err
}

// Store persists one record.
func (b *SQLiteBackend) Store(ctx context.Context, rec *models.LogRecord) error {
	contextJSON, err := marshalJSON(rec.Context)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	tagsJSON, err := marshalJSON(rec.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	extraJSON, err := marshalJSON(rec.Extra)
	if err != nil {
		return fmt.Errorf("encoding extra: %w", err)
	}

	stmt, err := b.db.PrepareContext(ctx, `INSERT INTO logs (
		id, level, category, message, context_json, tags_json, extra_json,
		user_id, ip_address, user_agent, request_id, session_id, route_name,
		method, url, status_code, execution_time, memory_usage,
		exception_class, exception_message, stack_trace, file, line,
		is_resolved, resolved_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		rec.ID, string(rec.Level), nullString(rec.Category), rec.Message,
		contextJSON, tagsJSON, extraJSON,
		rec.UserID, nullString(rec.IPAddress), nullString(rec.UserAgent),
		nullString(rec.RequestID), nullString(rec.SessionID), nullString(rec.RouteName),
		nullString(rec.Method), nullString(rec.URL), rec.StatusCode,
		rec.ExecutionTime, rec.MemoryUsage,
		nullString(rec.ExceptionClass), nullString(rec.ExceptionMessage),
		nullString(rec.StackTrace), nullString(rec.File), nullInt(rec.Line),
		boolToInt(rec.IsResolved), nullTime(rec.ResolvedAt), formatTime(rec.CreatedAt),
	)
	return err
}

const selectColumns = `id, level, category, message, context_json, tags_json, extra_json,
	user_id, ip_address, user_agent, request_id, session_id, route_name,
	method, url, status_code, execution_time, memory_usage,
	exception_class, exception_message, stack_trace, file, line,
	is_resolved, resolved_at, created_at`

// Query returns one page of matching records ordered newest first.
func (b *SQLiteBackend) Query(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error) {
	page = page.Normalize()

	total, err := b.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	where, args := buildWhere(f, time.Now())
	query := fmt.Sprintf("SELECT %s FROM logs%s ORDER BY created_at DESC LIMIT ? OFFSET ?", selectColumns, where)
	args = append(args, page.Size, page.Offset())

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.LogRecord, 0, page.Size)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return &models.PagedResult{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PerPage:    page.Size,
		TotalPages: totalPages,
	}, nil
}

// Count returns the number of matching records.
func (b *SQLiteBackend) Count(ctx context.Context, f models.Filter) (int64, error) {
	where, args := buildWhere(f, time.Now())
	var count int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+where, args...).Scan(&count)
	return count, err
}

// Stats aggregates the matching records.
func (b *SQLiteBackend) Stats(ctx context.Context, f models.Filter) (*models.Stats, error) {
	now := time.Now()
	where, args := buildWhere(f, now)

	stats := &models.Stats{
		ByLevel:    make(map[models.Level]int64),
		ByCategory: make(map[string]int64),
	}

	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+where, args...).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM logs"+where+" GROUP BY level", args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByLevel[models.Level(level)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = b.db.QueryContext(ctx, "SELECT COALESCE(category, ''), COUNT(*) FROM logs"+where+" GROUP BY category", args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByCategory[category] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resolved := true
	unresolved := false
	if stats.Resolved, err = b.Count(ctx, withResolved(f, &resolved)); err != nil {
		return nil, err
	}
	if stats.Unresolved, err = b.Count(ctx, withResolved(f, &unresolved)); err != nil {
		return nil, err
	}
	if stats.Today, err = b.Count(ctx, withPeriod(f, models.PeriodToday)); err != nil {
		return nil, err
	}
	if stats.ThisWeek, err = b.Count(ctx, withPeriod(f, models.PeriodThisWeek)); err != nil {
		return nil, err
	}
	if stats.ThisMonth, err = b.Count(ctx, withPeriod(f, models.PeriodThisMonth)); err != nil {
		return nil, err
	}
	return stats, nil
}

// Delete removes the matching records.
func (b *SQLiteBackend) Delete(ctx context.Context, f models.Filter) (int64, error) {
	where, args := buildWhere(f, time.Now())
	res, err := b.db.ExecContext(ctx, "DELETE FROM logs"+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Resolve marks the record as resolved and stamps resolved_at.
func (b *SQLiteBackend) Resolve(ctx context.Context, id string) error {
	return b.setResolved(ctx, id, true)
}

// Unresolve clears the resolution flag and resolved_at.
func (b *SQLiteBackend) Unresolve(ctx context.Context, id string) error {
	return b.setResolved(ctx, id, false)
}

func (b *SQLiteBackend) setResolved(ctx context.Context, id string, resolved bool) error {
	var resolvedAt any
	if resolved {
		resolvedAt = formatTime(time.Now())
	}
	res, err := b.db.ExecContext(ctx,
		"UPDATE logs SET is_resolved = ?, resolved_at = ? WHERE id = ?",
		boolToInt(resolved), resolvedAt, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// buildWhere translates the filter vocabulary into a WHERE clause. Free-text
// search uses LIKE over message, context and exception_message, matching the
// "simple substring filtering" scope.
func buildWhere(f models.Filter, now time.Time) (string, []any) {
	var conds []string
	var args []any

	if len(f.Levels) > 0 {
		placeholders := make([]string, len(f.Levels))
		for i, l := range f.Levels {
			placeholders[i] = "?"
			args = append(args, string(l))
		}
		conds = append(conds, fmt.Sprintf("level IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(f.Categories) > 0 {
		placeholders := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			placeholders[i] = "?"
			args = append(args, c)
		}
		conds = append(conds, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		conds = append(conds, "(message LIKE ? OR context_json LIKE ? OR exception_message LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	for _, tag := range f.Tags {
		// Tags are stored as a JSON array of strings.
		conds = append(conds, "tags_json LIKE ?")
		args = append(args, `%"`+tag+`"%`)
	}
	if f.RequestID != "" {
		conds = append(conds, "request_id = ?")
		args = append(args, f.RequestID)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.IsResolved != nil {
		conds = append(conds, "is_resolved = ?")
		args = append(args, boolToInt(*f.IsResolved))
	}
	if f.DateFrom != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(*f.DateTo))
	}
	if from, to, ok := f.Period.Range(now); ok {
		conds = append(conds, "created_at >= ? AND created_at < ?")
		args = append(args, formatTime(from), formatTime(to))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func withResolved(f models.Filter, resolved *bool) models.Filter {
	f.IsResolved = resolved
	return f
}

func withPeriod(f models.Filter, p models.Period) models.Filter {
	f.Period = p
	return f
}

func scanRecord(rows *sql.Rows) (*models.LogRecord, error) {
	var (
		rec              models.LogRecord
		level            string
		category         sql.NullString
		contextJSON      sql.NullString
		tagsJSON         sql.NullString
		extraJSON        sql.NullString
		userID           sql.NullInt64
		ipAddress        sql.NullString
		userAgent        sql.NullString
		requestID        sql.NullString
		sessionID        sql.NullString
		routeName        sql.NullString
		method           sql.NullString
		url              sql.NullString
		statusCode       sql.NullInt64
		executionTime    sql.NullFloat64
		memoryUsage      sql.NullInt64
		exceptionClass   sql.NullString
		exceptionMessage sql.NullString
		stackTrace       sql.NullString
		file             sql.NullString
		line             sql.NullInt64
		isResolved       int
		resolvedAt       sql.NullString
		createdAt        string
	)

	err := rows.Scan(&rec.ID, &level, &category, &rec.Message,
		&contextJSON, &tagsJSON, &extraJSON,
		&userID, &ipAddress, &userAgent, &requestID, &sessionID, &routeName,
		&method, &url, &statusCode, &executionTime, &memoryUsage,
		&exceptionClass, &exceptionMessage, &stackTrace, &file, &line,
		&isResolved, &resolvedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Level = models.Level(level)
	rec.Category = category.String
	rec.IPAddress = ipAddress.String
	rec.UserAgent = userAgent.String
	rec.RequestID = requestID.String
	rec.SessionID = sessionID.String
	rec.RouteName = routeName.String
	rec.Method = method.String
	rec.URL = url.String
	rec.ExceptionClass = exceptionClass.String
	rec.ExceptionMessage = exceptionMessage.String
	rec.StackTrace = stackTrace.String
	rec.File = file.String
	rec.IsResolved = isResolved != 0

	if userID.Valid {
		v := userID.Int64
		rec.UserID = &v
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		rec.StatusCode = &v
	}
	if executionTime.Valid {
		v := executionTime.Float64
		rec.ExecutionTime = &v
	}
	if memoryUsage.Valid {
		v := memoryUsage.Int64
		rec.MemoryUsage = &v
	}
	if line.Valid {
		rec.Line = int(line.Int64)
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &rec.Context); err != nil {
			return nil, fmt.Errorf("decoding context for %s: %w", rec.ID, err)
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for %s: %w", rec.ID, err)
		}
	}
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &rec.Extra); err != nil {
			return nil, fmt.Errorf("decoding extra for %s: %w", rec.ID, err)
		}
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		rec.ResolvedAt = &t
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func marshalJSON(v any) (any, error) {
	switch val := v.(type) {
	case models.Context:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
