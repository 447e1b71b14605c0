package models

import "time"

// Period is a shorthand for a relative created_at range.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodThisWeek  Period = "this_week"
	PeriodThisMonth Period = "this_month"
)

// Range resolves the period against now, returning the half-open interval
// [from, to).
func (p Period) Range(now time.Time) (time.Time, time.Time, bool) {
	year, month, day := now.Date()
	startOfDay := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	switch p {
	case PeriodToday:
		return startOfDay, startOfDay.AddDate(0, 0, 1), true
	case PeriodYesterday:
		return startOfDay.AddDate(0, 0, -1), startOfDay, true
	case PeriodThisWeek:
		// Weeks start on Monday.
		offset := (int(now.Weekday()) + 6) % 7
		start := startOfDay.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), true
	case PeriodThisMonth:
		start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// Filter is the query vocabulary shared by querying, counting, aggregation,
// deletion and export.
type Filter struct {
	Levels     []Level    `json:"levels,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Search     string     `json:"search,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	IsResolved *bool      `json:"is_resolved,omitempty"`
	UserID     *int64     `json:"user_id,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	RequestID  string     `json:"request_id,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Period     Period     `json:"period,omitempty"`
}

// IsZero reports whether no filter criteria are set.
func (f Filter) IsZero() bool {
	return len(f.Levels) == 0 && len(f.Categories) == 0 && f.Search == "" &&
		f.DateFrom == nil && f.DateTo == nil && f.IsResolved == nil &&
		f.UserID == nil && len(f.Tags) == 0 && f.RequestID == "" &&
		f.SessionID == "" && f.Period == ""
}

// Page describes the requested slice of a result set. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 50
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PagedResult is one page of query results plus pagination metadata.
type PagedResult struct {
	Items      []LogRecord `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

// Stats is the aggregate view over a filtered record set.
type Stats struct {
	Total      int64            `json:"total"`
	ByLevel    map[Level]int64  `json:"by_level"`
	ByCategory map[string]int64 `json:"by_category"`
	Resolved   int64            `json:"resolved"`
	Unresolved int64            `json:"unresolved"`
	Today      int64            `json:"today"`
	ThisWeek   int64            `json:"this_week"`
	ThisMonth  int64            `json:"this_month"`
}

// RequestInfo carries the ambient per-request identity the host application
// knows about. The facade copies it onto every record logged during the
// request.
type RequestInfo struct {
	UserID    *int64
	IPAddress string
	UserAgent string
	RequestID string
	SessionID string
	RouteName string
	Method    string
	URL       string
}
