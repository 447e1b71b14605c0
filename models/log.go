package models

import (
	"fmt"
	"strings"
	"time"
)

// Level is one of the eight syslog-style severities, ordered from most to
// least severe.
type Level string

const (
	LevelEmergency Level = "emergency"
	LevelAlert     Level = "alert"
	LevelCritical  Level = "critical"
	LevelError     Level = "error"
	LevelWarning   Level = "warning"
	LevelNotice    Level = "notice"
	LevelInfo      Level = "info"
	LevelDebug     Level = "debug"
)

// Levels lists every valid severity in order of decreasing severity.
var Levels = []Level{
	LevelEmergency,
	LevelAlert,
	LevelCritical,
	LevelError,
	LevelWarning,
	LevelNotice,
	LevelInfo,
	LevelDebug,
}

// ParseLevel normalizes a severity name case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Levels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Valid reports whether l is one of the canonical severities.
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

func (l Level) String() string { return string(l) }

// Color returns the dashboard badge color for the level.
func (l Level) Color() string {
	switch l {
	case LevelEmergency, LevelAlert, LevelCritical:
		return "red"
	case LevelError:
		return "orange"
	case LevelWarning:
		return "yellow"
	case LevelNotice:
		return "blue"
	case LevelInfo:
		return "green"
	default:
		return "gray"
	}
}

// Emoji returns the marker used by text-based notification channels.
func (l Level) Emoji() string {
	switch l {
	case LevelEmergency, LevelAlert, LevelCritical:
		return "🚨"
	case LevelError:
		return "❌"
	case LevelWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Context is the arbitrary nested key/value payload attached to a record. It
// must stay JSON-serializable: values are limited to strings, numbers, bools,
// slices and nested maps.
type Context map[string]any

// LogRecord is the central persisted entity. Once stored it is immutable
// except for the resolution flag.
type LogRecord struct {
	ID       string   `json:"id"`
	Level    Level    `json:"level"`
	Category string   `json:"category,omitempty"`
	Message  string   `json:"message"`
	Context  Context  `json:"context,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Extra    Context  `json:"extra,omitempty"`

	UserID     *int64 `json:"user_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RouteName  string `json:"route_name,omitempty"`
	Method     string `json:"method,omitempty"`
	URL        string `json:"url,omitempty"`
	StatusCode *int   `json:"status_code,omitempty"`

	ExecutionTime *float64 `json:"execution_time,omitempty"` // seconds
	MemoryUsage   *int64   `json:"memory_usage,omitempty"`   // bytes

	ExceptionClass   string `json:"exception_class,omitempty"`
	ExceptionMessage string `json:"exception_message,omitempty"`
	StackTrace       string `json:"stack_trace,omitempty"`
	File             string `json:"file,omitempty"`
	Line             int    `json:"line,omitempty"`

	IsResolved bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Categories is the recommended (non-exhaustive) category set, keyed by label.
var Categories = map[string]string{
	"auth":        "Authentication & Authorization",
	"api":         "API Requests & Responses",
	"payments":    "Payment Processing",
	"database":    "Database Operations",
	"mail":        "Email Operations",
	"queue":       "Queue Processing",
	"cache":       "Cache Operations",
	"file":        "File Operations",
	"security":    "Security Events",
	"performance": "Performance Monitoring",
	"debug":       "Debug Information",
}
