// Package alert evaluates rolling-window thresholds against recent log volume
// and dispatches breaches to the configured notification channels.
package alert

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/notify"
)

// Counter is the slice of the storage backend the engine needs.
type Counter interface {
	Count(ctx context.Context, f models.Filter) (int64, error)
}

// Engine checks per-level thresholds after each stored record. It keeps no
// breach state: counts are recomputed from storage on every evaluation, so a
// breached threshold re-fires on every qualifying record. The optional
// cooldown suppresses repeats per level and is off by default.
type Engine struct {
	cfg      config.AlertsConfig
	counter  Counter
	channels []notify.Channel
	fallback zerolog.Logger

	now func() time.Time

	mu        sync.Mutex
	lastFired map[models.Level]time.Time
}

// NewEngine builds the engine and its enabled channels.
func NewEngine(cfg config.AlertsConfig, counter Counter, fallback zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		counter:   counter,
		channels:  notify.Channels(cfg.Channels),
		fallback:  fallback,
		now:       time.Now,
		lastFired: make(map[models.Level]time.Time),
	}
}

// Check evaluates the thresholds for the record's level and dispatches on
// breach. Channel failures are isolated: they are logged to the fallback sink
// and never abort other channels or the triggering log call.
func (e *Engine) Check(ctx context.Context, rec *models.LogRecord) {
	if !e.cfg.Enabled {
		return
	}
	if e.excluded(rec) {
		return
	}
	threshold, ok := e.cfg.Thresholds[string(rec.Level)]
	if !ok {
		return
	}

	recent, err := e.recentCount(ctx, rec.Level, threshold)
	if err != nil {
		e.fallback.Error().Err(err).Str("level", string(rec.Level)).
			Msg("alert threshold check failed")
		return
	}
	if recent < int64(threshold.Count) {
		return
	}
	if e.inCooldown(rec.Level) {
		return
	}

	e.dispatch(ctx, notify.Payload{
		Level:     rec.Level,
		Message:   rec.Message,
		Category:  rec.Category,
		Context:   rec.Context,
		Timestamp: e.now(),
		URL:       rec.URL,
		UserID:    rec.UserID,
		IPAddress: rec.IPAddress,
	})
}

func (e *Engine) excluded(rec *models.LogRecord) bool {
	for _, l := range e.cfg.Filters.ExcludeLevels {
		if strings.EqualFold(l, string(rec.Level)) {
			return true
		}
	}
	if len(e.cfg.Filters.IncludeCategories) > 0 {
		included := false
		for _, c := range e.cfg.Filters.IncludeCategories {
			if c == rec.Category {
				included = true
				break
			}
		}
		if !included {
			return true
		}
	}
	for _, c := range e.cfg.Filters.ExcludeCategories {
		if c == rec.Category {
			return true
		}
	}
	return false
}

func (e *Engine) recentCount(ctx context.Context, level models.Level, t config.Threshold) (int64, error) {
	since := e.now().Add(-time.Duration(ParseTimeWindow(t.TimeWindow)) * time.Minute)
	return e.counter.Count(ctx, models.Filter{
		Levels:   []models.Level{level},
		DateFrom: &since,
	})
}

func (e *Engine) inCooldown(level models.Level) bool {
	if e.cfg.CooldownMinutes <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if last, ok := e.lastFired[level]; ok {
		if now.Sub(last) < time.Duration(e.cfg.CooldownMinutes)*time.Minute {
			return true
		}
	}
	e.lastFired[level] = now
	return false
}

func (e *Engine) dispatch(ctx context.Context, p notify.Payload) {
	for _, ch := range e.channels {
		if err := ch.Send(ctx, p); err != nil {
			e.fallback.Error().Err(err).Str("channel", ch.Name()).
				Str("level", string(p.Level)).Msg("alert delivery failed")
		}
	}
}

// LevelStats describes one level's threshold standing.
type LevelStats struct {
	Threshold   int    `json:"threshold"`
	TimeWindow  string `json:"time_window"`
	RecentCount int64  `json:"recent_count"`
	Breached    bool   `json:"breached"`
}

// Stats reports the current standing of every configured threshold, using the
// same recency window computation as Check.
func (e *Engine) Stats(ctx context.Context) (map[models.Level]LevelStats, error) {
	out := make(map[models.Level]LevelStats, len(e.cfg.Thresholds))
	for name, threshold := range e.cfg.Thresholds {
		level, err := models.ParseLevel(name)
		if err != nil {
			continue
		}
		recent, err := e.recentCount(ctx, level, threshold)
		if err != nil {
			return nil, err
		}
		out[level] = LevelStats{
			Threshold:   threshold.Count,
			TimeWindow:  threshold.TimeWindow,
			RecentCount: recent,
			Breached:    recent >= int64(threshold.Count),
		}
	}
	return out, nil
}

// TestChannels sends a synthetic info-level payload through every enabled
// channel and reports per-channel results.
func (e *Engine) TestChannels(ctx context.Context) map[string]string {
	payload := notify.Payload{
		Level:     models.LevelInfo,
		Message:   "Test alert message",
		Category:  "test",
		Context:   models.Context{"test": true},
		Timestamp: e.now(),
	}

	results := make(map[string]string, len(e.channels))
	for _, ch := range e.channels {
		if err := ch.Send(ctx, payload); err != nil {
			results[ch.Name()] = "failed: " + err.Error()
			continue
		}
		results[ch.Name()] = "success"
	}
	return results
}

var windowRe = regexp.MustCompile(`(?i)(\d+)\s*(minute|hour|day|week)s?`)

// ParseTimeWindow converts a "<n> <unit>" window description to minutes.
// Unparseable input defaults to 60.
func ParseTimeWindow(window string) int {
	m := windowRe.FindStringSubmatch(strings.TrimSpace(window))
	if m == nil {
		return 60
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 60
	}
	switch strings.ToLower(m[2]) {
	case "minute":
		return value
	case "hour":
		return value * 60
	case "day":
		return value * 60 * 24
	case "week":
		return value * 60 * 24 * 7
	}
	return 60
}
