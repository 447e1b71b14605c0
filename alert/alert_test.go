package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/notify"
)

// stubCounter returns a fixed count and records the filters it saw.
type stubCounter struct {
	count   int64
	err     error
	filters []models.Filter
}

func (s *stubCounter) Count(ctx context.Context, f models.Filter) (int64, error) {
	s.filters = append(s.filters, f)
	return s.count, s.err
}

// fakeChannel records sends and can be told to fail.
type fakeChannel struct {
	name string
	err  error

	mu       sync.Mutex
	payloads []notify.Payload
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, p notify.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return c.err
}

func (c *fakeChannel) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newTestEngine(cfg config.AlertsConfig, counter Counter, channels ...notify.Channel) *Engine {
	e := NewEngine(cfg, counter, zerolog.Nop())
	e.channels = channels
	return e
}

func errorRecord() *models.LogRecord {
	return &models.LogRecord{
		ID:      "rec-1",
		Level:   models.LevelError,
		Message: "database connection refused",
	}
}

func thresholds(level string, count int, window string) map[string]config.Threshold {
	return map[string]config.Threshold{
		level: {Count: count, TimeWindow: window},
	}
}

func TestCheckFiresAllChannelsOnBreach(t *testing.T) {
	counter := &stubCounter{count: 20}
	ch1 := &fakeChannel{name: "one"}
	ch2 := &fakeChannel{name: "two"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 20, "1 hour"),
	}, counter, ch1, ch2)

	e.Check(context.Background(), errorRecord())

	assert.Equal(t, 1, ch1.sent())
	assert.Equal(t, 1, ch2.sent())
}

func TestCheckRefiresOnEveryQualifyingRecord(t *testing.T) {
	counter := &stubCounter{count: 25}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 20, "1 hour"),
	}, counter, ch)

	// No cooldown by default: each qualifying record fires again.
	for i := 0; i < 5; i++ {
		e.Check(context.Background(), errorRecord())
	}
	assert.Equal(t, 5, ch.sent())
}

func TestCheckBelowThresholdStaysQuiet(t *testing.T) {
	counter := &stubCounter{count: 19}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 20, "1 hour"),
	}, counter, ch)

	e.Check(context.Background(), errorRecord())
	assert.Zero(t, ch.sent())
}

func TestCheckChannelFailureIsIsolated(t *testing.T) {
	counter := &stubCounter{count: 20}
	failing := &fakeChannel{name: "bad", err: errors.New("network down")}
	working := &fakeChannel{name: "good"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 20, "1 hour"),
	}, counter, failing, working)

	e.Check(context.Background(), errorRecord())

	assert.Equal(t, 1, failing.sent())
	assert.Equal(t, 1, working.sent(), "failure of one channel must not block others")
}

func TestCheckDisabledEngine(t *testing.T) {
	counter := &stubCounter{count: 100}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    false,
		Thresholds: thresholds("error", 1, "1 hour"),
	}, counter, ch)

	e.Check(context.Background(), errorRecord())
	assert.Zero(t, ch.sent())
	assert.Empty(t, counter.filters, "disabled engine must not hit storage")
}

func TestCheckUnconfiguredLevel(t *testing.T) {
	counter := &stubCounter{count: 100}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("critical", 1, "1 hour"),
	}, counter, ch)

	e.Check(context.Background(), errorRecord())
	assert.Zero(t, ch.sent())
}

func TestCheckExcludedLevel(t *testing.T) {
	counter := &stubCounter{count: 100}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 1, "1 hour"),
		Filters:    config.AlertFilters{ExcludeLevels: []string{"error"}},
	}, counter, ch)

	e.Check(context.Background(), errorRecord())
	assert.Zero(t, ch.sent())
}

func TestCheckCategoryFilters(t *testing.T) {
	counter := &stubCounter{count: 100}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 1, "1 hour"),
		Filters:    config.AlertFilters{IncludeCategories: []string{"payments"}},
	}, counter, ch)

	rec := errorRecord()
	rec.Category = "auth"
	e.Check(context.Background(), rec)
	assert.Zero(t, ch.sent())

	rec.Category = "payments"
	e.Check(context.Background(), rec)
	assert.Equal(t, 1, ch.sent())
}

func TestCheckUsesThresholdWindow(t *testing.T) {
	counter := &stubCounter{count: 0}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 5, "30 minutes"),
	}, counter, &fakeChannel{name: "one"})

	start := time.Now()
	e.Check(context.Background(), errorRecord())

	require.Len(t, counter.filters, 1)
	f := counter.filters[0]
	assert.Equal(t, []models.Level{models.LevelError}, f.Levels)
	require.NotNil(t, f.DateFrom)
	expected := start.Add(-30 * time.Minute)
	assert.WithinDuration(t, expected, *f.DateFrom, 5*time.Second)
}

func TestCheckCooldownSuppressesRepeats(t *testing.T) {
	counter := &stubCounter{count: 20}
	ch := &fakeChannel{name: "one"}
	e := newTestEngine(config.AlertsConfig{
		Enabled:         true,
		CooldownMinutes: 10,
		Thresholds:      thresholds("error", 20, "1 hour"),
	}, counter, ch)

	e.Check(context.Background(), errorRecord())
	e.Check(context.Background(), errorRecord())
	assert.Equal(t, 1, ch.sent())
}

func TestStatsMatchesCheckWindow(t *testing.T) {
	counter := &stubCounter{count: 7}
	e := newTestEngine(config.AlertsConfig{
		Enabled:    true,
		Thresholds: thresholds("error", 5, "1 hour"),
	}, counter)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)

	s, ok := stats[models.LevelError]
	require.True(t, ok)
	assert.Equal(t, 5, s.Threshold)
	assert.Equal(t, "1 hour", s.TimeWindow)
	assert.Equal(t, int64(7), s.RecentCount)
	assert.True(t, s.Breached)
}

func TestTestChannelsReportsPerChannelResults(t *testing.T) {
	ok := &fakeChannel{name: "good"}
	bad := &fakeChannel{name: "bad", err: errors.New("no route to host")}
	e := newTestEngine(config.AlertsConfig{Enabled: true}, &stubCounter{}, ok, bad)

	results := e.TestChannels(context.Background())

	assert.Equal(t, "success", results["good"])
	assert.Equal(t, "failed: no route to host", results["bad"])
	require.Equal(t, 1, ok.sent())
	assert.Equal(t, models.LevelInfo, ok.payloads[0].Level)
}

func TestParseTimeWindow(t *testing.T) {
	cases := map[string]int{
		"1 minute":   1,
		"30 minutes": 30,
		"1 hour":     60,
		"2 Hours":    120,
		"1 day":      1440,
		"1 week":     10080,
		"garbage":    60,
		"":           60,
		"hours":      60,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseTimeWindow(input), input)
	}
}
