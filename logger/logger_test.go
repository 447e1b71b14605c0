package logger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simorgh/advanced-logger/alert"
	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
	"github.com/simorgh/advanced-logger/sanitize"
)

// memoryBackend is an in-memory storage.Backend for facade tests.
type memoryBackend struct {
	mu       sync.Mutex
	records  []models.LogRecord
	storeErr error
}

func (m *memoryBackend) Store(ctx context.Context, rec *models.LogRecord) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memoryBackend) Query(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]models.LogRecord(nil), m.records...)
	return &models.PagedResult{
		Items: items, Total: int64(len(items)),
		Page: 1, PerPage: len(items) + 1, TotalPages: 1,
	}, nil
}

func (m *memoryBackend) Count(ctx context.Context, f models.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.records {
		if len(f.Levels) > 0 && rec.Level != f.Levels[0] {
			continue
		}
		if f.DateFrom != nil && rec.CreatedAt.Before(*f.DateFrom) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memoryBackend) Stats(ctx context.Context, f models.Filter) (*models.Stats, error) {
	return &models.Stats{}, nil
}

func (m *memoryBackend) Delete(ctx context.Context, f models.Filter) (int64, error) {
	return 0, nil
}

func (m *memoryBackend) Resolve(ctx context.Context, id string) error   { return nil }
func (m *memoryBackend) Unresolve(ctx context.Context, id string) error { return nil }
func (m *memoryBackend) Close() error                                   { return nil }

func (m *memoryBackend) last(t *testing.T) models.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.records)
	return m.records[len(m.records)-1]
}

func (m *memoryBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func testConfig() *config.Config {
	return &config.Config{
		Enabled:     true,
		Environment: "local",
		Security: config.SecurityConfig{
			SanitizeSensitiveData: true,
			SensitivePatterns:     sanitize.DefaultPatterns,
			MaskReplacement:       sanitize.DefaultMask,
		},
		Performance: config.PerformanceConfig{BatchSize: 100},
	}
}

func newTestService(cfg *config.Config, backend *memoryBackend) *Service {
	engine := alert.NewEngine(config.AlertsConfig{Enabled: false}, backend, zerolog.Nop())
	return New(cfg, backend, engine, zerolog.Nop())
}

func TestLogPersistsNormalizedRecord(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Log(context.Background(), "ERROR", "boom", nil)

	rec := backend.last(t)
	assert.Equal(t, models.LevelError, rec.Level)
	assert.Equal(t, "boom", rec.Message)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.RequestID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestLogCoercesUnknownLevelToError(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Log(context.Background(), "nonsense", "odd level", nil)

	assert.Equal(t, models.LevelError, backend.last(t).Level)
}

func TestLogDisabledIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	backend := &memoryBackend{}
	svc := newTestService(cfg, backend)

	svc.Error(context.Background(), "should vanish", nil)

	assert.Zero(t, backend.count())
}

func TestLogCallContextWinsOnConflict(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Context(models.Context{"source": "chained", "keep": 1}).
		Log(context.Background(), models.LevelInfo, "merge", models.Context{"source": "call"})

	rec := backend.last(t)
	assert.Equal(t, "call", rec.Context["source"])
	assert.Equal(t, 1, rec.Context["keep"])
}

func TestLogSanitizesContext(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Info(context.Background(), "login", models.Context{
		"password": "hunter2",
		"profile":  models.Context{"api_token": "abc"},
	})

	rec := backend.last(t)
	assert.Equal(t, sanitize.DefaultMask, rec.Context["password"])
	assert.Equal(t, sanitize.DefaultMask, rec.Context["profile"].(models.Context)["api_token"])
}

func TestLogExtractsReservedKeys(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Info(context.Background(), "tagged", models.Context{
		"_tags":  []string{"checkout", "retry"},
		"_extra": models.Context{"attempt": 2},
		"plain":  "stays",
	})

	rec := backend.last(t)
	assert.Equal(t, []string{"checkout", "retry"}, rec.Tags)
	assert.Equal(t, models.Context{"attempt": 2}, rec.Extra)
	assert.Equal(t, "stays", rec.Context["plain"])
	assert.NotContains(t, rec.Context, "_tags")
	assert.NotContains(t, rec.Context, "_extra")
}

func TestLogReservedKeysWrongTypeDegradeToEmpty(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Info(context.Background(), "odd reserved", models.Context{
		"_tags":  "not-a-list",
		"_extra": 42,
	})

	rec := backend.last(t)
	assert.Empty(t, rec.Tags)
	assert.Empty(t, rec.Extra)
	assert.NotContains(t, rec.Context, "_tags")
	assert.NotContains(t, rec.Context, "_extra")
}

func TestChainedStateDoesNotLeakAcrossCalls(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Category("payments").User(7).
		Context(models.Context{"order": 1}).
		Warning(context.Background(), "first", nil)
	svc.Info(context.Background(), "second", nil)

	require.Equal(t, 2, backend.count())
	first := backend.records[0]
	second := backend.records[1]

	assert.Equal(t, "payments", first.Category)
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(7), *first.UserID)

	assert.Empty(t, second.Category)
	assert.Nil(t, second.UserID)
	assert.NotContains(t, second.Context, "order")
}

func TestEntryChainingIsImmutable(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	base := svc.Category("auth")
	withUser := base.User(42)

	base.Info(context.Background(), "no user", nil)
	withUser.Info(context.Background(), "with user", nil)

	require.Equal(t, 2, backend.count())
	assert.Nil(t, backend.records[0].UserID)
	require.NotNil(t, backend.records[1].UserID)
	assert.Equal(t, int64(42), *backend.records[1].UserID)
}

func TestStorageFailureNeverPropagates(t *testing.T) {
	backend := &memoryBackend{storeErr: errors.New("disk full")}
	svc := newTestService(testConfig(), backend)

	assert.NotPanics(t, func() {
		svc.Critical(context.Background(), "lost", nil)
	})
	assert.Zero(t, backend.count())
}

func TestExceptionPopulatesErrorFields(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Exception(context.Background(), errors.New("bad state"), models.Context{"stage": "checkout"})

	rec := backend.last(t)
	assert.Equal(t, models.LevelError, rec.Level)
	assert.Equal(t, "Exception: bad state", rec.Message)
	assert.Equal(t, "*errors.errorString", rec.ExceptionClass)
	assert.Equal(t, "bad state", rec.ExceptionMessage)
	assert.NotEmpty(t, rec.StackTrace)
	assert.NotEmpty(t, rec.File)
	assert.NotZero(t, rec.Line)
	assert.Equal(t, "checkout", rec.Context["stage"])
}

func TestPerformanceLogsAtInfoWithDuration(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Performance(context.Background(), "checkout", 1.25, nil)

	rec := backend.last(t)
	assert.Equal(t, models.LevelInfo, rec.Level)
	assert.Equal(t, "Performance: checkout took 1.25s", rec.Message)
	assert.Equal(t, "checkout", rec.Context["operation"])
	require.NotNil(t, rec.ExecutionTime)
	assert.Equal(t, 1.25, *rec.ExecutionTime)
}

func TestSecurityUsesFixedCategoryAndWarning(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	svc.Security(context.Background(), "failed login", models.Context{"attempts": 5})

	rec := backend.last(t)
	assert.Equal(t, models.LevelWarning, rec.Level)
	assert.Equal(t, "security", rec.Category)
	assert.Equal(t, "Security: failed login", rec.Message)
}

func TestAmbientRequestIdentityFromContext(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	userID := int64(99)
	ctx := WithRequest(context.Background(), models.RequestInfo{
		UserID:    &userID,
		IPAddress: "10.0.0.8",
		RequestID: "req-123",
		SessionID: "sess-9",
		Method:    "POST",
		URL:       "https://example.test/orders",
	})

	svc.Info(ctx, "ambient", nil)

	rec := backend.last(t)
	assert.Equal(t, "10.0.0.8", rec.IPAddress)
	assert.Equal(t, "req-123", rec.RequestID)
	assert.Equal(t, "sess-9", rec.SessionID)
	assert.Equal(t, "POST", rec.Method)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, int64(99), *rec.UserID)
}

func TestChainedUserOverridesAmbientIdentity(t *testing.T) {
	backend := &memoryBackend{}
	svc := newTestService(testConfig(), backend)

	ambient := int64(1)
	ctx := WithRequest(context.Background(), models.RequestInfo{UserID: &ambient})

	svc.User(2).Info(ctx, "explicit wins", nil)

	rec := backend.last(t)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, int64(2), *rec.UserID)
}
