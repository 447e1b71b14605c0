package retention

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerAcceptsCronExpression(t *testing.T) {
	c, _ := testCleaner(t)
	c.cfg.Retention.CleanupSchedule = "0 2 * * *"

	s, err := NewScheduler(c, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	s.Stop()
}

func TestNewSchedulerRejectsBadExpression(t *testing.T) {
	c, _ := testCleaner(t)
	c.cfg.Retention.CleanupSchedule = "not a schedule"

	_, err := NewScheduler(c, zerolog.Nop())
	assert.Error(t, err)
}

func TestSchedulerDisabledDoesNotStart(t *testing.T) {
	c, _ := testCleaner(t)
	c.cfg.Retention.Enabled = false
	c.cfg.Retention.CleanupSchedule = "0 2 * * *"

	s, err := NewScheduler(c, zerolog.Nop())
	require.NoError(t, err)

	// Start is a no-op; Stop must still return immediately.
	s.Start()
	s.Stop()
}
