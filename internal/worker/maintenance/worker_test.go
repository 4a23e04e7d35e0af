package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/storage"
)

func TestRunOnce(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	logger := zap.NewNop()

	// A nanosecond cooldown is expired by the time the sweep runs.
	expired := cooldown.NewTracker(storage.NewMemoryStore(),
		cooldown.DomainReminder, time.Nanosecond, logger)
	active := cooldown.NewTracker(storage.NewMemoryStore(),
		cooldown.DomainVerificationLockout, time.Hour, logger)

	require.NoError(t, expired.Set(ctx, "123"))
	require.NoError(t, expired.Set(ctx, "456"))
	require.NoError(t, active.Set(ctx, "123"))

	worker := &Worker{
		trackers: []*cooldown.Tracker{expired, active},
		logger:   logger,
	}
	worker.RunOnce(ctx)

	expiredCount, err := expired.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, expiredCount)

	activeCount, err := active.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, activeCount)
}
