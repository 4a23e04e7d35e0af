package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/platform"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []platform.Message
	failures int
}

func (f *fakeMessenger) SendDirect(context.Context, snowflake.ID, platform.Message) (platform.DMStatus, error) {
	return platform.DMSent, nil
}

func (f *fakeMessenger) SendToChannel(_ context.Context, _ snowflake.ID, msg platform.Message, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return errors.New("transient send failure")
	}

	f.sent = append(f.sent, msg)

	return nil
}

func TestChannelSinkEmit(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{}
	sink := NewChannelSink(messenger, snowflake.ID(42), zap.NewNop())

	event := RuleViolation(snowflake.ID(100), 1, "Rule 1: No scams.", "free nitro scam")
	sink.Emit(t.Context(), event)

	require.Len(t, messenger.sent, 1)
	msg := messenger.sent[0]
	assert.Equal(t, "Rule Violation", msg.Title)
	assert.Equal(t, ColorOrange, msg.Color)
	assert.Contains(t, msg.Footer, event.ID.String())
	require.Len(t, msg.Fields, 3)
	assert.Equal(t, "Message", msg.Fields[2].Name)
}

func TestChannelSinkRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{failures: 2}
	sink := NewChannelSink(messenger, snowflake.ID(42), zap.NewNop())

	sink.Emit(t.Context(), VerificationCompleted(snowflake.ID(100)))

	assert.Len(t, messenger.sent, 1, "delivery should succeed after retries")
}

func TestChannelSinkSwallowsPermanentFailure(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{failures: 100}
	sink := NewChannelSink(messenger, snowflake.ID(42), zap.NewNop())

	// Emit must not panic or block indefinitely when delivery keeps
	// failing.
	sink.Emit(t.Context(), MemberLeft(snowflake.ID(100), "ghost"))

	assert.Empty(t, messenger.sent)
}

func TestEventConstructors(t *testing.T) {
	t.Parallel()

	t.Run("ids are unique", func(t *testing.T) {
		a := MemberJoined(snowflake.ID(1), "a", time.Now())
		b := MemberJoined(snowflake.ID(1), "a", time.Now())
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("long content is truncated", func(t *testing.T) {
		long := make([]byte, 5000)
		for i := range long {
			long[i] = 'x'
		}

		event := MessageDeleted(snowflake.ID(1), snowflake.ID(2), string(long))
		content := event.Fields[2].Value
		assert.LessOrEqual(t, len(content), messageExcerptLen)
	})

	t.Run("escalation carries type and severity", func(t *testing.T) {
		event := SuspiciousActivity(snowflake.ID(1), "rapid_violations", "high", "3 rule violations within 300 seconds")
		assert.Equal(t, ColorRed, event.Color)
		assert.Equal(t, "rapid_violations", event.Fields[1].Value)
		assert.Equal(t, "high", event.Fields[2].Value)
	})
}
