package captcha

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *cooldown.Tracker) {
	t.Helper()

	lockout := cooldown.NewTracker(storage.NewMemoryStore(),
		cooldown.DomainVerificationLockout, cooldown.LockoutDuration, zap.NewNop())

	return NewManager(storage.NewMemoryStore(), lockout, zap.NewNop()), lockout
}

func TestIssueAndSolve(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	manager, _ := newTestManager(t)

	record, err := manager.Issue(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, record.Code, CodeLength)
	assert.Equal(t, MaxAttempts, record.MaxAttempts)
	assert.Zero(t, record.Attempts)

	for _, ch := range record.Code {
		assert.True(t, (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9'),
			"code must be uppercase alphanumeric")
	}

	t.Run("wrong answer consumes an attempt", func(t *testing.T) {
		result, err := manager.Submit(ctx, "100", "WRONG1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeIncorrect, result.Outcome)
		assert.Equal(t, MaxAttempts-1, result.AttemptsRemaining)
	})

	t.Run("correct answer verifies and clears the record", func(t *testing.T) {
		result, err := manager.Submit(ctx, "100", record.Code)
		require.NoError(t, err)
		assert.Equal(t, OutcomeVerified, result.Outcome)

		_, found, err := manager.Active(ctx, "100")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("answers after success find no challenge", func(t *testing.T) {
		_, err := manager.Submit(ctx, "100", record.Code)
		assert.ErrorIs(t, err, ErrNoActiveChallenge)
	})
}

func TestAnswerComparisonIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	manager, _ := newTestManager(t)

	record, err := manager.Issue(ctx, "100")
	require.NoError(t, err)

	result, err := manager.Submit(ctx, "100", "  "+strings.ToLower(record.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, result.Outcome)
}

func TestExhaustionStartsLockout(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	manager, lockout := newTestManager(t)

	_, err := manager.Issue(ctx, "100")
	require.NoError(t, err)

	for i := range MaxAttempts - 1 {
		result, err := manager.Submit(ctx, "100", "WRONG1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeIncorrect, result.Outcome)
		assert.Equal(t, MaxAttempts-1-i, result.AttemptsRemaining)
	}

	// The final wrong answer exhausts immediately: no extra submission
	// is needed to trigger the lockout.
	result, err := manager.Submit(ctx, "100", "WRONG1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, cooldown.LockoutDuration, result.LockoutDuration)

	_, found, err := manager.Active(ctx, "100")
	require.NoError(t, err)
	assert.False(t, found, "exhausted challenge must be deleted")

	active, err := lockout.IsOnCooldown(ctx, "100")
	require.NoError(t, err)
	assert.True(t, active)

	t.Run("new challenge refused during lockout", func(t *testing.T) {
		_, err := manager.Issue(ctx, "100")

		var cooldownErr *OnCooldownError
		require.ErrorAs(t, err, &cooldownErr)
		assert.Greater(t, cooldownErr.Remaining, time.Duration(0))
	})

	t.Run("lockout expiry allows a fresh challenge", func(t *testing.T) {
		require.NoError(t, lockout.Clear(ctx, "100"))

		record, err := manager.Issue(ctx, "100")
		require.NoError(t, err)
		assert.Zero(t, record.Attempts)
	})
}

func TestReissueReplacesChallenge(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	manager, _ := newTestManager(t)

	first, err := manager.Issue(ctx, "100")
	require.NoError(t, err)

	_, err = manager.Submit(ctx, "100", "WRONG1")
	require.NoError(t, err)

	second, err := manager.Issue(ctx, "100")
	require.NoError(t, err)
	assert.Zero(t, second.Attempts, "reissue resets the attempt count")

	// The old code stops working once replaced, unless the codes
	// happen to collide.
	if first.Code != second.Code {
		result, err := manager.Submit(ctx, "100", first.Code)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIncorrect, result.Outcome)
	}
}

func TestClearAndCounts(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	manager, _ := newTestManager(t)

	_, err := manager.Issue(ctx, "100")
	require.NoError(t, err)
	_, err = manager.Issue(ctx, "200")
	require.NoError(t, err)

	count, err := manager.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, manager.Clear(ctx, "100"))

	count, err = manager.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = manager.Submit(ctx, "100", "ABCDEF")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}

func TestGenerateCodeUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)

	for range 100 {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		seen[code] = struct{}{}
	}

	assert.Greater(t, len(seen), 95, "codes should almost never collide")
}

func TestGenerateCodeUniformity(t *testing.T) {
	t.Parallel()

	counts := make(map[byte]int, len(codeAlphabet))

	const draws = 20000

	for range draws {
		code, err := generateCode()
		require.NoError(t, err)

		for i := range len(code) {
			counts[code[i]]++
		}
	}

	// Every character must land close to its expected share; a modulo
	// reduction over the alphabet would overweight the first characters
	// by well over this tolerance at this sample size.
	expected := float64(draws*CodeLength) / float64(len(codeAlphabet))

	for i := range len(codeAlphabet) {
		count := counts[codeAlphabet[i]]
		assert.InDelta(t, expected, float64(count), expected*0.08,
			"character %c is over- or under-represented", codeAlphabet[i])
	}
}

func TestRenderCaptchaImage(t *testing.T) {
	t.Parallel()

	renderer := NewImageRenderer()

	data, err := renderer.RenderCaptchaImage("A1B2C3")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, imageWidth, bounds.Dx())
	assert.Equal(t, imageHeight, bounds.Dy())
}
