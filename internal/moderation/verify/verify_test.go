package verify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/internal/moderation/captcha"
	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/moderation/platform"
	"github.com/venlyx/sentinel/internal/storage"
)

const (
	testGuild = snowflake.ID(10)
	testRole  = snowflake.ID(20)
	testUser  = snowflake.ID(100)
)

type fakeRoles struct {
	mu      sync.Mutex
	holders map[snowflake.ID]map[snowflake.ID]bool
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{holders: make(map[snowflake.ID]map[snowflake.ID]bool)}
}

func (f *fakeRoles) HasRole(_ context.Context, guildID, userID, _ snowflake.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.holders[guildID][userID], nil
}

func (f *fakeRoles) GrantRole(_ context.Context, guildID, userID, _ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.holders[guildID] == nil {
		f.holders[guildID] = make(map[snowflake.ID]bool)
	}

	f.holders[guildID][userID] = true

	return nil
}

func (f *fakeRoles) RevokeRole(_ context.Context, guildID, userID, _ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.holders[guildID], userID)

	return nil
}

func (f *fakeRoles) MembersWithRole(_ context.Context, guildID, _ snowflake.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.holders[guildID]), nil
}

type fakeMessenger struct {
	mu        sync.Mutex
	dms       []platform.Message
	dmStatus  platform.DMStatus
	channel   []platform.Message
}

func (f *fakeMessenger) SendDirect(_ context.Context, _ snowflake.ID, msg platform.Message) (platform.DMStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dmStatus == platform.DMSent {
		f.dms = append(f.dms, msg)
	}

	return f.dmStatus, nil
}

func (f *fakeMessenger) SendToChannel(_ context.Context, _ snowflake.ID, msg platform.Message, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.channel = append(f.channel, msg)

	return nil
}

type fakeScanner struct {
	guilds []snowflake.ID
}

func (f *fakeScanner) GuildsWithMember(context.Context, snowflake.ID) ([]snowflake.ID, error) {
	return f.guilds, nil
}

type fakeRenderer struct{}

func (fakeRenderer) RenderCaptchaImage(string) ([]byte, error) {
	return []byte("png-bytes"), nil
}

type recordingSink struct {
	mu     sync.Mutex
	titles []string
}

func (s *recordingSink) Emit(_ context.Context, event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.titles = append(s.titles, event.Title)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.titles...)
}

type fixture struct {
	orch      *Orchestrator
	captchas  *captcha.Manager
	lockout   *cooldown.Tracker
	roles     *fakeRoles
	messenger *fakeMessenger
	scanner   *fakeScanner
	sink      *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lockout := cooldown.NewTracker(storage.NewMemoryStore(),
		cooldown.DomainVerificationLockout, cooldown.LockoutDuration, zap.NewNop())
	captchas := captcha.NewManager(storage.NewMemoryStore(), lockout, zap.NewNop())
	roles := newFakeRoles()
	messenger := &fakeMessenger{dmStatus: platform.DMSent}
	scanner := &fakeScanner{guilds: []snowflake.ID{testGuild}}
	sink := &recordingSink{}

	orch := NewOrchestrator(captchas, lockout, roles, messenger, scanner,
		fakeRenderer{}, sink, testRole, zap.NewNop())

	return &fixture{
		orch:      orch,
		captchas:  captchas,
		lockout:   lockout,
		roles:     roles,
		messenger: messenger,
		scanner:   scanner,
		sink:      sink,
	}
}

func activeCode(t *testing.T, f *fixture) string {
	t.Helper()

	record, found, err := f.captchas.Active(t.Context(), testUser.String())
	require.NoError(t, err)
	require.True(t, found)

	return record.Code
}

func TestBeginSendsChallenge(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	outcome, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)
	assert.Equal(t, BeginChallengeSent, outcome.Result)
	assert.Equal(t, captcha.MaxAttempts, outcome.AttemptsAllowed)

	require.Len(t, f.messenger.dms, 1)
	dm := f.messenger.dms[0]
	assert.Equal(t, "Verification Required", dm.Title)
	assert.Equal(t, []byte("png-bytes"), dm.Image)
	assert.Equal(t, "captcha.png", dm.ImageName)

	assert.Contains(t, f.sink.all(), "Verification Started")
}

func TestBeginAlreadyVerified(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	require.NoError(t, f.roles.GrantRole(ctx, testGuild, testUser, testRole))

	outcome, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)
	assert.Equal(t, BeginAlreadyVerified, outcome.Result)
	assert.Empty(t, f.messenger.dms, "no challenge DM for verified members")

	_, found, err := f.captchas.Active(ctx, testUser.String())
	require.NoError(t, err)
	assert.False(t, found, "no challenge is created for verified members")
}

func TestBeginDeliveryFailureRetainsChallenge(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)
	f.messenger.dmStatus = platform.DMForbidden

	outcome, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)
	assert.Equal(t, BeginDeliveryFailed, outcome.Result)

	code := activeCode(t, f)

	// Once DMs open, retrying delivers a challenge again. The stored
	// record is replaced but the user keeps a full attempt budget.
	f.messenger.dmStatus = platform.DMSent

	outcome, err = f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)
	assert.Equal(t, BeginChallengeSent, outcome.Result)
	assert.NotEmpty(t, code)
}

func TestSubmitAnswerLifecycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	code := activeCode(t, f)

	t.Run("wrong answer", func(t *testing.T) {
		outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "WRONG1")
		require.NoError(t, err)
		assert.Equal(t, SubmitIncorrect, outcome.Result)
		assert.Equal(t, captcha.MaxAttempts-1, outcome.AttemptsRemaining)
	})

	t.Run("correct answer verifies and grants the role", func(t *testing.T) {
		outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, code)
		require.NoError(t, err)
		assert.Equal(t, SubmitVerified, outcome.Result)
		assert.Equal(t, testGuild, outcome.GuildID)
		assert.True(t, outcome.SuccessDMDelivered)

		has, err := f.roles.HasRole(ctx, testGuild, testUser, testRole)
		require.NoError(t, err)
		assert.True(t, has)

		assert.Contains(t, f.sink.all(), "Member Verified")
	})

	t.Run("further answers find no challenge", func(t *testing.T) {
		// The record is gone, so code-shaped chatter from the now
		// verified member is not treated as an answer.
		outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, code)
		require.NoError(t, err)
		assert.Equal(t, SubmitNoChallenge, outcome.Result)
	})
}

func TestSubmitAnswerIgnoresChatterFromVerifiedMembers(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	require.NoError(t, f.roles.GrantRole(ctx, testGuild, testUser, testRole))

	// Six alphanumeric characters, but no pending challenge exists.
	outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "coffee")
	require.NoError(t, err)
	assert.Equal(t, SubmitNoChallenge, outcome.Result)
}

func TestSubmitAnswerClearsStaleChallengeOnceVerified(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	// The role arrives out of band while the challenge is still open.
	require.NoError(t, f.roles.GrantRole(ctx, testGuild, testUser, testRole))

	outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, SubmitAlreadyVerified, outcome.Result)

	_, active, err := f.captchas.Active(ctx, testUser.String())
	require.NoError(t, err)
	assert.False(t, active, "stale challenge is cleared")
}

func TestSubmitAnswerExhaustion(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	for range captcha.MaxAttempts - 1 {
		outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "WRONG1")
		require.NoError(t, err)
		assert.Equal(t, SubmitIncorrect, outcome.Result)
	}

	outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "WRONG1")
	require.NoError(t, err)
	assert.Equal(t, SubmitExhausted, outcome.Result)
	assert.Equal(t, cooldown.LockoutDuration, outcome.LockoutDuration)
	assert.Contains(t, f.sink.all(), "Verification Failed")

	t.Run("restart refused during lockout", func(t *testing.T) {
		begin, err := f.orch.Begin(ctx, testGuild, testUser)
		require.NoError(t, err)
		assert.Equal(t, BeginOnCooldown, begin.Result)
		assert.Greater(t, begin.Remaining, time.Duration(0))
	})

	t.Run("answers after exhaustion find no challenge", func(t *testing.T) {
		outcome, err := f.orch.SubmitAnswer(ctx, testGuild, testUser, "WRONG1")
		require.NoError(t, err)
		assert.Equal(t, SubmitNoChallenge, outcome.Result)
	})
}

func TestSubmitAnswerOverDM(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	code := activeCode(t, f)

	// A zero guild ID marks a DM answer; the orchestrator resolves the
	// guild through the scanner.
	outcome, err := f.orch.SubmitAnswer(ctx, 0, testUser, code)
	require.NoError(t, err)
	assert.Equal(t, SubmitVerified, outcome.Result)
	assert.Equal(t, testGuild, outcome.GuildID)
}

func TestSubmitAnswerDMPrefersUnverifiedGuild(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	otherGuild := snowflake.ID(11)
	f.scanner.guilds = []snowflake.ID{otherGuild, testGuild}
	require.NoError(t, f.roles.GrantRole(ctx, otherGuild, testUser, testRole))

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	code := activeCode(t, f)

	outcome, err := f.orch.SubmitAnswer(ctx, 0, testUser, code)
	require.NoError(t, err)
	assert.Equal(t, SubmitVerified, outcome.Result)
	assert.Equal(t, testGuild, outcome.GuildID)
}

func TestSubmitAnswerNoManagedGuild(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	f.scanner.guilds = nil

	_, err = f.orch.SubmitAnswer(ctx, 0, testUser, "ABCDEF")
	assert.ErrorIs(t, err, ErrGuildUnresolved)
}

func TestAdminStatusAndClear(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	t.Run("empty status", func(t *testing.T) {
		status, err := f.orch.Status(ctx, testUser)
		require.NoError(t, err)
		assert.False(t, status.HasActiveChallenge)
		assert.False(t, status.OnLockout)
	})

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	_, err = f.orch.SubmitAnswer(ctx, testGuild, testUser, "WRONG1")
	require.NoError(t, err)

	t.Run("pending challenge reported", func(t *testing.T) {
		status, err := f.orch.Status(ctx, testUser)
		require.NoError(t, err)
		assert.True(t, status.HasActiveChallenge)
		assert.Equal(t, 1, status.Attempts)
		assert.Equal(t, captcha.MaxAttempts, status.MaxAttempts)
	})

	t.Run("clear resets challenge and lockout", func(t *testing.T) {
		require.NoError(t, f.orch.ClearState(ctx, testUser))

		status, err := f.orch.Status(ctx, testUser)
		require.NoError(t, err)
		assert.False(t, status.HasActiveChallenge)
		assert.False(t, status.OnLockout)
	})
}

func TestAdminStats(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	_, err := f.orch.Begin(ctx, testGuild, testUser)
	require.NoError(t, err)

	_, err = f.orch.Begin(ctx, testGuild, snowflake.ID(101))
	require.NoError(t, err)

	require.NoError(t, f.lockout.Set(ctx, "102"))
	require.NoError(t, f.roles.GrantRole(ctx, testGuild, snowflake.ID(103), testRole))

	stats, err := f.orch.Stats(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveCaptchas)
	assert.Equal(t, 1, stats.UsersOnLockout)
	assert.Equal(t, 1, stats.VerifiedMembers)
}
