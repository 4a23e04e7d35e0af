// Package verify orchestrates member verification: issuing captcha
// challenges over DM, evaluating answers, and granting the verified
// role.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/internal/moderation/captcha"
	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/moderation/platform"
)

// ErrGuildUnresolved is returned when a DM answer cannot be tied to
// any managed guild the user is a member of.
var ErrGuildUnresolved = errors.New("user is not a member of any managed guild")

// BeginResult classifies the outcome of starting verification.
type BeginResult int

const (
	// BeginChallengeSent means a challenge was created and delivered.
	BeginChallengeSent BeginResult = iota
	// BeginAlreadyVerified means the member already holds the role.
	BeginAlreadyVerified
	// BeginOnCooldown means a verification lockout is active.
	BeginOnCooldown
	// BeginDeliveryFailed means the challenge exists but the DM could
	// not be delivered; the user can retry without a new challenge.
	BeginDeliveryFailed
)

// BeginOutcome reports what happened when verification started.
type BeginOutcome struct {
	Result BeginResult
	// Remaining is the lockout left, set for BeginOnCooldown.
	Remaining time.Duration
	// AttemptsAllowed is the attempt budget, set for BeginChallengeSent.
	AttemptsAllowed int
}

// SubmitResultKind classifies the outcome of an answer.
type SubmitResultKind int

const (
	// SubmitVerified means the member is now verified.
	SubmitVerified SubmitResultKind = iota
	// SubmitIncorrect means the answer was wrong with attempts left.
	SubmitIncorrect
	// SubmitExhausted means the final attempt was consumed.
	SubmitExhausted
	// SubmitNoChallenge means no challenge was pending.
	SubmitNoChallenge
	// SubmitAlreadyVerified means the member already holds the role.
	SubmitAlreadyVerified
)

// SubmitOutcome reports what an answer submission did.
type SubmitOutcome struct {
	Result SubmitResultKind
	// GuildID is the guild the answer was resolved against.
	GuildID snowflake.ID
	// AttemptsRemaining is set for SubmitIncorrect.
	AttemptsRemaining int
	// LockoutDuration is set for SubmitExhausted.
	LockoutDuration time.Duration
	// SuccessDMDelivered reports whether the confirmation DM arrived,
	// set for SubmitVerified.
	SuccessDMDelivered bool
}

// Orchestrator wires the captcha manager to the chat platform.
type Orchestrator struct {
	captchas       *captcha.Manager
	lockout        *cooldown.Tracker
	roles          platform.RoleProvider
	messenger      platform.Messenger
	scanner        platform.GuildScanner
	renderer       platform.Renderer
	sink           audit.Sink
	verifiedRoleID snowflake.ID
	logger         *zap.Logger
}

// NewOrchestrator creates a verification orchestrator.
func NewOrchestrator(
	captchas *captcha.Manager, lockout *cooldown.Tracker,
	roles platform.RoleProvider, messenger platform.Messenger,
	scanner platform.GuildScanner, renderer platform.Renderer,
	sink audit.Sink, verifiedRoleID snowflake.ID, logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		captchas:       captchas,
		lockout:        lockout,
		roles:          roles,
		messenger:      messenger,
		scanner:        scanner,
		renderer:       renderer,
		sink:           sink,
		verifiedRoleID: verifiedRoleID,
		logger:         logger.Named("verify"),
	}
}

// Begin starts verification for a member: it issues a challenge and
// delivers it over DM. Members already holding the verified role and
// users on lockout are refused before any challenge is created.
func (o *Orchestrator) Begin(ctx context.Context, guildID, userID snowflake.ID) (BeginOutcome, error) {
	verified, err := o.roles.HasRole(ctx, guildID, userID, o.verifiedRoleID)
	if err != nil {
		return BeginOutcome{}, fmt.Errorf("failed to check role: %w", err)
	}

	if verified {
		return BeginOutcome{Result: BeginAlreadyVerified}, nil
	}

	record, err := o.captchas.Issue(ctx, userID.String())
	if err != nil {
		var cooldownErr *captcha.OnCooldownError
		if errors.As(err, &cooldownErr) {
			return BeginOutcome{
				Result:    BeginOnCooldown,
				Remaining: cooldownErr.Remaining,
			}, nil
		}

		return BeginOutcome{}, err
	}

	status, err := o.deliverChallenge(ctx, userID, record)
	if err != nil {
		return BeginOutcome{}, err
	}

	if status != platform.DMSent {
		// The challenge record stays pending; delivery failure is not
		// an exhaustion and must not cost the user anything.
		o.logger.Warn("Challenge DM not delivered",
			zap.Uint64("userID", uint64(userID)),
			zap.Int("status", int(status)))

		return BeginOutcome{Result: BeginDeliveryFailed}, nil
	}

	o.sink.Emit(ctx, audit.VerificationStarted(userID))

	return BeginOutcome{
		Result:          BeginChallengeSent,
		AttemptsAllowed: record.MaxAttempts,
	}, nil
}

func (o *Orchestrator) deliverChallenge(ctx context.Context, userID snowflake.ID, record captcha.Record) (platform.DMStatus, error) {
	image, err := o.renderer.RenderCaptchaImage(record.Code)
	if err != nil {
		return platform.DMFailed, fmt.Errorf("failed to render challenge: %w", err)
	}

	msg := platform.Message{
		Title: "Verification Required",
		Description: fmt.Sprintf(
			"Reply with the %d-character code shown in the image to verify yourself.",
			captcha.CodeLength),
		Color: audit.ColorBlue,
		Fields: []platform.Field{
			{Name: "Attempts", Value: fmt.Sprintf("%d", record.MaxAttempts), Inline: true},
		},
		Image:     image,
		ImageName: "captcha.png",
	}

	status, err := o.messenger.SendDirect(ctx, userID, msg)
	if err != nil {
		return platform.DMFailed, fmt.Errorf("failed to send challenge: %w", err)
	}

	return status, nil
}

// SubmitAnswer evaluates an answer. A zero guildID means the answer
// arrived over DM; the guild is then resolved by scanning the managed
// guilds for the user's membership.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, guildID, userID snowflake.ID, answer string) (SubmitOutcome, error) {
	// Without a pending challenge the message is not an answer at all;
	// callers fall through to normal message handling. This check runs
	// before any role or guild lookup so ordinary chatter from verified
	// members is never consumed here.
	if _, active, err := o.captchas.Active(ctx, userID.String()); err != nil {
		return SubmitOutcome{}, err
	} else if !active {
		return SubmitOutcome{Result: SubmitNoChallenge, GuildID: guildID}, nil
	}

	guildID, err := o.resolveGuild(ctx, guildID, userID)
	if err != nil {
		return SubmitOutcome{}, err
	}

	verified, err := o.roles.HasRole(ctx, guildID, userID, o.verifiedRoleID)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("failed to check role: %w", err)
	}

	if verified {
		// A stale challenge serves no purpose once the role exists.
		if err := o.captchas.Clear(ctx, userID.String()); err != nil {
			o.logger.Warn("Failed to clear stale challenge",
				zap.Uint64("userID", uint64(userID)), zap.Error(err))
		}

		return SubmitOutcome{Result: SubmitAlreadyVerified, GuildID: guildID}, nil
	}

	result, err := o.captchas.Submit(ctx, userID.String(), answer)
	if err != nil {
		if errors.Is(err, captcha.ErrNoActiveChallenge) {
			return SubmitOutcome{Result: SubmitNoChallenge, GuildID: guildID}, nil
		}

		return SubmitOutcome{}, err
	}

	switch result.Outcome {
	case captcha.OutcomeIncorrect:
		return SubmitOutcome{
			Result:            SubmitIncorrect,
			GuildID:           guildID,
			AttemptsRemaining: result.AttemptsRemaining,
		}, nil

	case captcha.OutcomeExhausted:
		o.sink.Emit(ctx, audit.VerificationExhausted(userID, result.LockoutDuration))

		return SubmitOutcome{
			Result:          SubmitExhausted,
			GuildID:         guildID,
			LockoutDuration: result.LockoutDuration,
		}, nil

	case captcha.OutcomeVerified:
		return o.completeVerification(ctx, guildID, userID)

	default:
		return SubmitOutcome{}, fmt.Errorf("unexpected submit outcome %d", result.Outcome)
	}
}

func (o *Orchestrator) completeVerification(ctx context.Context, guildID, userID snowflake.ID) (SubmitOutcome, error) {
	if err := o.roles.GrantRole(ctx, guildID, userID, o.verifiedRoleID); err != nil {
		return SubmitOutcome{}, fmt.Errorf("failed to grant role: %w", err)
	}

	o.sink.Emit(ctx, audit.VerificationCompleted(userID))

	o.logger.Info("Member verified",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)))

	status, err := o.messenger.SendDirect(ctx, userID, platform.Message{
		Title:       "Verification Complete",
		Description: "You now have access to the server.",
		Color:       audit.ColorGreen,
	})
	if err != nil {
		o.logger.Warn("Failed to send success DM",
			zap.Uint64("userID", uint64(userID)), zap.Error(err))
	}

	return SubmitOutcome{
		Result:             SubmitVerified,
		GuildID:            guildID,
		SuccessDMDelivered: err == nil && status == platform.DMSent,
	}, nil
}

// resolveGuild picks the guild an answer applies to. Guild-channel
// answers carry their guild; DM answers prefer the first managed guild
// where the user is still unverified.
func (o *Orchestrator) resolveGuild(ctx context.Context, guildID, userID snowflake.ID) (snowflake.ID, error) {
	if guildID != 0 {
		return guildID, nil
	}

	guilds, err := o.scanner.GuildsWithMember(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to scan guilds: %w", err)
	}

	if len(guilds) == 0 {
		return 0, ErrGuildUnresolved
	}

	for _, candidate := range guilds {
		verified, err := o.roles.HasRole(ctx, candidate, userID, o.verifiedRoleID)
		if err != nil {
			o.logger.Warn("Failed to check role during guild resolution",
				zap.Uint64("guildID", uint64(candidate)), zap.Error(err))

			continue
		}

		if !verified {
			return candidate, nil
		}
	}

	return guilds[0], nil
}
