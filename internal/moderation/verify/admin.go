package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Status is an administrative snapshot of one user's verification
// state.
type Status struct {
	HasActiveChallenge bool
	Attempts           int
	MaxAttempts        int
	ChallengeCreatedAt time.Time
	OnLockout          bool
	LockoutRemaining   time.Duration
}

// Stats aggregates verification state across the system.
type Stats struct {
	ActiveCaptchas  int
	UsersOnLockout  int
	VerifiedMembers int
}

// Status reports a user's pending challenge and lockout state.
func (o *Orchestrator) Status(ctx context.Context, userID snowflake.ID) (Status, error) {
	record, found, err := o.captchas.Active(ctx, userID.String())
	if err != nil {
		return Status{}, err
	}

	remaining, err := o.lockout.Remaining(ctx, userID.String())
	if err != nil {
		return Status{}, fmt.Errorf("failed to check lockout: %w", err)
	}

	status := Status{
		HasActiveChallenge: found,
		OnLockout:          remaining > 0,
		LockoutRemaining:   remaining,
	}

	if found {
		status.Attempts = record.Attempts
		status.MaxAttempts = record.MaxAttempts
		status.ChallengeCreatedAt = record.CreatedAt
	}

	return status, nil
}

// ClearState removes a user's pending challenge and lockout, letting
// them restart verification immediately.
func (o *Orchestrator) ClearState(ctx context.Context, userID snowflake.ID) error {
	if err := o.captchas.Clear(ctx, userID.String()); err != nil {
		return err
	}

	if err := o.lockout.Clear(ctx, userID.String()); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}

	return nil
}

// Stats gathers system-wide verification counts for the guild.
func (o *Orchestrator) Stats(ctx context.Context, guildID snowflake.ID) (Stats, error) {
	active, err := o.captchas.ActiveCount(ctx)
	if err != nil {
		return Stats{}, err
	}

	locked, err := o.lockout.ActiveCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count lockouts: %w", err)
	}

	members, err := o.roles.MembersWithRole(ctx, guildID, o.verifiedRoleID)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count verified members: %w", err)
	}

	return Stats{
		ActiveCaptchas:  active,
		UsersOnLockout:  locked,
		VerifiedMembers: members,
	}, nil
}
