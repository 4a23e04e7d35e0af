// Package cooldown tracks per-user timed restrictions backed by a
// storage.Store. Each tracker owns a single cooldown domain so that
// reminder throttling and verification lockouts never share state.
package cooldown

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/storage"
)

// Domain names a cooldown namespace with its own duration.
type Domain string

const (
	// DomainReminder throttles rule-reminder replies per user.
	DomainReminder Domain = "reminder"
	// DomainVerificationLockout blocks new captcha challenges after
	// a user exhausts their attempts.
	DomainVerificationLockout Domain = "verification_lockout"
)

const (
	// ReminderDuration is how long a user's rule reminders stay muted.
	ReminderDuration = 300 * time.Second
	// LockoutDuration is how long a user waits after failing all
	// captcha attempts before they may request a new challenge.
	LockoutDuration = 3 * time.Hour
)

// Entry is the persisted form of an active cooldown.
type Entry struct {
	CooldownEnd time.Time `json:"cooldown_end"`
	AddedAt     time.Time `json:"added_at"`
}

// Tracker manages one cooldown domain. Expired entries are treated as
// absent on read and reclaimed lazily or by Sweep.
type Tracker struct {
	store    storage.Store
	domain   Domain
	duration time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTracker creates a tracker for the given domain and duration.
func NewTracker(store storage.Store, domain Domain, duration time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:    store,
		domain:   domain,
		duration: duration,
		logger:   logger.Named("cooldown").With(zap.String("domain", string(domain))),
		now:      time.Now,
	}
}

// Domain returns the namespace this tracker manages.
func (t *Tracker) Domain() Domain {
	return t.domain
}

// Duration returns the configured cooldown length.
func (t *Tracker) Duration() time.Duration {
	return t.duration
}

// Set starts or restarts the cooldown for a user.
func (t *Tracker) Set(ctx context.Context, userID string) error {
	now := t.now()
	entry := Entry{
		CooldownEnd: now.Add(t.duration),
		AddedAt:     now,
	}

	if err := t.store.Set(ctx, userID, entry); err != nil {
		return err
	}

	t.logger.Debug("Cooldown set",
		zap.String("userID", userID),
		zap.Time("cooldownEnd", entry.CooldownEnd))

	return nil
}

// IsOnCooldown reports whether the user currently has an active
// cooldown. Expired entries are deleted as a side effect.
func (t *Tracker) IsOnCooldown(ctx context.Context, userID string) (bool, error) {
	remaining, err := t.Remaining(ctx, userID)
	if err != nil {
		return false, err
	}

	return remaining > 0, nil
}

// Remaining returns the time left on a user's cooldown, or zero when
// none is active. Expired entries are deleted as a side effect.
func (t *Tracker) Remaining(ctx context.Context, userID string) (time.Duration, error) {
	var entry Entry

	found, err := t.store.Get(ctx, userID, &entry)
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, nil
	}

	remaining := entry.CooldownEnd.Sub(t.now())
	if remaining <= 0 {
		if err := t.store.Delete(ctx, userID); err != nil {
			t.logger.Warn("Failed to reclaim expired cooldown",
				zap.String("userID", userID),
				zap.Error(err))
		}

		return 0, nil
	}

	return remaining, nil
}

// Clear removes any cooldown for the user, active or expired.
func (t *Tracker) Clear(ctx context.Context, userID string) error {
	if err := t.store.Delete(ctx, userID); err != nil {
		return err
	}

	t.logger.Debug("Cooldown cleared", zap.String("userID", userID))

	return nil
}

// ActiveCount returns the number of users with an unexpired cooldown.
func (t *Tracker) ActiveCount(ctx context.Context) (int, error) {
	keys, err := t.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, key := range keys {
		var entry Entry

		found, err := t.store.Get(ctx, key, &entry)
		if err != nil {
			return 0, err
		}

		if found && entry.CooldownEnd.After(t.now()) {
			count++
		}
	}

	return count, nil
}

// Sweep deletes all expired entries and returns how many were removed.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	keys, err := t.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, key := range keys {
		var entry Entry

		found, err := t.store.Get(ctx, key, &entry)
		if err != nil {
			return removed, err
		}

		if !found || entry.CooldownEnd.After(t.now()) {
			continue
		}

		if err := t.store.Delete(ctx, key); err != nil {
			return removed, err
		}

		removed++
	}

	if removed > 0 {
		t.logger.Debug("Swept expired cooldowns", zap.Int("removed", removed))
	}

	return removed, nil
}
