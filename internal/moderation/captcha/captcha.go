// Package captcha manages challenge/response verification records:
// issuing codes, counting attempts, and converting exhaustion into a
// verification lockout.
package captcha

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/storage"
	"github.com/venlyx/sentinel/pkg/utils"
)

const (
	// CodeLength is the number of characters in a challenge code.
	CodeLength = 6
	// MaxAttempts is how many answers a user may submit per challenge.
	MaxAttempts = 3

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrNoActiveChallenge is returned when an answer arrives for a user
// without a pending challenge.
var ErrNoActiveChallenge = errors.New("no active challenge")

// OnCooldownError reports that a user cannot receive a new challenge
// until their verification lockout elapses.
type OnCooldownError struct {
	Remaining time.Duration
}

func (e *OnCooldownError) Error() string {
	return fmt.Sprintf("on verification cooldown for %s", utils.FormatHoursMinutes(e.Remaining))
}

// Outcome classifies the result of an answer submission.
type Outcome int

const (
	// OutcomeVerified means the answer matched.
	OutcomeVerified Outcome = iota
	// OutcomeIncorrect means the answer was wrong but attempts remain.
	OutcomeIncorrect
	// OutcomeExhausted means the wrong answer consumed the final
	// attempt and a lockout now applies.
	OutcomeExhausted
)

// Record is the persisted state of a pending challenge.
type Record struct {
	Code        string    `json:"code"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	CreatedAt   time.Time `json:"created_at"`
}

// AttemptsRemaining returns how many answers the user may still submit.
func (r Record) AttemptsRemaining() int {
	remaining := r.MaxAttempts - r.Attempts
	if remaining < 0 {
		return 0
	}

	return remaining
}

// SubmitResult carries the outcome of an answer plus the attempt state
// after it was applied.
type SubmitResult struct {
	Outcome           Outcome
	AttemptsRemaining int
	LockoutDuration   time.Duration
}

// Manager issues challenges and evaluates answers. Per-user mutation is
// serialized through a key mutex so concurrent answers cannot both
// consume the same attempt.
type Manager struct {
	store   storage.Store
	lockout *cooldown.Tracker
	mutex   *utils.KeyMutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a challenge manager backed by the given store and
// verification-lockout tracker.
func NewManager(store storage.Store, lockout *cooldown.Tracker, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		lockout: lockout,
		mutex:   utils.NewKeyMutex(),
		logger:  logger.Named("captcha"),
		now:     time.Now,
	}
}

// Issue creates a fresh challenge for the user, replacing any pending
// one. It fails with an OnCooldownError while a lockout is active.
func (m *Manager) Issue(ctx context.Context, userID string) (Record, error) {
	m.mutex.Lock(userID)
	defer m.mutex.Unlock(userID)

	remaining, err := m.lockout.Remaining(ctx, userID)
	if err != nil {
		return Record{}, fmt.Errorf("failed to check lockout: %w", err)
	}

	if remaining > 0 {
		return Record{}, &OnCooldownError{Remaining: remaining}
	}

	code, err := generateCode()
	if err != nil {
		return Record{}, fmt.Errorf("failed to generate code: %w", err)
	}

	record := Record{
		Code:        code,
		Attempts:    0,
		MaxAttempts: MaxAttempts,
		CreatedAt:   m.now(),
	}

	if err := m.store.Set(ctx, userID, record); err != nil {
		return Record{}, fmt.Errorf("failed to save challenge: %w", err)
	}

	m.logger.Debug("Challenge issued", zap.String("userID", userID))

	return record, nil
}

// Submit evaluates an answer against the user's pending challenge.
// Comparison is case-insensitive. A correct answer deletes the record;
// the wrong answer that consumes the final attempt deletes the record
// and starts the verification lockout immediately.
func (m *Manager) Submit(ctx context.Context, userID string, answer string) (SubmitResult, error) {
	m.mutex.Lock(userID)
	defer m.mutex.Unlock(userID)

	var record Record

	found, err := m.store.Get(ctx, userID, &record)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	if !found {
		return SubmitResult{}, ErrNoActiveChallenge
	}

	// Records written before an exhaustion rule change may already sit
	// at the attempt cap; treat them the same as a fresh exhaustion.
	if record.Attempts >= record.MaxAttempts {
		return m.exhaust(ctx, userID)
	}

	if strings.EqualFold(strings.TrimSpace(answer), record.Code) {
		if err := m.store.Delete(ctx, userID); err != nil {
			return SubmitResult{}, fmt.Errorf("failed to clear challenge: %w", err)
		}

		m.logger.Info("Challenge solved", zap.String("userID", userID))

		return SubmitResult{Outcome: OutcomeVerified}, nil
	}

	record.Attempts++

	if record.Attempts >= record.MaxAttempts {
		return m.exhaust(ctx, userID)
	}

	if err := m.store.Set(ctx, userID, record); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to save challenge: %w", err)
	}

	m.logger.Debug("Incorrect answer",
		zap.String("userID", userID),
		zap.Int("attemptsRemaining", record.AttemptsRemaining()))

	return SubmitResult{
		Outcome:           OutcomeIncorrect,
		AttemptsRemaining: record.AttemptsRemaining(),
	}, nil
}

// exhaust deletes the record and starts the lockout. Callers must hold
// the user's mutex.
func (m *Manager) exhaust(ctx context.Context, userID string) (SubmitResult, error) {
	if err := m.lockout.Set(ctx, userID); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to set lockout: %w", err)
	}

	if err := m.store.Delete(ctx, userID); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to clear challenge: %w", err)
	}

	m.logger.Info("Challenge attempts exhausted", zap.String("userID", userID))

	return SubmitResult{
		Outcome:         OutcomeExhausted,
		LockoutDuration: m.lockout.Duration(),
	}, nil
}

// Active returns the user's pending challenge, if any.
func (m *Manager) Active(ctx context.Context, userID string) (Record, bool, error) {
	var record Record

	found, err := m.store.Get(ctx, userID, &record)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to load challenge: %w", err)
	}

	return record, found, nil
}

// Clear removes the user's pending challenge without penalty.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	m.mutex.Lock(userID)
	defer m.mutex.Unlock(userID)

	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear challenge: %w", err)
	}

	return nil
}

// ActiveCount returns the number of pending challenges.
func (m *Manager) ActiveCount(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list challenges: %w", err)
	}

	return len(keys), nil
}

// generateCode draws CodeLength characters uniformly from the
// uppercase alphanumeric alphabet. Bytes outside the largest multiple
// of the alphabet size are rejected so no character is favored.
func generateCode() (string, error) {
	// 252 for a 36-character alphabet.
	limit := byte(256 - 256%len(codeAlphabet))

	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)

	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		for _, b := range buf {
			if b >= limit || len(code) == CodeLength {
				continue
			}

			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}

	return string(code), nil
}
