// Package warnings keeps a per-guild ledger of moderator warnings.
package warnings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/storage"
	"github.com/venlyx/sentinel/pkg/utils"
)

// Warning is one recorded moderator warning.
type Warning struct {
	ID          int       `json:"id"`
	Reason      string    `json:"reason"`
	ModeratorID string    `json:"moderator_id"`
	Timestamp   time.Time `json:"timestamp"`
	GuildID     string    `json:"guild_id"`
}

// Ledger stores warnings keyed by guild, with one list per user.
// Warning IDs count up from 1 per guild/user pair.
type Ledger struct {
	store  storage.Store
	mutex  *utils.KeyMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store storage.Store, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		mutex:  utils.NewKeyMutex(),
		logger: logger.Named("warnings"),
		now:    time.Now,
	}
}

func (l *Ledger) load(ctx context.Context, guildID string) (map[string][]Warning, error) {
	ledger := make(map[string][]Warning)

	if _, err := l.store.Get(ctx, guildID, &ledger); err != nil {
		return nil, fmt.Errorf("failed to load warnings: %w", err)
	}

	return ledger, nil
}

// Add records a warning against the user and returns it with its
// assigned ID.
func (l *Ledger) Add(ctx context.Context, guildID, userID, moderatorID, reason string) (Warning, error) {
	l.mutex.Lock(guildID)
	defer l.mutex.Unlock(guildID)

	ledger, err := l.load(ctx, guildID)
	if err != nil {
		return Warning{}, err
	}

	warning := Warning{
		ID:          nextID(ledger[userID]),
		Reason:      reason,
		ModeratorID: moderatorID,
		Timestamp:   l.now(),
		GuildID:     guildID,
	}

	ledger[userID] = append(ledger[userID], warning)

	if err := l.store.Set(ctx, guildID, ledger); err != nil {
		return Warning{}, fmt.Errorf("failed to save warnings: %w", err)
	}

	l.logger.Info("Warning recorded",
		zap.String("guildID", guildID),
		zap.String("userID", userID),
		zap.Int("warningID", warning.ID))

	return warning, nil
}

// List returns the user's warnings in issue order.
func (l *Ledger) List(ctx context.Context, guildID, userID string) ([]Warning, error) {
	ledger, err := l.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	return ledger[userID], nil
}

// ClearAll removes every warning for the user and returns how many
// were removed.
func (l *Ledger) ClearAll(ctx context.Context, guildID, userID string) (int, error) {
	l.mutex.Lock(guildID)
	defer l.mutex.Unlock(guildID)

	ledger, err := l.load(ctx, guildID)
	if err != nil {
		return 0, err
	}

	removed := len(ledger[userID])
	if removed == 0 {
		return 0, nil
	}

	delete(ledger, userID)

	if err := l.store.Set(ctx, guildID, ledger); err != nil {
		return 0, fmt.Errorf("failed to save warnings: %w", err)
	}

	return removed, nil
}

// ClearOne removes a single warning by ID. It reports whether the
// warning existed. Remaining warnings keep their original IDs.
func (l *Ledger) ClearOne(ctx context.Context, guildID, userID string, warningID int) (bool, error) {
	l.mutex.Lock(guildID)
	defer l.mutex.Unlock(guildID)

	ledger, err := l.load(ctx, guildID)
	if err != nil {
		return false, err
	}

	entries := ledger[userID]

	for i, warning := range entries {
		if warning.ID != warningID {
			continue
		}

		ledger[userID] = append(entries[:i:i], entries[i+1:]...)
		if len(ledger[userID]) == 0 {
			delete(ledger, userID)
		}

		if err := l.store.Set(ctx, guildID, ledger); err != nil {
			return false, fmt.Errorf("failed to save warnings: %w", err)
		}

		return true, nil
	}

	return false, nil
}

// nextID assigns sequential IDs starting at 1. Basing it on the
// highest existing ID keeps IDs unique after individual removals.
func nextID(entries []Warning) int {
	highest := 0

	for _, warning := range entries {
		if warning.ID > highest {
			highest = warning.ID
		}
	}

	return highest + 1
}
