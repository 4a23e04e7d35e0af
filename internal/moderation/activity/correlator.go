// Package activity keeps a short in-memory history of moderation
// events per user and derives suspicion escalations from it.
package activity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Activity kinds recorded by the correlator.
const (
	KindRuleViolation = "rule_violation"
	KindSpam          = "spam"
)

// Escalation types and severities.
const (
	TypeRapidViolations = "rapid_violations"
	TypeSpamPattern     = "spam_pattern"

	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

const (
	// maxEntriesPerUser caps the per-user ring; the oldest entry is
	// evicted when a new one would exceed it.
	maxEntriesPerUser = 50
	// rapidWindow is the look-back for the rapid-violation check.
	rapidWindow = 300 * time.Second
	// rapidThreshold is how many rule violations inside rapidWindow
	// trigger a high-severity escalation.
	rapidThreshold = 3
	// spamThreshold is how many spam entries across the whole kept
	// history trigger a medium-severity escalation.
	spamThreshold = 5
	// detailTail is how many recent entries an escalation carries.
	detailTail = 5
)

// Entry is one recorded user activity.
type Entry struct {
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail"`
	Occurred time.Time `json:"occurred"`
}

// Escalation describes a detected suspicious pattern.
type Escalation struct {
	Type        string
	Severity    string
	Description string
	Details     []Entry
}

// Correlator records activity per user and answers suspicion queries.
// All methods are safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	entries map[string][]Entry
	logger  *zap.Logger
	now     func() time.Time
}

// NewCorrelator creates an empty correlator.
func NewCorrelator(logger *zap.Logger) *Correlator {
	return &Correlator{
		entries: make(map[string][]Entry),
		logger:  logger.Named("activity"),
		now:     time.Now,
	}
}

// Record appends an activity entry for the user, evicting the oldest
// entry once the per-user cap is reached.
func (c *Correlator) Record(userID string, kind string, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.entries[userID], Entry{
		Kind:     kind,
		Detail:   detail,
		Occurred: c.now(),
	})

	if len(entries) > maxEntriesPerUser {
		entries = entries[len(entries)-maxEntriesPerUser:]
	}

	c.entries[userID] = entries
}

// DetectSuspicious checks the user's history for suspicious patterns.
// Rapid violations take priority over spam patterns; at most one
// escalation is returned per call.
func (c *Correlator) DetectSuspicious(userID string) (Escalation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.entries[userID]
	if len(entries) == 0 {
		return Escalation{}, false
	}

	// Both thresholds only consider entries inside the trailing window.
	cutoff := c.now().Add(-rapidWindow)

	var recentViolations, recentSpam []Entry

	for _, entry := range entries {
		if !entry.Occurred.After(cutoff) {
			continue
		}

		switch entry.Kind {
		case KindRuleViolation:
			recentViolations = append(recentViolations, entry)
		case KindSpam:
			recentSpam = append(recentSpam, entry)
		}
	}

	if len(recentViolations) >= rapidThreshold {
		c.logger.Info("Rapid violations detected",
			zap.String("userID", userID),
			zap.Int("violations", len(recentViolations)))

		return Escalation{
			Type:     TypeRapidViolations,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("%d rule violations within %d seconds",
				len(recentViolations), int(rapidWindow.Seconds())),
			Details: tail(recentViolations, detailTail),
		}, true
	}

	if len(recentSpam) >= spamThreshold {
		c.logger.Info("Spam pattern detected",
			zap.String("userID", userID),
			zap.Int("spamEntries", len(recentSpam)))

		return Escalation{
			Type:     TypeSpamPattern,
			Severity: SeverityMedium,
			Description: fmt.Sprintf("%d spam messages within %d seconds",
				len(recentSpam), int(rapidWindow.Seconds())),
			Details: tail(recentSpam, detailTail),
		}, true
	}

	return Escalation{}, false
}

// Recent returns up to limit of the user's most recent entries, newest
// last. A non-positive limit returns the full kept history.
func (c *Correlator) Recent(userID string, limit int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.entries[userID]
	if limit > 0 {
		entries = tail(entries, limit)
	}

	out := make([]Entry, len(entries))
	copy(out, entries)

	return out
}

// Count returns how many entries are kept for the user.
func (c *Correlator) Count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries[userID])
}

// LastActivity returns the time of the user's newest entry.
func (c *Correlator) LastActivity(userID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.entries[userID]
	if len(entries) == 0 {
		return time.Time{}, false
	}

	return entries[len(entries)-1].Occurred, true
}

// TrackedUsers returns the IDs of all users with kept history.
func (c *Correlator) TrackedUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := make([]string, 0, len(c.entries))
	for userID := range c.entries {
		users = append(users, userID)
	}

	return users
}

func tail(entries []Entry, n int) []Entry {
	if len(entries) <= n {
		out := make([]Entry, len(entries))
		copy(out, entries)

		return out
	}

	out := make([]Entry, n)
	copy(out, entries[len(entries)-n:])

	return out
}
