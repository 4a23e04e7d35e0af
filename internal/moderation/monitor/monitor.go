// Package monitor watches guild messages for rule violations, feeds
// the activity correlator, and throttles rule reminders per user.
package monitor

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/activity"
	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/moderation/rules"
	"github.com/venlyx/sentinel/pkg/utils"
)

const activityDetailLen = 200

// MessageContext carries the message under evaluation.
type MessageContext struct {
	GuildID snowflake.ID
	UserID  snowflake.ID
	Content string
}

// Reminder is the rule nudge to show the offending user, produced at
// most once per user per reminder-cooldown window.
type Reminder struct {
	RuleNumber int
	Message    string
}

// Monitor evaluates messages against the rule set.
type Monitor struct {
	matcher   *rules.Matcher
	reminders *cooldown.Tracker
	activity  *activity.Correlator
	sink      audit.Sink
	logger    *zap.Logger
}

// New creates a monitor. The tracker must manage the reminder domain.
func New(matcher *rules.Matcher, reminders *cooldown.Tracker, correlator *activity.Correlator, sink audit.Sink, logger *zap.Logger) *Monitor {
	return &Monitor{
		matcher:   matcher,
		reminders: reminders,
		activity:  correlator,
		sink:      sink,
		logger:    logger.Named("monitor"),
	}
}

// HandleMessage classifies a message and records any violation. The
// returned reminder is nil when the message is clean or the user's
// reminders are on cooldown; recording and auditing happen either way.
func (m *Monitor) HandleMessage(ctx context.Context, msg MessageContext) (*Reminder, error) {
	match, ok := m.matcher.Classify(msg.Content)
	if !ok {
		return nil, nil
	}

	userKey := msg.UserID.String()
	detail := fmt.Sprintf("rule %d: %s", match.Rule,
		utils.TruncateString(msg.Content, activityDetailLen))

	m.activity.Record(userKey, activity.KindRuleViolation, detail)

	if match.Rule == rules.SpamRuleNumber {
		m.activity.Record(userKey, activity.KindSpam,
			utils.TruncateString(msg.Content, activityDetailLen))
	}

	m.logger.Info("Rule violation detected",
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("userID", uint64(msg.UserID)),
		zap.Int("rule", match.Rule))

	m.sink.Emit(ctx, audit.RuleViolation(msg.UserID, match.Rule, match.Message, msg.Content))

	if escalation, found := m.activity.DetectSuspicious(userKey); found {
		m.sink.Emit(ctx, audit.SuspiciousActivity(msg.UserID,
			escalation.Type, escalation.Severity, escalation.Description))
	}

	throttled, err := m.reminders.IsOnCooldown(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check reminder cooldown: %w", err)
	}

	if throttled {
		return nil, nil
	}

	if err := m.reminders.Set(ctx, userKey); err != nil {
		return nil, fmt.Errorf("failed to set reminder cooldown: %w", err)
	}

	return &Reminder{
		RuleNumber: match.Rule,
		Message:    match.Message,
	}, nil
}
