package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/venlyx/sentinel/internal/moderation/platform"
	"github.com/venlyx/sentinel/pkg/utils"
)

const messageExcerptLen = 1000

func userField(userID snowflake.ID) platform.Field {
	return platform.Field{Name: "User", Value: fmt.Sprintf("<@%d> (%d)", userID, userID), Inline: true}
}

// RuleViolation records a message that matched a moderation rule.
func RuleViolation(userID snowflake.ID, ruleNumber int, ruleMessage, content string) Event {
	return NewEvent(
		"Rule Violation",
		fmt.Sprintf("Message matched rule %d.", ruleNumber),
		ColorOrange,
		userField(userID),
		platform.Field{Name: "Rule", Value: ruleMessage},
		platform.Field{Name: "Message", Value: utils.TruncateString(content, messageExcerptLen)},
	)
}

// SuspiciousActivity records an escalation derived from a user's
// recent activity.
func SuspiciousActivity(userID snowflake.ID, escalationType, severity, description string) Event {
	return NewEvent(
		"Suspicious Activity Detected",
		description,
		ColorRed,
		userField(userID),
		platform.Field{Name: "Type", Value: escalationType, Inline: true},
		platform.Field{Name: "Severity", Value: severity, Inline: true},
	)
}

// VerificationStarted records a challenge being sent to a new member.
func VerificationStarted(userID snowflake.ID) Event {
	return NewEvent(
		"Verification Started",
		"A captcha challenge was sent.",
		ColorBlue,
		userField(userID),
	)
}

// VerificationCompleted records a member passing the challenge.
func VerificationCompleted(userID snowflake.ID) Event {
	return NewEvent(
		"Member Verified",
		"The captcha challenge was solved.",
		ColorGreen,
		userField(userID),
	)
}

// VerificationExhausted records a member running out of attempts.
func VerificationExhausted(userID snowflake.ID, lockout time.Duration) Event {
	return NewEvent(
		"Verification Failed",
		"All captcha attempts were used.",
		ColorRed,
		userField(userID),
		platform.Field{Name: "Locked Out For", Value: utils.FormatHoursMinutes(lockout), Inline: true},
	)
}

// WarningIssued records a moderator warning a member.
func WarningIssued(userID, moderatorID snowflake.ID, warningID int, reason string) Event {
	return NewEvent(
		"Warning Issued",
		fmt.Sprintf("Warning #%d recorded.", warningID),
		ColorOrange,
		userField(userID),
		platform.Field{Name: "Moderator", Value: fmt.Sprintf("<@%d>", moderatorID), Inline: true},
		platform.Field{Name: "Reason", Value: reason},
	)
}

// MemberJoined records a member joining the guild.
func MemberJoined(userID snowflake.ID, username string, createdAt time.Time) Event {
	return NewEvent(
		"Member Joined",
		"",
		ColorGreen,
		userField(userID),
		platform.Field{Name: "Username", Value: username, Inline: true},
		platform.Field{Name: "Account Created", Value: createdAt.UTC().Format(time.RFC1123), Inline: true},
	)
}

// MemberLeft records a member leaving the guild.
func MemberLeft(userID snowflake.ID, username string) Event {
	return NewEvent(
		"Member Left",
		"",
		ColorRed,
		userField(userID),
		platform.Field{Name: "Username", Value: username, Inline: true},
	)
}

// MemberBanned records a guild ban.
func MemberBanned(userID snowflake.ID, username string) Event {
	return NewEvent(
		"Member Banned",
		"",
		ColorRed,
		userField(userID),
		platform.Field{Name: "Username", Value: username, Inline: true},
	)
}

// MemberUnbanned records a guild unban.
func MemberUnbanned(userID snowflake.ID, username string) Event {
	return NewEvent(
		"Member Unbanned",
		"",
		ColorGreen,
		userField(userID),
		platform.Field{Name: "Username", Value: username, Inline: true},
	)
}

// RolesChanged records a member's role set changing.
func RolesChanged(userID snowflake.ID, added, removed []string) Event {
	fields := []platform.Field{userField(userID)}

	if len(added) > 0 {
		fields = append(fields, platform.Field{Name: "Added", Value: strings.Join(added, ", "), Inline: true})
	}

	if len(removed) > 0 {
		fields = append(fields, platform.Field{Name: "Removed", Value: strings.Join(removed, ", "), Inline: true})
	}

	return NewEvent("Roles Updated", "", ColorBlue, fields...)
}

// MessageDeleted records a message deletion.
func MessageDeleted(userID, channelID snowflake.ID, content string) Event {
	return NewEvent(
		"Message Deleted",
		"",
		ColorRed,
		userField(userID),
		platform.Field{Name: "Channel", Value: fmt.Sprintf("<#%d>", channelID), Inline: true},
		platform.Field{Name: "Content", Value: utils.TruncateString(content, messageExcerptLen)},
	)
}

// MessageEdited records a message edit with both versions.
func MessageEdited(userID, channelID snowflake.ID, before, after string) Event {
	return NewEvent(
		"Message Edited",
		"",
		ColorOrange,
		userField(userID),
		platform.Field{Name: "Channel", Value: fmt.Sprintf("<#%d>", channelID), Inline: true},
		platform.Field{Name: "Before", Value: utils.TruncateString(before, messageExcerptLen)},
		platform.Field{Name: "After", Value: utils.TruncateString(after, messageExcerptLen)},
	)
}
