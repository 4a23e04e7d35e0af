package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/bot/constants"
	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/internal/moderation/monitor"
	"github.com/venlyx/sentinel/internal/moderation/platform"
	"github.com/venlyx/sentinel/internal/moderation/verify"
	"github.com/venlyx/sentinel/pkg/utils"
)

const reminderDeleteAfter = constants.ReminderDeleteAfterSeconds * time.Second

// handleGuildMessage routes guild messages first through the captcha
// answer path, then through the rule monitor.
func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	if event.Message.Author.Bot || event.Message.Author.System {
		return
	}

	b.dispatch("guild_message", func(ctx context.Context) {
		userID := event.Message.Author.ID
		content := event.Message.Content
		trimmed := strings.TrimSpace(content)

		// A message shaped like a challenge code is tried as an answer
		// before anything else; without a pending challenge it falls
		// through to normal moderation.
		if answerPattern.MatchString(trimmed) {
			outcome, err := b.verifier.SubmitAnswer(ctx, event.GuildID, userID, trimmed)
			if err != nil {
				b.logger.Error("Failed to process answer",
					zap.Uint64("userID", uint64(userID)), zap.Error(err))

				return
			}

			if outcome.Result != verify.SubmitNoChallenge {
				b.respondToAnswer(ctx, event.ChannelID, userID, outcome)
				return
			}
		}

		reminder, err := b.monitor.HandleMessage(ctx, monitor.MessageContext{
			GuildID: event.GuildID,
			UserID:  userID,
			Content: content,
		})
		if err != nil {
			b.logger.Error("Failed to monitor message",
				zap.Uint64("userID", uint64(userID)), zap.Error(err))

			return
		}

		if reminder != nil {
			b.sendReminder(ctx, event.ChannelID, userID, reminder)
		}
	})
}

// handleDMMessage treats direct messages shaped like challenge codes
// as verification answers.
func (b *Bot) handleDMMessage(event *events.DMMessageCreate) {
	if event.Message.Author.Bot || event.Message.Author.System {
		return
	}

	trimmed := strings.TrimSpace(event.Message.Content)
	if !answerPattern.MatchString(trimmed) {
		return
	}

	b.dispatch("dm_message", func(ctx context.Context) {
		userID := event.Message.Author.ID

		outcome, err := b.verifier.SubmitAnswer(ctx, 0, userID, trimmed)
		if err != nil {
			if errors.Is(err, verify.ErrGuildUnresolved) {
				_, _ = b.messenger.SendDirect(ctx, userID, platform.Message{
					Title:       "Verification",
					Description: "You are not a member of any server this bot manages.",
					Color:       constants.ErrorEmbedColor,
				})

				return
			}

			b.logger.Error("Failed to process DM answer",
				zap.Uint64("userID", uint64(userID)), zap.Error(err))

			return
		}

		msg, ok := answerFeedback(userID, outcome)
		if !ok {
			return
		}

		// Success already gets its own DM from the orchestrator.
		if outcome.Result != verify.SubmitVerified {
			_, _ = b.messenger.SendDirect(ctx, userID, msg)
		}
	})
}

// handleMemberJoin greets new members with a verify button and records
// the join.
func (b *Bot) handleMemberJoin(event *events.GuildMemberJoin) {
	b.dispatch("member_join", func(ctx context.Context) {
		user := event.Member.User

		b.sink.Emit(ctx, audit.MemberJoined(user.ID, user.Username, user.ID.Time()))

		if b.welcomeChannelID == 0 {
			return
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("Welcome!").
			SetDescription(fmt.Sprintf(
				"Welcome <@%d>! Press the button below to verify yourself and unlock the server.",
				user.ID)).
			SetColor(constants.InfoEmbedColor).
			Build()

		message := discord.NewMessageCreateBuilder().
			SetEmbeds(embed).
			AddActionRow(discord.NewPrimaryButton("Verify", constants.VerifyButtonCustomID)).
			Build()

		if _, err := b.client.Rest().CreateMessage(b.welcomeChannelID, message); err != nil {
			b.logger.Error("Failed to send welcome message",
				zap.Uint64("userID", uint64(user.ID)), zap.Error(err))
		}
	})
}

func (b *Bot) handleMemberLeave(event *events.GuildMemberLeave) {
	b.dispatch("member_leave", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.MemberLeft(event.User.ID, event.User.Username))
	})
}

func (b *Bot) handleBanAdd(event *events.GuildBan) {
	b.dispatch("ban_add", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.MemberBanned(event.User.ID, event.User.Username))
	})
}

func (b *Bot) handleBanRemove(event *events.GuildUnban) {
	b.dispatch("ban_remove", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.MemberUnbanned(event.User.ID, event.User.Username))
	})
}

// handleMemberUpdate records role changes by diffing the old and new
// role sets.
func (b *Bot) handleMemberUpdate(event *events.GuildMemberUpdate) {
	added := diffRoles(event.Member.RoleIDs, event.OldMember.RoleIDs)
	removed := diffRoles(event.OldMember.RoleIDs, event.Member.RoleIDs)

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	b.dispatch("member_update", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.RolesChanged(event.Member.User.ID, added, removed))
	})
}

func (b *Bot) handleMessageDelete(event *events.GuildMessageDelete) {
	// The payload carries the message only if it was cached.
	if event.Message.Author.Bot || event.Message.Author.ID == 0 {
		return
	}

	b.dispatch("message_delete", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.MessageDeleted(
			event.Message.Author.ID, event.ChannelID, event.Message.Content))
	})
}

func (b *Bot) handleMessageUpdate(event *events.GuildMessageUpdate) {
	if event.Message.Author.Bot || event.OldMessage.Content == event.Message.Content {
		return
	}

	b.dispatch("message_update", func(ctx context.Context) {
		b.sink.Emit(ctx, audit.MessageEdited(
			event.Message.Author.ID, event.ChannelID,
			event.OldMessage.Content, event.Message.Content))
	})
}

// handleComponentInteraction starts verification when the verify
// button is pressed.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	if event.Data.CustomID() != constants.VerifyButtonCustomID {
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		b.logger.Error("Failed to defer component response", zap.Error(err))
		return
	}

	b.dispatch("verify_button", func(ctx context.Context) {
		userID := event.User().ID

		outcome, err := b.verifier.Begin(ctx, *guildID, userID)
		if err != nil {
			b.logger.Error("Failed to begin verification",
				zap.Uint64("userID", uint64(userID)), zap.Error(err))
			b.updateInteraction(event.ApplicationID(), event.Token(),
				"Verification", "Something went wrong. Please try again later.", constants.ErrorEmbedColor)

			return
		}

		title, description, color := beginFeedback(outcome)
		b.updateInteraction(event.ApplicationID(), event.Token(), title, description, color)
	})
}

// respondToAnswer posts answer feedback in the channel the answer was
// typed in, then clears it away after a short delay.
func (b *Bot) respondToAnswer(ctx context.Context, channelID, userID snowflake.ID, outcome verify.SubmitOutcome) {
	msg, ok := answerFeedback(userID, outcome)
	if !ok {
		return
	}

	if err := b.messenger.SendToChannel(ctx, channelID, msg, reminderDeleteAfter); err != nil {
		b.logger.Error("Failed to send answer feedback",
			zap.Uint64("userID", uint64(userID)), zap.Error(err))
	}
}

func (b *Bot) sendReminder(ctx context.Context, channelID, userID snowflake.ID, reminder *monitor.Reminder) {
	msg := platform.Message{
		Title:       fmt.Sprintf("Rule %d Reminder", reminder.RuleNumber),
		Description: fmt.Sprintf("<@%d> %s", userID, reminder.Message),
		Color:       constants.WarningEmbedColor,
	}

	if err := b.messenger.SendToChannel(ctx, channelID, msg, reminderDeleteAfter); err != nil {
		b.logger.Error("Failed to send rule reminder",
			zap.Uint64("userID", uint64(userID)), zap.Error(err))
	}
}

func (b *Bot) updateInteraction(applicationID snowflake.ID, token, title, description string, color int) {
	embed := discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description).
		SetColor(color).
		Build()

	_, err := b.client.Rest().UpdateInteractionResponse(applicationID, token,
		discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// answerFeedback renders a submit outcome as a user-facing message.
// The second return is false for outcomes that need no reply.
func answerFeedback(userID snowflake.ID, outcome verify.SubmitOutcome) (platform.Message, bool) {
	switch outcome.Result {
	case verify.SubmitVerified:
		return platform.Message{
			Title:       "Verification Complete",
			Description: fmt.Sprintf("<@%d> is now verified.", userID),
			Color:       constants.SuccessEmbedColor,
		}, true

	case verify.SubmitIncorrect:
		return platform.Message{
			Title: "Incorrect Code",
			Description: fmt.Sprintf("<@%d> That code is not right. %d attempt(s) remaining.",
				userID, outcome.AttemptsRemaining),
			Color: constants.WarningEmbedColor,
		}, true

	case verify.SubmitExhausted:
		return platform.Message{
			Title: "Verification Failed",
			Description: fmt.Sprintf("<@%d> You are out of attempts. Try again in %s.",
				userID, utils.FormatHoursMinutes(outcome.LockoutDuration)),
			Color: constants.ErrorEmbedColor,
		}, true

	case verify.SubmitAlreadyVerified:
		return platform.Message{
			Title:       "Already Verified",
			Description: fmt.Sprintf("<@%d> You are already verified.", userID),
			Color:       constants.InfoEmbedColor,
		}, true

	default:
		return platform.Message{}, false
	}
}

func beginFeedback(outcome verify.BeginOutcome) (string, string, int) {
	switch outcome.Result {
	case verify.BeginChallengeSent:
		return "Check Your DMs",
			fmt.Sprintf("A captcha has been sent to you. You have %d attempts.", outcome.AttemptsAllowed),
			constants.InfoEmbedColor

	case verify.BeginAlreadyVerified:
		return "Already Verified", "You already have access to the server.", constants.InfoEmbedColor

	case verify.BeginOnCooldown:
		return "Verification Locked",
			fmt.Sprintf("Too many failed attempts. Try again in %s.",
				utils.FormatHoursMinutes(outcome.Remaining)),
			constants.ErrorEmbedColor

	case verify.BeginDeliveryFailed:
		return "Cannot Send DM",
			"Please enable direct messages from server members and press the button again.",
			constants.WarningEmbedColor

	default:
		return "Verification", "Unexpected state. Please contact a moderator.", constants.ErrorEmbedColor
	}
}

// diffRoles returns the IDs present in a but not in b, formatted as
// role mentions.
func diffRoles(a, b []snowflake.ID) []string {
	var out []string

	for _, id := range a {
		found := false

		for _, other := range b {
			if id == other {
				found = true
				break
			}
		}

		if !found {
			out = append(out, fmt.Sprintf("<@&%d>", id))
		}
	}

	return out
}
