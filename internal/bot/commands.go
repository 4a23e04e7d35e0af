package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/bot/constants"
	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/pkg/utils"
)

// commandDefinitions returns the moderation slash commands registered
// in every managed guild.
func commandDefinitions() []discord.ApplicationCommandCreate {
	userOption := discord.ApplicationCommandOptionUser{
		Name:        "user",
		Description: "The target user",
		Required:    true,
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.RuleCooldownCommandName,
			Description: "Show a user's rule reminder cooldown",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.ClearCooldownCommandName,
			Description: "Clear a user's rule reminder cooldown",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.RulePatternsCommandName,
			Description: "List the moderation rules and their patterns",
		},
		discord.SlashCommandCreate{
			Name:        constants.VerificationCommandName,
			Description: "Manage member verification",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.VerificationStatusSubcommand,
					Description: "Show a user's verification state",
					Options:     []discord.ApplicationCommandOption{userOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.VerificationClearSubcommand,
					Description: "Clear a user's challenge and lockout",
					Options:     []discord.ApplicationCommandOption{userOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.VerificationStatsSubcommand,
					Description: "Show verification statistics",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.WarnCommandName,
			Description: "Warn a user",
			Options: []discord.ApplicationCommandOption{
				userOption,
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the warning is issued",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.WarningsCommandName,
			Description: "List a user's warnings",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.ClearWarningsCommandName,
			Description: "Clear all warnings for a user",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
		discord.SlashCommandCreate{
			Name:        constants.ClearWarningCommandName,
			Description: "Clear a single warning by ID",
			Options: []discord.ApplicationCommandOption{
				userOption,
				discord.ApplicationCommandOptionInt{
					Name:        "id",
					Description: "The warning ID",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.UserActivityCommandName,
			Description: "Show a user's recent moderation activity",
			Options:     []discord.ApplicationCommandOption{userOption},
		},
	}
}

// handleApplicationCommandInteraction defers the response, checks the
// caller's permissions, and runs the command on its own goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	if err := event.DeferCreateMessage(true); err != nil {
		b.logger.Error("Failed to defer command response", zap.Error(err))
		return
	}

	b.dispatch("command", func(ctx context.Context) {
		data := event.SlashCommandInteractionData()

		start := time.Now()
		defer func() {
			b.logger.Debug("Command handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		member := event.Member()
		if member == nil || event.GuildID() == nil {
			b.respond(event, "Unavailable", "This command only works inside a server.", constants.ErrorEmbedColor)
			return
		}

		if !member.Permissions.Has(discord.PermissionModerateMembers) {
			b.respond(event, "Permission Denied", "You need the Moderate Members permission.", constants.ErrorEmbedColor)
			return
		}

		guildID := *event.GuildID()

		var err error

		switch data.CommandName() {
		case constants.RuleCooldownCommandName:
			err = b.cmdRuleCooldown(ctx, event, data.Snowflake("user"))
		case constants.ClearCooldownCommandName:
			err = b.cmdClearRuleCooldown(ctx, event, data.Snowflake("user"))
		case constants.RulePatternsCommandName:
			err = b.cmdRulePatterns(event)
		case constants.VerificationCommandName:
			err = b.cmdVerification(ctx, event, data, guildID)
		case constants.WarnCommandName:
			err = b.cmdWarn(ctx, event, guildID, data.Snowflake("user"), member.User.ID, data.String("reason"))
		case constants.WarningsCommandName:
			err = b.cmdWarnings(ctx, event, guildID, data.Snowflake("user"))
		case constants.ClearWarningsCommandName:
			err = b.cmdClearWarnings(ctx, event, guildID, data.Snowflake("user"))
		case constants.ClearWarningCommandName:
			err = b.cmdClearWarning(ctx, event, guildID, data.Snowflake("user"), data.Int("id"))
		case constants.UserActivityCommandName:
			err = b.cmdUserActivity(event, data.Snowflake("user"))
		default:
			b.respond(event, "Unknown Command", "This command is not available.", constants.ErrorEmbedColor)
			return
		}

		if err != nil {
			b.logger.Error("Command failed",
				zap.String("command", data.CommandName()), zap.Error(err))
			b.respond(event, "Error", "Something went wrong while handling the command.", constants.ErrorEmbedColor)
		}
	})
}

func (b *Bot) cmdRuleCooldown(ctx context.Context, event *events.ApplicationCommandInteractionCreate, userID snowflake.ID) error {
	remaining, err := b.reminders.Remaining(ctx, userID.String())
	if err != nil {
		return err
	}

	if remaining <= 0 {
		b.respond(event, "Rule Cooldown",
			fmt.Sprintf("<@%d> has no active rule reminder cooldown.", userID),
			constants.InfoEmbedColor)

		return nil
	}

	b.respond(event, "Rule Cooldown",
		fmt.Sprintf("<@%d> is muted from rule reminders for another %s.",
			userID, utils.FormatHoursMinutes(remaining)),
		constants.InfoEmbedColor)

	return nil
}

func (b *Bot) cmdClearRuleCooldown(ctx context.Context, event *events.ApplicationCommandInteractionCreate, userID snowflake.ID) error {
	if err := b.reminders.Clear(ctx, userID.String()); err != nil {
		return err
	}

	b.respond(event, "Rule Cooldown Cleared",
		fmt.Sprintf("<@%d> will receive rule reminders again.", userID),
		constants.SuccessEmbedColor)

	return nil
}

func (b *Bot) cmdRulePatterns(event *events.ApplicationCommandInteractionCreate) error {
	var sb strings.Builder

	for _, rule := range b.matcher.Rules() {
		fmt.Fprintf(&sb, "**Rule %d** — %s\n", rule.Number, rule.Message)

		for _, pattern := range rule.Patterns {
			fmt.Fprintf(&sb, "`%s`\n", pattern.String())
		}

		sb.WriteString("\n")
	}

	b.respond(event, "Rule Patterns", utils.TruncateString(sb.String(), 4000), constants.InfoEmbedColor)

	return nil
}

func (b *Bot) cmdVerification(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, guildID snowflake.ID) error {
	if data.SubCommandName == nil {
		b.respond(event, "Verification", "Missing subcommand.", constants.ErrorEmbedColor)
		return nil
	}

	switch *data.SubCommandName {
	case constants.VerificationStatusSubcommand:
		userID := data.Snowflake("user")

		status, err := b.verifier.Status(ctx, userID)
		if err != nil {
			return err
		}

		var sb strings.Builder

		if status.HasActiveChallenge {
			fmt.Fprintf(&sb, "Active challenge: %d/%d attempts used, issued <t:%d:R>.\n",
				status.Attempts, status.MaxAttempts, status.ChallengeCreatedAt.Unix())
		} else {
			sb.WriteString("No active challenge.\n")
		}

		if status.OnLockout {
			fmt.Fprintf(&sb, "On lockout for another %s.\n",
				utils.FormatHoursMinutes(status.LockoutRemaining))
		} else {
			sb.WriteString("Not on lockout.\n")
		}

		b.respond(event, fmt.Sprintf("Verification Status for %d", userID),
			sb.String(), constants.InfoEmbedColor)

	case constants.VerificationClearSubcommand:
		userID := data.Snowflake("user")

		if err := b.verifier.ClearState(ctx, userID); err != nil {
			return err
		}

		b.respond(event, "Verification Cleared",
			fmt.Sprintf("<@%d> can start verification from scratch.", userID),
			constants.SuccessEmbedColor)

	case constants.VerificationStatsSubcommand:
		stats, err := b.verifier.Stats(ctx, guildID)
		if err != nil {
			return err
		}

		b.respond(event, "Verification Statistics",
			fmt.Sprintf("Active captchas: **%d**\nUsers on lockout: **%d**\nVerified members: **%d**",
				stats.ActiveCaptchas, stats.UsersOnLockout, stats.VerifiedMembers),
			constants.InfoEmbedColor)
	}

	return nil
}

func (b *Bot) cmdWarn(ctx context.Context, event *events.ApplicationCommandInteractionCreate, guildID, userID, moderatorID snowflake.ID, reason string) error {
	warning, err := b.warnings.Add(ctx, guildID.String(), userID.String(), moderatorID.String(), reason)
	if err != nil {
		return err
	}

	b.sink.Emit(ctx, audit.WarningIssued(userID, moderatorID, warning.ID, reason))

	b.respond(event, "Warning Issued",
		fmt.Sprintf("<@%d> has been warned (warning #%d).\n**Reason:** %s", userID, warning.ID, reason),
		constants.WarningEmbedColor)

	return nil
}

func (b *Bot) cmdWarnings(ctx context.Context, event *events.ApplicationCommandInteractionCreate, guildID, userID snowflake.ID) error {
	list, err := b.warnings.List(ctx, guildID.String(), userID.String())
	if err != nil {
		return err
	}

	if len(list) == 0 {
		b.respond(event, "Warnings",
			fmt.Sprintf("<@%d> has no warnings.", userID), constants.InfoEmbedColor)

		return nil
	}

	var sb strings.Builder

	for _, warning := range list {
		fmt.Fprintf(&sb, "**#%d** <t:%d:R> by <@%s>: %s\n",
			warning.ID, warning.Timestamp.Unix(), warning.ModeratorID, warning.Reason)
	}

	b.respond(event, fmt.Sprintf("Warnings (%d)", len(list)),
		utils.TruncateString(sb.String(), 4000), constants.WarningEmbedColor)

	return nil
}

func (b *Bot) cmdClearWarnings(ctx context.Context, event *events.ApplicationCommandInteractionCreate, guildID, userID snowflake.ID) error {
	removed, err := b.warnings.ClearAll(ctx, guildID.String(), userID.String())
	if err != nil {
		return err
	}

	b.respond(event, "Warnings Cleared",
		fmt.Sprintf("Removed %d warning(s) for <@%d>.", removed, userID),
		constants.SuccessEmbedColor)

	return nil
}

func (b *Bot) cmdClearWarning(ctx context.Context, event *events.ApplicationCommandInteractionCreate, guildID, userID snowflake.ID, warningID int) error {
	found, err := b.warnings.ClearOne(ctx, guildID.String(), userID.String(), warningID)
	if err != nil {
		return err
	}

	if !found {
		b.respond(event, "Warning Not Found",
			fmt.Sprintf("<@%d> has no warning #%d.", userID, warningID),
			constants.ErrorEmbedColor)

		return nil
	}

	b.respond(event, "Warning Cleared",
		fmt.Sprintf("Removed warning #%d for <@%d>.", warningID, userID),
		constants.SuccessEmbedColor)

	return nil
}

func (b *Bot) cmdUserActivity(event *events.ApplicationCommandInteractionCreate, userID snowflake.ID) error {
	entries := b.activity.Recent(userID.String(), 10)

	if len(entries) == 0 {
		b.respond(event, "User Activity",
			fmt.Sprintf("No recent activity recorded for <@%d>.", userID),
			constants.InfoEmbedColor)

		return nil
	}

	var sb strings.Builder

	for _, entry := range entries {
		fmt.Fprintf(&sb, "<t:%d:R> **%s**: %s\n",
			entry.Occurred.Unix(), entry.Kind, entry.Detail)
	}

	if last, ok := b.activity.LastActivity(userID.String()); ok {
		fmt.Fprintf(&sb, "\nLast activity <t:%d:R>, %d entries kept.",
			last.Unix(), b.activity.Count(userID.String()))
	}

	b.respond(event, fmt.Sprintf("Recent Activity for %d", userID),
		utils.TruncateString(sb.String(), 4000), constants.InfoEmbedColor)

	return nil
}

// respond replaces the deferred ephemeral response with an embed.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, title, description string, color int) {
	b.updateInteraction(event.ApplicationID(), event.Token(), title, description, color)
}
