// Package bot connects the moderation services to Discord: gateway
// events in, role changes and messages out.
package bot

import (
	"context"
	"fmt"
	"regexp"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/activity"
	"github.com/venlyx/sentinel/internal/moderation/audit"
	"github.com/venlyx/sentinel/internal/moderation/captcha"
	"github.com/venlyx/sentinel/internal/moderation/cooldown"
	"github.com/venlyx/sentinel/internal/moderation/monitor"
	"github.com/venlyx/sentinel/internal/moderation/platform"
	"github.com/venlyx/sentinel/internal/moderation/rules"
	"github.com/venlyx/sentinel/internal/moderation/verify"
	"github.com/venlyx/sentinel/internal/moderation/warnings"
	"github.com/venlyx/sentinel/internal/setup"
)

// answerPattern recognizes messages that look like challenge codes.
var answerPattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// Bot owns the Discord client and the moderation services behind it.
type Bot struct {
	client           bot.Client
	logger           *zap.Logger
	guildIDs         []snowflake.ID
	welcomeChannelID snowflake.ID

	matcher   *rules.Matcher
	monitor   *monitor.Monitor
	verifier  *verify.Orchestrator
	warnings  *warnings.Ledger
	activity  *activity.Correlator
	reminders *cooldown.Tracker
	sink      audit.Sink
	messenger platform.Messenger
}

// New builds the Discord client and wires every moderation service to
// it. Gateway intents cover messages, members, and moderation events.
func New(app *setup.App) (*Bot, error) {
	logger := app.Logger.Named("bot")

	guildIDs := make([]snowflake.ID, len(app.Config.Bot.GuildIDs))
	for i, id := range app.Config.Bot.GuildIDs {
		guildIDs[i] = snowflake.ID(id)
	}

	b := &Bot{
		logger:           logger,
		guildIDs:         guildIDs,
		welcomeChannelID: snowflake.ID(app.Config.Bot.WelcomeChannelID),
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(app.Config.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentDirectMessages,
				gateway.IntentGuildMembers,
				gateway.IntentGuildModeration,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:            b.handleGuildMessage,
			OnDMMessageCreate:               b.handleDMMessage,
			OnGuildMemberJoin:               b.handleMemberJoin,
			OnGuildMemberLeave:              b.handleMemberLeave,
			OnGuildBan:                      b.handleBanAdd,
			OnGuildUnban:                    b.handleBanRemove,
			OnGuildMemberUpdate:             b.handleMemberUpdate,
			OnGuildMessageDelete:            b.handleMessageDelete,
			OnGuildMessageUpdate:            b.handleMessageUpdate,
			OnComponentInteraction:          b.handleComponentInteraction,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client

	// Platform adapters share the client's REST layer
	roles := newRestRoleProvider(client.Rest())
	messenger := newRestMessenger(client.Rest(), logger)
	scanner := newConfigScanner(client.Rest(), guildIDs, logger)

	var sink audit.Sink = audit.NopSink{}
	if app.Config.Bot.LogChannelID != 0 {
		sink = audit.NewChannelSink(messenger, snowflake.ID(app.Config.Bot.LogChannelID), app.AuditLogger)
	}

	lockouts := cooldown.NewTracker(app.Stores.Lockout,
		cooldown.DomainVerificationLockout, cooldown.LockoutDuration, logger)
	reminders := cooldown.NewTracker(app.Stores.Reminder,
		cooldown.DomainReminder, cooldown.ReminderDuration, logger)

	captchas := captcha.NewManager(app.Stores.Captcha, lockouts, logger)
	correlator := activity.NewCorrelator(logger)
	matcher := rules.NewMatcher(rules.DefaultRules())

	b.matcher = matcher
	b.monitor = monitor.New(matcher, reminders, correlator, sink, logger)
	b.verifier = verify.NewOrchestrator(captchas, lockouts, roles, messenger, scanner,
		captcha.NewImageRenderer(), sink, snowflake.ID(app.Config.Bot.VerifiedRoleID), logger)
	b.warnings = warnings.NewLedger(app.Stores.Warnings, logger)
	b.activity = correlator
	b.reminders = reminders
	b.sink = sink
	b.messenger = messenger

	return b, nil
}

// Start registers the moderation commands in every managed guild and
// opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	for _, guildID := range b.guildIDs {
		_, err := b.client.Rest().SetGuildCommands(b.client.ApplicationID(), guildID, commandDefinitions())
		if err != nil {
			return fmt.Errorf("failed to register commands for guild %d: %w", guildID, err)
		}
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
}

// dispatch runs an event handler on its own goroutine so slow REST
// calls never stall the gateway reader. Panics are contained per
// handler.
func (b *Bot) dispatch(name string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in event handler",
					zap.String("handler", name),
					zap.Any("panic", r))
			}
		}()

		fn(context.Background())
	}()
}
