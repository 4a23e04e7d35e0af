package constants

const (
	// Commands.
	VerificationCommandName   = "verification"
	RuleCooldownCommandName   = "rulecooldown"
	ClearCooldownCommandName  = "clearrulecooldown"
	RulePatternsCommandName   = "rulepatterns"
	WarnCommandName           = "warn"
	WarningsCommandName       = "warnings"
	ClearWarningsCommandName  = "clearwarnings"
	ClearWarningCommandName   = "clearwarning"
	UserActivityCommandName   = "useractivity"

	// Verification subcommands.
	VerificationStatusSubcommand = "status"
	VerificationClearSubcommand  = "clear"
	VerificationStatsSubcommand  = "stats"

	// Components.
	VerifyButtonCustomID = "verify"

	// Embed colors.
	SuccessEmbedColor = 0x00ff00
	ErrorEmbedColor   = 0xff0000
	WarningEmbedColor = 0xff9900
	InfoEmbedColor    = 0x0099ff

	// ReminderDeleteAfterSeconds is how long rule reminders stay
	// visible in the channel.
	ReminderDeleteAfterSeconds = 30
)
