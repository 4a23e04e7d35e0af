package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidStorageBackend = errors.New("storage backend must be \"file\" or \"redis\"")
	ErrMissingDiscordToken   = errors.New("discord token is not set")
	ErrNoGuildsConfigured    = errors.New("no guild IDs are configured")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Storage backend names.
const (
	StorageBackendFile  = "file"
	StorageBackendRedis = "redis"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared between the bot and the
// maintenance worker.
type CommonConfig struct {
	Version int     `koanf:"version"`
	Debug   Debug   `koanf:"debug"`
	Redis   Redis   `koanf:"redis"`
	Storage Storage `koanf:"storage"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	Version          int      `koanf:"version"`
	Discord          Discord  `koanf:"discord"`
	GuildIDs         []uint64 `koanf:"guild_ids"`          // Guilds the bot manages
	VerifiedRoleID   uint64   `koanf:"verified_role_id"`   // Role granted on verification
	LogChannelID     uint64   `koanf:"log_channel_id"`     // Channel for audit events; 0 disables
	WelcomeChannelID uint64   `koanf:"welcome_channel_id"` // Channel for join greetings; 0 disables
}

// Debug contains debug-related configuration.
type Debug struct {
	LogLevel      string `koanf:"log_level"`        // Log level (debug, info, warn, error)
	MaxLogsToKeep int    `koanf:"max_logs_to_keep"` // Maximum log files to keep
	MaxLogLines   int    `koanf:"max_log_lines"`    // Maximum lines per log file
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`     // Redis hostname
	Port     int    `koanf:"port"`     // Redis port
	Username string `koanf:"username"` // Redis username
	Password string `koanf:"password"` // Redis password
}

// Storage selects where moderation state lives.
type Storage struct {
	Backend string `koanf:"backend"` // "file" or "redis"
	Dir     string `koanf:"dir"`     // Data directory for the file backend
}

// Discord contains Discord bot configuration.
type Discord struct {
	Token string `koanf:"token"` // Discord bot token for authentication
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// Define config search paths
	configPaths := []string{
		".sentinel",
		homeDir + "/.sentinel/config",
		"/etc/sentinel/config",
		"/app/config",
		"/config",
		"config",
		".",
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true
				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := validate(&config); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

func validate(config *Config) error {
	switch config.Common.Storage.Backend {
	case StorageBackendFile, StorageBackendRedis:
	case "":
		config.Common.Storage.Backend = StorageBackendFile
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageBackend, config.Common.Storage.Backend)
	}

	if config.Common.Storage.Dir == "" {
		config.Common.Storage.Dir = "data"
	}

	if config.Bot.Discord.Token == "" {
		return ErrMissingDiscordToken
	}

	if len(config.Bot.GuildIDs) == 0 {
		return ErrNoGuildsConfigured
	}

	return nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\nPlease update your config file from: https://github.com/venlyx/sentinel/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
