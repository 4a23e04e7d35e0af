// Package setup bootstraps shared application dependencies: config,
// logging, Redis connections, and the moderation state stores.
package setup

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/redis"
	"github.com/venlyx/sentinel/internal/setup/config"
	"github.com/venlyx/sentinel/internal/storage"
)

// Stores bundles the persistent state stores, one per concern.
type Stores struct {
	Captcha  storage.Store // Pending captcha challenges
	Lockout  storage.Store // Verification lockout cooldowns
	Reminder storage.Store // Rule-reminder cooldowns
	Warnings storage.Store // Moderator warning ledger
}

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config // Application configuration
	Logger       *zap.Logger    // Main application logger
	AuditLogger  *zap.Logger    // Audit-trail logger
	RedisManager *redis.Manager // Redis connection manager; nil for the file backend
	Stores       *Stores        // Moderation state stores
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, auditLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	var redisManager *redis.Manager

	var stores *Stores

	switch cfg.Common.Storage.Backend {
	case config.StorageBackendRedis:
		redisManager = redis.NewManager(&cfg.Common.Redis, logger)

		stores, err = openRedisStores(redisManager, logger)
		if err != nil {
			redisManager.Close()
			return nil, err
		}

	case config.StorageBackendFile:
		stores, err = openFileStores(cfg.Common.Storage.Dir, logger)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Application initialized",
		zap.String("storageBackend", cfg.Common.Storage.Backend),
		zap.Int("guilds", len(cfg.Bot.GuildIDs)))

	return &App{
		Config:       cfg,
		Logger:       logger,
		AuditLogger:  auditLogger,
		RedisManager: redisManager,
		Stores:       stores,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(context.Context) {
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Syncing to a terminal may fail; nothing actionable.
	_ = s.Logger.Sync()
	_ = s.AuditLogger.Sync()
}

func openRedisStores(manager *redis.Manager, logger *zap.Logger) (*Stores, error) {
	stores := &Stores{}

	for _, binding := range []struct {
		dbIndex int
		prefix  string
		target  *storage.Store
	}{
		{redis.CaptchaDBIndex, "captcha", &stores.Captcha},
		{redis.LockoutDBIndex, "lockout", &stores.Lockout},
		{redis.ReminderDBIndex, "reminder", &stores.Reminder},
		{redis.WarningsDBIndex, "warnings", &stores.Warnings},
	} {
		client, err := manager.GetClient(binding.dbIndex)
		if err != nil {
			return nil, err
		}

		*binding.target = storage.NewRedisStore(client, binding.prefix, logger)
	}

	return stores, nil
}

func openFileStores(dir string, logger *zap.Logger) (*Stores, error) {
	stores := &Stores{}

	for _, binding := range []struct {
		name   string
		target *storage.Store
	}{
		{"captcha", &stores.Captcha},
		{"lockout", &stores.Lockout},
		{"reminder", &stores.Reminder},
		{"warnings", &stores.Warnings},
	} {
		store, err := storage.NewFileStore(filepath.Join(dir, binding.name+".json"), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", binding.name, err)
		}

		*binding.target = store
	}

	return stores, nil
}
