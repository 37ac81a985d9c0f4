package main

import (
	"errors"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/helixbot/helix-poller/internal/logging"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/helixbot/helix-poller/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "config.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "bot",
		Short:         "Helix Telegram community bot poller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPoll(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (defaults to ./config.yaml when present).")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log.level: debug|info|warn|error.")

	cmd.AddCommand(newPollCmd(a))
	cmd.AddCommand(newTopQuestionsCmd(a))
	cmd.AddCommand(newClearStatsCmd(a))
	cmd.AddCommand(newMigrateCommandsCmd(a))
	cmd.AddCommand(newKnowledgeCmd(a))
	cmd.AddCommand(newLogsCmd(a))

	return cmd
}

func (a *app) init() error {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.logger = logger
	if err := tgbotapi.SetLogger(&logging.TGBotAPIAdapter{Logger: logger.Named("tgbotapi")}); err != nil {
		return err
	}
	return nil
}

// openStore connects the configured storage backend.
func (a *app) openStore() (storage.Storage, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		a.logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.DriverPostgres:
		a.logger.Info("Using PostgreSQL storage", zap.String("host", a.cfg.Database.Host), zap.String("dbname", a.cfg.Database.DBName))
		return storage.NewPostgresStorage(a.cfg.PostgresConfig(), a.logger)
	default:
		a.logger.Info("Using SQLite storage", zap.String("path", a.cfg.Storage.SQLitePath))
		return storage.NewSQLiteStorage(a.cfg.Storage.SQLitePath)
	}
}
