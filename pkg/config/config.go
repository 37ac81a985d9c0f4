package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Bot      BotConfig      `mapstructure:"bot"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Users    UsersConfig    `mapstructure:"users"`
	Status   StatusConfig   `mapstructure:"status"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token        string        `mapstructure:"token"`
	APIEndpoint  string        `mapstructure:"api_endpoint"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	FetchBackoff time.Duration `mapstructure:"fetch_backoff"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BotConfig seeds the shared config document on first start. After that the
// dashboard owns those values.
type BotConfig struct {
	Name         string   `mapstructure:"name"`
	TargetChatID int64    `mapstructure:"target_chat_id"`
	AdminIDs     []int64  `mapstructure:"admin_ids"`
	WakeWords    []string `mapstructure:"wake_words"`
	EnableAI     bool     `mapstructure:"enable_ai"`
	EnablePM     bool     `mapstructure:"enable_pm"`
	Personality  string   `mapstructure:"personality"`
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Listen          bool          `mapstructure:"listen"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type StatsConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

type UsersConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Seed is the shared config written when the store has none yet.
func (c *Config) Seed() models.Config {
	return models.Config{
		Token:         c.Telegram.Token,
		TargetChatID:  c.Bot.TargetChatID,
		AdminIDs:      c.Bot.AdminIDs,
		BotName:       c.Bot.Name,
		WakeWords:     c.Bot.WakeWords,
		EnableAI:      c.Bot.EnableAI,
		EnablePM:      c.Bot.EnablePM,
		AIBaseURL:     c.OpenAI.BaseURL,
		AIModel:       c.OpenAI.Model,
		AIKey:         c.OpenAI.APIKey,
		AIPersonality: c.Bot.Personality,
	}
}

// PostgresConfig converts the database section for the postgres backend.
func (c *Config) PostgresConfig() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		Listen:   c.Storage.Listen,
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, sqlite, postgres", c.Storage.Driver))
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLitePath == "" {
		errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
	}
	if c.Storage.Driver == DriverPostgres && c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required for the postgres driver"))
	}
	if c.Telegram.PollTimeout <= 0 {
		errs = append(errs, errors.New("telegram.poll_timeout must be positive"))
	}
	if c.Telegram.HTTPTimeout <= c.Telegram.PollTimeout {
		errs = append(errs, errors.New("telegram.http_timeout must exceed telegram.poll_timeout"))
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		errs = append(errs, errors.New("status.addr is required when the status server is enabled"))
	}
	return errors.Join(errs...)
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads path (optional) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.poll_timeout", "30s")
	v.SetDefault("telegram.fetch_backoff", "5s")
	v.SetDefault("telegram.startup_delay", "3s")
	v.SetDefault("telegram.http_timeout", "60s")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", "60s")
	v.SetDefault("bot.name", "Helix")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "helix.db")
	v.SetDefault("storage.refresh_interval", "60s")
	v.SetDefault("storage.listen", true)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("stats.history_limit", 100)
	v.SetDefault("users.history_limit", 0)
	v.SetDefault("status.enabled", true)
	v.SetDefault("status.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Enable environment variable support, e.g. STORAGE_DRIVER for storage.driver
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
		if !v.InConfig("storage.driver") && os.Getenv("STORAGE_DRIVER") == "" {
			config.Storage.Driver = DriverPostgres
		}
	}
	if config.Database.UseInMemory {
		config.Storage.Driver = DriverMemory
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	config.Storage.Driver = strings.ToLower(strings.TrimSpace(config.Storage.Driver))
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}
