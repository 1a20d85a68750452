package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application-wide configuration tree.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Profile ProfileConfig `mapstructure:"profile"`
	Log     LogConfig     `mapstructure:"log"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// DataConfig locates the local stores: the ICS calendar file, the SQLite
// database and the document directory holding the undo/redo stacks and the
// sync checkpoint.
type DataConfig struct {
	Dir          string `mapstructure:"dir"`
	CalendarFile string `mapstructure:"calendar_file"`
	DatabaseFile string `mapstructure:"database_file"`
	DocumentsDir string `mapstructure:"documents_dir"`
	Timezone     string `mapstructure:"timezone"`
}

// CalendarPath resolves the calendar file against the data directory.
func (c *DataConfig) CalendarPath() string { return c.resolve(c.CalendarFile) }

// DatabasePath resolves the SQLite file against the data directory.
func (c *DataConfig) DatabasePath() string { return c.resolve(c.DatabaseFile) }

// DocumentsPath resolves the document store against the data directory.
func (c *DataConfig) DocumentsPath() string { return c.resolve(c.DocumentsDir) }

func (c *DataConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ProfileConfig seeds the settings row on first run.
type ProfileConfig struct {
	UserName      string `mapstructure:"user_name"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SyncConfig locates the optional sync server. An empty URL means sync is not
// configured and every sync trigger is dropped.
type SyncConfig struct {
	URL        string        `mapstructure:"url"`
	Passphrase string        `mapstructure:"passphrase"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ServeConfig configures the self-hosted sync replica started by `serve`.
type ServeConfig struct {
	Port             int           `mapstructure:"port"`
	DatabaseFile     string        `mapstructure:"database_file"`
	Passphrase       string        `mapstructure:"passphrase"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
	TokenRateLimit   int           `mapstructure:"token_rate_limit"`
	TokenRateWindow  time.Duration `mapstructure:"token_rate_window"`
	TombstoneMaxAge  time.Duration `mapstructure:"tombstone_max_age"`
	PurgeSchedule    string        `mapstructure:"purge_schedule"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration with the usual precedence: environment variables
// (SHIFT_ prefix) over the optional YAML file over defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".shiftscheduler")

	// ── defaults ──
	v.SetDefault("data.dir", dataDir)
	v.SetDefault("data.calendar_file", "shifts.ics")
	v.SetDefault("data.database_file", "shiftscheduler.db")
	v.SetDefault("data.documents_dir", "documents")
	v.SetDefault("data.timezone", "")

	v.SetDefault("profile.user_name", defaultUserName())
	v.SetDefault("profile.retention_days", 0)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	v.SetDefault("sync.url", "")
	v.SetDefault("sync.passphrase", "")
	v.SetDefault("sync.timeout", "15s")

	v.SetDefault("serve.port", 8388)
	v.SetDefault("serve.database_file", "syncserver.db")
	v.SetDefault("serve.token_ttl", "24h")
	v.SetDefault("serve.redis_addr", "")
	v.SetDefault("serve.token_rate_limit", 10)
	v.SetDefault("serve.token_rate_window", "1m")
	v.SetDefault("serve.tombstone_max_age", "2160h") // 90 days
	v.SetDefault("serve.purge_schedule", "0 3 * * *")
	v.SetDefault("serve.shutdown_timeout", "10s")

	// ── config file ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
	}

	// ── environment ──
	v.SetEnvPrefix("SHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file: defaults plus environment are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields every command depends on. Serve-only fields are
// checked by ValidateServe so client commands run without a server secret.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("config: data.dir must not be empty")
	}
	if c.Profile.RetentionDays < 0 {
		return fmt.Errorf("config: profile.retention_days must not be negative")
	}
	return nil
}

// ValidateServe checks the extra fields the `serve` subcommand needs.
func (c *Config) ValidateServe() error {
	if c.Serve.Port <= 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("config: serve.port must be between 1 and 65535")
	}
	if c.Serve.Passphrase == "" {
		return fmt.Errorf("config: serve.passphrase must not be empty")
	}
	if len(c.Serve.JWTSecret) < 16 {
		return fmt.Errorf("config: serve.jwt_secret must be at least 16 characters")
	}
	return nil
}

// Location resolves the configured timezone, defaulting to the system one.
func (c *DataConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func defaultUserName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "me"
}
