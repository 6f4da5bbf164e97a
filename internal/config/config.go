// Package config provides configuration management for marquee using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8188
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 6
	defaultMaxIdleConns      = 3
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultCacheBudgetBytes  = 500 * 1024 * 1024 // 500MB
	defaultDownloadRetries   = 2
	defaultDownloadTimeout   = 60 * time.Second
	defaultDirectoryTimeout  = 30 * time.Second
	defaultSubscribeRetry    = 5 * time.Second
	defaultReconcileInterval = 20 * time.Second
	defaultHeartbeatInterval = time.Minute
)

// Config holds all configuration for the player.
type Config struct {
	Screen    ScreenConfig    `mapstructure:"screen"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Player    PlayerConfig    `mapstructure:"player"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScreenConfig identifies this player instance.
type ScreenConfig struct {
	// ID is the screen identifier in the directory service.
	// Empty means a device id is generated and persisted under the data dir.
	ID string `mapstructure:"id"`
	// Name is a human-readable label reported with status updates.
	Name string `mapstructure:"name"`
}

// DirectoryConfig holds the remote directory service connection settings.
type DirectoryConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SubscribeRetry time.Duration `mapstructure:"subscribe_retry"`
}

// DatabaseConfig holds the local store connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// BaseDir is the sandbox root for the object directory and device id.
	BaseDir string `mapstructure:"base_dir"`
}

// CacheConfig holds content cache configuration.
type CacheConfig struct {
	// Budget is the byte budget for cached content.
	// Supports human-readable values like "500MB", "2GB", or raw byte counts.
	Budget ByteSize `mapstructure:"budget"`
	// DownloadRetries is how many times a failed content download is retried.
	DownloadRetries int `mapstructure:"download_retries"`
	// DownloadTimeout bounds a single content download.
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// PlayerConfig holds playback and reconciliation configuration.
type PlayerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// ServerConfig holds the local control API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MARQUEE_ and use underscores for
// nesting. Example: MARQUEE_DIRECTORY_URL=https://directory.example.com.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/marquee")
		v.AddConfigPath("$HOME/.marquee")
	}

	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Screen defaults
	v.SetDefault("screen.id", "")
	v.SetDefault("screen.name", "")

	// Directory defaults
	v.SetDefault("directory.url", "")
	v.SetDefault("directory.api_key", "")
	v.SetDefault("directory.timeout", defaultDirectoryTimeout)
	v.SetDefault("directory.subscribe_retry", defaultSubscribeRetry)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "marquee.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")

	// Cache defaults
	v.SetDefault("cache.budget", defaultCacheBudgetBytes)
	v.SetDefault("cache.download_retries", defaultDownloadRetries)
	v.SetDefault("cache.download_timeout", defaultDownloadTimeout)

	// Player defaults
	v.SetDefault("player.reconcile_interval", defaultReconcileInterval)
	v.SetDefault("player.heartbeat_interval", defaultHeartbeatInterval)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Directory.URL == "" {
		return fmt.Errorf("directory.url is required")
	}
	if u, err := url.Parse(c.Directory.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("directory.url must be a valid absolute URL")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.Cache.Budget <= 0 {
		return fmt.Errorf("cache.budget must be positive")
	}
	if c.Cache.DownloadRetries < 0 {
		return fmt.Errorf("cache.download_retries must not be negative")
	}

	if c.Player.ReconcileInterval < time.Second {
		return fmt.Errorf("player.reconcile_interval must be at least 1s")
	}

	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// deviceIDFile is the file under the data dir that persists a generated
// screen identifier across restarts.
const deviceIDFile = "device-id"

// EnsureScreenID returns the configured screen id, or loads/generates a
// persistent device id under baseDir when none is configured. The generated
// id is a UUID written once and reused on every subsequent start.
func (c *Config) EnsureScreenID() (string, error) {
	if c.Screen.ID != "" {
		return c.Screen.ID, nil
	}

	if err := os.MkdirAll(c.Storage.BaseDir, 0750); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(c.Storage.BaseDir, deviceIDFile)
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0640); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	return id, nil
}
