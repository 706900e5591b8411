package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"

	// MaxHistoryLimit caps the replayed history.
	MaxHistoryLimit = 100
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	StorageDriver string `mapstructure:"storage_driver" yaml:"storage_driver"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	HistoryLimit  int    `mapstructure:"history_limit" yaml:"history_limit"`

	// AdminPassword is the shared secret for the HTTP admin surface.
	// AdminPasswordHash, a bcrypt hash, takes precedence when both are set.
	AdminPassword     string   `mapstructure:"admin_password" yaml:"admin_password"`
	AdminPasswordHash string   `mapstructure:"admin_password_hash" yaml:"admin_password_hash"`
	AdminIDs          []string `mapstructure:"admin_ids" yaml:"admin_ids"`

	IdentitySecret string        `mapstructure:"identity_secret" yaml:"identity_secret"`
	IdentityTTL    time.Duration `mapstructure:"identity_ttl" yaml:"identity_ttl"`

	MaxMessageBytes   int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxTextLength     int      `mapstructure:"max_text_length" yaml:"max_text_length"`
	MessagesPerMinute int      `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DataDir:           "data",
		StorageDriver:     StorageJSON,
		HistoryLimit:      100,
		IdentityTTL:       365 * 24 * time.Hour,
		MaxMessageBytes:   1 << 16,
		MaxTextLength:     2000,
		MessagesPerMinute: 60,
		AllowedOrigins:    []string{"*"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.StorageDriver != "" {
		c.StorageDriver = other.StorageDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.AdminPassword != "" {
		c.AdminPassword = other.AdminPassword
	}
	if other.AdminPasswordHash != "" {
		c.AdminPasswordHash = other.AdminPasswordHash
	}
	if len(other.AdminIDs) > 0 {
		c.AdminIDs = other.AdminIDs
	}
	if other.IdentitySecret != "" {
		c.IdentitySecret = other.IdentitySecret
	}
	if other.IdentityTTL != 0 {
		c.IdentityTTL = other.IdentityTTL
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MaxTextLength != 0 {
		c.MaxTextLength = other.MaxTextLength
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageJSON, StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage_driver: unknown driver %q", c.StorageDriver))
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > MaxHistoryLimit {
		errs = append(errs, fmt.Errorf("history_limit: must be between 1 and %d", MaxHistoryLimit))
	}
	if len(c.AdminIDs) > 0 && c.IdentitySecret == "" {
		errs = append(errs, errors.New("identity_secret: required when admin_ids is set"))
	}
	if c.MaxTextLength < 0 {
		errs = append(errs, errors.New("max_text_length: must not be negative"))
	}
	if c.MessagesPerMinute < 0 {
		errs = append(errs, errors.New("messages_per_minute: must not be negative"))
	}
	if c.IdentityTTL < 0 {
		errs = append(errs, errors.New("identity_ttl: must not be negative"))
	}
	return errors.Join(errs...)
}

// ResolvedDatabasePath returns the sqlite file, defaulting to data_dir/modchat.db.
func (c *Config) ResolvedDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "modchat.db")
}
