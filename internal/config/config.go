// Package config provides Viper-based configuration loading for the scene
// sync bridge.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// BridgeConfig holds the TCP command listener settings.
type BridgeConfig struct {
	// Host is the bind address for the command listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the command listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for client connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// NamingConfig holds identifier sanitization and commit settings.
type NamingConfig struct {
	// IllegalCharacters lists every character stripped from requested names.
	IllegalCharacters string `mapstructure:"illegal_characters"`
	// FallbackName replaces names that sanitize to the none token.
	FallbackName string `mapstructure:"fallback_name"`
	// NoneName is the reserved "no identifier" token.
	NoneName string `mapstructure:"none_name"`
	// MaxCommitAttempts bounds search-then-commit retries.
	MaxCommitAttempts int `mapstructure:"max_commit_attempts"`
	// ReservedPrefixes are identifier prefixes the host refuses to assign.
	ReservedPrefixes []string `mapstructure:"reserved_prefixes"`
}

// Policy returns the naming policy described by this section.
func (n NamingConfig) Policy() naming.Policy {
	return naming.Policy{
		IllegalCharacters: n.IllegalCharacters,
		FallbackName:      n.FallbackName,
		NoneName:          n.NoneName,
	}
}

// SceneConfig holds scene content settings.
type SceneConfig struct {
	// Dir is the directory of level YAML files loaded at startup; empty = none.
	Dir string `mapstructure:"dir"`
	// DefaultLevel is the level new sessions start in.
	DefaultLevel string `mapstructure:"default_level"`
	// SaveOnExit writes every level back to Dir on shutdown, object
	// handles included. Without it, ledger claims are released instead.
	SaveOnExit bool `mapstructure:"save_on_exit"`
}

// ScriptingConfig holds Lua naming rule settings.
type ScriptingConfig struct {
	// RulesDir holds Lua naming rule scripts. Files at the top level apply
	// to every level; a subdirectory applies only to the level it is named
	// after. Empty = no script rules.
	RulesDir string `mapstructure:"rules_dir"`
	// InstructionLimit caps Lua opcodes per call; 0 uses the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds PostgreSQL connection settings for the shared
// identity ledger.
type DatabaseConfig struct {
	// Enabled switches the ledger on; when false no connection is made.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelemetryConfig holds the operational endpoints.
type TelemetryConfig struct {
	// MetricsAddr is the HTTP address serving /metrics; empty = disabled.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// HealthAddr is the gRPC health service address; empty = disabled.
	HealthAddr string `mapstructure:"health_addr"`
}

// Config is the top-level application configuration.
type Config struct {
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Naming    NamingConfig    `mapstructure:"naming"`
	Scene     SceneConfig     `mapstructure:"scene"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateBridge(c.Bridge); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateNaming(c.Naming); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scene.DefaultLevel == "" {
		errs = append(errs, "scene.default_level must not be empty")
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBridge(b BridgeConfig) error {
	var errs []string
	if b.Port < 0 || b.Port > 65535 {
		errs = append(errs, fmt.Sprintf("bridge.port must be 0-65535, got %d", b.Port))
	}
	if b.ReadTimeout < 0 {
		errs = append(errs, "bridge.read_timeout must not be negative")
	}
	if b.WriteTimeout < 0 {
		errs = append(errs, "bridge.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateNaming(n NamingConfig) error {
	var errs []string
	if err := n.Policy().Validate(); err != nil {
		errs = append(errs, "naming: "+err.Error())
	}
	if n.MaxCommitAttempts < 1 {
		errs = append(errs, fmt.Sprintf("naming.max_commit_attempts must be >= 1, got %d", n.MaxCommitAttempts))
	}
	for _, p := range n.ReservedPrefixes {
		if p == "" {
			errs = append(errs, "naming.reserved_prefixes must not contain empty prefixes")
			break
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must be between 0 and database.max_conns")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SCENESYNC_ prefix
	v.SetEnvPrefix("SCENESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 3939)
	v.SetDefault("bridge.read_timeout", "10m")
	v.SetDefault("bridge.write_timeout", "10s")

	v.SetDefault("naming.illegal_characters", naming.DefaultIllegalCharacters)
	v.SetDefault("naming.fallback_name", naming.DefaultFallbackName)
	v.SetDefault("naming.none_name", naming.DefaultNoneName)
	v.SetDefault("naming.max_commit_attempts", naming.DefaultMaxAttempts)
	v.SetDefault("naming.reserved_prefixes", []string{"Default__"})

	v.SetDefault("scene.dir", "")
	v.SetDefault("scene.default_level", "PersistentLevel")
	v.SetDefault("scene.save_on_exit", true)

	v.SetDefault("scripting.rules_dir", "")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scenesync")
	v.SetDefault("database.password", "scenesync")
	v.SetDefault("database.name", "scenesync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("telemetry.metrics_addr", "")
	v.SetDefault("telemetry.health_addr", "")
}
