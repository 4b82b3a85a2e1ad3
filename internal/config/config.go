// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jeranaias/chatsync/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATSYNC_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatsync configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Client talks to a chatsync backend.
	Client ClientConfig `toml:"client" json:"client" envPrefix:"CLIENT_"`

	// Server is the backend served by `chatsync serve`.
	Server ServerConfig `toml:"server" json:"server" envPrefix:"SERVER_"`

	// Storage is the server's database.
	Storage StorageConfig `toml:"storage" json:"storage" envPrefix:"STORAGE_"`

	// LLM generates assistant replies on the server.
	LLM LLMConfig `toml:"llm" json:"llm" envPrefix:"LLM_"`

	UI  UIConfig  `toml:"ui" json:"ui" envPrefix:"UI_"`
	Log LogConfig `toml:"log" json:"log" envPrefix:"LOG_"`
}

// ClientConfig contains backend client settings.
type ClientConfig struct {
	BaseURL        string        `toml:"base_url" json:"base_url" env:"BASE_URL"`
	FetchTimeout   time.Duration `toml:"fetch_timeout" json:"fetch_timeout" env:"FETCH_TIMEOUT"`
	SendTimeout    time.Duration `toml:"send_timeout" json:"send_timeout" env:"SEND_TIMEOUT"`
	RequestTimeout time.Duration `toml:"request_timeout" json:"request_timeout" env:"REQUEST_TIMEOUT"`
	TokenFile      string        `toml:"token_file" json:"token_file" env:"TOKEN_FILE"`

	// Token and UserID override the token file. They are never written
	// back to disk.
	Token  string `toml:"-" json:"-" env:"TOKEN"`
	UserID string `toml:"-" json:"-" env:"USER_ID"`

	// TokenPassphrase encrypts the token file at rest. Environment only.
	TokenPassphrase string `toml:"-" json:"-" env:"TOKEN_PASSPHRASE"`
}

// ServerConfig contains HTTP backend settings.
type ServerConfig struct {
	Addr           string        `toml:"addr" json:"addr" env:"ADDR"`
	Tokens         []string      `toml:"tokens" json:"-" env:"TOKENS"`
	AllowedOrigins []string      `toml:"allowed_origins" json:"allowed_origins" env:"ALLOWED_ORIGINS"`
	RateLimit      float64       `toml:"rate_limit" json:"rate_limit" env:"RATE_LIMIT"`
	RateBurst      int           `toml:"rate_burst" json:"rate_burst" env:"RATE_BURST"`
	MaxUploadMB    int64         `toml:"max_upload_mb" json:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	RequestTimeout time.Duration `toml:"request_timeout" json:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// StorageConfig selects the database.
type StorageConfig struct {
	Driver string `toml:"driver" json:"driver" env:"DRIVER"`
	DSN    string `toml:"dsn" json:"-" env:"DSN"`
}

// LLMConfig selects the reply generator.
type LLMConfig struct {
	Provider     string `toml:"provider" json:"provider" env:"PROVIDER"`
	Model        string `toml:"model" json:"model" env:"MODEL"`
	BaseURL      string `toml:"base_url" json:"base_url" env:"BASE_URL"`
	APIKey       string `toml:"api_key" json:"-" env:"API_KEY"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt" env:"SYSTEM_PROMPT"`
	HistoryTurns int    `toml:"history_turns" json:"history_turns" env:"HISTORY_TURNS"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme" env:"THEME"`
	Markdown       bool   `toml:"markdown" json:"markdown" env:"MARKDOWN"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps" env:"SHOW_TIMESTAMPS"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level" env:"LEVEL"`
	Format string `toml:"format" json:"format" env:"FORMAT"`
	File   string `toml:"file" json:"file" env:"FILE"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LLM providers.
const (
	ProviderEcho   = "echo"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Client: ClientConfig{
			BaseURL:        "http://127.0.0.1:8080",
			FetchTimeout:   5 * time.Second,
			SendTimeout:    60 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimit:      5,
			RateBurst:      20,
			MaxUploadMB:    10,
			RequestTimeout: 2 * time.Minute,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		LLM: LLMConfig{
			Provider:     ProviderEcho,
			SystemPrompt: "You are a helpful assistant.",
			HistoryTurns: 20,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatsync configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatsync"), nil
}

// ConfigPathTOML returns the path to the default TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens config files that may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load builds the configuration: defaults, then the TOML file at path (or
// the default location when path is empty), then a .env file in the
// working directory, then CHATSYNC_* environment variables. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPathTOML()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no config file, using defaults", "path", path)
			} else {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := ensureSecurePermissions(path); err != nil {
		slog.Warn("could not ensure secure permissions", "path", path, "error", err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		slog.Warn("ignoring unknown config keys", "path", path, "keys", strings.Join(keys, ","))
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set win. A missing file is
// ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %q: %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

// ApplyEnvOverrides overlays CHATSYNC_* environment variables, for example
// CHATSYNC_CLIENT_BASE_URL or CHATSYNC_LLM_PROVIDER. Unset variables leave
// the current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	if c.LLM.APIKey == "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// SetDefaults fills zero values left by a partial file.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = d.Client.BaseURL
	}
	if c.Client.FetchTimeout <= 0 {
		c.Client.FetchTimeout = d.Client.FetchTimeout
	}
	if c.Client.SendTimeout <= 0 {
		c.Client.SendTimeout = d.Client.SendTimeout
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = d.Client.RequestTimeout
	}
	if c.Client.TokenFile == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Client.TokenFile = filepath.Join(dir, "session.json")
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = d.Server.RequestTimeout
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.DSN == "" && c.Storage.Driver == DriverSQLite {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.DSN = filepath.Join(dir, "chatsync.db")
		}
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
	}
	if c.LLM.HistoryTurns <= 0 {
		c.LLM.HistoryTurns = d.LLM.HistoryTurns
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOllama:
		return "llama3.2"
	default:
		return ""
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to path as TOML with 0600 permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# chatsync configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Client.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "client.base_url",
			Message: fmt.Sprintf("invalid URL %q, must be http(s)://host[:port]", c.Client.BaseURL),
		})
	}
	if c.Client.FetchTimeout > c.Client.SendTimeout {
		errs = append(errs, ValidationError{
			Field:   "client.fetch_timeout",
			Message: "must not exceed client.send_timeout",
		})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must be >= 0"})
	}
	for _, tok := range c.Server.Tokens {
		if _, _, ok := strings.Cut(tok, ":"); !ok {
			errs = append(errs, ValidationError{
				Field:   "server.tokens",
				Message: "entries must have the form token:user_id",
			})
			break
		}
	}

	if !slices.Contains([]string{DriverSQLite, DriverPostgres}, c.Storage.Driver) {
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver %q, must be one of: sqlite, postgres", c.Storage.Driver),
		})
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.DSN == "" {
		errs = append(errs, ValidationError{Field: "storage.dsn", Message: "required for postgres"})
	}

	switch c.LLM.Provider {
	case ProviderEcho, ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, ValidationError{Field: "llm.api_key", Message: "required for openai"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider %q, must be one of: echo, openai, ollama", c.LLM.Provider),
		})
	}

	if !slices.Contains([]string{"auto", "dark", "light"}, c.UI.Theme) {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, ValidationError{Field: "log.format", Message: "must be text or json"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.Tokens = slices.Clone(c.Server.Tokens)
	clone.Server.AllowedOrigins = slices.Clone(c.Server.AllowedOrigins)
	return &clone
}

// String returns a JSON rendering for debugging. Secret fields carry
// json:"-" tags and never appear.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
