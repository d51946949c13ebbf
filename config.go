package termsuggest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	defaults "github.com/Paranoid-AF/termsuggest/default"
)

// Config represents the user's termsuggest configuration.
type Config struct {
	Version int           `toml:"version"`
	Suggest SuggestConfig `toml:"suggest"`
	Cache   CacheConfig   `toml:"cache"`
	Log     LogConfig     `toml:"log"`
}

// SuggestConfig holds settings for the terminal suggest feature.
type SuggestConfig struct {
	Enabled *bool         `toml:"enabled"`
	Builtin BuiltinConfig `toml:"builtin"`
	// Separator is "auto", "/" or "\".
	Separator string `toml:"separator"`
}

// BuiltinConfig toggles the extra completion sources the shell can enable on request.
type BuiltinConfig struct {
	Git  *bool `toml:"git"`
	Code *bool `toml:"code"`
}

// CacheConfig holds settings for the global command cache.
type CacheConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend    string `toml:"backend"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// ConfigDir returns the config directory path.
// Resolution order: $TERMSUGGEST_CONFIG_DIR > $XDG_CONFIG_HOME/termsuggest > ~/.config/termsuggest
func ConfigDir() string {
	if dir := os.Getenv("TERMSUGGEST_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "termsuggest")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "termsuggest-config")
	}
	return filepath.Join(home, ".config", "termsuggest")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// StateDir returns the directory holding persisted state.
// Resolution order: $TERMSUGGEST_STATE_DIR > $XDG_STATE_HOME/termsuggest > ~/.local/state/termsuggest
func StateDir() string {
	if dir := os.Getenv("TERMSUGGEST_STATE_DIR"); dir != "" {
		return dir
	}
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "termsuggest")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "termsuggest-state")
	}
	return filepath.Join(home, ".local", "state", "termsuggest")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("termsuggest: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling missing fields with defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Suggest.Enabled == nil {
		cfg.Suggest.Enabled = defaults.Suggest.Enabled
	}
	if cfg.Suggest.Builtin.Git == nil {
		cfg.Suggest.Builtin.Git = defaults.Suggest.Builtin.Git
	}
	if cfg.Suggest.Builtin.Code == nil {
		cfg.Suggest.Builtin.Code = defaults.Suggest.Builtin.Code
	}
	if cfg.Suggest.Separator == "" {
		cfg.Suggest.Separator = defaults.Suggest.Separator
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaults.Cache.Backend
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	switch cfg.Suggest.Separator {
	case "", "auto", "/", `\`:
	default:
		warnings = append(warnings, "suggest.separator must be \"auto\", \"/\" or \"\\\"; falling back to auto")
	}
	switch ResolveCacheBackend(cfg) {
	case "file", "sqlite", "memory":
	default:
		warnings = append(warnings, "unknown cache.backend "+ResolveCacheBackend(cfg)+"; falling back to file")
	}
	if cfg.Cache.TTLMinutes < 0 {
		warnings = append(warnings, "cache.ttl_minutes is negative; global commands will never expire")
	}
	if !SuggestEnabled(cfg) && (BuiltinGitEnabled(cfg) || BuiltinCodeEnabled(cfg)) {
		warnings = append(warnings, "suggest is disabled; builtin completion sources have no effect")
	}
	return warnings
}

// SuggestEnabled reports whether the suggest feature is on.
func SuggestEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Suggest.Enabled == nil {
		return true // default true
	}
	return *cfg.Suggest.Enabled
}

// BuiltinGitEnabled reports whether the shell's git completion source should be requested.
func BuiltinGitEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Suggest.Builtin.Git == nil {
		return false
	}
	return *cfg.Suggest.Builtin.Git
}

// BuiltinCodeEnabled reports whether the shell's editor-command completion source should be requested.
func BuiltinCodeEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Suggest.Builtin.Code == nil {
		return false
	}
	return *cfg.Suggest.Builtin.Code
}

// ResolveCacheBackend returns the cache storage backend.
// Priority: $TERMSUGGEST_CACHE_BACKEND env > config value.
func ResolveCacheBackend(cfg *Config) string {
	if backend := os.Getenv("TERMSUGGEST_CACHE_BACKEND"); backend != "" {
		return strings.ToLower(backend)
	}
	if cfg != nil && cfg.Cache.Backend != "" {
		return strings.ToLower(cfg.Cache.Backend)
	}
	return "file"
}

// ResolveLogLevel returns the log level.
// Priority: $TERMSUGGEST_LOG_LEVEL env > config value.
func ResolveLogLevel(cfg *Config) string {
	if level := os.Getenv("TERMSUGGEST_LOG_LEVEL"); level != "" {
		return level
	}
	if cfg != nil && cfg.Log.Level != "" {
		return cfg.Log.Level
	}
	return "info"
}

// ResolveSeparator returns the configured path separator, or 0 for auto-detection.
func ResolveSeparator(cfg *Config) byte {
	if cfg == nil {
		return 0
	}
	switch cfg.Suggest.Separator {
	case "/":
		return '/'
	case `\`:
		return '\\'
	}
	return 0
}
