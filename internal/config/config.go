// Package config loads termdex settings from defaults, the user config file,
// a project .termdex.yaml and TERMDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfigNames are the project-level config file names, in lookup order.
var ProjectConfigNames = []string{".termdex.yaml", ".termdex.yml"}

// Config is the complete termdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig configures build-index.
type IndexConfig struct {
	// NgramMin and NgramMax bound the substring grams of iri_text and label.
	NgramMin int `yaml:"ngram_min" json:"ngram_min"`
	NgramMax int `yaml:"ngram_max" json:"ngram_max"`
	// MaxTokenLength drops longer grams (bytes).
	MaxTokenLength int `yaml:"max_token_length" json:"max_token_length"`
	// CommitFrequency is the progress boundary in processed rows.
	CommitFrequency int `yaml:"commit_frequency" json:"commit_frequency"`
	// FlushPolicy is "progress" or "commit".
	FlushPolicy string `yaml:"flush_policy" json:"flush_policy"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
}

// SearchConfig configures search.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	AggPageSize  int `yaml:"agg_page_size" json:"agg_page_size"`
}

// ServerConfig configures serve.
type ServerConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	IndexRoot string `yaml:"index_root" json:"index_root"`
	// CacheSize is the number of indexes kept open.
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
	GinMode   string `yaml:"gin_mode" json:"gin_mode"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File overrides the default ~/.termdex/logs/termdex.log.
	File string `yaml:"file" json:"file"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			NgramMin:        3,
			NgramMax:        3,
			MaxTokenLength:  40,
			CommitFrequency: 100000,
			FlushPolicy:     "progress",
			BatchSize:       10000,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			AggPageSize:  1000,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			IndexRoot: ".",
			CacheSize: 8,
			GinMode:   "release",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/termdex/config.yaml, falling
// back to ~/.config/termdex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "termdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "termdex", "config.yaml")
}

// GetUserConfigDir returns the directory of the user config file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig reads the user config over the defaults. It returns nil
// without error when there is no user config.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// ReadFile reads one config file over the defaults, without env overrides
// or validation.
func ReadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load resolves the effective configuration for dir.
func Load(dir string) (*Config, error) {
	return LoadFile(dir, "")
}

// LoadFile is Load with an explicit config file layered over the project
// config. An empty path is skipped.
func LoadFile(dir, path string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := LoadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "".
func ProjectConfigPath(dir string) string {
	for _, name := range ProjectConfigNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func (c *Config) loadFromDir(dir string) error {
	if p := ProjectConfigPath(dir); p != "" {
		return c.loadYAML(p)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays every non-zero field of other.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.NgramMin != 0 {
		c.Index.NgramMin = other.Index.NgramMin
	}
	if other.Index.NgramMax != 0 {
		c.Index.NgramMax = other.Index.NgramMax
	}
	if other.Index.MaxTokenLength != 0 {
		c.Index.MaxTokenLength = other.Index.MaxTokenLength
	}
	if other.Index.CommitFrequency != 0 {
		c.Index.CommitFrequency = other.Index.CommitFrequency
	}
	if other.Index.FlushPolicy != "" {
		c.Index.FlushPolicy = other.Index.FlushPolicy
	}
	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.AggPageSize != 0 {
		c.Search.AggPageSize = other.Search.AggPageSize
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.IndexRoot != "" {
		c.Server.IndexRoot = other.Server.IndexRoot
	}
	if other.Server.CacheSize != 0 {
		c.Server.CacheSize = other.Server.CacheSize
	}
	if other.Server.GinMode != "" {
		c.Server.GinMode = other.Server.GinMode
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies TERMDEX_* variables. Unparseable numbers are
// ignored so that Validate reports the value from the files instead.
func (c *Config) applyEnvOverrides() {
	envInt("TERMDEX_NGRAM_MIN", &c.Index.NgramMin)
	envInt("TERMDEX_NGRAM_MAX", &c.Index.NgramMax)
	envInt("TERMDEX_MAX_TOKEN_LENGTH", &c.Index.MaxTokenLength)
	envInt("TERMDEX_COMMIT_FREQUENCY", &c.Index.CommitFrequency)
	envInt("TERMDEX_BATCH_SIZE", &c.Index.BatchSize)
	if v := os.Getenv("TERMDEX_FLUSH_POLICY"); v != "" {
		c.Index.FlushPolicy = strings.ToLower(v)
	}

	envInt("TERMDEX_DEFAULT_LIMIT", &c.Search.DefaultLimit)
	envInt("TERMDEX_AGG_PAGE_SIZE", &c.Search.AggPageSize)

	if v := os.Getenv("TERMDEX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TERMDEX_INDEX_ROOT"); v != "" {
		c.Server.IndexRoot = v
	}
	envInt("TERMDEX_CACHE_SIZE", &c.Server.CacheSize)
	if v := os.Getenv("TERMDEX_GIN_MODE"); v != "" {
		c.Server.GinMode = v
	}

	if v := os.Getenv("TERMDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TERMDEX_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	if c.Index.NgramMin < 1 {
		return fmt.Errorf("index.ngram_min must be at least 1, got %d", c.Index.NgramMin)
	}
	if c.Index.NgramMax < c.Index.NgramMin {
		return fmt.Errorf("index.ngram_max (%d) must not be below index.ngram_min (%d)", c.Index.NgramMax, c.Index.NgramMin)
	}
	if c.Index.MaxTokenLength < c.Index.NgramMin {
		return fmt.Errorf("index.max_token_length (%d) must not be below index.ngram_min (%d)", c.Index.MaxTokenLength, c.Index.NgramMin)
	}
	if c.Index.CommitFrequency <= 0 {
		return fmt.Errorf("index.commit_frequency must be positive, got %d", c.Index.CommitFrequency)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	switch c.Index.FlushPolicy {
	case "progress", "commit":
	default:
		return fmt.Errorf("index.flush_policy must be progress or commit, got %q", c.Index.FlushPolicy)
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.AggPageSize <= 0 {
		return fmt.Errorf("search.agg_page_size must be positive, got %d", c.Search.AggPageSize)
	}

	if c.Server.CacheSize <= 0 {
		return fmt.Errorf("server.cache_size must be positive, got %d", c.Server.CacheSize)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes c to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
