// Package config manages clipvault configuration.
// It handles loading, validating, saving and initializing the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	AppName      = "clipvault"
	ConfigFile   = "config.toml"
	DatabaseFile = "clipboard.db"

	// EnvConfig overrides the config file location.
	EnvConfig = "CLIPVAULT_CONFIG"
	// EnvDBPath overrides database.location.
	EnvDBPath = "CLIPVAULT_DBPATH"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Defaults
const (
	DefaultHistoryLength = 50
	DefaultCheckInterval = "60s"
	DefaultMaxCharacters = 1
	DefaultMaxCodeScan   = 10000
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the clipvault configuration
type Config struct {
	History       HistoryConfig       `toml:"history" yaml:"history"`
	Database      DatabaseConfig      `toml:"database" yaml:"database"`
	CharacterItem CharacterItemConfig `toml:"character_item" yaml:"character_item"`
	Capture       CaptureConfig       `toml:"capture" yaml:"capture"`
	DataDir       string              `toml:"data_dir" yaml:"data_dir"`
	CacheDir      string              `toml:"cache_dir" yaml:"cache_dir"`

	path string // file the config was loaded from
}

// HistoryConfig controls retention.
type HistoryConfig struct {
	Length            int    `toml:"length" yaml:"length"`
	Time              int    `toml:"time" yaml:"time"` // minutes, 0 = unlimited
	ClearPolicy       string `toml:"clear_policy" yaml:"clear_policy"`
	UpdateDateOnPaste bool   `toml:"update_date_on_paste" yaml:"update_date_on_paste"`
	CheckInterval     string `toml:"check_interval" yaml:"check_interval"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Backend  string `toml:"backend" yaml:"backend"`
	Location string `toml:"location" yaml:"location"`
	InMemory bool   `toml:"in_memory" yaml:"in_memory"`
}

type CharacterItemConfig struct {
	MaxCharacters int `toml:"max_characters" yaml:"max_characters"`
}

// CaptureConfig controls what gets recorded.
type CaptureConfig struct {
	Incognito         bool     `toml:"incognito" yaml:"incognito"`
	ExcludedMimeTypes []string `toml:"excluded_mime_types" yaml:"excluded_mime_types"`
	MaxCodeScan       int      `toml:"max_code_scan" yaml:"max_code_scan"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		History: HistoryConfig{
			Length:            DefaultHistoryLength,
			ClearPolicy:       models.KeepAll.String(),
			UpdateDateOnPaste: true,
			CheckInterval:     DefaultCheckInterval,
		},
		Database: DatabaseConfig{
			Backend:  BackendSQLite,
			Location: filepath.Join(dataDir, DatabaseFile),
		},
		CharacterItem: CharacterItemConfig{MaxCharacters: DefaultMaxCharacters},
		Capture: CaptureConfig{
			ExcludedMimeTypes: []string{"x-kde-passwordManagerHint"},
			MaxCodeScan:       DefaultMaxCodeScan,
		},
		DataDir:  dataDir,
		CacheDir: defaultCacheDir(),
	}
}

// DefaultPath returns the config file location, honoring CLIPVAULT_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, AppName, ConfigFile)
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", AppName)
	}
	return filepath.Join(".", AppName)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", AppName, "cache")
	}
	return filepath.Join(dir, AppName)
}

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults. Files ending in .yaml or .yml are parsed as YAML,
// everything else as TOML. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv() {
	if p := os.Getenv(EnvDBPath); p != "" {
		c.Database.Location = p
	}
}

// Validate clamps out-of-range numbers to their defaults and rejects
// unknown enum values.
func (c *Config) Validate() error {
	if c.History.Length < 0 {
		c.History.Length = DefaultHistoryLength
	}
	if c.History.Time < 0 {
		c.History.Time = 0
	}
	if c.CharacterItem.MaxCharacters < 0 {
		c.CharacterItem.MaxCharacters = DefaultMaxCharacters
	}
	if c.Capture.MaxCodeScan <= 0 {
		c.Capture.MaxCodeScan = DefaultMaxCodeScan
	}
	if c.History.CheckInterval == "" {
		c.History.CheckInterval = DefaultCheckInterval
	}
	if c.History.ClearPolicy == "" {
		c.History.ClearPolicy = models.KeepAll.String()
	}
	if c.Database.Backend == "" {
		c.Database.Backend = BackendSQLite
	}

	if _, err := models.ParseClearPolicy(c.History.ClearPolicy); err != nil {
		return fmt.Errorf("%w: history.clear_policy: %v", ErrInvalid, err)
	}
	if d, err := time.ParseDuration(c.History.CheckInterval); err != nil || d <= 0 {
		return fmt.Errorf("%w: history.check_interval %q", ErrInvalid, c.History.CheckInterval)
	}
	switch c.Database.Backend {
	case BackendSQLite, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("%w: database.backend %q", ErrInvalid, c.Database.Backend)
	}
	if c.Database.Backend != BackendMemory && !c.Database.InMemory && c.Database.Location == "" {
		return fmt.Errorf("%w: database.location is required for the %s backend", ErrInvalid, c.Database.Backend)
	}
	return nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	return c.SaveTo(c.path)
}

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	c.path = path
	return nil
}

// Initialize writes a default configuration file at path. It refuses to
// overwrite an existing file.
func Initialize(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config file already exists: %s", path)
	}

	cfg := Default()
	if err := cfg.SaveTo(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// ClearPolicy returns the parsed history.clear_policy.
func (c *Config) ClearPolicy() models.ClearPolicy {
	p, err := models.ParseClearPolicy(c.History.ClearPolicy)
	if err != nil {
		return models.KeepAll
	}
	return p
}

// HistoryTime returns history.time as a duration.
func (c *Config) HistoryTime() time.Duration {
	return time.Duration(c.History.Time) * time.Minute
}

// CheckInterval returns the parsed history.check_interval.
func (c *Config) CheckInterval() time.Duration {
	d, err := time.ParseDuration(c.History.CheckInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultCheckInterval)
	}
	return d
}

// ImagesDir returns where captured images are cached.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.DataDir, "images")
}
