// Package config handles loading and saving reel configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/reel/config.yaml
//   - Data:    ~/.local/share/reel/ (exports)
//   - State:   ~/.local/state/reel/ (logs)
//
// Environment variables named REEL_* override the file for the most common
// knobs, so one-off runs don't need an edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/reel/pkg/feed"
)

// SourceConfig selects and configures the supply backend.
type SourceConfig struct {
	Provider string `yaml:"provider,omitempty"`  // http, sqlite, file
	BaseURL  string `yaml:"base_url,omitempty"`  // http provider
	ListPath string `yaml:"list_path,omitempty"` // http list endpoint, default /v2/list
	APIKey   string `yaml:"api_key,omitempty"`   // http Authorization bearer token
	PageSize int    `yaml:"page_size,omitempty"` // http server page size
	Catalog  string `yaml:"catalog,omitempty"`   // sqlite/file provider: path to the catalog
	Query    string `yaml:"query,omitempty"`     // tag filter, restartable from the UI

	// Sized downloads via the picsum /id/{id}/{w}/{h} path convention.
	// Zero means fetch the API's download_url at its native size.
	ThumbWidth  int `yaml:"thumb_width,omitempty"`
	ThumbHeight int `yaml:"thumb_height,omitempty"`
}

// UIConfig holds presentation preferences.
type UIConfig struct {
	Columns  int   `yaml:"columns,omitempty"`   // tiles per row
	CardRows int   `yaml:"card_rows,omitempty"` // terminal rows per tile, caption included
	Captions *bool `yaml:"captions,omitempty"`  // author line under each tile
}

// FeedConfig holds the engine knobs. Distances are in terminal rows; they
// are converted to engine units by Tunables.
type FeedConfig struct {
	SteadyBatch       int   `yaml:"steady_batch,omitempty"`
	InitialFloor      int   `yaml:"initial_floor,omitempty"`
	BufferCapacity    int   `yaml:"buffer_capacity,omitempty"`
	BufferLowWater    int   `yaml:"buffer_low_water,omitempty"`
	LeadRows          int   `yaml:"lead_rows,omitempty"`
	WindowHighWater   int   `yaml:"window_high_water,omitempty"`
	EvictRows         int   `yaml:"evict_rows,omitempty"`
	RetryDelaysMS     []int `yaml:"retry_delays_ms,omitempty"`
	MaxAttempts       int   `yaml:"max_attempts,omitempty"`
	DecodeConcurrency int   `yaml:"decode_concurrency,omitempty"`
}

// ExportConfig controls contact-sheet exports.
type ExportConfig struct {
	Dir     string `yaml:"dir,omitempty"`     // default: DataDir()/exports
	Format  string `yaml:"format,omitempty"`  // png or svg
	Columns int    `yaml:"columns,omitempty"` // thumbnails per sheet row
}

// Config is the top-level configuration for reel.
type Config struct {
	Source SourceConfig `yaml:"source,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
	Feed   FeedConfig   `yaml:"feed,omitempty"`
	Export ExportConfig `yaml:"export,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults: the public picsum
// list API, two columns, and the engine defaults scaled to terminal rows.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Provider:    "http",
			BaseURL:     "https://picsum.photos",
			ListPath:    "/v2/list",
			PageSize:    30,
			ThumbWidth:  480,
			ThumbHeight: 320,
		},
		UI: UIConfig{
			Columns:  2,
			CardRows: 14,
		},
		Feed: FeedConfig{
			SteadyBatch:       feed.DefaultSteadyBatch,
			InitialFloor:      feed.DefaultInitialFloor,
			BufferCapacity:    feed.DefaultBufferCapacity,
			BufferLowWater:    feed.DefaultBufferLowWater,
			LeadRows:          30,
			WindowHighWater:   feed.DefaultWindowHighWater,
			EvictRows:         300,
			RetryDelaysMS:     []int{2000, 4000, 8000},
			MaxAttempts:       feed.DefaultMaxAttempts,
			DecodeConcurrency: 3,
		},
		Export: ExportConfig{
			Format:  "png",
			Columns: 4,
		},
	}
}

// ConfigDir returns the XDG config directory for reel.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "reel")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "reel")
}

// DataDir returns the XDG data directory for reel.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "reel")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "reel")
}

// StateDir returns the XDG state directory for reel.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "reel")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "reel")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig (plus env overrides) if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Missing file is not an error;
// REEL_* environment overrides are applied on top of whatever was read.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source.Catalog = expandHome(cfg.Source.Catalog)
	cfg.Export.Dir = expandHome(cfg.Export.Dir)

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate rejects configurations the rest of the program cannot run with.
func (c Config) Validate() error {
	switch c.Source.Provider {
	case "http":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http provider")
		}
	case "sqlite", "file":
		if c.Source.Catalog == "" {
			return fmt.Errorf("source.catalog is required for the %s provider", c.Source.Provider)
		}
	default:
		return fmt.Errorf("unknown source.provider %q (want http, sqlite or file)", c.Source.Provider)
	}
	if c.UI.Columns < 1 {
		return fmt.Errorf("ui.columns must be at least 1, got %d", c.UI.Columns)
	}
	if c.UI.CardRows < 4 {
		return fmt.Errorf("ui.card_rows must be at least 4, got %d", c.UI.CardRows)
	}
	switch c.Export.Format {
	case "", "png", "svg":
	default:
		return fmt.Errorf("unknown export.format %q (want png or svg)", c.Export.Format)
	}
	return nil
}

// Tunables converts the row-based feed knobs into engine tunables. One
// engine scroll unit is one terminal row; a content row is CardRows tall and
// holds Columns units.
func (c Config) Tunables() feed.Tunables {
	delays := make([]time.Duration, 0, len(c.Feed.RetryDelaysMS))
	for _, ms := range c.Feed.RetryDelaysMS {
		if ms > 0 {
			delays = append(delays, time.Duration(ms)*time.Millisecond)
		}
	}
	return feed.Tunables{
		SteadyBatch:     c.Feed.SteadyBatch,
		InitialFloor:    c.Feed.InitialFloor,
		UnitExtent:      c.UI.CardRows,
		PerRow:          c.UI.Columns,
		BufferCapacity:  c.Feed.BufferCapacity,
		BufferLowWater:  c.Feed.BufferLowWater,
		LeadDistance:    c.Feed.LeadRows,
		WindowHighWater: c.Feed.WindowHighWater,
		EvictDistance:   c.Feed.EvictRows,
		RetryDelays:     delays,
		MaxAttempts:     c.Feed.MaxAttempts,
	}
}

// CaptionsEnabled resolves the tri-state captions flag (default on).
func (c Config) CaptionsEnabled() bool {
	if c.UI.Captions == nil {
		return true
	}
	return *c.UI.Captions
}

// ExportDir resolves the export directory, defaulting under DataDir.
func (c Config) ExportDir() string {
	if c.Export.Dir != "" {
		return c.Export.Dir
	}
	dir := DataDir()
	if dir == "" {
		return "."
	}
	return filepath.Join(dir, "exports")
}

// applyEnv lays REEL_* overrides on top of the loaded values.
func (c *Config) applyEnv() {
	envStr("REEL_PROVIDER", &c.Source.Provider)
	envStr("REEL_BASE_URL", &c.Source.BaseURL)
	envStr("REEL_API_KEY", &c.Source.APIKey)
	envStr("REEL_QUERY", &c.Source.Query)
	if v := os.Getenv("REEL_CATALOG"); v != "" {
		c.Source.Catalog = expandHome(v)
	}
	envPositiveInt("REEL_COLUMNS", &c.UI.Columns)
	envPositiveInt("REEL_CARD_ROWS", &c.UI.CardRows)
	envPositiveInt("REEL_PAGE_SIZE", &c.Source.PageSize)
	envPositiveInt("REEL_DECODE_CONCURRENCY", &c.Feed.DecodeConcurrency)
}

// envStr overwrites dst when the variable is set and non-empty.
func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// envPositiveInt overwrites dst when the variable parses to a positive int.
func envPositiveInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return
	}
	*dst = n
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
