// Package config loads the viewdb configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maruel/viewdb/internal/notify"
)

// Config is the content of viewdb.yaml. It is created with defaults if
// missing.
type Config struct {
	Store  Store  `yaml:"store"`
	Editor Editor `yaml:"editor"`
	Notify Notify `yaml:"notify"`
	Log    Log    `yaml:"log"`
}

// Store selects the persistence backend.
type Store struct {
	// DSN names the backend; see package docstore.
	DSN string `yaml:"dsn"`
	// GitHistory commits every save of a file store.
	GitHistory bool `yaml:"git_history"`
	// DocumentID keys the database in SQL stores.
	DocumentID string `yaml:"document_id"`
	// JournalKeep is the number of snapshots a jsonl store retains.
	JournalKeep int `yaml:"journal_keep"`
}

// Editor tunes view loading and row finalization.
type Editor struct {
	BlockingThreshold int           `yaml:"blocking_threshold"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
	FinalizeWait      time.Duration `yaml:"finalize_wait"`
	CloseGrace        time.Duration `yaml:"close_grace"`
	CacheCapacity     int           `yaml:"cache_capacity"`
	ChunkSize         int           `yaml:"chunk_size"`
	FetchConcurrency  int           `yaml:"fetch_concurrency"`
	// RowFetchRate caps row fetches per second. 0 means unlimited.
	RowFetchRate float64 `yaml:"row_fetch_rate"`
}

// Notify configures notification delivery.
type Notify struct {
	Debounce time.Duration `yaml:"debounce"`
	WebPush  WebPush       `yaml:"web_push"`
}

// WebPush forwards notifications to browsers. Empty keys disable it.
type WebPush struct {
	Keys          notify.VAPIDKeys          `yaml:"keys"`
	Subscriptions []notify.PushSubscription `yaml:"subscriptions"`
	// Kinds restricts the forwarded notifications; empty forwards all.
	Kinds []notify.Kind `yaml:"kinds"`
}

// Enabled reports whether web push is configured.
func (w *WebPush) Enabled() bool {
	return w.Keys.Public != "" && w.Keys.Private != ""
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
	// File, when set, receives the logs with rotation instead of stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the default configuration. Files are relative to dir.
func Default(dir string) Config {
	return Config{
		Store: Store{DSN: "file:" + filepath.Join(dir, "viewdb.json"), DocumentID: "default", JournalKeep: 100},
		Editor: Editor{
			BlockingThreshold: 50,
			OpenTimeout:       60 * time.Second,
			FinalizeWait:      10 * time.Second,
			CloseGrace:        30 * time.Second,
			CacheCapacity:     50,
			ChunkSize:         10,
			FetchConcurrency:  8,
		},
		Notify: Notify{Debounce: notify.DefaultDebounce},
		Log:    Log{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Store.DSN == "" {
		return errors.New("store.dsn is required")
	}
	if c.Store.JournalKeep < 0 {
		return errors.New("store.journal_keep must be non-negative")
	}
	if err := c.Editor.Validate(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if c.Notify.Debounce < 0 {
		return errors.New("notify.debounce must be non-negative")
	}
	if w := c.Notify.WebPush; !w.Enabled() && len(w.Subscriptions) != 0 {
		return errors.New("notify.web_push.keys are required with subscriptions")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation values must be non-negative")
	}
	return nil
}

// Validate checks that editor values are non-negative.
func (e *Editor) Validate() error {
	if e.BlockingThreshold < 0 {
		return errors.New("blocking_threshold must be non-negative")
	}
	if e.OpenTimeout < 0 {
		return errors.New("open_timeout must be non-negative")
	}
	if e.FinalizeWait < 0 {
		return errors.New("finalize_wait must be non-negative")
	}
	if e.CloseGrace < 0 {
		return errors.New("close_grace must be non-negative")
	}
	if e.CacheCapacity < 0 {
		return errors.New("cache_capacity must be non-negative")
	}
	if e.ChunkSize < 0 {
		return errors.New("chunk_size must be non-negative")
	}
	if e.FetchConcurrency < 0 {
		return errors.New("fetch_concurrency must be non-negative")
	}
	if e.RowFetchRate < 0 {
		return errors.New("row_fetch_rate must be non-negative")
	}
	return nil
}

// Load reads the configuration at path. The file is created with defaults
// if it doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user selected config file
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
