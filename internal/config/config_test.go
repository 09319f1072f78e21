package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/viewdb/internal/notify"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "viewdb.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Editor.BlockingThreshold != 50 || cfg.Editor.OpenTimeout != time.Minute {
		t.Errorf("unexpected editor defaults %+v", cfg.Editor)
	}
	if want := "file:" + filepath.Join(dir, "conf", "viewdb.json"); cfg.Store.DSN != want {
		t.Errorf("expected dsn %q, got %q", want, cfg.Store.DSN)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected the file created: %v", err)
	}
	if !strings.Contains(string(data), "open_timeout: 1m0s") {
		t.Errorf("expected durations written as text, got:\n%s", data)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Editor != cfg.Editor || again.Store != cfg.Store {
		t.Error("expected the saved defaults to load back")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewdb.yaml")
	content := `
store:
  dsn: sqlite:/tmp/x.sqlite
editor:
  open_timeout: 5s
  row_fetch_rate: 100
notify:
  debounce: 50ms
  web_push:
    keys:
      public: pub
      private: priv
      subscriber: mailto:ops@example.com
    subscriptions:
      - endpoint: https://push.example.com/1
        p256dh: key
        auth: secret
    kinds: [did_update_row]
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.DSN != "sqlite:/tmp/x.sqlite" {
		t.Errorf("unexpected dsn %q", cfg.Store.DSN)
	}
	if cfg.Editor.OpenTimeout != 5*time.Second || cfg.Editor.RowFetchRate != 100 {
		t.Errorf("unexpected editor %+v", cfg.Editor)
	}
	// Unset values keep their defaults.
	if cfg.Editor.BlockingThreshold != 50 || cfg.Log.MaxSizeMB != 10 {
		t.Errorf("expected defaults preserved, got %+v %+v", cfg.Editor, cfg.Log)
	}
	if cfg.Notify.Debounce != 50*time.Millisecond {
		t.Errorf("unexpected debounce %s", cfg.Notify.Debounce)
	}
	w := cfg.Notify.WebPush
	if !w.Enabled() || len(w.Subscriptions) != 1 || w.Subscriptions[0].Auth != "secret" || w.Keys.Subscriber != "mailto:ops@example.com" {
		t.Errorf("unexpected web push %+v", w)
	}
	if len(w.Kinds) != 1 || w.Kinds[0] != "did_update_row" {
		t.Errorf("unexpected kinds %v", w.Kinds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "store.dsn"},
		{"negative threshold", func(c *Config) { c.Editor.BlockingThreshold = -1 }, "blocking_threshold"},
		{"negative timeout", func(c *Config) { c.Editor.OpenTimeout = -time.Second }, "open_timeout"},
		{"negative rate", func(c *Config) { c.Editor.RowFetchRate = -1 }, "row_fetch_rate"},
		{"negative debounce", func(c *Config) { c.Notify.Debounce = -1 }, "debounce"},
		{"subscriptions without keys", func(c *Config) {
			c.Notify.WebPush.Subscriptions = []notify.PushSubscription{{Endpoint: "https://x"}}
		}, "keys"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"rotation", func(c *Config) { c.Log.MaxBackups = -1 }, "rotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default(t.TempDir())
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected an error mentioning %q, got %v", tt.want, err)
			}
		})
	}
	t.Run("default", func(t *testing.T) {
		c := Default(t.TempDir())
		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewdb.yaml")
	if err := os.WriteFile(path, []byte("editor:\n  chunk_size: -3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "chunk_size") {
		t.Fatalf("expected a chunk_size error, got %v", err)
	}
	if err := os.WriteFile(path, []byte("editor: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}
