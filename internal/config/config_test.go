package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bundlewatch/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BUNDLEWATCH_ENV", "")
	t.Setenv("BUNDLEWATCH_URL", "")
	t.Setenv("BUNDLEWATCH_API_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")
	return home
}

func TestLoadDefaultConfigUsesEnvURLAndExpandsPaths(t *testing.T) {
	home := isolateEnv(t)
	t.Setenv("BUNDLEWATCH_URL", "https://app.example.com/")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Target.URL != "https://app.example.com/" {
		t.Fatalf("expected target url from env, got %q", cfg.Target.URL)
	}
	if cfg.Local.PageMatch != cfg.Target.URL {
		t.Fatalf("expected page match to default to target url, got %q", cfg.Local.PageMatch)
	}
	wantState := filepath.Join(home, ".local", "share", "bundlewatch")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.History.Path != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.History.Path)
	}
	if cfg.LockPath() != filepath.Join(wantState, "bundlewatch.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.PollInterval().Seconds() != 60 {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected unbounded request timeout, got %s", cfg.RequestTimeout())
	}
	if cfg.IsDevelopment() {
		t.Fatal("expected production by default")
	}
	if cfg.APIBaseURL() != "http://127.0.0.1:7489" {
		t.Fatalf("unexpected api base url: %q", cfg.APIBaseURL())
	}
}

func TestLoadRequiresTargetURL(t *testing.T) {
	isolateEnv(t)

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without target url")
	}
	if !strings.Contains(err.Error(), "BUNDLEWATCH_URL") {
		t.Fatalf("expected hint about BUNDLEWATCH_URL, got %v", err)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	home := isolateEnv(t)

	payload := map[string]any{
		"environment": "DEV",
		"target": map[string]any{
			"url":              "https://deploy.internal/app/",
			"interval_seconds": 15,
			"request_timeout":  5,
		},
		"local": map[string]any{
			"source":        "File",
			"document_path": "~/kiosk/index.html",
		},
		"reload": map[string]any{
			"command": []string{"systemctl", " ", "--user", "restart", "kiosk"},
		},
		"api": map[string]any{
			"bind":       "0.0.0.0:9000",
			"public_url": "https://kiosk.example.com/",
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(home, "bundlewatch.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q, got %q exists=%v", path, resolved, exists)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development environment, got %q", cfg.Environment)
	}
	if cfg.PollInterval().Seconds() != 15 || cfg.RequestTimeout().Seconds() != 5 {
		t.Fatalf("unexpected timings: %s %s", cfg.PollInterval(), cfg.RequestTimeout())
	}
	if cfg.Local.Source != config.LocalSourceFile {
		t.Fatalf("unexpected local source %q", cfg.Local.Source)
	}
	if cfg.Local.DocumentPath != filepath.Join(home, "kiosk", "index.html") {
		t.Fatalf("unexpected document path %q", cfg.Local.DocumentPath)
	}
	if got := strings.Join(cfg.Reload.Command, " "); got != "systemctl --user restart kiosk" {
		t.Fatalf("unexpected reload command %q", got)
	}
	if cfg.APIBaseURL() != "https://kiosk.example.com" {
		t.Fatalf("unexpected api base url %q", cfg.APIBaseURL())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BUNDLEWATCH_URL", "https://app.example.com/")
	t.Setenv("BUNDLEWATCH_ENV", "development")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected env override to select development")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scheme", func(c *config.Config) { c.Target.URL = "ftp://example.com/" }, "http or https"},
		{"environment", func(c *config.Config) { c.Environment = "staging" }, "environment"},
		{"source", func(c *config.Config) { c.Local.Source = "memory" }, "local.source"},
		{"file without path", func(c *config.Config) { c.Local.Source = config.LocalSourceFile }, "document_path"},
		{"browser without url", func(c *config.Config) { c.Local.Source = config.LocalSourceBrowser }, "browser_url"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "releases" }, "ntfy_topic"},
		{"bind", func(c *config.Config) { c.API.Bind = "localhost" }, "api.bind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Target.URL = "https://app.example.com/"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	home := isolateEnv(t)
	path := filepath.Join(home, "config", "bundlewatch.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Target.URL != "https://app.example.com/" {
		t.Fatalf("unexpected sample target %q", cfg.Target.URL)
	}
}

func TestEnsureDirectories(t *testing.T) {
	home := isolateEnv(t)
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(home, "state")
	cfg.Paths.LogDir = filepath.Join(home, "logs")
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(home, "db", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, filepath.Dir(cfg.History.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
