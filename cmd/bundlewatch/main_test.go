package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bundlewatch/internal/config"
	"bundlewatch/internal/daemon"
	"bundlewatch/internal/logging"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	site       *testSite
	server     *httptest.Server
}

type testSite struct {
	mu      sync.Mutex
	version string
}

func (s *testSite) set(v string) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

func (s *testSite) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	v := s.version
	s.mu.Unlock()
	fmt.Fprint(w, pageHTML(v))
}

func pageHTML(version string) string {
	return fmt.Sprintf(`<!doctype html><html><head>`+
		`<script src="/static/js/vendor.js"></script>`+
		`<script src="/static/js/app.%s.js"></script>`+
		`</head><body></body></html>`, version)
}

// setupCLITestEnv isolates HOME and env overrides and writes a config that
// points at a local test site. extra is appended to the TOML.
func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("BUNDLEWATCH_ENV", "")
	t.Setenv("BUNDLEWATCH_URL", "")
	t.Setenv("BUNDLEWATCH_API_TOKEN", "")
	t.Setenv("NTFY_TOPIC", "")

	site := &testSite{version: "v1"}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`environment = "production"

[target]
url = %q

[api]
bind = "127.0.0.1:0"
token = "secret"
rate_per_second = 0

[history]
enabled = true
path = %q

[paths]
state_dir = %q
log_dir = %q
%s`, srv.URL+"/", filepath.Join(base, "history.db"), filepath.Join(base, "state"), filepath.Join(base, "logs"), extra)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath, site: site, server: srv}
}

func (e *cliTestEnv) loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, _, _, err := config.Load(e.configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func (e *cliTestEnv) startDaemon(t *testing.T) (*daemon.Daemon, string) {
	t.Helper()
	cfg := e.loadConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithConsole(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	return d, "http://" + d.APIAddr()
}

func runCLI(t *testing.T, args []string, configPath, apiURL string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if apiURL != "" {
		flags = append(flags, "--api", apiURL)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestRootHelp(t *testing.T) {
	out, _, err := runCLI(t, []string{"--help"}, "", "")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"run", "check", "extract", "status", "ignore", "reload", "history", "config"} {
		requireContains(t, out, name)
	}
}

func TestMissingTargetURLFails(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("BUNDLEWATCH_URL", "")
	_, _, err := runCLI(t, []string{"check"}, filepath.Join(base, "missing.toml"), "")
	if err == nil || !strings.Contains(err.Error(), "target.url is required") {
		t.Fatalf("expected missing url error, got %v", err)
	}
}
