package daemon_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"bundlewatch/internal/api"
	"bundlewatch/internal/config"
	"bundlewatch/internal/daemon"
	"bundlewatch/internal/history"
	"bundlewatch/internal/logging"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type origin struct {
	mu      sync.Mutex
	version string
}

func (o *origin) set(v string) {
	o.mu.Lock()
	o.version = v
	o.mu.Unlock()
}

func (o *origin) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	o.mu.Lock()
	v := o.version
	o.mu.Unlock()
	fmt.Fprintf(w, `<html><head><script src="/static/js/app.%s.js"></script></head></html>`, v)
}

func testConfig(t *testing.T, pageURL string) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Target.URL = pageURL
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = "secret"
	cfg.API.RatePerSecond = 0
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(base, "history.db")
	cfg.Paths.StateDir = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return &cfg
}

func newDaemon(t *testing.T, cfg *config.Config, console *syncBuffer) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop(),
		daemon.WithClock(clockwork.NewFakeClock()),
		daemon.WithConsole(console),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	site := &origin{version: "v1"}
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	d := newDaemon(t, cfg, &syncBuffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if !d.Watcher().Running() {
		t.Fatal("expected poll loop in production")
	}
	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	site := &origin{version: "v1"}
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	cfg.History.Enabled = false
	first := newDaemon(t, cfg, &syncBuffer{})
	second := newDaemon(t, cfg, &syncBuffer{})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDevelopmentDoesNotPoll(t *testing.T) {
	site := &origin{version: "v1"}
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	cfg.Environment = config.EnvironmentDevelopment
	d := newDaemon(t, cfg, &syncBuffer{})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.Watcher().Running() {
		t.Fatal("poll loop should stay idle in development")
	}
	if state := d.Watcher().State(); state.Enabled {
		t.Fatalf("expected disabled watcher, got %+v", state)
	}
}

func TestDaemonPromptLifecycleThroughAPI(t *testing.T) {
	site := &origin{version: "v1"}
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	console := &syncBuffer{}
	d := newDaemon(t, cfg, console)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client := api.NewClient("http://"+d.APIAddr(), cfg.API.Token)

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Local != "v1" || status.Prompt != nil {
		t.Fatalf("unexpected initial status: %+v", status)
	}

	site.set("v2")
	status, err = client.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status.Prompt == nil || status.Prompt.Remote != "v2" {
		t.Fatalf("expected prompt for v2, got %+v", status)
	}
	if !strings.Contains(status.Prompt.IgnoreURL, "/api/ignore") {
		t.Fatalf("expected ignore control url, got %q", status.Prompt.IgnoreURL)
	}
	if !strings.Contains(console.String(), "v2") {
		t.Fatalf("expected console prompt, got %q", console.String())
	}

	status, err = client.Ignore(ctx)
	if err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if status.Prompt != nil || !status.Suppressed || status.Local != "v2" {
		t.Fatalf("unexpected status after ignore: %+v", status)
	}

	site.set("v3")
	status, err = client.Check(ctx)
	if err != nil {
		t.Fatalf("Check after ignore: %v", err)
	}
	if status.Prompt == nil || status.Prompt.Local != "v2" || status.Prompt.Remote != "v3" {
		t.Fatalf("expected a fresh prompt for v3, got %+v", status)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	entries, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	events := map[string]int{}
	for _, entry := range entries {
		events[entry.Event]++
	}
	want := map[string]int{history.EventDetected: 2, "dismissed": 1, "shutdown": 1}
	for event, count := range want {
		if events[event] != count {
			t.Fatalf("expected %d %s events, got %+v", count, event, entries)
		}
	}
}
