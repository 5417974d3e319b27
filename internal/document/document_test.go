package document_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"bundlewatch/internal/config"
	"bundlewatch/internal/document"
)

type countingFetcher struct {
	calls   int
	sources []string
	err     error
}

func (f *countingFetcher) ScriptSources(context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

func TestFileSourceReadsScripts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	html := `<html><head><script src="/js/app.abc123.js"></script></head></html>`
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := document.Fingerprint(context.Background(), document.NewFile(path))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := document.NewFile(filepath.Join(t.TempDir(), "missing.html")).ScriptSources(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSnapshotCapturesOnceUntilReload(t *testing.T) {
	fetcher := &countingFetcher{sources: []string{"app.v1.js"}}
	snap := document.NewSnapshot(fetcher)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := document.Fingerprint(ctx, snap)
		if err != nil || got != "v1" {
			t.Fatalf("unexpected snapshot result %q %v", got, err)
		}
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single capture, got %d", fetcher.calls)
	}

	fetcher.sources = []string{"app.v2.js"}
	if err := snap.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	got, err := document.Fingerprint(ctx, snap)
	if err != nil || got != "v2" {
		t.Fatalf("expected v2 after reload, got %q %v", got, err)
	}
}

func TestSnapshotDoesNotCacheFailures(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("offline")}
	snap := document.NewSnapshot(fetcher)
	if _, err := snap.ScriptSources(context.Background()); err == nil {
		t.Fatal("expected capture error")
	}
	fetcher.err = nil
	fetcher.sources = []string{"app.x.js"}
	if got, err := document.Fingerprint(context.Background(), snap); err != nil || got != "x" {
		t.Fatalf("expected recovery, got %q %v", got, err)
	}
}

func TestCommandReloader(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell")
	}
	marker := filepath.Join(t.TempDir(), "reloaded")
	cmd := document.NewCommand([]string{"sh", "-c", "touch " + marker})
	if err := cmd.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected command to run: %v", err)
	}

	failing := document.NewCommand([]string{"sh", "-c", "echo boom >&2; exit 3"})
	err := failing.Reload(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected stderr in error, got %q", got)
	}
}

func TestChainStopsOnFailure(t *testing.T) {
	var order []string
	chain := document.Chain{
		reloaderFunc(func() error { order = append(order, "a"); return nil }),
		reloaderFunc(func() error { order = append(order, "b"); return errors.New("b failed") }),
		reloaderFunc(func() error { order = append(order, "c"); return nil }),
	}
	if err := chain.Reload(context.Background()); err == nil {
		t.Fatal("expected chain error")
	}
	if len(order) != 2 {
		t.Fatalf("expected chain to stop after failure, ran %v", order)
	}
}

func TestNewFromConfigSelectsSource(t *testing.T) {
	cfg := config.Default()
	cfg.Target.URL = "https://app.example.com/"

	fetcher := &countingFetcher{sources: []string{"app.o.js"}}
	src, reloader, err := document.NewFromConfig(&cfg, fetcher, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := src.(*document.Snapshot); !ok {
		t.Fatalf("expected snapshot source, got %T", src)
	}
	if _, ok := reloader.(document.Chain); !ok {
		t.Fatalf("expected chain reloader, got %T", reloader)
	}

	cfg.Local.Source = config.LocalSourceFile
	cfg.Local.DocumentPath = "/srv/www/index.html"
	src, reloader, err = document.NewFromConfig(&cfg, fetcher, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := src.(*document.File); !ok {
		t.Fatalf("expected file source, got %T", src)
	}
	if _, ok := reloader.(document.Noop); !ok {
		t.Fatalf("expected noop reloader, got %T", reloader)
	}

	cfg.Local.Source = config.LocalSourceBrowser
	cfg.Local.BrowserURL = "127.0.0.1:9222"
	src, _, err = document.NewFromConfig(&cfg, fetcher, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := src.(*document.Browser); !ok {
		t.Fatalf("expected browser source, got %T", src)
	}
}

type reloaderFunc func() error

func (f reloaderFunc) Reload(context.Context) error { return f() }

