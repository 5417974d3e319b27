package remote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"bundlewatch/internal/remote"
)

const pageTemplate = `<!doctype html>
<html><head>
<script src="/static/vendor.js"></script>
<script>window.boot = true;</script>
</head><body>
<script src="/static/app.%s.js"></script>
</body></html>`

func TestCheckExtractsFingerprintWithCacheBusting(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000123))
	var gotQuery, gotCache, gotPragma, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("t")
		gotCache = r.Header.Get("Cache-Control")
		gotPragma = r.Header.Get("Pragma")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprintf(w, pageTemplate, "v2")
	}))
	defer srv.Close()

	checker := remote.New(srv.URL+"/?lang=en", remote.WithClient(srv.Client()), remote.WithClock(clock), remote.WithUserAgent("probe/1"))
	got, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if got != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
	if gotQuery != "1700000000123" {
		t.Fatalf("unexpected cache-busting value %q", gotQuery)
	}
	if gotCache != "no-cache" || gotPragma != "no-cache" {
		t.Fatalf("expected no-cache headers, got %q %q", gotCache, gotPragma)
	}
	if gotUA != "probe/1" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
}

func TestCheckIsIdempotentWhileServerUnchanged(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, pageTemplate, "abc123")
	}))
	defer srv.Close()

	checker := remote.New(srv.URL, remote.WithClient(srv.Client()))
	first, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if first != second || first != "abc123" {
		t.Fatalf("expected identical results, got %q and %q", first, second)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected a request per check, got %d", calls.Load())
	}
}

func TestCheckWithoutBundleReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><script src="/main.js"></script></html>`))
	}))
	defer srv.Close()

	got, err := remote.New(srv.URL, remote.WithClient(srv.Client())).Check(context.Background())
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty fingerprint, got %q", got)
	}
}

func TestCheckReturnsFetchErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := remote.New(srv.URL, remote.WithClient(srv.Client())).Check(context.Background())
	var fetchErr *remote.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", fetchErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("expected body snippet in error, got %v", err)
	}
}

func TestCheckReturnsFetchErrorOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := remote.New(url).Check(context.Background())
	var fetchErr *remote.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Fatalf("expected no status for network failure, got %d", fetchErr.StatusCode)
	}
}

func TestCheckHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	checker := remote.New(srv.URL, remote.WithClient(srv.Client()), remote.WithTimeout(50*time.Millisecond))
	_, err := checker.Check(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCheckRequiresURL(t *testing.T) {
	_, err := remote.New("  ").Check(context.Background())
	var fetchErr *remote.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
