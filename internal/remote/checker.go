package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"bundlewatch/internal/config"
	"bundlewatch/internal/fingerprint"
	"bundlewatch/internal/logging"
)

const (
	defaultUserAgent = "bundlewatch/0.1"
	defaultParam     = "t"
	// MaxBodyBytes caps how much of the page is read.
	MaxBodyBytes = 10 << 20
)

// Checker fetches the watched page and extracts its bundle fingerprint.
type Checker struct {
	pageURL string
	client  *http.Client
	ua      string
	param   string
	timeout time.Duration
	limit   int64
	clock   clockwork.Clock
	logger  *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(k *Checker) {
		if c != nil {
			k.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(k *Checker) {
		if ua = strings.TrimSpace(ua); ua != "" {
			k.ua = ua
		}
	}
}

// WithCacheBustParam sets the query parameter carrying the timestamp.
func WithCacheBustParam(name string) Option {
	return func(k *Checker) {
		if name = strings.TrimSpace(name); name != "" {
			k.param = name
		}
	}
}

// WithTimeout bounds each check. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(k *Checker) { k.timeout = d }
}

// WithBodyLimit overrides MaxBodyBytes.
func WithBodyLimit(n int64) Option {
	return func(k *Checker) {
		if n > 0 {
			k.limit = n
		}
	}
}

// WithClock injects the clock used for cache-busting timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(k *Checker) {
		if c != nil {
			k.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Checker) {
		if l != nil {
			k.logger = l
		}
	}
}

// New creates a Checker for pageURL.
func New(pageURL string, opts ...Option) *Checker {
	k := &Checker{
		pageURL: strings.TrimSpace(pageURL),
		client:  &http.Client{},
		ua:      defaultUserAgent,
		param:   defaultParam,
		limit:   MaxBodyBytes,
		clock:   clockwork.NewRealClock(),
		logger:  logging.NewNop(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// NewFromConfig builds a Checker from the [target] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) *Checker {
	return New(cfg.Target.URL,
		WithUserAgent(cfg.Target.UserAgent),
		WithCacheBustParam(cfg.Target.CacheBustParam),
		WithTimeout(cfg.RequestTimeout()),
		WithClock(clock),
		WithLogger(logging.NewComponentLogger(logger, "remote")),
	)
}

// URL returns the watched page URL.
func (k *Checker) URL() string {
	return k.pageURL
}

// Check returns the fingerprint currently served by the origin. An empty
// fingerprint with a nil error means the page has no app bundle script.
func (k *Checker) Check(ctx context.Context) (string, error) {
	sources, err := k.ScriptSources(ctx)
	if err != nil {
		return "", err
	}
	remote := fingerprint.Extract(sources)
	k.logger.Debug("remote check complete",
		logging.String(logging.FieldRemote, remote),
		logging.Int("scripts", len(sources)),
	)
	return remote, nil
}

// ScriptSources fetches the page and returns its script src values.
func (k *Checker) ScriptSources(ctx context.Context) ([]string, error) {
	body, err := k.fetch(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := fingerprint.ScriptSources(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: k.pageURL, Err: err}
	}
	return sources, nil
}

func (k *Checker) fetch(ctx context.Context) ([]byte, error) {
	if k.pageURL == "" {
		return nil, &FetchError{Err: errors.New("page url not configured")}
	}
	target, err := k.bustedURL()
	if err != nil {
		return nil, &FetchError{URL: k.pageURL, Err: err}
	}
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: k.pageURL, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", k.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: k.pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			URL:        k.pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, k.limit))
	if err != nil {
		return nil, &FetchError{URL: k.pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// bustedURL appends <param>=<unix millis> so intermediaries cannot serve a
// cached copy of the page.
func (k *Checker) bustedURL() (string, error) {
	parsed, err := url.Parse(k.pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	query := parsed.Query()
	query.Set(k.param, strconv.FormatInt(k.clock.Now().UnixMilli(), 10))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
