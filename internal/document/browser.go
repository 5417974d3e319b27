package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/google/uuid"

	"bundlewatch/internal/logging"
)

// ErrNoMatchingTab is returned when no open tab starts with the page match.
var ErrNoMatchingTab = errors.New("no browser tab matches the watched page")

// Browser reads script URLs from a live Chrome tab and reloads it. The
// DevTools connection is opened lazily and re-established after a failure.
type Browser struct {
	controlURL string
	pageMatch  string
	logger     *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	ws      *cdp.WebSocket
}

// NewBrowser returns a Browser attached to controlURL (host:port or ws URL).
// Tabs whose URL begins with pageMatch are considered the watched page.
func NewBrowser(controlURL, pageMatch string, logger *slog.Logger) *Browser {
	return &Browser{
		controlURL: strings.TrimSpace(controlURL),
		pageMatch:  strings.TrimSpace(pageMatch),
		logger:     logging.NewComponentLogger(logger, "browser"),
	}
}

func (b *Browser) ScriptSources(ctx context.Context) ([]string, error) {
	page, err := b.page(ctx)
	if err != nil {
		return nil, err
	}
	elements, err := page.Context(ctx).Elements("script[src]")
	if err != nil {
		b.reset()
		return nil, fmt.Errorf("browser: list scripts: %w", err)
	}
	sources := make([]string, 0, len(elements))
	for _, el := range elements {
		src, err := el.Attribute("src")
		if err != nil {
			return nil, fmt.Errorf("browser: read script src: %w", err)
		}
		if src != nil && strings.TrimSpace(*src) != "" {
			sources = append(sources, strings.TrimSpace(*src))
		}
	}
	return sources, nil
}

// Reload reloads the watched tab and waits for it to finish loading.
func (b *Browser) Reload(ctx context.Context) error {
	page, err := b.page(ctx)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Reload(); err != nil {
		b.reset()
		return fmt.Errorf("browser: reload: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		b.logger.Warn("browser: wait load after reload", logging.Error(err))
	}
	return nil
}

// Close releases the DevTools connection. The user's Chrome and its tabs are
// left running.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnectLocked()
}

func (b *Browser) page(ctx context.Context) (*rod.Page, error) {
	browser, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	pages, err := browser.Pages()
	if err != nil {
		b.reset()
		return nil, fmt.Errorf("browser: list tabs: %w", err)
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		if b.pageMatch == "" || strings.HasPrefix(info.URL, b.pageMatch) {
			return page, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatchingTab, b.pageMatch)
}

func (b *Browser) connect(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	if b.controlURL == "" {
		return nil, errors.New("browser: control url not configured")
	}
	wsURL, err := launcher.ResolveURL(b.controlURL)
	if err != nil {
		return nil, fmt.Errorf("browser: resolve %s: %w", b.controlURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, wsURL, handshakeHeader()); err != nil {
		return nil, fmt.Errorf("browser: dial %s: %w", wsURL, err)
	}
	browser := rod.New().Client(cdp.New().Start(ws))
	if err := browser.Connect(); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = browser
	b.ws = ws
	b.logger.Info("browser: connected", logging.String("url", wsURL))
	return b.browser, nil
}

// handshakeHeader supplies a well-formed Sec-WebSocket-Key; rod's default is
// a placeholder that strict websocket servers reject.
func handshakeHeader() http.Header {
	key := uuid.New()
	return http.Header{"Sec-WebSocket-Key": {base64.StdEncoding.EncodeToString(key[:])}}
}

// reset drops a connection that failed so the next call dials again.
func (b *Browser) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.disconnectLocked(); err != nil {
		b.logger.Debug("browser: close connection", logging.Error(err))
	}
}

// disconnectLocked closes the websocket, which also ends rod's reader
// goroutine. rod's Browser.Close is not used because it shuts Chrome down.
func (b *Browser) disconnectLocked() error {
	ws := b.ws
	b.browser = nil
	b.ws = nil
	if ws == nil {
		return nil
	}
	if err := ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("browser: close websocket: %w", err)
	}
	return nil
}
