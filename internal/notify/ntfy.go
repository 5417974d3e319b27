package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"bundlewatch/internal/config"
)

const userAgent = "bundlewatch/0.1"

// Ntfy publishes prompts to an ntfy topic with action buttons wired to the
// control API. ntfy messages cannot be withdrawn, so closing is a no-op.
// actionToken, when set, is sent as a bearer token by the action buttons.
type Ntfy struct {
	endpoint    string
	actionToken string
	client      *http.Client
	markdown    *converter.Converter
}

// NewNtfy returns a Ntfy publisher for topic, a full topic URL.
func NewNtfy(topic string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: strings.TrimSpace(topic),
		client:   &http.Client{Timeout: timeout},
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// WithActionToken sets the control API token the Ignore and Reload buttons
// authenticate with.
func (n *Ntfy) WithActionToken(token string) *Ntfy {
	n.actionToken = strings.TrimSpace(token)
	return n
}

// NewNtfyFromConfig returns nil when no topic is configured.
func NewNtfyFromConfig(cfg *config.Config) *Ntfy {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	return NewNtfy(topic, time.Duration(cfg.Notifications.RequestTimeout)*time.Second).
		WithActionToken(cfg.API.Token)
}

func (n *Ntfy) Show(ctx context.Context, update Update) (Prompt, error) {
	body, err := n.markdown.ConvertString(update.Message, converter.WithDomain(update.PageURL))
	if err != nil {
		return nil, fmt.Errorf("convert ntfy message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(strings.TrimSpace(body)))
	if err != nil {
		return nil, fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	req.Header.Set("Markdown", "yes")
	if update.Title != "" {
		req.Header.Set("Title", update.Title)
	}
	req.Header.Set("Tags", strings.Join([]string{"bundlewatch", "arrows_counterclockwise", string(update.Direction)}, ","))
	req.Header.Set("Priority", "high")
	if update.PageURL != "" {
		req.Header.Set("Click", update.PageURL)
	}
	if actions := ntfyActions(update, n.actionToken); actions != "" {
		req.Header.Set("Actions", actions)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nopPrompt{}, nil
}

func ntfyActions(update Update, token string) string {
	auth := ""
	if token != "" {
		auth = ", headers.Authorization=Bearer " + token
	}
	var actions []string
	if update.IgnoreURL != "" {
		actions = append(actions, fmt.Sprintf("http, Ignore, %s, method=POST%s", update.IgnoreURL, auth))
	}
	if update.ReloadURL != "" {
		actions = append(actions, fmt.Sprintf("http, Reload now, %s, method=POST, clear=true%s", update.ReloadURL, auth))
	}
	return strings.Join(actions, "; ")
}
