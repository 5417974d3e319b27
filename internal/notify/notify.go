package notify

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"

	"bundlewatch/internal/fingerprint"
)

// CloseReason records why a prompt went away.
type CloseReason string

const (
	CloseDismissed CloseReason = "dismissed"
	CloseReloaded  CloseReason = "reloaded"
	CloseShutdown  CloseReason = "shutdown"
)

// Update is the content of one prompt. Message is trusted HTML; surfaces
// that cannot render it convert it.
type Update struct {
	ID         string                `json:"id"`
	PageURL    string                `json:"page_url"`
	Local      string                `json:"local"`
	Remote     string                `json:"remote"`
	Direction  fingerprint.Direction `json:"direction"`
	DetectedAt time.Time             `json:"detected_at"`
	Title      string                `json:"title"`
	Message    string                `json:"message"`
	IgnoreURL  string                `json:"ignore_url,omitempty"`
	ReloadURL  string                `json:"reload_url,omitempty"`
}

// Prompter shows an update to the user. The returned Prompt stays visible
// until closed.
type Prompter interface {
	Show(ctx context.Context, update Update) (Prompt, error)
}

// Prompt is a live prompt.
type Prompt interface {
	Close(ctx context.Context, reason CloseReason) error
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, update Update) (Prompt, error)

func (f PrompterFunc) Show(ctx context.Context, update Update) (Prompt, error) {
	return f(ctx, update)
}

// Nop shows nothing and always succeeds.
type Nop struct{}

func (Nop) Show(context.Context, Update) (Prompt, error) { return nopPrompt{}, nil }

type nopPrompt struct{}

func (nopPrompt) Close(context.Context, CloseReason) error { return nil }

const defaultTitle = "New version available"

var messageTemplate = template.Must(template.New("message").Parse(
	`<p>A new version of <a href="{{.PageURL}}">{{.PageURL}}</a> has been deployed ` +
		`(<code>{{.Local}}</code> &rarr; <code>{{.Remote}}</code>, {{.Direction}}).</p>` + "\n" +
		`<p>Reload to get the latest version, or ignore to keep working.</p>`))

// Composer builds Updates with a shared title and control URLs.
// BaseURL is the control API root, e.g. "http://127.0.0.1:7489".
type Composer struct {
	Title   string
	BaseURL string
}

// Compose returns a fully populated Update for a fingerprint change.
func (c Composer) Compose(pageURL, local, remote string, at time.Time) Update {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = defaultTitle
	}
	update := Update{
		ID:         newID(),
		PageURL:    pageURL,
		Local:      local,
		Remote:     remote,
		Direction:  fingerprint.Classify(local, remote),
		DetectedAt: at.UTC(),
		Title:      title,
	}
	if base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); base != "" {
		update.IgnoreURL = base + "/api/ignore"
		update.ReloadURL = base + "/api/reload"
	}
	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, update); err == nil {
		update.Message = buf.String()
	}
	return update
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
