package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/microcosm-cc/bluemonday"
)

// Console prints prompts as banners on a writer, typically stderr.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	strip *bluemonday.Policy
}

// NewConsole returns a Console writing to w. Colors are enabled when w is a
// terminal.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stderr
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{w: w, color: color, strip: bluemonday.StrictPolicy()}
}

func (c *Console) Show(_ context.Context, update Update) (Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString(c.paint("▲ "+update.Title, text.FgHiYellow, text.Bold))
	b.WriteString("\n")
	if body := PlainText(c.strip, update.Message); body != "" {
		b.WriteString("  ")
		b.WriteString(body)
		b.WriteString("\n")
	}
	if update.ReloadURL != "" {
		fmt.Fprintf(&b, "  %s bundlewatch reload   (POST %s)\n", c.paint("reload:", text.FgHiGreen), update.ReloadURL)
	}
	if update.IgnoreURL != "" {
		fmt.Fprintf(&b, "  %s bundlewatch ignore   (POST %s)\n", c.paint("ignore:", text.FgHiBlack), update.IgnoreURL)
	}
	if _, err := io.WriteString(c.w, b.String()); err != nil {
		return nil, fmt.Errorf("write console prompt: %w", err)
	}
	return &consolePrompt{console: c, id: update.ID}, nil
}

func (c *Console) paint(s string, colors ...text.Color) string {
	if !c.color {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

type consolePrompt struct {
	console *Console
	id      string
	once    sync.Once
}

func (p *consolePrompt) Close(_ context.Context, reason CloseReason) error {
	var err error
	p.once.Do(func() {
		p.console.mu.Lock()
		defer p.console.mu.Unlock()
		_, err = fmt.Fprintf(p.console.w, "%s\n", p.console.paint("▼ update prompt closed ("+string(reason)+")", text.FgHiBlack))
	})
	return err
}

// PlainText strips all markup from s and collapses whitespace.
func PlainText(policy *bluemonday.Policy, s string) string {
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	stripped := html.UnescapeString(policy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}
