package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Reloader performs the reload action for the current document.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Noop reloads nothing.
type Noop struct{}

func (Noop) Reload(context.Context) error { return nil }

// Command runs an external program, e.g. a kiosk restart.
type Command struct {
	Args []string
}

// NewCommand returns a Command reloader for args.
func NewCommand(args []string) *Command {
	return &Command{Args: append([]string(nil), args...)}
}

func (c *Command) Reload(ctx context.Context) error {
	if c == nil || len(c.Args) == 0 {
		return errors.New("reload command not configured")
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("reload command %s: %w: %s", c.Args[0], err, detail)
		}
		return fmt.Errorf("reload command %s: %w", c.Args[0], err)
	}
	return nil
}

// Chain runs reloaders in order and stops at the first failure.
type Chain []Reloader

func (c Chain) Reload(ctx context.Context) error {
	for _, r := range c {
		if r == nil {
			continue
		}
		if err := r.Reload(ctx); err != nil {
			return err
		}
	}
	return nil
}
