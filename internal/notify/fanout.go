package notify

import (
	"context"
	"errors"
	"log/slog"

	"bundlewatch/internal/logging"
)

// Fanout shows an update on every prompter. Show fails only when every
// prompter fails; individual failures are logged.
type Fanout struct {
	prompters []Prompter
	logger    *slog.Logger
}

// NewFanout returns a Fanout over the non-nil prompters.
func NewFanout(logger *slog.Logger, prompters ...Prompter) *Fanout {
	f := &Fanout{logger: logging.NewComponentLogger(logger, "notify")}
	for _, p := range prompters {
		if p != nil {
			f.prompters = append(f.prompters, p)
		}
	}
	return f
}

// Len returns the number of prompters.
func (f *Fanout) Len() int {
	return len(f.prompters)
}

func (f *Fanout) Show(ctx context.Context, update Update) (Prompt, error) {
	if len(f.prompters) == 0 {
		return nopPrompt{}, nil
	}
	var (
		shown multiPrompt
		errs  []error
	)
	for _, p := range f.prompters {
		prompt, err := p.Show(ctx, update)
		if err != nil {
			logging.WarnWithContext(f.logger, "prompt surface failed", "prompt_show_failed",
				logging.String(logging.FieldPromptID, update.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this surface will not show the update"),
			)
			errs = append(errs, err)
			continue
		}
		if prompt != nil {
			shown = append(shown, prompt)
		}
	}
	if len(shown) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return shown, nil
}

type multiPrompt []Prompt

func (m multiPrompt) Close(ctx context.Context, reason CloseReason) error {
	var errs []error
	for _, p := range m {
		if err := p.Close(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
