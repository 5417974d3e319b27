package history

import (
	"context"
	"log/slog"
	"time"

	"bundlewatch/internal/logging"
	"bundlewatch/internal/notify"
)

// Recorder is a notify.Prompter that writes prompt lifecycle events to a
// Store. It never fails a Show; write errors are logged.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder returns a Recorder over store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "history"),
		now:    time.Now,
	}
}

func (r *Recorder) Show(ctx context.Context, update notify.Update) (notify.Prompt, error) {
	at := update.DetectedAt
	if at.IsZero() {
		at = r.now()
	}
	r.record(ctx, update, EventDetected, at)
	return &recordedPrompt{recorder: r, update: update}, nil
}

func (r *Recorder) record(ctx context.Context, update notify.Update, event string, at time.Time) {
	_, err := r.store.Record(ctx, Entry{
		PromptID:   update.ID,
		Event:      event,
		PageURL:    update.PageURL,
		Local:      update.Local,
		Remote:     update.Remote,
		Direction:  string(update.Direction),
		OccurredAt: at,
	})
	if err != nil {
		logging.WarnWithContext(r.logger, "record prompt event failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldPromptID, update.ID),
			logging.String(logging.FieldImpact, "prompt history is incomplete"),
		)
	}
}

type recordedPrompt struct {
	recorder *Recorder
	update   notify.Update
}

func (p *recordedPrompt) Close(ctx context.Context, reason notify.CloseReason) error {
	p.recorder.record(ctx, p.update, string(reason), p.recorder.now())
	return nil
}
