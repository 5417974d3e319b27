package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"bundlewatch/internal/document"
	"bundlewatch/internal/logging"
	"bundlewatch/internal/notify"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 60 * time.Second

// Checker reports the fingerprint the origin currently serves.
type Checker interface {
	Check(ctx context.Context) (string, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) (string, error)

func (f CheckerFunc) Check(ctx context.Context) (string, error) { return f(ctx) }

// Watcher polls for bundle changes and manages the update prompt.
type Watcher struct {
	pageURL  string
	enabled  bool
	interval time.Duration

	checker  Checker
	source   document.Source
	prompter notify.Prompter
	reloader document.Reloader
	composer notify.Composer
	clock    clockwork.Clock
	logger   *slog.Logger

	mu         sync.Mutex
	local      string
	remote     string
	suppressed bool
	prompt     notify.Prompt
	update     *notify.Update
	raising    bool
	epoch      uint64
	stats      Stats

	loopMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	ticksWG sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPageURL records the watched page for prompts and status.
func WithPageURL(u string) Option {
	return func(w *Watcher) { w.pageURL = u }
}

// WithEnabled is the activation gate; a disabled watcher never polls.
func WithEnabled(enabled bool) Option {
	return func(w *Watcher) { w.enabled = enabled }
}

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithSource sets the document the local fingerprint is read from.
func WithSource(src document.Source) Option {
	return func(w *Watcher) { w.source = src }
}

// WithPrompter sets the prompt surface.
func WithPrompter(p notify.Prompter) Option {
	return func(w *Watcher) {
		if p != nil {
			w.prompter = p
		}
	}
}

// WithReloader sets what Reload does before resetting state.
func WithReloader(r document.Reloader) Option {
	return func(w *Watcher) {
		if r != nil {
			w.reloader = r
		}
	}
}

// WithComposer sets how prompt content is built.
func WithComposer(c notify.Composer) Option {
	return func(w *Watcher) { w.composer = c }
}

// WithClock injects the clock driving the ticker.
func WithClock(c clockwork.Clock) Option {
	return func(w *Watcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New returns an enabled Watcher using checker for remote lookups.
func New(checker Checker, opts ...Option) *Watcher {
	w := &Watcher{
		enabled:  true,
		interval: DefaultInterval,
		checker:  checker,
		prompter: notify.Nop{},
		reloader: document.Noop{},
		clock:    clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = logging.NewComponentLogger(w.logger, "watcher")
	return w
}

// Start captures the local fingerprint and begins polling. It is a no-op when
// the watcher is disabled. Calling Start again restarts the loop.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.enabled {
		w.logger.Info("update watcher disabled; not polling",
			logging.String(logging.FieldEventType, "watcher_disabled"),
		)
		return nil
	}
	if w.checker == nil {
		return errors.New("watcher: remote checker unavailable")
	}
	w.Stop()

	w.captureLocal(ctx)

	w.loopMu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	ticker := w.clock.NewTicker(w.interval)
	w.loopWG.Add(1)
	go w.loop(runCtx, ticker)
	w.loopMu.Unlock()

	w.logger.Info("update watcher started",
		logging.String("page_url", w.pageURL),
		logging.Duration("interval", w.interval),
		logging.String(logging.FieldLocal, w.State().Local),
	)
	return nil
}

// Stop cancels the poll loop and waits for in-flight ticks.
func (w *Watcher) Stop() {
	w.loopMu.Lock()
	if !w.running {
		w.loopMu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.loopMu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.loopWG.Wait()
	w.ticksWG.Wait()
}

// Shutdown stops polling and closes any open prompt.
func (w *Watcher) Shutdown(ctx context.Context) {
	w.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closePromptLocked(ctx, notify.CloseShutdown)
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	w.loopMu.Lock()
	defer w.loopMu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, ticker clockwork.Ticker) {
	defer w.loopWG.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// Each tick runs on its own so a hung fetch cannot delay the next.
			w.ticksWG.Add(1)
			go func() {
				defer w.ticksWG.Done()
				_ = w.Tick(ctx)
			}()
		}
	}
}

// Tick performs one check: refresh the local fingerprint unless suppressed,
// fetch the remote fingerprint, and raise a prompt on a mismatch. The returned
// error is the remote check failure, if any.
func (w *Watcher) Tick(ctx context.Context) error {
	if w.checker == nil {
		return errors.New("watcher: remote checker unavailable")
	}
	w.refreshLocal(ctx)

	remote, err := w.checker.Check(ctx)
	now := w.clock.Now()
	if err != nil {
		w.mu.Lock()
		w.stats.CheckErrors++
		w.stats.LastCheck = now
		w.stats.LastError = err.Error()
		w.mu.Unlock()
		logging.WarnWithContext(w.logger, "remote check failed", "remote_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify target.url is reachable"),
			logging.String(logging.FieldImpact, "update detection skipped until next tick"),
		)
		return err
	}

	w.mu.Lock()
	w.remote = remote
	w.stats.Checks++
	w.stats.LastCheck = now
	w.stats.LastError = ""

	w.logger.Debug("check complete",
		logging.String(logging.FieldLocal, w.local),
		logging.String(logging.FieldRemote, remote),
		logging.Bool("suppressed", w.suppressed),
		logging.Bool("prompt_open", w.prompt != nil),
	)

	if w.local == "" || remote == "" || w.local == remote || w.prompt != nil || w.raising {
		w.mu.Unlock()
		return nil
	}
	update := w.composer.Compose(w.pageURL, w.local, w.remote, now)
	w.raising = true
	epoch := w.epoch
	w.mu.Unlock()

	w.raise(ctx, update, epoch)
	return nil
}

// raise shows update outside the state lock so a slow prompter cannot stall
// status reads. The raising flag keeps it the only prompt in flight. If a
// dismiss or reload resolved the mismatch meanwhile, the prompt is closed
// again at once.
func (w *Watcher) raise(ctx context.Context, update notify.Update, epoch uint64) {
	prompt, err := w.prompter.Show(ctx, update)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.raising = false
	if err != nil {
		w.stats.PromptErrors++
		logging.ErrorWithContext(w.logger, "show update prompt failed", "prompt_show_failed",
			logging.Error(err),
			logging.String(logging.FieldPromptID, update.ID),
			logging.String(logging.FieldErrorHint, "check notification settings; retrying next tick"),
		)
		return
	}
	if prompt == nil {
		prompt = nopPrompt{}
	}
	w.prompt = prompt
	w.update = &update
	w.stats.Prompts++
	w.logger.Info("update available",
		logging.String(logging.FieldEventType, "update_detected"),
		logging.String(logging.FieldPromptID, update.ID),
		logging.String(logging.FieldLocal, update.Local),
		logging.String(logging.FieldRemote, update.Remote),
		logging.String("direction", string(update.Direction)),
	)
	if w.epoch != epoch && (w.local == "" || w.remote == "" || w.local == w.remote) {
		reason := notify.CloseReloaded
		if w.suppressed {
			reason = notify.CloseDismissed
		}
		w.closePromptLocked(ctx, reason)
	}
}

// Dismiss suppresses local refreshes, adopts the server's current fingerprint
// as the local one, and closes the open prompt. When the re-fetch fails the
// error is returned and the prompt stays open; suppression stays set.
func (w *Watcher) Dismiss(ctx context.Context) error {
	if w.checker == nil {
		return errors.New("watcher: remote checker unavailable")
	}
	w.mu.Lock()
	w.suppressed = true
	w.epoch++
	w.mu.Unlock()

	remote, err := w.checker.Check(ctx)
	if err != nil {
		logging.WarnWithContext(w.logger, "dismiss re-fetch failed", "dismiss_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "prompt remains open"),
		)
		return fmt.Errorf("dismiss: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.local = remote
	w.remote = remote
	w.stats.Dismissals++
	w.closePromptLocked(ctx, notify.CloseDismissed)
	w.logger.Info("update dismissed",
		logging.String(logging.FieldEventType, "update_dismissed"),
		logging.String(logging.FieldLocal, remote),
	)
	return nil
}

// Reload runs the reloader and then discards all state: the prompt closes,
// suppression and the remote fingerprint are cleared, and the local
// fingerprint is captured again. A reloader failure leaves state untouched.
func (w *Watcher) Reload(ctx context.Context) error {
	if err := w.reloader.Reload(ctx); err != nil {
		logging.ErrorWithContext(w.logger, "reload failed", "reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check reload.command or the browser connection"),
		)
		return fmt.Errorf("reload: %w", err)
	}

	local, err := document.Fingerprint(ctx, w.source)
	if err != nil {
		logging.WarnWithContext(w.logger, "read local document after reload failed", "local_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "local fingerprint unknown until next tick"),
		)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closePromptLocked(ctx, notify.CloseReloaded)
	w.suppressed = false
	w.remote = ""
	w.local = local
	w.epoch++
	w.stats.Reloads++
	w.logger.Info("page reloaded",
		logging.String(logging.FieldEventType, "page_reloaded"),
		logging.String(logging.FieldLocal, local),
	)
	return nil
}

// State returns a snapshot of the watcher state.
func (w *Watcher) State() State {
	running := w.Running()
	w.mu.Lock()
	defer w.mu.Unlock()
	state := State{
		Enabled:    w.enabled,
		PageURL:    w.pageURL,
		Interval:   w.interval,
		Local:      w.local,
		Remote:     w.remote,
		Suppressed: w.suppressed,
	}
	if w.update != nil {
		u := *w.update
		state.Prompt = &u
	}
	switch {
	case !running:
		state.Phase = PhaseIdle
	case w.suppressed:
		state.Phase = PhaseSuppressed
	default:
		state.Phase = PhasePolling
	}
	return state
}

// Stats returns activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) captureLocal(ctx context.Context) {
	local, err := document.Fingerprint(ctx, w.source)
	if err != nil {
		logging.WarnWithContext(w.logger, "read local document failed", "local_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no prompt until the local fingerprint is known"),
		)
		return
	}
	w.mu.Lock()
	w.local = local
	w.mu.Unlock()
}

// refreshLocal re-reads the local document unless suppressed. The read runs
// outside the lock and is discarded if a user action happened meanwhile.
func (w *Watcher) refreshLocal(ctx context.Context) {
	w.mu.Lock()
	if w.suppressed || w.source == nil {
		w.mu.Unlock()
		return
	}
	epoch := w.epoch
	w.mu.Unlock()

	local, err := document.Fingerprint(ctx, w.source)
	if err != nil {
		logging.WarnWithContext(w.logger, "read local document failed", "local_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "keeping previous local fingerprint"),
		)
		return
	}

	w.mu.Lock()
	if !w.suppressed && w.epoch == epoch {
		w.local = local
	}
	w.mu.Unlock()
}

func (w *Watcher) closePromptLocked(ctx context.Context, reason notify.CloseReason) {
	if w.prompt == nil {
		return
	}
	id := ""
	if w.update != nil {
		id = w.update.ID
	}
	if err := w.prompt.Close(ctx, reason); err != nil {
		logging.WarnWithContext(w.logger, "close update prompt failed", "prompt_close_failed",
			logging.Error(err),
			logging.String(logging.FieldPromptID, id),
		)
	}
	w.prompt = nil
	w.update = nil
}

type nopPrompt struct{}

func (nopPrompt) Close(context.Context, notify.CloseReason) error { return nil }
