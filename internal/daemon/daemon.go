package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"

	"bundlewatch/internal/api"
	"bundlewatch/internal/config"
	"bundlewatch/internal/document"
	"bundlewatch/internal/history"
	"bundlewatch/internal/logging"
	"bundlewatch/internal/metrics"
	"bundlewatch/internal/notify"
	"bundlewatch/internal/remote"
	"bundlewatch/internal/watcher"
)

// Daemon owns the watcher and everything around it for one process.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	watcher *watcher.Watcher
	server  *api.Server
	hub     *notify.Hub
	history *history.Store
	closers []io.Closer

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Option adjusts daemon construction.
type Option func(*options)

type options struct {
	clock   clockwork.Clock
	console io.Writer
}

// WithClock injects the clock shared by the checker and the watcher.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithConsole redirects the console prompt.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{clock: clockwork.NewRealClock(), console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.LockPath(),
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(cfg.LockPath()),
		hub:      notify.NewHub(logger),
	}

	checker := remote.NewFromConfig(cfg, logger, o.clock)
	source, reloader, err := document.NewFromConfig(cfg, checker, logger)
	if err != nil {
		return nil, fmt.Errorf("document source: %w", err)
	}
	if closer, ok := source.(io.Closer); ok {
		d.closers = append(d.closers, closer)
	}

	prompters := []notify.Prompter{d.hub}
	if cfg.Notifications.Console {
		prompters = append(prompters, notify.NewConsole(o.console))
	}
	if ntfy := notify.NewNtfyFromConfig(cfg); ntfy != nil {
		prompters = append(prompters, ntfy)
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.history = store
		d.closers = append(d.closers, store)
		prompters = append(prompters, history.NewRecorder(store, logger))
	}

	d.watcher = watcher.New(checker,
		watcher.WithPageURL(cfg.Target.URL),
		watcher.WithEnabled(!cfg.IsDevelopment()),
		watcher.WithInterval(cfg.PollInterval()),
		watcher.WithSource(source),
		watcher.WithReloader(reloader),
		watcher.WithPrompter(notify.NewFanout(logger, prompters...)),
		watcher.WithComposer(notify.Composer{Title: cfg.Notifications.Title, BaseURL: cfg.APIBaseURL()}),
		watcher.WithClock(o.clock),
		watcher.WithLogger(logger),
	)

	registry := metrics.NewRegistry(metrics.NewCollector(d.watcher, d.hub.Clients))
	d.server = api.NewServer(d.watcher, api.Options{
		Bind:          cfg.API.Bind,
		Token:         cfg.API.Token,
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
		Events:        d.hub,
		Metrics:       metrics.Handler(registry),
		Subscribers:   d.hub.Clients,
		Logger:        logger,
	})
	return d, nil
}

// Start acquires the instance lock, then starts the control API and the watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bundlewatch instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		d.server.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := writePIDFile(d.pidPath); err != nil {
		logging.WarnWithContext(d.logger, "write pid file failed", "pid_file_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "`bundlewatch status` cannot report the process id"),
		)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("bundlewatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
		logging.Bool("polling", d.watcher.Running()),
	)
	return nil
}

// Stop stops the watcher and API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.watcher.Shutdown(context.Background())
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.hub.Shutdown()
	_ = os.Remove(d.pidPath)
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bundlewatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Watcher exposes the managed watcher.
func (d *Daemon) Watcher() *watcher.Watcher {
	return d.watcher
}

// APIAddr returns the control API address.
func (d *Daemon) APIAddr() string {
	return d.server.Addr()
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded in path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
