package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"canvasbridge/internal/comfy"
	"canvasbridge/internal/config"
	"canvasbridge/internal/events"
	"canvasbridge/internal/logging"
	"canvasbridge/internal/session"
)

// Daemon is the composition root of the relay: it owns the session store,
// the pipeline host client, the forward worker, the optional event archive,
// and the HTTP server, and enforces single-instance execution with a lock
// file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.Store
	client    *comfy.Client
	forwarder *Forwarder
	events    *events.Store
	server    *Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information for the CLI.
type Status struct {
	Running         bool
	BindAddress     string
	URL             string
	FrontendDir     string
	ComfyURL        string
	HasInput        bool
	HasOutput       bool
	HasTrigger      bool
	GenerateCounter int64
	AutoForward     bool
	Debug           bool
	LockFilePath    string
	EventDBPath     string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := session.NewStore()
	client := comfy.NewClient(cfg.Comfy.URL, time.Duration(cfg.Comfy.TimeoutSeconds)*time.Second, logger)
	forwarder := NewForwarder(client, cfg.Comfy.ForwardRetries, cfg.Comfy.TrackProgress, logger)

	var eventStore *events.Store
	if cfg.Bridge.Debug {
		opened, err := events.Open(cfg.EventDBPath())
		if err != nil {
			return nil, fmt.Errorf("open event archive: %w", err)
		}
		eventStore = opened
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		client:    client,
		forwarder: forwarder,
		events:    eventStore,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.server = NewServer(cfg, store, client, forwarder, eventStore, logger)
	return d, nil
}

// Store exposes the session store, primarily for tests.
func (d *Daemon) Store() *session.Store {
	return d.store
}

// Start acquires the single-instance lock and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another canvasbridge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.forwarder.Start(runCtx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("canvasbridge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("url", d.cfg.BridgeURL()))
	return nil
}

// Stop shuts down the server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.forwarder.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("canvasbridge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.events != nil {
		return d.events.Close()
	}
	return nil
}

// Status reports the daemon's current runtime state.
func (d *Daemon) Status() Status {
	snap := d.store.Snapshot()
	status := Status{
		Running:         d.running.Load(),
		BindAddress:     d.cfg.BindAddress(),
		URL:             d.cfg.BridgeURL(),
		FrontendDir:     d.cfg.Paths.FrontendDir,
		ComfyURL:        d.cfg.Comfy.URL,
		HasInput:        len(snap.InputImage) > 0,
		HasOutput:       len(snap.OutputImage) > 0,
		HasTrigger:      d.store.HasTrigger(),
		GenerateCounter: snap.Counter,
		AutoForward:     d.cfg.Bridge.AutoForward,
		Debug:           d.cfg.Bridge.Debug,
		LockFilePath:    d.lockPath,
	}
	if d.events != nil {
		status.EventDBPath = d.events.Path()
	}
	return status
}
