package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"proctor/internal/analysis"
	"proctor/internal/broadcast"
	"proctor/internal/config"
	"proctor/internal/logging"
	"proctor/internal/monitor"
	"proctor/internal/proctoring"
	"proctor/internal/store"
)

const superviseInterval = 5 * time.Second

// Daemon owns the analysis pool and policy engine for one process and
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	coordinator *analysis.Coordinator
	manager     *proctoring.Manager
	monitor     *monitor.Monitor
	hub         *broadcast.Hub
	async       *broadcast.Async

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool

	mu        sync.Mutex
	adminAddr string
	closed    bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	Workers      []analysis.WorkerStats `json:"workers"`
	DatabasePath string                 `json:"database_path"`
	LockFilePath string                 `json:"lock_file_path"`
	AdminAddress string                 `json:"admin_address,omitempty"`
}

// New constructs a daemon. Every broadcaster in publishers receives the
// violation and status messages alongside the in-process hub.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, factories map[analysis.Kind]analysis.Factory, publishers ...broadcast.Broadcaster) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	coordinator, err := analysis.NewCoordinator(cfg, factories, logger)
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	hub := broadcast.NewHub()
	fanout := append(broadcast.Multi{hub}, publishers...)
	async := broadcast.NewAsync(fanout, cfg.BroadcastTimeout(), logger)
	manager := proctoring.NewManager(st, async, logger)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       st,
		coordinator: coordinator,
		manager:     manager,
		monitor:     monitor.New(cfg, coordinator, manager, logger),
		hub:         hub,
		async:       async,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock and blocks until ctx is cancelled or a
// background task fails.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another proctor instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release lock", logging.Error(err))
		}
	}()

	var listener net.Listener
	if bind := d.cfg.Metrics.Bind; bind != "" {
		listener, err = net.Listen("tcp", bind)
		if err != nil {
			return fmt.Errorf("admin listen: %w", err)
		}
		d.mu.Lock()
		d.adminAddr = listener.Addr().String()
		d.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.coordinator.Supervise(gctx, superviseInterval)
	})
	if listener != nil {
		admin := newAdminServer(d)
		g.Go(func() error {
			return admin.serve(listener)
		})
		g.Go(func() error {
			<-gctx.Done()
			return admin.shutdown()
		})
		d.logger.Info("admin listener started", logging.String("address", listener.Addr().String()))
	}

	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("proctor daemon started", logging.String("lock", d.lockPath))

	err = g.Wait()
	d.logger.Info("proctor daemon stopped")
	return err
}

// Running reports whether Run holds the instance lock.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	addr := d.adminAddr
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		Workers:      d.coordinator.Stats(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		AdminAddress: addr,
	}
}

// Monitor is the frame ingestion entry point for transports.
func (d *Daemon) Monitor() *monitor.Monitor {
	return d.monitor
}

// Manager exposes the violation state machine.
func (d *Daemon) Manager() *proctoring.Manager {
	return d.manager
}

// Hub lets in-process observers subscribe to broadcasts.
func (d *Daemon) Hub() *broadcast.Hub {
	return d.hub
}

// Close stops the analysis workers, waits for pending broadcasts, and closes
// the store.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.coordinator.Close()
	d.async.Wait()
	return d.store.Close()
}
