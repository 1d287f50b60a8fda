package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"camrec/internal/config"
	"camrec/internal/deps"
	"camrec/internal/ingest"
	"camrec/internal/logging"
	"camrec/internal/metrics"
	"camrec/internal/pipeline"
	"camrec/internal/recordings"
)

// Components are the collaborators the daemon runs. Scheduler may be nil in
// relay mode; Metrics may be nil when disabled.
type Components struct {
	Pipeline     *pipeline.Pipeline
	Scheduler    *pipeline.Scheduler
	Hub          *ingest.Hub
	Sink         recordings.Sink
	Metrics      *metrics.Metrics
	Dependencies []deps.Status
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	comps  Components

	ingest *httpServer
	api    *httpServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	StartedAt        time.Time
	LockFilePath     string
	MetadataDriver   string
	IngestAddress    string
	APIAddress       string
	SchedulerRunning bool
	Pipeline         pipeline.Health
	Viewers          int
	Dependencies     []deps.Status
}

// New constructs a daemon around comps.
func New(cfg *config.Config, logger *slog.Logger, comps Components) (*Daemon, error) {
	if cfg == nil || comps.Pipeline == nil || comps.Hub == nil || comps.Sink == nil {
		return nil, errors.New("daemon requires config, pipeline, relay hub, and metadata sink")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		comps:    comps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	endpoint := ingest.NewEndpoint(comps.Pipeline, comps.Hub, ingest.Options{ReadLimit: cfg.Ingest.ReadLimitBytes}, logger)
	d.ingest = newHTTPServer("ingest", cfg.Ingest.Bind, endpoint, 0, logger)
	d.api = newHTTPServer("api", cfg.Paths.APIBind, newAPIHandler(d), 30*time.Second, logger)
	return d, nil
}

// Start acquires the daemon lock, opens both listeners, and starts the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another camrec daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		d.ingest.stop()
		d.api.stop()
		_ = d.lock.Unlock()
		return err
	}

	if err := d.api.start(runCtx); err != nil {
		return fail(err)
	}
	if err := d.ingest.start(runCtx); err != nil {
		return fail(err)
	}
	if d.comps.Scheduler != nil {
		if err := d.comps.Scheduler.Start(runCtx); err != nil {
			return fail(fmt.Errorf("start scheduler: %w", err))
		}
	}

	d.cancel = cancel
	now := time.Now()
	d.startedAt.Store(&now)
	d.running.Store(true)
	d.logger.Info("camrec daemon started",
		logging.String("lock", d.lockPath),
		logging.String("mode", d.comps.Pipeline.Health().Mode),
		logging.String("ingest_address", d.ingest.addr()),
		logging.String("api_address", d.api.addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops the scheduler and listeners and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.comps.Scheduler != nil {
		d.comps.Scheduler.Stop()
	}
	d.comps.Hub.CloseAll()
	d.ingest.stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("camrec daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.comps.Sink.Close()
}

// IngestAddr returns the bound WebSocket listener address once started.
func (d *Daemon) IngestAddr() string { return d.ingest.addr() }

// APIAddr returns the bound HTTP API address once started.
func (d *Daemon) APIAddr() string { return d.api.addr() }

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockFilePath:   d.lockPath,
		MetadataDriver: d.cfg.Metadata.Driver,
		IngestAddress:  d.ingest.addr(),
		APIAddress:     d.api.addr(),
		Pipeline:       d.comps.Pipeline.Health(),
		Viewers:        d.comps.Hub.Len(),
		Dependencies:   d.comps.Dependencies,
	}
	if started := d.startedAt.Load(); started != nil {
		status.StartedAt = *started
	}
	if d.comps.Scheduler != nil {
		status.SchedulerRunning = d.comps.Scheduler.Running()
	}
	return status
}

func (d *Daemon) metricsHandler() http.Handler {
	if d.comps.Metrics == nil {
		return nil
	}
	return d.comps.Metrics.Handler()
}
