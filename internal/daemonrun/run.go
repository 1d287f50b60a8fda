package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"camrec/internal/archive"
	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/daemon"
	"camrec/internal/deps"
	"camrec/internal/encoder"
	"camrec/internal/events"
	"camrec/internal/frames"
	"camrec/internal/ingest"
	"camrec/internal/logging"
	"camrec/internal/metrics"
	"camrec/internal/pipeline"
	"camrec/internal/preflight"
	"camrec/internal/recordings"
	"camrec/internal/tracing"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel    string
	Development bool
}

// Run starts the camrec daemon and blocks until the context is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := cfg.LogPath()
	if err := rotatePreviousLog(logPath, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to rotate previous log: %v\n", err)
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "camrecd-*.log"},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "camrecd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	shutdownTracing, err := tracing.Init(signalCtx, cfg.Telemetry.TracingEndpoint)
	if err != nil {
		logging.WarnWithContext(logger, "tracing disabled", "tracing_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.tracing_endpoint"),
		)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	rt, err := build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("daemon setup failed", logging.Error(err))
		return err
	}
	defer rt.close()

	if err := rt.daemon.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another camrecd process and that the bind addresses are free"),
		)
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("camrec daemon shutting down")
	return nil
}

// runtime holds the wired daemon and the resources it does not own.
type runtime struct {
	daemon  *daemon.Daemon
	closers []func() error
	logger  *slog.Logger
}

func (r *runtime) close() {
	if r.daemon != nil {
		if err := r.daemon.Close(); err != nil {
			r.logger.Warn("close metadata store", logging.Error(err))
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close resource", logging.Error(err))
		}
	}
}

// build wires every component from cfg without starting anything.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: logger}

	var m *metrics.Metrics
	if cfg.Telemetry.MetricsEnabled {
		m = metrics.New()
	}

	sink, err := recordings.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	var dependencies []deps.Status
	queue := frames.NewQueue(cfg.Pipeline.MaxBufferSize)
	var asm *assembly.Assembler
	var scheduler *pipeline.Scheduler
	if !cfg.RelayOnly() {
		runPreflight(ctx, cfg, logger)
		dependencies = preflight.CheckSystemDeps(ctx, cfg.Encoder.Binary)
		logDependencySnapshot(logger, dependencies)

		enc := encoder.FFmpeg{
			Binary:        cfg.Encoder.Binary,
			Codec:         cfg.Encoder.Codec,
			PixelFormat:   cfg.Encoder.PixelFormat,
			QualityPreset: cfg.Encoder.QualityPreset,
			Timeout:       cfg.EncoderTimeout(),
			TailBytes:     cfg.Encoder.OutputTailBytes,
		}
		asm = assembly.New(queue, enc, sink, assembly.OptionsFromConfig(cfg), logger, m)

		pub, err := events.New(ctx, cfg)
		if err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("events: %w", err)
		}
		rt.closers = append(rt.closers, pub.Close)
		asm.OnCommitted(events.Hook(pub, time.Duration(cfg.Events.PublishTimeoutS)*time.Second, logger))

		if cfg.Archive.Enabled {
			uploader, err := archive.NewUploader(archive.OptionsFromConfig(cfg), logger)
			if err != nil {
				rt.close()
				_ = sink.Close()
				return nil, fmt.Errorf("archive: %w", err)
			}
			bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := uploader.EnsureBucket(bucketCtx); err != nil {
				logging.WarnWithContext(logger, "archive bucket check failed", "archive_bucket_unavailable",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check archive endpoint and credentials"),
					logging.String(logging.FieldImpact, "uploads will be retried per recording"),
				)
			}
			cancel()
			rt.closers = append(rt.closers, uploader.Close)
			asm.OnCommitted(uploader.Hook(0))
		}
		scheduler = pipeline.NewScheduler(asm, cfg.ProcessingInterval(), logger)
	}

	p := pipeline.New(queue, asm, pipeline.OptionsFromConfig(cfg), logger, m)
	d, err := daemon.New(cfg, logger, daemon.Components{
		Pipeline:     p,
		Scheduler:    scheduler,
		Hub:          ingest.NewHub(logger, m),
		Sink:         sink,
		Metrics:      m,
		Dependencies: dependencies,
	})
	if err != nil {
		rt.close()
		_ = sink.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	rt.daemon = d
	return rt, nil
}

// runPreflight logs failed checks and removes scratch directories left by a
// previous crash. Nothing here is fatal.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported path or binary before the next assembly run"),
		)
	}

	removed, err := preflight.SweepStaleScratch(cfg.Paths.ScratchDir)
	if err != nil {
		logging.WarnWithContext(logger, "stale scratch cleanup incomplete", "scratch_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove leftover proc_* directories manually"),
		)
	}
	if len(removed) > 0 {
		logger.Info("removed stale scratch directories",
			logging.Int("count", len(removed)),
			logging.String(logging.FieldEventType, "scratch_swept"),
		)
	}
}

// rotatePreviousLog renames an existing log to camrecd-<timestamp>.log so
// retention can prune it.
func rotatePreviousLog(logPath string, now time.Time) error {
	info, err := os.Stat(logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	stamp := now.UTC().Format("20060102T150405")
	rotated := filepath.Join(filepath.Dir(logPath), fmt.Sprintf("camrecd-%s.log", stamp))
	return os.Rename(logPath, rotated)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, statuses []deps.Status) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
