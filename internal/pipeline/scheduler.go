package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"camrec/internal/assembly"
	"camrec/internal/logging"
)

// Runner is the work a Scheduler fires on every tick.
type Runner interface {
	Run(ctx context.Context) (assembly.Outcome, error)
	Reset()
}

// Scheduler fires Runner.Run on a fixed interval until stopped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler returns a scheduler that triggers runner every interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Start begins ticking in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("scheduler started", logging.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop, including any in-flight run, and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

// Tick performs one triggered run. A panic escaping the run is recovered,
// logged, and returned as an error after the runner's guard is reset.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.runner.Reset()
			err = fmt.Errorf("assembly panic: %v", r)
			logging.ErrorWithContext(s.logger, "assembly run panicked; guard reset", "assembly_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this crash with the stack trace"),
			)
		}
	}()

	outcome, err := s.runner.Run(ctx)
	if err != nil {
		return err
	}
	if outcome.Skipped {
		s.logger.Debug("assembly skipped", logging.String("reason", outcome.SkipReason))
	}
	return nil
}
