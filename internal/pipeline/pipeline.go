package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/frames"
	"camrec/internal/logging"
	"camrec/internal/metrics"
)

// Modes reported in Health.
const (
	ModeRecord = "record"
	ModeRelay  = "relay"
)

// Options configures ingestion bookkeeping.
type Options struct {
	RelayOnly  bool
	RateWindow time.Duration
	GapWarning time.Duration
}

// OptionsFromConfig maps ingest settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RelayOnly:  cfg.RelayOnly(),
		RateWindow: cfg.RateWindow(),
		GapWarning: cfg.GapWarning(),
	}
}

// Pipeline owns the shared ingestion state: the frame buffer, the rate meter,
// and the assembler draining the buffer. One value is shared by the ingest
// endpoint, the scheduler, and the HTTP API.
type Pipeline struct {
	queue     *frames.Queue
	assembler *assembly.Assembler
	rate      *frames.RateMeter
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	received atomic.Uint64
}

// New wires queue and assembler together. assembler may be nil in relay mode;
// metrics may be nil.
func New(queue *frames.Queue, assembler *assembly.Assembler, opts Options, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		queue:     queue,
		assembler: assembler,
		rate:      frames.NewRateMeter(opts.RateWindow, opts.GapWarning),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		metrics:   m,
		now:       time.Now,
	}
	queue.OnEvict(func(frames.Frame) {
		m.FrameDropped()
	})
	return p
}

// Queue exposes the frame buffer.
func (p *Pipeline) Queue() *frames.Queue { return p.queue }

// Assembler exposes the assembler, nil in relay mode.
func (p *Pipeline) Assembler() *assembly.Assembler { return p.assembler }

// RelayOnly reports whether frames bypass the buffer.
func (p *Pipeline) RelayOnly() bool { return p.opts.RelayOnly }

// Accept records one inbound frame. It returns true when the frame was
// buffered for assembly; in relay mode frames are only counted.
func (p *Pipeline) Accept(payload []byte) bool {
	now := p.now()
	p.received.Add(1)
	p.observe(now)

	if p.opts.RelayOnly {
		p.metrics.FrameReceived(0)
		return false
	}
	p.queue.Push(payload, now)
	p.metrics.FrameReceived(p.queue.Len())
	return true
}

func (p *Pipeline) observe(now time.Time) {
	obs := p.rate.Observe(now)
	if obs.First {
		p.logger.Info("recording started",
			logging.String("mode", p.mode()),
			logging.String(logging.FieldEventType, "recording_started"),
		)
	}
	if obs.Gap > 0 {
		logging.WarnWithContext(p.logger, "frame gap detected", "frame_gap",
			logging.Duration("gap", obs.Gap),
			logging.String(logging.FieldErrorHint, "check camera network link and capture rate"),
			logging.String(logging.FieldImpact, "recording timeline has a hole"),
		)
	}
	if obs.WindowClosed {
		p.metrics.SetIngestFPS(obs.FPS)
		p.logger.Info("ingest rate",
			logging.Float64("fps", obs.FPS),
			logging.Int("window_frames", obs.WindowFrames),
			logging.Int("buffer_length", p.queue.Len()),
			logging.String(logging.FieldEventType, "ingest_rate"),
		)
	}
}

func (p *Pipeline) mode() string {
	if p.opts.RelayOnly {
		return ModeRelay
	}
	return ModeRecord
}

// Health is the externally visible pipeline snapshot.
type Health struct {
	Mode           string          `json:"mode"`
	BufferLength   int             `json:"bufferSize"`
	BufferCapacity int             `json:"bufferCapacity"`
	IngestFPS      float64         `json:"currentFps"`
	AssemblyActive bool            `json:"videoProcessRunning"`
	AssemblyState  string          `json:"assemblyState"`
	FramesReceived uint64          `json:"framesReceived"`
	FramesDropped  uint64          `json:"framesDropped"`
	LastFrameAt    *time.Time      `json:"lastFrameAt,omitempty"`
	Runs           *assembly.Stats `json:"runs,omitempty"`
}

// Health returns the current snapshot.
func (p *Pipeline) Health() Health {
	qs := p.queue.Stats()
	h := Health{
		Mode:           p.mode(),
		BufferLength:   qs.Len,
		BufferCapacity: qs.Capacity,
		IngestFPS:      p.rate.FPS(),
		AssemblyState:  assembly.StateIdle.String(),
		FramesReceived: p.received.Load(),
		FramesDropped:  qs.Dropped,
	}
	if last, ok := p.rate.LastFrameAt(); ok {
		h.LastFrameAt = &last
	}
	if p.assembler != nil {
		h.AssemblyActive = p.assembler.Running()
		h.AssemblyState = p.assembler.State().String()
		stats := p.assembler.Stats()
		h.Runs = &stats
	}
	return h
}
