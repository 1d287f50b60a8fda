package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"camrec/internal/config"
	"camrec/internal/encoder"
	"camrec/internal/fileutil"
	"camrec/internal/frames"
	"camrec/internal/logging"
	"camrec/internal/metrics"
	"camrec/internal/recordings"
)

// Options tunes an Assembler.
type Options struct {
	MinFrames        int
	TargetFPS        int
	MinPlausibleFPS  float64
	MaxPlausibleFPS  float64
	CorrectionFactor float64
	WriteBatchSize   int
	Write            fileutil.WriteOptions
	ScratchRoot      string
	RecordingsRoot   string
}

// OptionsFromConfig maps pipeline and path settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinFrames:        cfg.Pipeline.MinFramesForProcessing,
		TargetFPS:        cfg.Pipeline.TargetFPS,
		MinPlausibleFPS:  cfg.Pipeline.MinPlausibleFPS,
		MaxPlausibleFPS:  cfg.Pipeline.MaxPlausibleFPS,
		CorrectionFactor: cfg.Pipeline.DurationCorrectionFactor,
		WriteBatchSize:   cfg.Pipeline.WriteBatchSize,
		Write: fileutil.WriteOptions{
			Attempts: cfg.Pipeline.WriteAttempts,
			Backoff:  cfg.WriteBackoff(),
		},
		ScratchRoot:    cfg.Paths.ScratchDir,
		RecordingsRoot: cfg.Paths.RecordingsDir,
	}
}

func (o Options) withDefaults() Options {
	if o.TargetFPS <= 0 {
		o.TargetFPS = 15
	}
	if o.MinPlausibleFPS <= 0 {
		o.MinPlausibleFPS = DefaultMinPlausibleFPS
	}
	if o.MaxPlausibleFPS <= 0 {
		o.MaxPlausibleFPS = DefaultMaxPlausibleFPS
	}
	if o.CorrectionFactor <= 0 {
		o.CorrectionFactor = 3.2
	}
	if o.WriteBatchSize <= 0 {
		o.WriteBatchSize = 10
	}
	if o.MinFrames <= 0 {
		o.MinFrames = 1
	}
	return o
}

// Skip reasons reported in Outcome.
const (
	SkipBelowThreshold = "below_threshold"
	SkipBusy           = "busy"
)

// Outcome summarizes one call to Run.
type Outcome struct {
	RunID      string
	Skipped    bool
	SkipReason string
	Frames     int
	FPS        int
	Record     *recordings.Record
	Err        error
}

// Committed describes a recording that reached the metadata sink.
type Committed struct {
	RunID     string
	Record    recordings.Record
	VideoPath string
	Frames    int
	FPS       int
}

// Stats aggregates run results for health reporting.
type Stats struct {
	Succeeded     uint64             `json:"succeeded"`
	Failed        uint64             `json:"failed"`
	Skipped       uint64             `json:"skipped"`
	LastError     string             `json:"lastError,omitempty"`
	LastErrorAt   time.Time          `json:"lastErrorAt,omitzero"`
	LastRecording *recordings.Record `json:"lastRecording,omitempty"`
}

// Assembler drains the frame queue into MP4 recordings, one run at a time.
type Assembler struct {
	queue   *frames.Queue
	encoder encoder.Encoder
	sink    recordings.Sink
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	running atomic.Bool
	state   atomic.Int32

	mu    sync.Mutex
	stats Stats
	hooks []func(context.Context, Committed)
}

// New constructs an Assembler. metrics may be nil.
func New(queue *frames.Queue, enc encoder.Encoder, sink recordings.Sink, opts Options, logger *slog.Logger, m *metrics.Metrics) *Assembler {
	return &Assembler{
		queue:   queue,
		encoder: enc,
		sink:    sink,
		opts:    opts.withDefaults(),
		logger:  logging.NewComponentLogger(logger, "assembler"),
		metrics: m,
		tracer:  otel.Tracer("camrec/assembly"),
		now:     time.Now,
	}
}

// OnCommitted registers fn to run after every committed recording. Hooks run
// synchronously on the assembly goroutine and must not block for long.
func (a *Assembler) OnCommitted(fn func(context.Context, Committed)) {
	a.mu.Lock()
	a.hooks = append(a.hooks, fn)
	a.mu.Unlock()
}

// State returns the current lifecycle state.
func (a *Assembler) State() State {
	return State(a.state.Load())
}

// Running reports whether a run holds the single-flight guard.
func (a *Assembler) Running() bool {
	return a.running.Load()
}

// Reset force-releases the single-flight guard and returns to Idle.
func (a *Assembler) Reset() {
	a.setState(StateIdle)
	a.running.Store(false)
}

// Stats returns a snapshot of run counters.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.stats
	if out.LastRecording != nil {
		rec := *out.LastRecording
		out.LastRecording = &rec
	}
	return out
}

func (a *Assembler) setState(s State) {
	a.state.Store(int32(s))
}

// Run performs one assembly if no other run is active and enough frames are
// buffered; otherwise it returns a skipped Outcome without touching the queue
// or the filesystem. Frames drained by a failed run are not re-enqueued.
func (a *Assembler) Run(ctx context.Context) (Outcome, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.recordSkip()
		return Outcome{Skipped: true, SkipReason: SkipBusy}, nil
	}
	defer func() {
		a.setState(StateIdle)
		a.running.Store(false)
	}()

	if a.queue.Len() < a.opts.MinFrames {
		a.recordSkip()
		return Outcome{Skipped: true, SkipReason: SkipBelowThreshold}, nil
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, a.logger)

	ctx, span := a.tracer.Start(ctx, "assembly.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	a.setState(StateTriggered)
	batch := a.queue.DrainAll()
	a.metrics.SetQueueLength(a.queue.Len())
	a.setState(StateSnapshotTaken)
	if len(batch) == 0 {
		a.recordSkip()
		return Outcome{RunID: runID, Skipped: true, SkipReason: SkipBelowThreshold}, nil
	}

	job := a.newJob(runID, batch)
	span.SetAttributes(attribute.Int("frames", len(batch)), attribute.Int("fps", job.fps))
	logger.Info("assembly started",
		logging.Int(logging.FieldFrameCount, len(batch)),
		logging.Int("fps", job.fps),
		logging.Duration("span", job.end.Sub(job.start)),
		logging.String(logging.FieldEventType, "assembly_started"),
	)

	started := time.Now()
	rec, err := a.process(ctx, job, logger)
	a.metrics.ObserveStage("total", time.Since(started).Seconds())

	outcome := Outcome{RunID: runID, Frames: len(batch), FPS: job.fps, Record: rec, Err: err}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
		a.recordFailure(err)
		attrs := []logging.Attr{
			logging.Error(err),
			logging.String("failure_kind", Kind(err)),
			logging.Int(logging.FieldFrameCount, len(batch)),
			logging.String(logging.FieldErrorHint, errorHint(err)),
		}
		var exitErr *encoder.ExitError
		if errors.As(err, &exitErr) && exitErr.Output != "" {
			attrs = append(attrs, logging.String("encoder_output", exitErr.Output))
		}
		logging.ErrorWithContext(logger, "assembly failed; buffered frames discarded", "assembly_failed", attrs...)
		return outcome, err
	}
	a.recordSuccess(rec)
	return outcome, nil
}

type job struct {
	runID      string
	frames     []frames.Frame
	start, end time.Time
	fps        int
}

func (a *Assembler) newJob(runID string, batch []frames.Frame) job {
	start := batch[0].ReceivedAt
	end := batch[len(batch)-1].ReceivedAt
	return job{
		runID:  runID,
		frames: batch,
		start:  start,
		end:    end,
		fps:    SelectFrameRate(len(batch), end.Sub(start), a.opts.TargetFPS, a.opts.MinPlausibleFPS, a.opts.MaxPlausibleFPS),
	}
}

func (a *Assembler) process(ctx context.Context, j job, logger *slog.Logger) (rec *recordings.Record, err error) {
	relPath := recordings.RelativePath(j.start)
	destDir := filepath.Join(a.opts.RecordingsRoot, filepath.Dir(filepath.FromSlash(relPath)))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		a.setState(StateFailed)
		return nil, Wrap(ErrDirectory, StateSnapshotTaken, "create recording directory", destDir, err)
	}

	scratch, err := a.createScratch()
	if err != nil {
		a.setState(StateFailed)
		return nil, err
	}
	defer func() {
		if err != nil {
			a.setState(StateFailed)
		}
		a.setState(StateCleaningUp)
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logging.WarnWithContext(logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.String("path", scratch),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "scratch directory left on disk until next startup sweep"),
			)
		}
	}()

	stageStart := time.Now()
	manifest, err := a.writeFrames(ctx, scratch, j.frames)
	if err != nil {
		return nil, err
	}
	a.metrics.ObserveStage("write", time.Since(stageStart).Seconds())
	a.setState(StateFramesWritten)

	// The encoder writes a run-private file that is linked into place only
	// after it verifies, so a failed run never touches an existing recording.
	partial := filepath.Join(destDir, partialName(relPath, j.runID))
	defer func() {
		_ = os.Remove(partial)
	}()

	a.setState(StateEncoding)
	stageStart = time.Now()
	encCtx, encSpan := a.tracer.Start(ctx, "assembly.encode")
	res, err := a.encoder.Encode(encCtx, encoder.Request{Manifest: manifest, Output: partial, FPS: j.fps})
	encSpan.End()
	a.metrics.ObserveStage("encode", time.Since(stageStart).Seconds())
	if err != nil {
		return nil, Wrap(ErrEncoder, StateEncoding, "encode", relPath, err)
	}
	logger.Debug("encoder finished", logging.Duration("elapsed", res.Elapsed))

	a.setState(StateVerifying)
	info, err := os.Stat(partial)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", partial)
		}
		return nil, Wrap(ErrOutputMissing, StateVerifying, "stat output", relPath, err)
	}
	relPath, err = placeVideo(a.opts.RecordingsRoot, partial, relPath)
	if err != nil {
		return nil, Wrap(ErrDirectory, StateVerifying, "place recording", relPath, err)
	}
	videoPath := filepath.Join(a.opts.RecordingsRoot, filepath.FromSlash(relPath))

	record := recordings.Record{
		Filename:        relPath,
		StartTime:       j.start,
		EndTime:         j.end,
		DurationSeconds: CorrectedDuration(len(j.frames), j.fps, a.opts.CorrectionFactor),
		FilesizeBytes:   info.Size(),
	}

	a.setState(StateMetadataCommitting)
	id, err := a.sink.Insert(ctx, record)
	if err != nil {
		return nil, Wrap(ErrPersistence, StateMetadataCommitting, "insert record", relPath, err)
	}
	record.ID = id

	a.metrics.RecordingCommitted(len(j.frames), record.FilesizeBytes)
	logger.Info("recording committed",
		logging.Int64(logging.FieldRecordingID, id),
		logging.String("filename", relPath),
		logging.Int(logging.FieldFrameCount, len(j.frames)),
		logging.Int("fps", j.fps),
		logging.Float64("duration_seconds", record.DurationSeconds),
		logging.Int64("filesize_bytes", record.FilesizeBytes),
		logging.String(logging.FieldEventType, "recording_committed"),
	)
	a.notify(ctx, Committed{RunID: j.runID, Record: record, VideoPath: videoPath, Frames: len(j.frames), FPS: j.fps})
	return &record, nil
}

// partialName is the hidden in-progress name for relPath; it keeps the .mp4
// extension so ffmpeg still picks the mp4 muxer.
func partialName(relPath, runID string) string {
	base := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return "." + base + "." + runID + ".partial.mp4"
}

// placeVideo hard-links src to relPath under root without replacing an
// existing file. When the name is taken (two runs starting in the same
// second) it tries cam_..._1.mp4, cam_..._2.mp4 and so on. It returns the
// relative path actually used.
func placeVideo(root, src, relPath string) (string, error) {
	ext := path.Ext(relPath)
	stem := strings.TrimSuffix(relPath, ext)
	for attempt := 0; attempt < 100; attempt++ {
		candidate := relPath
		if attempt > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
		}
		err := os.Link(src, filepath.Join(root, filepath.FromSlash(candidate)))
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return relPath, err
		}
	}
	return relPath, fmt.Errorf("no free name for %s: %w", relPath, os.ErrExist)
}

// createScratch makes a fresh proc_<unixmillis> directory under the scratch root.
func (a *Assembler) createScratch() (string, error) {
	if err := os.MkdirAll(a.opts.ScratchRoot, 0o755); err != nil {
		return "", Wrap(ErrDirectory, StateSnapshotTaken, "create scratch root", a.opts.ScratchRoot, err)
	}
	base := fmt.Sprintf("proc_%d", a.now().UnixMilli())
	for attempt := 0; attempt < 100; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d", base, attempt)
		}
		dir := filepath.Join(a.opts.ScratchRoot, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", Wrap(ErrDirectory, StateSnapshotTaken, "create scratch directory", dir, err)
		}
	}
	return "", Wrap(ErrDirectory, StateSnapshotTaken, "create scratch directory", base, os.ErrExist)
}

// FrameFileName names a frame's scratch file after its queue sequence number.
// The fixed width keeps lexical order equal to arrival order for any uint64.
func FrameFileName(seq uint64) string {
	return fmt.Sprintf("frame_%020d.jpg", seq)
}

// writeFrames writes every frame under FrameFileName in bounded concurrent
// batches, then writes the manifest. It returns the manifest path.
func (a *Assembler) writeFrames(ctx context.Context, scratch string, batch []frames.Frame) (string, error) {
	ctx, span := a.tracer.Start(ctx, "assembly.write_frames")
	defer span.End()

	size := a.opts.WriteBatchSize
	paths := make([]string, len(batch))
	for start := 0; start < len(batch); start += size {
		end := min(start+size, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			framePath := filepath.Join(scratch, FrameFileName(batch[i].Sequence))
			paths[i] = framePath
			payload := batch[i].Payload
			g.Go(func() error {
				return fileutil.WriteWithRetry(gctx, framePath, payload, a.opts.Write)
			})
		}
		if err := g.Wait(); err != nil {
			return "", Wrap(ErrWrite, StateSnapshotTaken, "write frames", fmt.Sprintf("batch %d", start/size+1), err)
		}
	}

	manifest := filepath.Join(scratch, encoder.ManifestName)
	if err := fileutil.WriteWithRetry(ctx, manifest, encoder.BuildManifest(paths), a.opts.Write); err != nil {
		return "", Wrap(ErrWrite, StateSnapshotTaken, "write manifest", "", err)
	}
	return manifest, nil
}

func (a *Assembler) notify(ctx context.Context, c Committed) {
	a.mu.Lock()
	hooks := append([]func(context.Context, Committed){}, a.hooks...)
	a.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx, c)
	}
}

func (a *Assembler) recordSkip() {
	a.metrics.RunFinished(metrics.ResultSkipped)
	a.mu.Lock()
	a.stats.Skipped++
	a.mu.Unlock()
}

func (a *Assembler) recordFailure(err error) {
	a.metrics.RunFinished(metrics.ResultFailed)
	a.mu.Lock()
	a.stats.Failed++
	a.stats.LastError = err.Error()
	a.stats.LastErrorAt = a.now()
	a.mu.Unlock()
}

func (a *Assembler) recordSuccess(rec *recordings.Record) {
	a.metrics.RunFinished(metrics.ResultSucceeded)
	a.mu.Lock()
	a.stats.Succeeded++
	if rec != nil {
		copyRec := *rec
		a.stats.LastRecording = &copyRec
	}
	a.mu.Unlock()
}
