package assembly_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/encoder"
	"camrec/internal/fileutil"
	"camrec/internal/frames"
	"camrec/internal/logging"
	"camrec/internal/recordings"
	"camrec/internal/testsupport"
)

var batchStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const frameInterval = time.Second / 15

type fakeEncoder struct {
	mu       sync.Mutex
	requests []encoder.Request
	manifest string

	started     chan struct{}
	release     chan struct{}
	err         error
	skipOutput  bool
	panicOnCall bool
}

func (f *fakeEncoder) Encode(ctx context.Context, req encoder.Request) (encoder.Result, error) {
	data, _ := os.ReadFile(req.Manifest)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.manifest = string(data)
	f.mu.Unlock()

	if f.panicOnCall {
		panic("encoder exploded")
	}
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return encoder.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return encoder.Result{}, f.err
	}
	if !f.skipOutput {
		if err := os.WriteFile(req.Output, []byte("mp4"), 0o644); err != nil {
			return encoder.Result{}, err
		}
	}
	return encoder.Result{Output: req.Output}, nil
}

func (f *fakeEncoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingSink struct{}

func (failingSink) Insert(context.Context, recordings.Record) (int64, error) {
	return 0, fmt.Errorf("%w: insert: database is locked", recordings.ErrPersistence)
}

func (failingSink) ListByDate(context.Context, string) ([]recordings.Record, error) { return nil, nil }

func (failingSink) Get(context.Context, int64) (*recordings.Record, error) { return nil, nil }

func (failingSink) Close() error { return nil }

func newAssembler(t *testing.T, cfg *config.Config, enc encoder.Encoder, sink recordings.Sink) (*assembly.Assembler, *frames.Queue) {
	t.Helper()
	q := frames.NewQueue(cfg.Pipeline.MaxBufferSize)
	return assembly.New(q, enc, sink, assembly.OptionsFromConfig(cfg), logging.NewNop(), nil), q
}

func assertScratchEmpty(t *testing.T, cfg *config.Config) {
	t.Helper()
	if entries := testsupport.DirEntries(t, cfg.Paths.ScratchDir); len(entries) != 0 {
		t.Fatalf("expected empty scratch dir, found %v", entries)
	}
}

func TestRunCommitsRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(300), testsupport.WithEncoderScript(testsupport.FakeFFmpegBody))
	store := testsupport.MustOpenStore(t, cfg)
	enc := encoder.FFmpeg{Binary: cfg.Encoder.Binary, Timeout: 10 * time.Second}
	asm, q := newAssembler(t, cfg, enc, store)

	var committed []assembly.Committed
	asm.OnCommitted(func(_ context.Context, c assembly.Committed) {
		committed = append(committed, c)
	})

	testsupport.FillQueue(q, 300, batchStart, frameInterval)
	outcome, err := asm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Skipped || outcome.Record == nil {
		t.Fatalf("expected committed outcome, got %+v", outcome)
	}
	if outcome.FPS != 15 {
		t.Fatalf("expected fps 15, got %d", outcome.FPS)
	}

	rec := outcome.Record
	if rec.Filename != "2024-03-01/cam_20240301_120000.mp4" {
		t.Fatalf("unexpected filename %q", rec.Filename)
	}
	if rec.DurationSeconds != 6.25 {
		t.Fatalf("expected corrected duration 6.25, got %v", rec.DurationSeconds)
	}
	if rec.FilesizeBytes != int64(len("fake-mp4-payload")) {
		t.Fatalf("unexpected filesize %d", rec.FilesizeBytes)
	}
	if !rec.EndTime.Equal(batchStart.Add(299 * frameInterval)) {
		t.Fatalf("unexpected end time %v", rec.EndTime)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.RecordingsDir, filepath.FromSlash(rec.Filename))); err != nil {
		t.Fatalf("expected video on disk: %v", err)
	}
	assertScratchEmpty(t, cfg)
	if q.Len() != 0 {
		t.Fatalf("expected drained queue, got %d", q.Len())
	}

	listed, err := store.ListByDate(context.Background(), "2024-03-01")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != rec.ID {
		t.Fatalf("expected stored record %d, got %+v", rec.ID, listed)
	}

	if len(committed) != 1 || committed[0].Record.ID != rec.ID || committed[0].Frames != 300 {
		t.Fatalf("unexpected commit hooks %+v", committed)
	}
	if asm.State() != assembly.StateIdle || asm.Running() {
		t.Fatalf("expected idle released assembler, state=%s running=%v", asm.State(), asm.Running())
	}
	if stats := asm.Stats(); stats.Succeeded != 1 || stats.LastRecording == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunWritesOrderedManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	enc := &fakeEncoder{}
	asm, q := newAssembler(t, cfg, enc, failingSink{})

	testsupport.FillQueue(q, 7, batchStart, frameInterval)
	drained := q.DrainAll()
	if last := drained[len(drained)-1].Sequence; last != 6 {
		t.Fatalf("expected first batch to end at sequence 6, got %d", last)
	}

	testsupport.FillQueue(q, 25, batchStart, frameInterval)
	_, _ = asm.Run(context.Background())

	lines := strings.Split(enc.manifest, "\n")
	if len(lines) != 25 {
		t.Fatalf("expected 25 manifest lines, got %d", len(lines))
	}
	for i, line := range lines {
		want := assembly.FrameFileName(uint64(7+i)) + "'"
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, want) {
			t.Fatalf("line %d: expected suffix %q, got %q", i, want, line)
		}
	}
}

func TestFrameFileNameSortsNumerically(t *testing.T) {
	seqs := []uint64{0, 9, 10, 999999, 1000000, 1<<64 - 1}
	for i := 1; i < len(seqs); i++ {
		prev, next := assembly.FrameFileName(seqs[i-1]), assembly.FrameFileName(seqs[i])
		if len(prev) != len(next) || prev >= next {
			t.Fatalf("%q should sort before %q", prev, next)
		}
	}
	if got := assembly.FrameFileName(7); got != "frame_00000000000000000007.jpg" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestRunBelowThresholdHasNoSideEffects(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(300))
	store := testsupport.MustOpenStore(t, cfg)
	enc := &fakeEncoder{}
	asm, q := newAssembler(t, cfg, enc, store)

	testsupport.FillQueue(q, 10, batchStart, frameInterval)
	outcome, err := asm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.Skipped || outcome.SkipReason != assembly.SkipBelowThreshold {
		t.Fatalf("expected below-threshold skip, got %+v", outcome)
	}
	if q.Len() != 10 {
		t.Fatalf("queue should be untouched, len=%d", q.Len())
	}
	if enc.calls() != 0 {
		t.Fatalf("encoder should not run")
	}
	assertScratchEmpty(t, cfg)
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestRunWriteFailureDiscardsBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(30))
	store := testsupport.MustOpenStore(t, cfg)
	enc := &fakeEncoder{}
	asm, q := newAssembler(t, cfg, enc, store)

	var mu sync.Mutex
	attempts := 0
	restore := fileutil.SetWriteFileForTests(func(path string, data []byte, mode os.FileMode) error {
		if filepath.Base(path) == assembly.FrameFileName(15) {
			mu.Lock()
			attempts++
			mu.Unlock()
			return errors.New("no space left on device")
		}
		return os.WriteFile(path, data, mode)
	})
	defer restore()

	testsupport.FillQueue(q, 30, batchStart, frameInterval)
	outcome, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if assembly.Kind(err) != "write" || !strings.Contains(err.Error(), "batch 2") {
		t.Fatalf("unexpected error detail %v", err)
	}
	var writeErr *fileutil.WriteError
	if !errors.As(err, &writeErr) || writeErr.Attempts != 3 {
		t.Fatalf("expected WriteError after 3 attempts, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts on failing frame, got %d", attempts)
	}
	if outcome.Record != nil || enc.calls() != 0 {
		t.Fatalf("encoder must not run after write failure")
	}
	if q.Len() != 0 {
		t.Fatalf("failed batch frames must not be re-enqueued, len=%d", q.Len())
	}
	assertScratchEmpty(t, cfg)
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
	if stats := asm.Stats(); stats.Failed != 1 || stats.LastError == "" {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunEncoderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(20), testsupport.WithEncoderScript("echo 'Unknown encoder libx264' >&2\nexit 1\n"))
	store := testsupport.MustOpenStore(t, cfg)
	enc := encoder.FFmpeg{Binary: cfg.Encoder.Binary, Timeout: 10 * time.Second}
	asm, q := newAssembler(t, cfg, enc, store)

	testsupport.FillQueue(q, 20, batchStart, frameInterval)
	_, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrEncoder) {
		t.Fatalf("expected ErrEncoder, got %v", err)
	}
	var exitErr *encoder.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(exitErr.Output, "Unknown encoder") {
		t.Fatalf("expected captured stderr, got %q", exitErr.Output)
	}
	assertScratchEmpty(t, cfg)
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
	if entries := testsupport.DirEntries(t, filepath.Join(cfg.Paths.RecordingsDir, "2024-03-01")); len(entries) != 0 {
		t.Fatalf("expected no partial output, found %v", entries)
	}
}

func TestRunEncoderFailureLogsEncoderOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5), testsupport.WithEncoderScript("echo 'Unknown encoder libx264' >&2\nexit 1\n"))
	logPath := filepath.Join(t.TempDir(), "assembler.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	q := frames.NewQueue(100)
	enc := encoder.FFmpeg{Binary: cfg.Encoder.Binary, Timeout: 10 * time.Second}
	asm := assembly.New(q, enc, failingSink{}, assembly.OptionsFromConfig(cfg), logger, nil)

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	if _, err := asm.Run(context.Background()); !errors.Is(err, assembly.ErrEncoder) {
		t.Fatalf("expected ErrEncoder, got %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var failure string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "assembly failed") {
			failure = line
		}
	}
	if failure == "" {
		t.Fatalf("no failure record in log:\n%s", data)
	}
	if !strings.Contains(failure, "encoder_output") || !strings.Contains(failure, "Unknown encoder libx264") {
		t.Fatalf("failure record lacks encoder output: %s", failure)
	}
}

func TestRunEncoderFailureKeepsEarlierRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	existing := filepath.Join(cfg.Paths.RecordingsDir, "2024-03-01", "cam_20240301_120000.mp4")
	testsupport.WriteFile(t, existing, 64)

	asm, q := newAssembler(t, cfg, &fakeEncoder{err: errors.New("ffmpeg exited with code 1")}, failingSink{})
	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	if _, err := asm.Run(context.Background()); !errors.Is(err, assembly.ErrEncoder) {
		t.Fatalf("expected ErrEncoder, got %v", err)
	}

	info, err := os.Stat(existing)
	if err != nil || info.Size() != 64 {
		t.Fatalf("earlier recording must survive a failed run: info=%v err=%v", info, err)
	}
	if entries := testsupport.DirEntries(t, filepath.Dir(existing)); len(entries) != 1 {
		t.Fatalf("expected only the earlier recording, found %v", entries)
	}
}

func TestRunSameSecondGetsSuffixedName(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	store := testsupport.MustOpenStore(t, cfg)
	existing := filepath.Join(cfg.Paths.RecordingsDir, "2024-03-01", "cam_20240301_120000.mp4")
	testsupport.WriteFile(t, existing, 64)

	asm, q := newAssembler(t, cfg, &fakeEncoder{}, store)
	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	outcome, err := asm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Record.Filename != "2024-03-01/cam_20240301_120000_1.mp4" {
		t.Fatalf("unexpected filename %q", outcome.Record.Filename)
	}
	if info, err := os.Stat(existing); err != nil || info.Size() != 64 {
		t.Fatalf("earlier recording was replaced: info=%v err=%v", info, err)
	}
	if entries := testsupport.DirEntries(t, filepath.Dir(existing)); len(entries) != 2 {
		t.Fatalf("expected two recordings and no partial file, found %v", entries)
	}
}

func TestRunOutputMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	asm, q := newAssembler(t, cfg, &fakeEncoder{skipOutput: true}, failingSink{})

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	_, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrOutputMissing) {
		t.Fatalf("expected ErrOutputMissing, got %v", err)
	}
	assertScratchEmpty(t, cfg)
}

func TestRunPersistenceFailureKeepsVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	asm, q := newAssembler(t, cfg, &fakeEncoder{}, failingSink{})

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	_, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrPersistence) || assembly.Kind(err) != "persistence" {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.RecordingsDir, "2024-03-01", "cam_20240301_120000.mp4")); err != nil {
		t.Fatalf("video should remain on disk: %v", err)
	}
	assertScratchEmpty(t, cfg)
}

func TestRunDirectoryFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	testsupport.WriteFile(t, blocker, 1)

	opts := assembly.OptionsFromConfig(cfg)
	opts.ScratchRoot = filepath.Join(blocker, "temp")
	q := frames.NewQueue(100)
	enc := &fakeEncoder{}
	asm := assembly.New(q, enc, failingSink{}, opts, logging.NewNop(), nil)

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	_, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrDirectory) {
		t.Fatalf("expected ErrDirectory, got %v", err)
	}
	if enc.calls() != 0 {
		t.Fatalf("encoder should not run")
	}
	if asm.Running() {
		t.Fatalf("guard should be released")
	}
}

func TestRunRecordingDirFailureWritesNoFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	testsupport.WriteFile(t, blocker, 1)

	var mu sync.Mutex
	writes := 0
	restore := fileutil.SetWriteFileForTests(func(path string, data []byte, mode os.FileMode) error {
		mu.Lock()
		writes++
		mu.Unlock()
		return os.WriteFile(path, data, mode)
	})
	defer restore()

	opts := assembly.OptionsFromConfig(cfg)
	opts.RecordingsRoot = filepath.Join(blocker, "recordings")
	q := frames.NewQueue(100)
	enc := &fakeEncoder{}
	asm := assembly.New(q, enc, failingSink{}, opts, logging.NewNop(), nil)

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	_, err := asm.Run(context.Background())
	if !errors.Is(err, assembly.ErrDirectory) {
		t.Fatalf("expected ErrDirectory, got %v", err)
	}
	if writes != 0 {
		t.Fatalf("expected no frame writes, got %d", writes)
	}
	if enc.calls() != 0 {
		t.Fatalf("encoder should not run")
	}
	assertScratchEmpty(t, cfg)
}

func TestConcurrentRunsAreSingleFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(10))
	store := testsupport.MustOpenStore(t, cfg)
	enc := &fakeEncoder{started: make(chan struct{}, 1), release: make(chan struct{})}
	asm, q := newAssembler(t, cfg, enc, store)

	testsupport.FillQueue(q, 10, batchStart, frameInterval)
	done := make(chan error, 1)
	go func() {
		_, err := asm.Run(context.Background())
		done <- err
	}()

	select {
	case <-enc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the encoder")
	}
	if asm.State() != assembly.StateEncoding || !asm.Running() {
		t.Fatalf("expected running encode, state=%s", asm.State())
	}

	testsupport.FillQueue(q, 10, batchStart.Add(time.Minute), frameInterval)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := asm.Run(context.Background())
			if err != nil || !outcome.Skipped || outcome.SkipReason != assembly.SkipBusy {
				t.Errorf("expected busy skip, got %+v err=%v", outcome, err)
			}
		}()
	}
	wg.Wait()
	if q.Len() != 10 {
		t.Fatalf("skipped runs must not drain the queue, len=%d", q.Len())
	}

	close(enc.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if enc.calls() != 1 {
		t.Fatalf("expected a single encoder invocation, got %d", enc.calls())
	}
	if stats := asm.Stats(); stats.Skipped != 5 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPanicReleasesGuard(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFrames(5))
	enc := &fakeEncoder{panicOnCall: true}
	asm, q := newAssembler(t, cfg, enc, failingSink{})

	testsupport.FillQueue(q, 5, batchStart, frameInterval)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = asm.Run(context.Background())
	}()

	if asm.Running() || asm.State() != assembly.StateIdle {
		t.Fatalf("guard should be released after panic, state=%s", asm.State())
	}
	assertScratchEmpty(t, cfg)

	asm.Reset()
	enc.panicOnCall = false
	testsupport.FillQueue(q, 5, batchStart.Add(time.Minute), frameInterval)
	if _, err := asm.Run(context.Background()); !errors.Is(err, assembly.ErrPersistence) {
		t.Fatalf("expected next run to reach the sink, got %v", err)
	}
}
