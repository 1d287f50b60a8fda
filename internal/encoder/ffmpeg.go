package encoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Request describes one encode: an ordered manifest in, one MP4 out.
type Request struct {
	Manifest string
	Output   string
	FPS      int
}

// Result carries diagnostics from a successful encode.
type Result struct {
	Elapsed time.Duration
	Output  string
}

// Encoder turns a frame manifest into a video file.
type Encoder interface {
	Encode(ctx context.Context, req Request) (Result, error)
}

// ExitError reports an encoder process that failed to start, exited nonzero,
// or was killed after its timeout.
type ExitError struct {
	Binary   string
	ExitCode int
	TimedOut bool
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s timed out and was killed", e.Binary)
	case e.ExitCode >= 0:
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	default:
		return fmt.Sprintf("%s failed: %v", e.Binary, e.Err)
	}
}

func (e *ExitError) Unwrap() error { return e.Err }

// FFmpeg invokes the ffmpeg CLI with a fixed concat/x264 argument contract.
type FFmpeg struct {
	Binary        string
	Codec         string
	PixelFormat   string
	QualityPreset string
	// Timeout bounds one invocation; zero means no limit.
	Timeout time.Duration
	// TailBytes bounds how much combined output is kept for diagnostics.
	TailBytes int
}

// Args returns the ffmpeg argument vector for req.
func (f FFmpeg) Args(req Request) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", req.Manifest,
		"-c:v", valueOr(f.Codec, "libx264"),
		"-pix_fmt", valueOr(f.PixelFormat, "yuv420p"),
		"-preset", valueOr(f.QualityPreset, "medium"),
		"-framerate", strconv.Itoa(req.FPS),
		req.Output,
	}
}

// Encode runs ffmpeg and blocks until it exits. On timeout the whole process
// group is killed so no encoder children outlive the run.
func (f FFmpeg) Encode(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Manifest) == "" || strings.TrimSpace(req.Output) == "" {
		return Result{}, errors.New("encode: manifest and output are required")
	}
	if req.FPS <= 0 {
		return Result{}, fmt.Errorf("encode: invalid frame rate %d", req.FPS)
	}
	binary := valueOr(f.Binary, "ffmpeg")

	runCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	tail := newTailBuffer(f.TailBytes)
	cmd := exec.CommandContext(runCtx, binary, f.Args(req)...) //nolint:gosec
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)
	if err == nil {
		return Result{Elapsed: elapsed, Output: tail.String()}, nil
	}

	exitErr := &ExitError{Binary: binary, ExitCode: -1, Output: tail.String(), Err: err}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		exitErr.TimedOut = true
		exitErr.Err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		return Result{}, exitErr
	}
	var procErr *exec.ExitError
	if errors.As(err, &procErr) {
		exitErr.ExitCode = procErr.ExitCode()
	}
	return Result{}, exitErr
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
