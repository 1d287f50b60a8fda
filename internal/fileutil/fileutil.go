package fileutil

import (
	"context"
	"fmt"
	"os"
	"time"
)

const (
	DefaultWriteAttempts = 3
	DefaultWriteBackoff  = 100 * time.Millisecond
)

// WriteOptions controls WriteWithRetry.
type WriteOptions struct {
	Attempts int
	Backoff  time.Duration
	Mode     os.FileMode
}

func (o WriteOptions) withDefaults() WriteOptions {
	if o.Attempts <= 0 {
		o.Attempts = DefaultWriteAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Mode == 0 {
		o.Mode = 0o644
	}
	return o
}

// WriteError reports a write that exhausted its retry budget.
type WriteError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

var writeFile = writeFileFull

// WriteWithRetry writes data to path, retrying with a fixed backoff. On success
// the file holds exactly data. On failure it returns a *WriteError wrapping the
// last cause; a cancelled context stops retrying early.
func WriteWithRetry(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	opts = opts.withDefaults()

	var lastErr error
	attempt := 0
	for attempt < opts.Attempts {
		attempt++
		if lastErr = writeFile(path, data, opts.Mode); lastErr == nil {
			return nil
		}
		if attempt == opts.Attempts {
			break
		}
		timer := time.NewTimer(opts.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &WriteError{Path: path, Attempts: attempt, Err: fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)}
		case <-timer.C:
		}
	}
	return &WriteError{Path: path, Attempts: attempt, Err: lastErr}
}

func writeFileFull(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	n, err := f.Write(data)
	if err != nil {
		_ = f.Close()
		return err
	}
	if n != len(data) {
		_ = f.Close()
		return fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	return f.Close()
}

// SetWriteFileForTests swaps the low-level write used by WriteWithRetry and
// returns a function restoring the previous one.
func SetWriteFileForTests(fn func(path string, data []byte, mode os.FileMode) error) func() {
	prev := writeFile
	if fn == nil {
		writeFile = writeFileFull
	} else {
		writeFile = fn
	}
	return func() { writeFile = prev }
}
