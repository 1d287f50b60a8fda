package fileutil_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"camrec/internal/fileutil"
)

func TestWriteWithRetryWritesFullContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_000001.jpg")
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}

	if err := fileutil.WriteWithRetry(context.Background(), path, payload, fileutil.WriteOptions{}); err != nil {
		t.Fatalf("WriteWithRetry: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("content mismatch: %v", got)
	}
}

func TestWriteWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	restore := fileutil.SetWriteFileForTests(func(path string, data []byte, mode os.FileMode) error {
		calls++
		if calls < 3 {
			return errors.New("disk busy")
		}
		return os.WriteFile(path, data, mode)
	})
	defer restore()

	path := filepath.Join(t.TempDir(), "frame.jpg")
	err := fileutil.WriteWithRetry(context.Background(), path, []byte("ok"), fileutil.WriteOptions{Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWriteWithRetryExhaustsAttempts(t *testing.T) {
	cause := errors.New("read-only file system")
	calls := 0
	restore := fileutil.SetWriteFileForTests(func(string, []byte, os.FileMode) error {
		calls++
		return cause
	})
	defer restore()

	started := time.Now()
	err := fileutil.WriteWithRetry(context.Background(), "/nowhere/frame.jpg", []byte("x"), fileutil.WriteOptions{Backoff: 20 * time.Millisecond})
	if err == nil {
		t.Fatal("expected failure")
	}
	var writeErr *fileutil.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %T", err)
	}
	if writeErr.Attempts != fileutil.DefaultWriteAttempts || calls != fileutil.DefaultWriteAttempts {
		t.Fatalf("expected %d attempts, got %d (calls %d)", fileutil.DefaultWriteAttempts, writeErr.Attempts, calls)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected last cause to be wrapped, got %v", err)
	}
	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Fatalf("expected two backoff pauses, took %v", elapsed)
	}
}

func TestWriteWithRetryStopsOnCancel(t *testing.T) {
	restore := fileutil.SetWriteFileForTests(func(string, []byte, os.FileMode) error {
		return errors.New("nope")
	})
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fileutil.WriteWithRetry(ctx, "frame.jpg", nil, fileutil.WriteOptions{Attempts: 5, Backoff: time.Hour})
	var writeErr *fileutil.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if writeErr.Attempts != 1 {
		t.Fatalf("expected to stop after first attempt, got %d", writeErr.Attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}
