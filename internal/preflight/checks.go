package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"camrec/internal/deps"
)

// ScratchPrefix names per-run scratch directories under the scratch root.
const ScratchPrefix = "proc_"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckScratchWritable writes and removes a probe file in the scratch root.
func CheckScratchWritable(dir string) Result {
	const name = "Scratch directory"
	access := CheckDirectoryAccess(name, dir)
	if !access.Passed {
		return access
	}
	probe := filepath.Join(dir, fmt.Sprintf(".write_probe_%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: write probe: %v)", dir, err)}
	}
	if err := os.Remove(probe); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: remove probe: %v)", dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (write probe ok)", dir)}
}

// CheckEncoder reports whether the encoder binary can be executed.
func CheckEncoder(ctx context.Context, binary string) Result {
	const name = "FFmpeg"
	status := deps.CheckFFmpeg(ctx, binary)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	detail := status.Command
	if status.Version != "" {
		detail = fmt.Sprintf("%s (%s)", status.Command, status.Version)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries the daemon uses. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(ctx context.Context, binary string) []deps.Status {
	return []deps.Status{deps.CheckFFmpeg(ctx, binary)}
}

// SweepStaleScratch removes per-run scratch directories left behind by a
// crashed daemon. It must run before the scheduler starts.
func SweepStaleScratch(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scratch dir: %w", err)
	}
	var removed []string
	var errs []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		removed = append(removed, path)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("remove stale scratch: %s", strings.Join(errs, "; "))
	}
	return removed, nil
}
