package assembly

import (
	"errors"
	"fmt"
	"strings"

	"camrec/internal/recordings"
)

var (
	ErrDirectory     = errors.New("directory error")
	ErrWrite         = errors.New("frame write error")
	ErrEncoder       = errors.New("encoder error")
	ErrOutputMissing = errors.New("encoder output missing")
	// ErrPersistence aliases the sink marker so errors.Is matches either way.
	ErrPersistence = recordings.ErrPersistence
)

// Wrap builds an error carrying the run state and operation, tagged with
// marker for classification. marker should be one of the sentinels above.
func Wrap(marker error, state State, operation, message string, err error) error {
	detail := buildDetail(state.String(), operation, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the failure class of a run error for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDirectory):
		return "directory"
	case errors.Is(err, ErrWrite):
		return "write"
	case errors.Is(err, ErrEncoder):
		return "encoder"
	case errors.Is(err, ErrOutputMissing):
		return "output_missing"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}

func errorHint(err error) string {
	switch Kind(err) {
	case "directory":
		return "check scratch_dir and recordings_dir exist and are writable"
	case "write":
		return "check free space and permissions on scratch_dir"
	case "encoder":
		return "inspect encoder_output; verify ffmpeg is installed and supports the configured codec"
	case "output_missing":
		return "encoder exited 0 without producing output; check recordings_dir permissions"
	case "persistence":
		return "check the metadata database; the video file is on disk without a record"
	default:
		return "check logs for details"
	}
}

func buildDetail(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "assembly failure"
	}
	return strings.Join(kept, ": ")
}
