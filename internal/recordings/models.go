package recordings

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"
)

// ErrPersistence marks a failed metadata write or read.
var ErrPersistence = errors.New("recording metadata persistence failed")

// timeLayout matches JavaScript's toISOString: UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Record describes one finished recording.
type Record struct {
	ID              int64     `json:"id"`
	Filename        string    `json:"filename"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration"`
	FilesizeBytes   int64     `json:"filesize"`
}

// Sink persists and queries recording metadata.
type Sink interface {
	Insert(ctx context.Context, rec Record) (int64, error)
	ListByDate(ctx context.Context, datePrefix string) ([]Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Close() error
}

// RelativePath returns the recordings-root relative path for a recording that
// started at start: YYYY-MM-DD/cam_YYYYMMDD_HHmmss.mp4.
func RelativePath(start time.Time) string {
	return path.Join(DateDir(start), "cam_"+start.Format("20060102_150405")+".mp4")
}

// DateDir returns the per-day directory name for start.
func DateDir(start time.Time) string {
	return start.Format("2006-01-02")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
