package testsupport

import (
	"context"
	"testing"
	"time"

	"camrec/internal/config"
	"camrec/internal/recordings"
)

// MustOpenStore opens the SQLite recordings store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *recordings.SQLiteStore {
	t.Helper()

	store, err := recordings.OpenSQLite(context.Background(), cfg.Metadata.SQLitePath)
	if err != nil {
		t.Fatalf("recordings.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertRecording inserts a record starting at start and returns its id.
func InsertRecording(t testing.TB, sink recordings.Sink, filename string, start time.Time, duration float64, size int64) int64 {
	t.Helper()

	id, err := sink.Insert(context.Background(), recordings.Record{
		Filename:        filename,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(duration * float64(time.Second))),
		DurationSeconds: duration,
		FilesizeBytes:   size,
	})
	if err != nil {
		t.Fatalf("sink.Insert: %v", err)
	}
	return id
}
