package archive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camrec/internal/archive"
	"camrec/internal/assembly"
	"camrec/internal/logging"
	"camrec/internal/recordings"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix   string
		filename string
		want     string
	}{
		{"", "2024-03-01/cam_20240301_120000.mp4", "2024-03-01/cam_20240301_120000.mp4"},
		{"camrec/", "2024-03-01/cam_20240301_120000.mp4", "camrec/2024-03-01/cam_20240301_120000.mp4"},
		{"/site-a/cam1/", "/2024-03-01/x.mp4", "site-a/cam1/2024-03-01/x.mp4"},
		{"p", "../escape.mp4", "p/escape.mp4"},
	}
	for _, tt := range tests {
		if got := archive.ObjectKey(tt.prefix, tt.filename); got != tt.want {
			t.Fatalf("ObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.filename, got, tt.want)
		}
	}
}

func TestNewUploaderValidatesOptions(t *testing.T) {
	if _, err := archive.NewUploader(archive.Options{Bucket: "b"}, logging.NewNop()); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := archive.NewUploader(archive.Options{Endpoint: "localhost:9000"}, logging.NewNop()); err == nil {
		t.Fatal("expected error without bucket")
	}
	up, err := archive.NewUploader(archive.Options{Endpoint: "localhost:9000", Bucket: "recordings", Prefix: "cam1"}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if got := up.ObjectKey("2024-03-01/a.mp4"); got != "cam1/2024-03-01/a.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestCloseWithoutUploadsReturnsImmediately(t *testing.T) {
	up, err := archive.NewUploader(archive.Options{Endpoint: "localhost:9000", Bucket: "recordings"}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if err := up.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseWaitsForInflightUpload(t *testing.T) {
	requests := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	up, err := archive.NewUploader(archive.Options{
		Endpoint:     strings.TrimPrefix(srv.URL, "http://"),
		Bucket:       "recordings",
		DrainTimeout: 200 * time.Millisecond,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	video := filepath.Join(t.TempDir(), "cam_20240301_120000.mp4")
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	up.Hook(time.Minute)(context.Background(), assembly.Committed{
		Record:    recordings.Record{ID: 1, Filename: "2024-03-01/cam_20240301_120000.mp4"},
		VideoPath: video,
	})

	select {
	case <-requests:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never reached the server")
	}

	started := time.Now()
	if err := up.Close(); err == nil {
		t.Fatal("expected Close to report the cancelled upload")
	}
	if elapsed := time.Since(started); elapsed < 200*time.Millisecond || elapsed > 5*time.Second {
		t.Fatalf("Close returned after %s, want roughly the drain timeout", elapsed)
	}
}
