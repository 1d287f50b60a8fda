package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"camrec/internal/metrics"
)

func TestHandlerExposesCamrecSeries(t *testing.T) {
	m := metrics.New()
	m.FrameReceived(3)
	m.FrameDropped()
	m.RunFinished(metrics.ResultSucceeded)
	m.RecordingCommitted(300, 1<<20)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		"camrec_frames_received_total 1",
		"camrec_frames_dropped_total 1",
		"camrec_buffer_frames 3",
		`camrec_assembly_runs_total{result="succeeded"} 1`,
		"camrec_frames_assembled_total 300",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.FrameReceived(1)
	m.RunFinished(metrics.ResultFailed)
	m.ObserveStage("encode", 1)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from disabled metrics, got %d", rec.Code)
	}
}
