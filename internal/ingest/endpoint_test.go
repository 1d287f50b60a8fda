package ingest_test

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"camrec/internal/ingest"
	"camrec/internal/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) Accept(payload []byte) bool {
	s.mu.Lock()
	s.frames = append(s.frames, payload)
	s.mu.Unlock()
	return true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEndpointBuffersAndRelaysFrames(t *testing.T) {
	sink := &recordingSink{}
	hub := ingest.NewHub(logging.NewNop(), nil)
	srv := httptest.NewServer(ingest.NewEndpoint(sink, hub, ingest.Options{ReadLimit: 1 << 20}, logging.NewNop()))
	defer srv.Close()

	camera := dial(t, srv)
	viewer := dial(t, srv)
	waitFor(t, "two clients", func() bool { return hub.Len() == 2 })

	frame := []byte{0xff, 0xd8, 0x01, 0xff, 0xd9}
	if err := camera.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = viewer.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, got, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if kind != websocket.BinaryMessage || string(got) != string(frame) {
		t.Fatalf("viewer got kind=%d payload=%v", kind, got)
	}
	waitFor(t, "frame accepted", func() bool { return sink.count() == 1 })

	if err := camera.WriteMessage(websocket.TextMessage, []byte("data:image/jpeg;base64,AAAA")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	waitFor(t, "text frame accepted", func() bool { return sink.count() == 2 })

	camera.Close()
	waitFor(t, "camera removal", func() bool { return hub.Len() == 1 })
}
