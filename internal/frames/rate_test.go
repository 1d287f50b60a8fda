package frames_test

import (
	"math"
	"testing"
	"time"

	"camrec/internal/frames"
)

func TestRateMeterWindows(t *testing.T) {
	m := frames.NewRateMeter(time.Second, 500*time.Millisecond)
	start := time.Unix(1700000000, 0)

	first := m.Observe(start)
	if !first.First {
		t.Fatal("expected first observation to be flagged")
	}

	var closed frames.Observation
	for i := 1; i <= 10; i++ {
		obs := m.Observe(start.Add(time.Duration(i) * 100 * time.Millisecond))
		if obs.First {
			t.Fatalf("observation %d flagged as first", i)
		}
		if obs.WindowClosed {
			closed = obs
		}
	}
	if !closed.WindowClosed {
		t.Fatal("expected a closed window after one second")
	}
	if closed.WindowFrames != 11 || math.Abs(closed.FPS-11) > 1e-9 {
		t.Fatalf("unexpected fps: %v", closed.FPS)
	}
	if m.FPS() != closed.FPS {
		t.Fatalf("FPS() should report last window, got %v", m.FPS())
	}
}

func TestRateMeterReportsGaps(t *testing.T) {
	m := frames.NewRateMeter(time.Minute, 500*time.Millisecond)
	start := time.Unix(1700000000, 0)
	m.Observe(start)
	if obs := m.Observe(start.Add(100 * time.Millisecond)); obs.Gap != 0 {
		t.Fatalf("unexpected gap %v", obs.Gap)
	}
	obs := m.Observe(start.Add(900 * time.Millisecond))
	if obs.Gap != 800*time.Millisecond {
		t.Fatalf("expected 800ms gap, got %v", obs.Gap)
	}
	last, ok := m.LastFrameAt()
	if !ok || !last.Equal(start.Add(900*time.Millisecond)) {
		t.Fatalf("unexpected last frame time %v", last)
	}
}
