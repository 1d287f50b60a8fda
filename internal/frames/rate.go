package frames

import (
	"sync"
	"time"
)

// Observation describes what a single frame arrival revealed.
type Observation struct {
	// First is set for the first frame ever observed.
	First bool
	// Gap is the time since the previous frame when it exceeded the gap threshold.
	Gap time.Duration
	// WindowClosed is set when this arrival completed a rate window; FPS and
	// WindowFrames then describe that window.
	WindowClosed bool
	FPS          float64
	WindowFrames int
}

// RateMeter tracks the ingestion rate over fixed windows.
type RateMeter struct {
	mu           sync.Mutex
	window       time.Duration
	gapThreshold time.Duration

	started     bool
	last        time.Time
	windowStart time.Time
	windowCount int
	currentFPS  float64
}

// NewRateMeter returns a meter that closes a window every window and flags
// inter-frame gaps longer than gapThreshold. A zero gapThreshold disables gap reporting.
func NewRateMeter(window, gapThreshold time.Duration) *RateMeter {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &RateMeter{window: window, gapThreshold: gapThreshold}
}

// Observe records a frame arrival at now.
func (m *RateMeter) Observe(now time.Time) Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var obs Observation
	if !m.started {
		m.started = true
		m.windowStart = now
		obs.First = true
	} else if m.gapThreshold > 0 {
		if gap := now.Sub(m.last); gap > m.gapThreshold {
			obs.Gap = gap
		}
	}
	m.last = now
	m.windowCount++

	if elapsed := now.Sub(m.windowStart); elapsed >= m.window {
		m.currentFPS = float64(m.windowCount) / elapsed.Seconds()
		obs.WindowClosed = true
		obs.FPS = m.currentFPS
		obs.WindowFrames = m.windowCount
		m.windowStart = now
		m.windowCount = 0
	}
	return obs
}

// FPS returns the rate measured over the last closed window.
func (m *RateMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentFPS
}

// LastFrameAt returns the arrival time of the most recent frame.
func (m *RateMeter) LastFrameAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.started
}
