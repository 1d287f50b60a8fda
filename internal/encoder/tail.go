package encoder

import "sync"

const defaultTailBytes = 16 << 10

// tailBuffer keeps the last N bytes written to it.
type tailBuffer struct {
	mu      sync.Mutex
	limit   int
	buf     []byte
	dropped bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultTailBytes
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		t.dropped = true
		return n, nil
	}
	if overflow := len(t.buf) + n - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
		t.dropped = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dropped {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}
