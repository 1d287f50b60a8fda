package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camrec/internal/frames"
)

// WriteFile fills the target path with size bytes of a repeating pattern.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FillQueue pushes n synthetic JPEG-ish frames spaced interval apart starting at start.
func FillQueue(q *frames.Queue, n int, start time.Time, interval time.Duration) {
	for i := 0; i < n; i++ {
		q.Push([]byte{0xff, 0xd8, byte(i), byte(i >> 8), 0xff, 0xd9}, start.Add(time.Duration(i)*interval))
	}
}

// DirEntries returns the names in dir, failing the test on error other than absence.
func DirEntries(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
