package encoder_test

import (
	"testing"

	"camrec/internal/encoder"
)

func TestBuildManifestSortsAndQuotes(t *testing.T) {
	got := string(encoder.BuildManifest([]string{
		"/s/proc_1/frame_000002.jpg",
		"/s/proc_1/frame_000000.jpg",
		"/s/it's/frame_000001.jpg",
	}))
	want := "file '/s/it'\\''s/frame_000001.jpg'\n" +
		"file '/s/proc_1/frame_000000.jpg'\n" +
		"file '/s/proc_1/frame_000002.jpg'"
	if got != want {
		t.Fatalf("unexpected manifest:\n%s", got)
	}
}

func TestBuildManifestEmpty(t *testing.T) {
	if got := encoder.BuildManifest(nil); len(got) != 0 {
		t.Fatalf("expected empty manifest, got %q", got)
	}
}
