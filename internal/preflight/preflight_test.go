package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"camrec/internal/config"
	"camrec/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckScratchWritableLeavesNoProbe(t *testing.T) {
	dir := t.TempDir()
	result := CheckScratchWritable(dir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if entries := testsupport.DirEntries(t, dir); len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}
}

func TestCheckEncoderMissingBinary(t *testing.T) {
	result := CheckEncoder(context.Background(), filepath.Join(t.TempDir(), "no-ffmpeg"))
	if result.Passed {
		t.Fatal("expected failure for missing encoder")
	}
}

func TestSweepStaleScratch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"proc_1", "proc_2_1"} {
		testsupport.WriteFile(t, filepath.Join(dir, name, "frame_000000.jpg"), 8)
	}
	testsupport.WriteFile(t, filepath.Join(dir, "keep", "other.bin"), 8)
	testsupport.WriteFile(t, filepath.Join(dir, "proc_file"), 8)

	removed, err := SweepStaleScratch(dir)
	if err != nil {
		t.Fatalf("SweepStaleScratch: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed dirs, got %v", removed)
	}
	got := testsupport.DirEntries(t, dir)
	if len(got) != 2 || got[0] != "keep" || got[1] != "proc_file" {
		t.Fatalf("unexpected remaining entries %v", got)
	}

	removed, err = SweepStaleScratch(filepath.Join(dir, "missing"))
	if err != nil || removed != nil {
		t.Fatalf("missing dir should be a no-op, got %v %v", removed, err)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_RecordMode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEncoderScript("echo ffmpeg version test"))

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_RelayModeSkipsAssemblerChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.Mode = config.IngestModeRelay

	results := RunAll(context.Background(), cfg)
	if len(results) != 1 || results[0].Name != "Log directory" {
		t.Fatalf("unexpected relay results %+v", results)
	}
}
