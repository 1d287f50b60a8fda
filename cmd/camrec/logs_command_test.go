package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camrec/internal/testsupport"
)

func TestLogsPrintsFilteredTail(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(t.TempDir(), "camrec.toml")
	writeTestConfig(t, path, cfg, "")

	content := strings.Join([]string{
		"INFO camrec daemon started",
		"WARN dropping slow viewer",
		"INFO recording committed",
		"INFO ingest rate",
	}, "\n") + "\n"
	if err := os.WriteFile(cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, "", path)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "INFO recording committed\nINFO ingest rate\n" {
		t.Fatalf("unexpected tail %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--grep", "WARN"}, "", path)
	if err != nil {
		t.Fatalf("logs --grep: %v", err)
	}
	if out != "WARN dropping slow viewer\n" {
		t.Fatalf("unexpected filtered output %q", out)
	}
}
