package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/daemon"
	"camrec/internal/encoder"
	"camrec/internal/frames"
	"camrec/internal/ingest"
	"camrec/internal/logging"
	"camrec/internal/pipeline"
	"camrec/internal/recordings"
	"camrec/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *recordings.SQLiteStore
	daemon     *daemon.Daemon
	pipeline   *pipeline.Pipeline
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithEncoderScript("echo ffmpeg version 6.1"))
	configPath := filepath.Join(homeDir, ".config", "camrec", "config.toml")
	writeTestConfig(t, configPath, cfg, "")

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	q := frames.NewQueue(cfg.Pipeline.MaxBufferSize)
	asm := assembly.New(q, encoder.FFmpeg{Binary: cfg.Encoder.Binary}, store, assembly.OptionsFromConfig(cfg), logger, nil)
	p := pipeline.New(q, asm, pipeline.OptionsFromConfig(cfg), logger, nil)

	d, err := daemon.New(cfg, logger, daemon.Components{
		Pipeline:  p,
		Scheduler: pipeline.NewScheduler(asm, cfg.ProcessingInterval(), logger),
		Hub:       ingest.NewHub(logger, nil),
		Sink:      store,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		pipeline:   p,
		configPath: configPath,
		apiAddr:    d.APIAddr(),
	}
}

// unreachableAPI points the CLI at a port nothing listens on.
const unreachableAPI = "127.0.0.1:1"

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, token string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
recordings_dir = %q
scratch_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"
api_token = %q

[encoder]
binary = %q

[metadata]
sqlite_path = %q
`,
		cfg.Paths.RecordingsDir,
		cfg.Paths.ScratchDir,
		cfg.Paths.LogDir,
		token,
		cfg.Encoder.Binary,
		cfg.Metadata.SQLitePath,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
