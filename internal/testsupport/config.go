package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"camrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "recordings", "temp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Ingest.Bind = "127.0.0.1:0"
	cfgVal.Metadata.SQLitePath = filepath.Join(base, "logs", "recordings.db")
	cfgVal.Telemetry.MetricsEnabled = false
	cfgVal.Pipeline.WriteBackoffMillis = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMinFrames overrides the assembly threshold.
func WithMinFrames(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MinFramesForProcessing = n
	}
}

// WithEncoderScript installs an executable shell script as the configured
// encoder binary. The body runs under /bin/sh with the ffmpeg arguments.
func WithEncoderScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoder.Binary = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", body)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WriteScript writes an executable /bin/sh script into dir and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// FakeFFmpegBody is a script body that behaves like a successful ffmpeg run:
// it writes a small file at the final argument (the output path).
const FakeFFmpegBody = `for last; do :; done
printf 'fake-mp4-payload' > "$last"
`

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
