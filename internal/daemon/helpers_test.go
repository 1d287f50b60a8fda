package daemon

import (
	"testing"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/encoder"
	"camrec/internal/frames"
	"camrec/internal/ingest"
	"camrec/internal/logging"
	"camrec/internal/metrics"
	"camrec/internal/pipeline"
	"camrec/internal/recordings"
	"camrec/internal/testsupport"
)

type testRig struct {
	cfg      *config.Config
	daemon   *Daemon
	pipeline *pipeline.Pipeline
	store    *recordings.SQLiteStore
}

func newTestRig(t *testing.T, opts ...testsupport.ConfigOption) *testRig {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	m := metrics.New()

	q := frames.NewQueue(cfg.Pipeline.MaxBufferSize)
	enc := encoder.FFmpeg{Binary: cfg.Encoder.Binary, Timeout: cfg.EncoderTimeout()}
	asm := assembly.New(q, enc, store, assembly.OptionsFromConfig(cfg), logger, m)
	p := pipeline.New(q, asm, pipeline.OptionsFromConfig(cfg), logger, m)

	d, err := New(cfg, logger, Components{
		Pipeline:  p,
		Scheduler: pipeline.NewScheduler(asm, cfg.ProcessingInterval(), logger),
		Hub:       ingest.NewHub(logger, m),
		Sink:      store,
		Metrics:   m,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return &testRig{cfg: cfg, daemon: d, pipeline: p, store: store}
}
