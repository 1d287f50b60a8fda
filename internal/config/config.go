package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	RecordingsDir string `toml:"recordings_dir" env:"RECORDINGS_DIR"`
	ScratchDir    string `toml:"scratch_dir" env:"SCRATCH_DIR"`
	LogDir        string `toml:"log_dir" env:"LOG_DIR"`
	APIBind       string `toml:"api_bind" env:"API_BIND"`
	APIToken      string `toml:"api_token" env:"API_TOKEN"`
}

// Ingest contains configuration for the camera WebSocket endpoint.
type Ingest struct {
	Bind              string `toml:"bind" env:"INGEST_BIND"`
	Mode              string `toml:"mode" env:"INGEST_MODE"`
	ReadLimitBytes    int64  `toml:"read_limit_bytes"`
	GapWarningMillis  int    `toml:"gap_warning_ms"`
	RateWindowSeconds int    `toml:"rate_window_seconds"`
}

// Pipeline contains the buffering and assembly tunables.
type Pipeline struct {
	MinFramesForProcessing   int     `toml:"min_frames_for_processing" env:"MIN_FRAMES_FOR_PROCESSING"`
	TargetFPS                int     `toml:"target_fps" env:"TARGET_FPS"`
	FrameProcessingInterval  int     `toml:"frame_processing_interval_seconds" env:"FRAME_PROCESSING_INTERVAL"`
	MaxBufferSize            int     `toml:"max_buffer_size" env:"MAX_BUFFER_SIZE"`
	DurationCorrectionFactor float64 `toml:"duration_correction_factor"`
	MinPlausibleFPS          float64 `toml:"min_plausible_fps"`
	MaxPlausibleFPS          float64 `toml:"max_plausible_fps"`
	WriteBatchSize           int     `toml:"write_batch_size"`
	WriteAttempts            int     `toml:"write_attempts"`
	WriteBackoffMillis       int     `toml:"write_backoff_ms"`
}

// Encoder contains the external encoder invocation settings.
type Encoder struct {
	Binary          string `toml:"binary" env:"ENCODER_BINARY"`
	Codec           string `toml:"codec"`
	PixelFormat     string `toml:"pixel_format"`
	QualityPreset   string `toml:"quality_preset" env:"QUALITY_PRESET"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	OutputTailBytes int    `toml:"output_tail_bytes"`
}

// Metadata selects the recording metadata backend.
type Metadata struct {
	Driver      string `toml:"driver" env:"METADATA_DRIVER"`
	SQLitePath  string `toml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string `toml:"postgres_dsn" env:"POSTGRES_DSN"`
}

// Events configures publication of recording-created events.
type Events struct {
	Backend         string `toml:"backend" env:"EVENTS_BACKEND"`
	RedisAddr       string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisChannel    string `toml:"redis_channel"`
	AMQPURL         string `toml:"amqp_url" env:"AMQP_URL"`
	AMQPExchange    string `toml:"amqp_exchange"`
	AMQPRoutingKey  string `toml:"amqp_routing_key"`
	PublishTimeoutS int    `toml:"publish_timeout_seconds"`
}

// Archive configures optional upload of finished recordings to S3-compatible storage.
type Archive struct {
	Enabled   bool   `toml:"enabled" env:"ARCHIVE_ENABLED"`
	Endpoint  string `toml:"endpoint" env:"ARCHIVE_ENDPOINT"`
	AccessKey string `toml:"access_key" env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `toml:"secret_key" env:"ARCHIVE_SECRET_KEY"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Telemetry contains metrics and tracing switches.
type Telemetry struct {
	MetricsEnabled  bool   `toml:"metrics_enabled"`
	TracingEndpoint string `toml:"tracing_endpoint" env:"TRACING_ENDPOINT"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"LOG_FORMAT"`
	Level         string `toml:"level" env:"LOG_LEVEL"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for camrec.
//
// Configuration sections by subsystem:
//   - Paths: recordings root, scratch area, logs and the HTTP bind address
//   - Ingest: camera WebSocket endpoint and relay mode
//   - Pipeline: frame buffer bounds and assembly cadence
//   - Encoder: ffmpeg invocation
//   - Metadata: recording metadata store (sqlite or postgres)
//   - Events: recording-created notifications (redis or amqp)
//   - Archive: object storage copy of finished recordings
//   - Telemetry: prometheus metrics and OTLP tracing
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths" envPrefix:"CAMREC_"`
	Ingest    Ingest    `toml:"ingest" envPrefix:"CAMREC_"`
	Pipeline  Pipeline  `toml:"pipeline" envPrefix:"CAMREC_"`
	Encoder   Encoder   `toml:"encoder" envPrefix:"CAMREC_"`
	Metadata  Metadata  `toml:"metadata" envPrefix:"CAMREC_"`
	Events    Events    `toml:"events" envPrefix:"CAMREC_"`
	Archive   Archive   `toml:"archive" envPrefix:"CAMREC_"`
	Telemetry Telemetry `toml:"telemetry" envPrefix:"CAMREC_"`
	Logging   Logging   `toml:"logging" envPrefix:"CAMREC_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/camrec/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. CAMREC_* environment variables override file values.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("camrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RecordingsDir, c.Paths.ScratchDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RelayOnly reports whether the ingest endpoint only fans frames out to viewers.
func (c *Config) RelayOnly() bool {
	return c.Ingest.Mode == IngestModeRelay
}

// ProcessingInterval returns the assembly cadence.
func (c *Config) ProcessingInterval() time.Duration {
	return time.Duration(c.Pipeline.FrameProcessingInterval) * time.Second
}

// EncoderTimeout returns the maximum wall time of a single encoder invocation.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

// WriteBackoff returns the pause between frame write attempts.
func (c *Config) WriteBackoff() time.Duration {
	return time.Duration(c.Pipeline.WriteBackoffMillis) * time.Millisecond
}

// GapWarning returns the inter-frame gap that triggers a warning.
func (c *Config) GapWarning() time.Duration {
	return time.Duration(c.Ingest.GapWarningMillis) * time.Millisecond
}

// RateWindow returns the ingestion rate sampling window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Ingest.RateWindowSeconds) * time.Second
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "camrecd.lock")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "camrecd.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
