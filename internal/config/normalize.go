package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeEncoder()
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		c.Paths.RecordingsDir = defaultRecordingsDir
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = filepath.Join(c.Paths.RecordingsDir, "temp")
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeIngest() {
	c.Ingest.Bind = strings.TrimSpace(c.Ingest.Bind)
	if c.Ingest.Bind == "" {
		c.Ingest.Bind = defaultIngestBind
	}
	c.Ingest.Mode = strings.ToLower(strings.TrimSpace(c.Ingest.Mode))
	if c.Ingest.Mode == "" {
		c.Ingest.Mode = IngestModeRecord
	}
	if c.Ingest.ReadLimitBytes <= 0 {
		c.Ingest.ReadLimitBytes = defaultReadLimitBytes
	}
	if c.Ingest.RateWindowSeconds <= 0 {
		c.Ingest.RateWindowSeconds = defaultRateWindowSeconds
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Binary = strings.TrimSpace(c.Encoder.Binary)
	if c.Encoder.Binary == "" {
		c.Encoder.Binary = defaultEncoderBinary
	}
	c.Encoder.Codec = strings.TrimSpace(c.Encoder.Codec)
	if c.Encoder.Codec == "" {
		c.Encoder.Codec = defaultEncoderCodec
	}
	c.Encoder.PixelFormat = strings.TrimSpace(c.Encoder.PixelFormat)
	if c.Encoder.PixelFormat == "" {
		c.Encoder.PixelFormat = defaultPixelFormat
	}
	c.Encoder.QualityPreset = strings.ToLower(strings.TrimSpace(c.Encoder.QualityPreset))
	if c.Encoder.QualityPreset == "" {
		c.Encoder.QualityPreset = defaultQualityPreset
	}
	if c.Encoder.OutputTailBytes <= 0 {
		c.Encoder.OutputTailBytes = defaultOutputTailBytes
	}
}

func (c *Config) normalizeMetadata() error {
	c.Metadata.Driver = strings.ToLower(strings.TrimSpace(c.Metadata.Driver))
	if c.Metadata.Driver == "" {
		c.Metadata.Driver = DriverSQLite
	}
	if strings.TrimSpace(c.Metadata.SQLitePath) == "" {
		c.Metadata.SQLitePath = filepath.Join(c.Paths.LogDir, "recordings.db")
	}
	var err error
	if c.Metadata.SQLitePath, err = expandPath(c.Metadata.SQLitePath); err != nil {
		return fmt.Errorf("metadata.sqlite_path: %w", err)
	}
	c.Metadata.PostgresDSN = strings.TrimSpace(c.Metadata.PostgresDSN)
	return nil
}

func (c *Config) normalizeEvents() {
	c.Events.Backend = strings.ToLower(strings.TrimSpace(c.Events.Backend))
	if c.Events.Backend == "" {
		c.Events.Backend = EventsNone
	}
	if strings.TrimSpace(c.Events.RedisChannel) == "" {
		c.Events.RedisChannel = defaultRedisChannel
	}
	if strings.TrimSpace(c.Events.AMQPExchange) == "" {
		c.Events.AMQPExchange = defaultAMQPExchange
	}
	if strings.TrimSpace(c.Events.AMQPRoutingKey) == "" {
		c.Events.AMQPRoutingKey = defaultAMQPRoutingKey
	}
	if c.Events.PublishTimeoutS <= 0 {
		c.Events.PublishTimeoutS = defaultPublishTimeoutSeconds
	}
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
