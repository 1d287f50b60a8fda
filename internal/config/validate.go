package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIngest() error {
	switch c.Ingest.Mode {
	case IngestModeRecord, IngestModeRelay:
	default:
		return fmt.Errorf("ingest.mode: unsupported value %q (expected %q or %q)", c.Ingest.Mode, IngestModeRecord, IngestModeRelay)
	}
	if c.Ingest.GapWarningMillis < 0 {
		return errors.New("ingest.gap_warning_ms must not be negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if err := ensurePositiveMap(map[string]int{
		"pipeline.min_frames_for_processing":         p.MinFramesForProcessing,
		"pipeline.target_fps":                        p.TargetFPS,
		"pipeline.frame_processing_interval_seconds": p.FrameProcessingInterval,
		"pipeline.max_buffer_size":                   p.MaxBufferSize,
		"pipeline.write_batch_size":                  p.WriteBatchSize,
		"pipeline.write_attempts":                    p.WriteAttempts,
	}); err != nil {
		return err
	}
	if p.WriteBackoffMillis < 0 {
		return errors.New("pipeline.write_backoff_ms must not be negative")
	}
	if p.MinFramesForProcessing > p.MaxBufferSize {
		return errors.New("pipeline.min_frames_for_processing must not exceed pipeline.max_buffer_size")
	}
	if p.DurationCorrectionFactor <= 0 {
		return errors.New("pipeline.duration_correction_factor must be positive")
	}
	if p.MinPlausibleFPS <= 0 || p.MaxPlausibleFPS < p.MinPlausibleFPS {
		return errors.New("pipeline.min_plausible_fps must be positive and not exceed pipeline.max_plausible_fps")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.TimeoutSeconds < 0 {
		return errors.New("encoder.timeout_seconds must not be negative (0 disables the timeout)")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Metadata.PostgresDSN == "" {
			return errors.New("metadata.postgres_dsn must be set when metadata.driver is postgres")
		}
		return nil
	default:
		return fmt.Errorf("metadata.driver: unsupported value %q", c.Metadata.Driver)
	}
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case EventsNone:
	case EventsRedis:
		if strings.TrimSpace(c.Events.RedisAddr) == "" {
			return errors.New("events.redis_addr must be set when events.backend is redis")
		}
	case EventsAMQP:
		if strings.TrimSpace(c.Events.AMQPURL) == "" {
			return errors.New("events.amqp_url must be set when events.backend is amqp")
		}
	default:
		return fmt.Errorf("events.backend: unsupported value %q", c.Events.Backend)
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Archive.Endpoint) == "" {
		return errors.New("archive.endpoint must be set when archive.enabled is true")
	}
	if strings.TrimSpace(c.Archive.Bucket) == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
