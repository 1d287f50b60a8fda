package config

const (
	defaultRecordingsDir            = "~/.local/share/camrec/recordings"
	defaultLogDir                   = "~/.local/share/camrec/logs"
	defaultAPIBind                  = ":8000"
	defaultIngestBind               = ":8888"
	defaultReadLimitBytes           = 8 << 20
	defaultGapWarningMillis         = 500
	defaultRateWindowSeconds        = 5
	defaultMinFramesForProcessing   = 300
	defaultTargetFPS                = 15
	defaultProcessingIntervalSecs   = 15
	defaultMaxBufferSize            = 3000
	defaultDurationCorrectionFactor = 3.2
	defaultMinPlausibleFPS          = 5
	defaultMaxPlausibleFPS          = 30
	defaultWriteBatchSize           = 10
	defaultWriteAttempts            = 3
	defaultWriteBackoffMillis       = 100
	defaultEncoderBinary            = "ffmpeg"
	defaultEncoderCodec             = "libx264"
	defaultPixelFormat              = "yuv420p"
	defaultQualityPreset            = "medium"
	defaultEncoderTimeoutSeconds    = 600
	defaultOutputTailBytes          = 16 << 10
	defaultRedisChannel             = "camrec.recordings"
	defaultAMQPExchange             = "camrec"
	defaultAMQPRoutingKey           = "recording.created"
	defaultPublishTimeoutSeconds    = 5
	defaultArchiveBucket            = "recordings"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
)

// Ingest modes.
const (
	IngestModeRecord = "record"
	IngestModeRelay  = "relay"
)

// Metadata drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event backends.
const (
	EventsNone  = "none"
	EventsRedis = "redis"
	EventsAMQP  = "amqp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RecordingsDir: defaultRecordingsDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		Ingest: Ingest{
			Bind:              defaultIngestBind,
			Mode:              IngestModeRecord,
			ReadLimitBytes:    defaultReadLimitBytes,
			GapWarningMillis:  defaultGapWarningMillis,
			RateWindowSeconds: defaultRateWindowSeconds,
		},
		Pipeline: Pipeline{
			MinFramesForProcessing:   defaultMinFramesForProcessing,
			TargetFPS:                defaultTargetFPS,
			FrameProcessingInterval:  defaultProcessingIntervalSecs,
			MaxBufferSize:            defaultMaxBufferSize,
			DurationCorrectionFactor: defaultDurationCorrectionFactor,
			MinPlausibleFPS:          defaultMinPlausibleFPS,
			MaxPlausibleFPS:          defaultMaxPlausibleFPS,
			WriteBatchSize:           defaultWriteBatchSize,
			WriteAttempts:            defaultWriteAttempts,
			WriteBackoffMillis:       defaultWriteBackoffMillis,
		},
		Encoder: Encoder{
			Binary:          defaultEncoderBinary,
			Codec:           defaultEncoderCodec,
			PixelFormat:     defaultPixelFormat,
			QualityPreset:   defaultQualityPreset,
			TimeoutSeconds:  defaultEncoderTimeoutSeconds,
			OutputTailBytes: defaultOutputTailBytes,
		},
		Metadata: Metadata{
			Driver: DriverSQLite,
		},
		Events: Events{
			Backend:         EventsNone,
			RedisChannel:    defaultRedisChannel,
			AMQPExchange:    defaultAMQPExchange,
			AMQPRoutingKey:  defaultAMQPRoutingKey,
			PublishTimeoutS: defaultPublishTimeoutSeconds,
		},
		Archive: Archive{
			Bucket: defaultArchiveBucket,
		},
		Telemetry: Telemetry{
			MetricsEnabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
