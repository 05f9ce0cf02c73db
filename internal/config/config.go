// Package config provides configuration loading and validation for Horizon.
// Supports YAML files with environment variable overrides.
package config

// Config holds all configuration for a Horizon retention controller.
type Config struct {
	Archive       ArchiveConfig       `yaml:"archive"`
	Retention     RetentionConfig     `yaml:"retention"`
	Counters      CountersConfig      `yaml:"counters"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	Events        EventsConfig        `yaml:"events"`
	Replay        ReplayConfig        `yaml:"replay"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ArchiveConfig struct {
	ControlEndpoint  string `yaml:"controlEndpoint" env:"HORIZON_ARCHIVE_ENDPOINT"`
	ArchiveID        string `yaml:"archiveId" env:"HORIZON_ARCHIVE_ID"`
	RequestTimeoutMs int64  `yaml:"requestTimeoutMs" env:"HORIZON_ARCHIVE_REQUEST_TIMEOUT_MS"`
}

type RetentionConfig struct {
	IntervalMs        int64 `yaml:"intervalMs" env:"HORIZON_RETENTION_INTERVAL_MS"`
	ReplayStopGraceMs int64 `yaml:"replayStopGraceMs" env:"HORIZON_RETENTION_REPLAY_STOP_GRACE_MS"`
	RPCTimeoutMs      int64 `yaml:"rpcTimeoutMs" env:"HORIZON_RETENTION_RPC_TIMEOUT_MS"`
}

type CountersConfig struct {
	// Path is the counters file shared with the archive host. Empty
	// disables counter reporting.
	Path string `yaml:"path" env:"HORIZON_COUNTERS_PATH"`
}

type MetadataConfig struct {
	// OxiaEndpoint enables the retention lease when set.
	OxiaEndpoint string `yaml:"oxiaEndpoint" env:"HORIZON_OXIA_ENDPOINT"`
	Namespace    string `yaml:"namespace" env:"HORIZON_OXIA_NAMESPACE"`
}

type EventsConfig struct {
	// KafkaBrokers is a comma separated seed list. Empty logs events
	// instead of producing them.
	KafkaBrokers string `yaml:"kafkaBrokers" env:"HORIZON_EVENTS_KAFKA_BROKERS"`
	Topic        string `yaml:"topic" env:"HORIZON_EVENTS_TOPIC"`

	// CreateTopic creates Topic at startup when it does not exist.
	CreateTopic            bool  `yaml:"createTopic" env:"HORIZON_EVENTS_CREATE_TOPIC"`
	TopicPartitions        int32 `yaml:"topicPartitions" env:"HORIZON_EVENTS_TOPIC_PARTITIONS"`
	TopicReplicationFactor int16 `yaml:"topicReplicationFactor" env:"HORIZON_EVENTS_TOPIC_REPLICATION_FACTOR"`

	// PublishTimeoutMs bounds publishing one tick event, including Kafka
	// delivery retries.
	PublishTimeoutMs int64 `yaml:"publishTimeoutMs" env:"HORIZON_EVENTS_PUBLISH_TIMEOUT_MS"`
}

type ReplayConfig struct {
	Channel        string `yaml:"channel" env:"HORIZON_REPLAY_CHANNEL"`
	StreamID       int32  `yaml:"streamId" env:"HORIZON_REPLAY_STREAM_ID"`
	ReplayChannel  string `yaml:"replayChannel" env:"HORIZON_REPLAY_OUT_CHANNEL"`
	ReplayStreamID int32  `yaml:"replayStreamId" env:"HORIZON_REPLAY_OUT_STREAM_ID"`
}

// AuditConfig configures the object store archive of tick events. An
// empty Bucket disables it.
type AuditConfig struct {
	Bucket       string `yaml:"bucket" env:"HORIZON_AUDIT_BUCKET"`
	Region       string `yaml:"region" env:"HORIZON_AUDIT_REGION"`
	Endpoint     string `yaml:"endpoint" env:"HORIZON_AUDIT_ENDPOINT"`
	AccessKey    string `yaml:"accessKey" env:"HORIZON_AUDIT_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"HORIZON_AUDIT_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"HORIZON_AUDIT_USE_PATH_STYLE"`
	Prefix       string `yaml:"prefix" env:"HORIZON_AUDIT_PREFIX"`

	// Format is "parquet" or "jsonl".
	Format string `yaml:"format" env:"HORIZON_AUDIT_FORMAT"`

	// Compression applies to jsonl objects: none, gzip, snappy, lz4 or zstd.
	Compression string `yaml:"compression" env:"HORIZON_AUDIT_COMPRESSION"`

	// BatchSize is the number of events per object.
	BatchSize int `yaml:"batchSize" env:"HORIZON_AUDIT_BATCH_SIZE"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"HORIZON_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"HORIZON_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"HORIZON_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Archive: ArchiveConfig{
			ControlEndpoint:  "localhost:8010",
			ArchiveID:        "default",
			RequestTimeoutMs: 10000,
		},
		Retention: RetentionConfig{
			IntervalMs:        5000,
			ReplayStopGraceMs: 1000,
			RPCTimeoutMs:      5000,
		},
		Metadata: MetadataConfig{
			Namespace: "default",
		},
		Events: EventsConfig{
			Topic:                  "horizon.retention",
			TopicPartitions:        1,
			TopicReplicationFactor: 1,
			PublishTimeoutMs:       5000,
		},
		Replay: ReplayConfig{
			Channel:        "aeron:udp?endpoint=localhost:20121",
			StreamID:       1001,
			ReplayChannel:  "aeron:udp?endpoint=localhost:20122",
			ReplayStreamID: 1002,
		},
		Audit: AuditConfig{
			Region:      "us-east-1",
			Prefix:      "horizon/events",
			Format:      "parquet",
			Compression: "zstd",
			BatchSize:   100,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}
