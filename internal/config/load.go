package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PathEnv names the variable Load reads the config file path from.
const PathEnv = "HORIZON_CONFIG"

// Load reads the file named by HORIZON_CONFIG, or only defaults when it is
// unset, then applies environment overrides and validates.
func Load() (*Config, error) {
	cfg, err := LoadNoValidate()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadNoValidate is Load without validation, for tools that only need a
// subset of the configuration.
func LoadNoValidate() (*Config, error) {
	if path := os.Getenv(PathEnv); path != "" {
		return LoadFromPathNoValidate(path)
	}
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults, then applies
// environment overrides and validates.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := LoadFromPathNoValidate(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPathNoValidate is LoadFromPath without validation.
func LoadFromPathNoValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// applyEnv overwrites every field carrying an env tag whose variable is set.
func applyEnv(cfg *Config) error {
	return applyEnvTo(reflect.ValueOf(cfg).Elem())
}

func applyEnvTo(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnvTo(field); err != nil {
				return err
			}
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("config: %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Archive.ControlEndpoint == "" {
		return errors.New("config: archive.controlEndpoint is required")
	}
	if c.Archive.RequestTimeoutMs <= 0 {
		return fmt.Errorf("config: archive.requestTimeoutMs must be positive, got %d", c.Archive.RequestTimeoutMs)
	}
	if c.Retention.IntervalMs <= 0 {
		return fmt.Errorf("config: retention.intervalMs must be positive, got %d", c.Retention.IntervalMs)
	}
	if c.Retention.ReplayStopGraceMs < 0 {
		return fmt.Errorf("config: retention.replayStopGraceMs must not be negative, got %d", c.Retention.ReplayStopGraceMs)
	}
	if c.Retention.RPCTimeoutMs <= 0 {
		return fmt.Errorf("config: retention.rpcTimeoutMs must be positive, got %d", c.Retention.RPCTimeoutMs)
	}
	if c.Metadata.OxiaEndpoint != "" {
		if c.Metadata.Namespace == "" {
			return errors.New("config: metadata.namespace is required with an oxia endpoint")
		}
		if c.Archive.ArchiveID == "" {
			return errors.New("config: archive.archiveId is required with an oxia endpoint")
		}
	}
	if c.Events.PublishTimeoutMs <= 0 {
		return fmt.Errorf("config: events.publishTimeoutMs must be positive, got %d", c.Events.PublishTimeoutMs)
	}
	if c.Events.KafkaBrokers != "" && c.Events.Topic == "" {
		return errors.New("config: events.topic is required with kafka brokers")
	}
	if c.Events.CreateTopic && (c.Events.TopicPartitions <= 0 || c.Events.TopicReplicationFactor <= 0) {
		return fmt.Errorf("config: events.topicPartitions and events.topicReplicationFactor must be positive, got %d and %d",
			c.Events.TopicPartitions, c.Events.TopicReplicationFactor)
	}
	if c.Audit.Bucket != "" {
		switch c.Audit.Format {
		case "parquet", "jsonl":
		default:
			return fmt.Errorf("config: unknown audit.format %q", c.Audit.Format)
		}
		switch c.Audit.Compression {
		case "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return fmt.Errorf("config: unknown audit.compression %q", c.Audit.Compression)
		}
		if c.Audit.BatchSize <= 0 {
			return fmt.Errorf("config: audit.batchSize must be positive, got %d", c.Audit.BatchSize)
		}
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown observability.logLevel %q", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown observability.logFormat %q", c.Observability.LogFormat)
	}
	return nil
}

// Brokers splits the Kafka seed list.
func (c EventsConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
