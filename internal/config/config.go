package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPorts is the fixed set of measurement ports a collector listens on.
var DefaultPorts = []uint16{2100, 2110, 2120, 2130, 2140, 2150, 2160, 2170, 2180}

const (
	OverflowDropNew    = "drop-new"
	OverflowDropOldest = "drop-oldest"
)

// CollectorConfig holds the configuration for the per-node delay collector.
type CollectorConfig struct {
	Interface string   `yaml:"interface"`
	Address   string   `yaml:"address"` // Overrides the interface lookup when set.
	PodID     string   `yaml:"pod_id"`  // Derived from the address when empty.
	Ports     []uint16 `yaml:"ports"`
	// ReceiveBufferBytes is requested via SO_RCVBUF on every socket.
	ReceiveBufferBytes int    `yaml:"receive_buffer_bytes"`
	MaxDatagramSize    int    `yaml:"max_datagram_size"`
	OutputDir          string `yaml:"output_dir"`
	// BufferCapacity bounds the in-memory record buffer. Zero means unbounded.
	BufferCapacity     int    `yaml:"buffer_capacity"`
	OverflowPolicy     string `yaml:"overflow_policy"`
	CheckpointInterval string `yaml:"checkpoint_interval"`
}

// CheckpointEvery returns the parsed checkpoint interval, zero when disabled.
func (c CollectorConfig) CheckpointEvery() (time.Duration, error) {
	if c.CheckpointInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CheckpointInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid checkpoint_interval: %w", err)
	}
	// The collector loop waits in whole milliseconds.
	if d != 0 && d < time.Millisecond {
		return 0, fmt.Errorf("checkpoint_interval '%s' must be at least 1ms", c.CheckpointInterval)
	}
	return d, nil
}

// PublisherConfig controls live publishing of accepted records to NATS.
type PublisherConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ArchiveConfig controls how records received in subscriber mode are archived.
type ArchiveConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	Encoding          string `yaml:"encoding"` // "text" or "gob"
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
}

// HealthConfig controls the collector's gRPC health endpoint.
type HealthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// AggregatorConfig holds the configuration for run aggregation.
type AggregatorConfig struct {
	NumWorkers int `yaml:"num_workers"`
}

// ClickHouseConfig holds connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single run-statistics writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig holds the configuration for the statistics API server.
type APIConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	StatisticsDir string `yaml:"statistics_dir"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Collector  CollectorConfig  `yaml:"collector"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Health     HealthConfig     `yaml:"health"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Writers    []WriterDef      `yaml:"writers"`
	API        APIConfig        `yaml:"api"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Collector.Interface == "" {
		c.Collector.Interface = "eth0"
	}
	if len(c.Collector.Ports) == 0 {
		c.Collector.Ports = append([]uint16(nil), DefaultPorts...)
	}
	if c.Collector.ReceiveBufferBytes == 0 {
		c.Collector.ReceiveBufferBytes = 1 << 30
	}
	if c.Collector.MaxDatagramSize == 0 {
		c.Collector.MaxDatagramSize = 1500
	}
	if c.Collector.OutputDir == "" {
		c.Collector.OutputDir = "delay-entries"
	}
	if c.Collector.OverflowPolicy == "" {
		c.Collector.OverflowPolicy = OverflowDropNew
	}
	if c.Publisher.Subject == "" {
		c.Publisher.Subject = "delaybench.records"
	}
	if c.Publisher.NATSURL == "" {
		c.Publisher.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Archive.Path == "" {
		c.Archive.Path = "archive"
	}
	if c.Archive.Encoding == "" {
		c.Archive.Encoding = "text"
	}
	if c.Health.ListenAddr == "" {
		c.Health.ListenAddr = ":50051"
	}
	if c.Aggregator.NumWorkers <= 0 {
		c.Aggregator.NumWorkers = runtime.NumCPU()
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.StatisticsDir == "" {
		c.API.StatisticsDir = "statistics"
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Collector.OverflowPolicy {
	case OverflowDropNew, OverflowDropOldest:
	default:
		return fmt.Errorf("unknown overflow_policy '%s'", c.Collector.OverflowPolicy)
	}
	if c.Collector.BufferCapacity < 0 {
		return fmt.Errorf("buffer_capacity must not be negative")
	}
	if c.Collector.MaxDatagramSize < 24 {
		return fmt.Errorf("max_datagram_size must hold at least one 24-byte record")
	}
	if _, err := c.Collector.CheckpointEvery(); err != nil {
		return err
	}
	switch c.Archive.Encoding {
	case "text", "gob":
	default:
		return fmt.Errorf("unknown archive encoding '%s'", c.Archive.Encoding)
	}
	for _, w := range c.Writers {
		switch w.Type {
		case "json", "clickhouse":
		default:
			return fmt.Errorf("unknown writer type '%s'", w.Type)
		}
	}
	return nil
}
