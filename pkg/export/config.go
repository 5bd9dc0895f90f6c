package export

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const (
	DefaultFlushTimeout   = 15 * time.Second
	DefaultPublishTimeout = 10 * time.Second
)

// Config holds the Kafka export settings. Export is off unless enabled.
type Config struct {
	Enabled           bool          `env:"EXPORT_ENABLED"                        envDefault:"false"`          // Publish state changes to Kafka
	BootstrapServers  string        `env:"EXPORT_KAFKA_BOOTSTRAP_SERVERS"        envDefault:"localhost:9092"` // Kafka broker addresses
	Topic             string        `env:"EXPORT_KAFKA_TOPIC"                    envDefault:"chain-states"`   // Destination topic
	Partitions        int           `env:"EXPORT_KAFKA_TOPIC_PARTITIONS"         envDefault:"1"`              // Partitions when the topic is created
	ReplicationFactor int           `env:"EXPORT_KAFKA_TOPIC_REPLICATION_FACTOR" envDefault:"1"`              // Replication factor when the topic is created
	ClientID          string        `env:"EXPORT_KAFKA_CLIENT_ID"                envDefault:"chain-monitor"`  // client.id reported to the brokers
	PublishTimeout    time.Duration `env:"EXPORT_KAFKA_PUBLISH_TIMEOUT"          envDefault:"10s"`            // Max wait for one delivery receipt
	FlushTimeout      time.Duration `env:"EXPORT_KAFKA_FLUSH_TIMEOUT"            envDefault:"15s"`            // Max flush time on shutdown
	EnableLogs        bool          `env:"EXPORT_KAFKA_ENABLE_LOGS"              envDefault:"false"`          // Forward librdkafka logs
	IncludeSnapshot   bool          `env:"EXPORT_INCLUDE_SNAPSHOT"               envDefault:"true"`           // Replay current states on start
}

// LoadConfig loads the export configuration from environment variables.
func LoadConfig() Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger, logErr := zap.NewProduction()
		if logErr == nil {
			logger.Sugar().Errorw("failed to parse export config", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "failed to parse export config: %v\n", err)
		}
		os.Exit(1)
	}
	return cfg
}

// Validate checks the settings needed when export is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BootstrapServers == "" {
		return errors.New("export bootstrap servers cannot be empty")
	}
	if err := c.TopicConfig().Validate(); err != nil {
		return err
	}
	if c.PublishTimeout < 0 || c.FlushTimeout < 0 {
		return errors.New("export timeouts must not be negative")
	}
	return nil
}

// WithDefaults fills zero timeouts.
func (c Config) WithDefaults() Config {
	if c.PublishTimeout == 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	return c
}

// TopicConfig describes the topic to bootstrap.
func (c Config) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}

// ProducerConfig builds the librdkafka producer settings.
func (c Config) ProducerConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":      c.BootstrapServers,
		"client.id":              c.ClientID,
		"acks":                   "all",
		"enable.idempotence":     true,
		"go.logs.channel.enable": c.EnableLogs,
	}
}

// AdminConfig builds the admin client settings.
func (c Config) AdminConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": c.BootstrapServers,
		"client.id":         c.ClientID,
	}
}
