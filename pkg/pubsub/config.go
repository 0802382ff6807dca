package pubsub

import (
	"fmt"
	"time"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string   `mapstructure:"brokers"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
	Topics     []string `mapstructure:"topics"` // created on startup when missing
}

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis", "kafka"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
	Buffer int         `mapstructure:"buffer"` // subscriber channel size
}

// RedisConfig holds Redis-specific configuration. The redis driver uses streams
// with a consumer group so queued events survive a consumer restart.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Group        string        `mapstructure:"group"`
	MaxLen       int64         `mapstructure:"max_len"`
	Block        time.Duration `mapstructure:"block"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "memory",
		Buffer: 100,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			Group:        "chat",
			MaxLen:       100000,
			Block:        2 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			GroupID:    "chat",
			Partitions: 4,
		},
	}
}

// NewPubSub creates a new PubSub instance based on the configuration.
func NewPubSub(cfg Config) (PubSub, error) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryPubSub(cfg.Buffer), nil
	case "kafka":
		return NewKafkaPubSub(cfg.Kafka, cfg.Buffer)
	case "redis":
		return NewRedisPubSub(cfg.Redis, cfg.Buffer)
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
