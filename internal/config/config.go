package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	Kafka  KafkaConfig
	Queue  QueueConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name           string `envconfig:"DB_NAME" default:"loyalty_db"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns       int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns       int    `envconfig:"DB_MIN_CONNS" default:"5"`
	ConnectRetries int    `envconfig:"DB_CONNECT_RETRIES" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.sslMode())
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	if c.MinConns > 0 {
		dsn += fmt.Sprintf("&pool_min_conns=%d", c.MinConns)
	}
	return dsn
}

func (c DBConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// KafkaConfig controls publishing activity events to Kafka.
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"loyalty.activity"`
}

// QueueConfig controls the River job queue that persists activities.
// When disabled, activities are written synchronously after commit.
type QueueConfig struct {
	Enabled    bool `envconfig:"QUEUE_ENABLED" default:"true"`
	MaxWorkers int  `envconfig:"QUEUE_MAX_WORKERS" default:"10"`
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS must not be empty when KAFKA_ENABLED is set")
		}
		if c.Kafka.Topic == "" {
			return errors.New("KAFKA_TOPIC must not be empty when KAFKA_ENABLED is set")
		}
	}
	if c.Queue.Enabled && c.Queue.MaxWorkers < 1 {
		return fmt.Errorf("QUEUE_MAX_WORKERS must be at least 1, got %d", c.Queue.MaxWorkers)
	}
	return nil
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
