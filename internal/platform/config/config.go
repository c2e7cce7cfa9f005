// Package config builds each process's configuration once at startup. There
// are no ambient globals: main constructs a Config and hands it down.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// TLS holds the paths to broker and database TLS material. All three may be
// empty in plaintext development setups.
type TLS struct {
	CAPath   string `env:"CA_PATH"`
	CertPath string `env:"CERT_PATH"`
	KeyPath  string `env:"KEY_PATH"`
}

// Rabbit is the intake queue broker connection surface.
type Rabbit struct {
	Host     string `env:"RMQ_HOST,required"`
	Port     int    `env:"RMQ_PORT,required"`
	User     string `env:"RMQ_USER,required"`
	Password string `env:"RMQ_PW,required"`
}

// URL renders the AMQP dial string. TLS is decided by the dialer, not the
// scheme, so the scheme follows whether a CA is configured.
func (r Rabbit) URL(withTLS bool) string {
	scheme := "amqp"
	if withTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/", scheme, r.User, r.Password, r.Host, r.Port)
}

// Database is the shared connection surface of the shard stores; each shard
// differs only by database name.
type Database struct {
	Host     string `env:"DB_HOST,required"`
	Port     int    `env:"DB_PORT,required"`
	User     string `env:"DB_USER,required"`
	Password string `env:"DB_PW,required"`
}

// DSN renders a lib/pq connection string for one shard's database.
func (d Database) DSN(dbname, caPath string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		d.Host, d.Port, d.User, d.Password, dbname)
	if caPath != "" {
		return dsn + " sslmode=verify-full sslrootcert=" + caPath
	}
	return dsn + " sslmode=disable"
}

// Telemetry configures the OTLP metric export; an empty endpoint disables it.
type Telemetry struct {
	Endpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ExportInterval time.Duration `env:"OTEL_EXPORT_INTERVAL,default=30s"`
	ReleaseVersion string        `env:"release_version"`
}

// Logging carries the only defaulted knob in the whole surface: log level.
type Logging struct {
	Level     string `env:"log_level,default=info"`
	Directory string `env:"log_directory"`
}

// Router configures the intake-consumer/shard-router process.
type Router struct {
	Rabbit    Rabbit
	Database  Database
	TLS       TLS
	Telemetry Telemetry
	Logging   Logging

	KafkaHost string `env:"KAFKA_HOST,required"`

	DBNameS1 string `env:"DB_NAME_S1,required"`
	DBNameS2 string `env:"DB_NAME_S2,required"`
	DBNameS3 string `env:"DB_NAME_S3,required"`

	IntakeQueue     string `env:"INTAKE_QUEUE,default=upd_facial_data_flight"`
	DeadLetterQueue string `env:"DEAD_LETTER_QUEUE,default=upd_facial_data_flight.dead"`
	TopicPrefix     string `env:"INGEST_TOPIC_PREFIX,default=ingest_facial_data_"`

	RedisURL            string        `env:"REDIS_URL,required"`
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS,default=5"`
	ClaimTTL            time.Duration `env:"FLIGHT_CLAIM_TTL,default=10m"`

	AdminAddr string `env:"ADMIN_ADDR,default=:8080"`
}

// Worker configures one shard's ingest worker process.
type Worker struct {
	Database  Database
	TLS       TLS
	Telemetry Telemetry
	Logging   Logging

	ShardID   string `env:"SHARD_ID,required"`
	KafkaHost string `env:"KAFKA_HOST,required"`
	DBName    string `env:"DB_NAME,required"`

	TopicPrefix string `env:"INGEST_TOPIC_PREFIX,default=ingest_facial_data_"`

	AdminAddr string `env:"ADMIN_ADDR,default=:8080"`
}

// RouterFromEnv decodes the router process configuration.
func RouterFromEnv(ctx context.Context) (Router, error) {
	var cfg Router
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Router{}, fmt.Errorf("load router config: %w", err)
	}
	return cfg, nil
}

// WorkerFromEnv decodes the shard worker process configuration.
func WorkerFromEnv(ctx context.Context) (Worker, error) {
	var cfg Worker
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Worker{}, fmt.Errorf("load worker config: %w", err)
	}
	return cfg, nil
}
