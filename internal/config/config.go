// Package config loads worker configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultWorkerConcurrency = 10

	DefaultExtractionTimeout = 10 * time.Second
	DefaultInferenceTimeout  = 30 * time.Second
	DefaultOverallTimeout    = time.Minute

	DefaultPostgresHost    = "localhost"
	DefaultPostgresPort    = 5432
	DefaultPostgresUser    = "postgres"
	DefaultPostgresDB      = "lenderlens"
	DefaultPostgresSSLMode = "disable"

	DefaultKafkaTopic   = "classification-tasks"
	DefaultKafkaGroupID = "classification-workers"

	DefaultServiceName = "classification-worker"
)

// Postgres holds the connection settings for the primary datastore.
type Postgres struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0"`
	User     string `validate:"required"`
	Password string
	Database string `validate:"required"`
	SSLMode  string
}

// DSN renders the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// Kafka holds the work queue settings.
type Kafka struct {
	Brokers  []string `validate:"required,min=1"`
	Topic    string   `validate:"required"`
	GroupID  string   `validate:"required"`
	ClientID string
}

// Pipeline holds the stage and overall deadlines plus worker sizing.
type Pipeline struct {
	WorkerConcurrency int           `validate:"gt=0"`
	ExtractionTimeout time.Duration `validate:"gt=0"`
	InferenceTimeout  time.Duration `validate:"gt=0"`
	OverallTimeout    time.Duration `validate:"gt=0"`
}

// Worker is the full configuration for the classification worker process.
type Worker struct {
	ServiceName string `validate:"required"`

	DB       Postgres
	Queue    Kafka
	Pipeline Pipeline

	ExtractorURL    string `validate:"required,url"`
	InferenceURL    string `validate:"required,url"`
	InferenceAPIKey string `validate:"required"`

	OtelExporterEndpoint string
	OtelSamplingRatio    float64 `validate:"gte=0,lte=1"`
}

// LoadWorker reads the worker configuration from environment variables,
// applying defaults and validating the result.
func LoadWorker() (Worker, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Worker{
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		DB: Postgres{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Database: v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Queue: Kafka{
			Brokers:  splitAndTrim(v.GetString("KAFKA_BROKERS")),
			Topic:    v.GetString("KAFKA_TOPIC"),
			GroupID:  v.GetString("KAFKA_GROUP_ID"),
			ClientID: v.GetString("KAFKA_CLIENT_ID"),
		},
		Pipeline: Pipeline{
			WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
			ExtractionTimeout: time.Duration(v.GetInt("EXTRACTION_TIMEOUT_MS")) * time.Millisecond,
			InferenceTimeout:  time.Duration(v.GetInt("INFERENCE_TIMEOUT_MS")) * time.Millisecond,
			OverallTimeout:    time.Duration(v.GetInt("OVERALL_TIMEOUT_MS")) * time.Millisecond,
		},
		ExtractorURL:         v.GetString("EXTRACTOR_URL"),
		InferenceURL:         v.GetString("INFERENCE_URL"),
		InferenceAPIKey:      v.GetString("INFERENCE_API_KEY"),
		OtelExporterEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelSamplingRatio:    v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}

	if cfg.Queue.ClientID == "" {
		cfg.Queue.ClientID = cfg.ServiceName
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Worker{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OTEL_SERVICE_NAME", DefaultServiceName)

	v.SetDefault("WORKER_CONCURRENCY", DefaultWorkerConcurrency)
	v.SetDefault("EXTRACTION_TIMEOUT_MS", int(DefaultExtractionTimeout/time.Millisecond))
	v.SetDefault("INFERENCE_TIMEOUT_MS", int(DefaultInferenceTimeout/time.Millisecond))
	v.SetDefault("OVERALL_TIMEOUT_MS", int(DefaultOverallTimeout/time.Millisecond))

	v.SetDefault("POSTGRES_HOST", DefaultPostgresHost)
	v.SetDefault("POSTGRES_PORT", DefaultPostgresPort)
	v.SetDefault("POSTGRES_USER", DefaultPostgresUser)
	v.SetDefault("POSTGRES_DB", DefaultPostgresDB)
	v.SetDefault("POSTGRES_SSLMODE", DefaultPostgresSSLMode)

	v.SetDefault("KAFKA_TOPIC", DefaultKafkaTopic)
	v.SetDefault("KAFKA_GROUP_ID", DefaultKafkaGroupID)

	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
