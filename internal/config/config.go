package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Signer    SignerConfig
	Scheduler SchedulerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// SignerConfig drives signed URL generation and the sweeps around it.
type SignerConfig struct {
	// SignedURLTTL is deliberately longer than the daily regeneration cadence
	// so URLs never lapse between sweeps.
	SignedURLTTL     time.Duration `envconfig:"SIGNER_URL_TTL" default:"25h"`
	RefreshWindow    time.Duration `envconfig:"SIGNER_REFRESH_WINDOW" default:"2h"`
	BackoffBase      time.Duration `envconfig:"SIGNER_BACKOFF_BASE" default:"60s"`
	EnqueueDelay     time.Duration `envconfig:"SIGNER_ENQUEUE_DELAY" default:"5s"`
	StaggerInterval  time.Duration `envconfig:"SIGNER_STAGGER_INTERVAL" default:"2s"`
	EnrollmentSample int           `envconfig:"SIGNER_ENROLLMENT_SAMPLE" default:"100"`
	AlertThreshold   int           `envconfig:"SIGNER_ALERT_THRESHOLD" default:"5"`
	SweepBatchLimit  int           `envconfig:"SIGNER_SWEEP_BATCH_LIMIT" default:"500"`
}

// SchedulerConfig holds the run intervals of the periodic sweep jobs.
type SchedulerConfig struct {
	RegenerateInterval time.Duration `envconfig:"SCHED_REGENERATE_INTERVAL" default:"24h"`
	RefreshInterval    time.Duration `envconfig:"SCHED_REFRESH_INTERVAL" default:"1h"`
	CleanupInterval    time.Duration `envconfig:"SCHED_CLEANUP_INTERVAL" default:"1h"`
	RetryInterval      time.Duration `envconfig:"SCHED_RETRY_INTERVAL" default:"30m"`
	MonitorInterval    time.Duration `envconfig:"SCHED_MONITOR_INTERVAL" default:"1h"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"courseflow"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"courseflow"`
	DBName   string `envconfig:"POSTGRES_DB" default:"courseflow"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type MinIOConfig struct {
	Endpoint string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	// PublicEndpoint, when set, replaces Endpoint in presigned URLs handed to
	// browsers (the internal endpoint is usually unreachable from outside).
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT" default:""`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	SessionToken   string `envconfig:"MINIO_SESSION_TOKEN" default:""`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"course-media"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"courseflow"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"courseflow"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
