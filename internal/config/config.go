package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Scylla       ScyllaConfig       `mapstructure:"scylla"`
	Redis        RedisConfig        `mapstructure:"redis"`
	SQS          SQSConfig          `mapstructure:"sqs"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Pagination   PaginationConfig   `mapstructure:"pagination"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	BulkUpsert   BulkUpsertConfig   `mapstructure:"bulk_upsert"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
	WebhookCallbackURL  string        `mapstructure:"webhook_callback_url"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	HealthQuery     string        `mapstructure:"health_query"`
}

type ScyllaConfig struct {
	Hosts             []string      `mapstructure:"hosts"`
	Port              int           `mapstructure:"port"`
	Keyspace          string        `mapstructure:"keyspace"`
	Consistency       string        `mapstructure:"consistency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// SQSConfig configures the Durable Queue Client (internal/queue).
type SQSConfig struct {
	Region              string        `mapstructure:"region"`
	EndpointURL         string        `mapstructure:"endpoint_url"`
	QueueURL            string        `mapstructure:"queue_url"`
	MaxConcurrentFlush  int           `mapstructure:"max_concurrent_flush"`
	ReceiveBatchSize    int32         `mapstructure:"receive_batch_size"`
	WaitTimeSeconds     int32         `mapstructure:"wait_time_seconds"`
	VisibilityTimeout   int32         `mapstructure:"visibility_timeout"`
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	HandlerTimeout      time.Duration `mapstructure:"handler_timeout"`
}

type TelemetryConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	ServiceName       string        `mapstructure:"service_name"`
	SampleRatio       float64       `mapstructure:"sample_ratio"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	TracingEnabled    bool          `mapstructure:"tracing_enabled"`
	Propagators       []string      `mapstructure:"propagators"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CollectorProtocol string        `mapstructure:"collector_protocol"`
}

// OrchestratorConfig governs Sync Orchestrator behavior.
type OrchestratorConfig struct {
	InitialBatchSize      int           `mapstructure:"initial_batch_size"`
	OngoingBatchSize      int           `mapstructure:"ongoing_batch_size"`
	PollIntervalMinutes   int           `mapstructure:"poll_interval_minutes"`
	DefaultDeltaLookback  time.Duration `mapstructure:"default_delta_lookback"`
	MaxBatchRedeliveries  int           `mapstructure:"max_batch_redeliveries"`
	OnCreateDelaySeconds  int           `mapstructure:"on_create_delay_seconds"`
	HandlerWallClockBudget time.Duration `mapstructure:"handler_wall_clock_budget"`
	SchedulerTickInterval time.Duration `mapstructure:"scheduler_tick_interval"`
}

// PaginationConfig governs the Pagination Engine's fan-out behavior.
type PaginationConfig struct {
	FanOutChunkSize     int `mapstructure:"fan_out_chunk_size"`
	MaxConcurrentFlush  int `mapstructure:"max_concurrent_flush"`
}

// WebhookConfig governs the Webhook Subscription Manager.
type WebhookConfig struct {
	ResourceBatchSize  int           `mapstructure:"resource_batch_size"`
	MaxConcurrentFlush int           `mapstructure:"max_concurrent_flush"`
	UpdateLockTTL      time.Duration `mapstructure:"update_lock_ttl"`
	PhoneMetadataTTL   time.Duration `mapstructure:"phone_metadata_ttl"`
}

// BulkUpsertConfig governs Bulk Upsert & Reconciliation.
type BulkUpsertConfig struct {
	ReadBackDelay  time.Duration `mapstructure:"read_back_delay"`
	ReadBackChunk  int           `mapstructure:"read_back_chunk"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Orchestrator.DefaultDeltaLookback <= 0 {
		cfg.Orchestrator.DefaultDeltaLookback = 24 * time.Hour
	}
	if cfg.Orchestrator.MaxBatchRedeliveries <= 0 {
		cfg.Orchestrator.MaxBatchRedeliveries = 5
	}
	if cfg.Orchestrator.OnCreateDelaySeconds <= 0 {
		cfg.Orchestrator.OnCreateDelaySeconds = 35
	}
	if cfg.Orchestrator.HandlerWallClockBudget <= 0 {
		cfg.Orchestrator.HandlerWallClockBudget = 600 * time.Second
	}
	if cfg.Orchestrator.SchedulerTickInterval <= 0 {
		cfg.Orchestrator.SchedulerTickInterval = time.Minute
	}
	if cfg.Pagination.FanOutChunkSize <= 0 {
		cfg.Pagination.FanOutChunkSize = 100
	}
	if cfg.Pagination.MaxConcurrentFlush <= 0 {
		cfg.Pagination.MaxConcurrentFlush = 4
	}
	if cfg.Webhook.ResourceBatchSize <= 0 {
		cfg.Webhook.ResourceBatchSize = 10
	}
	if cfg.Webhook.MaxConcurrentFlush <= 0 {
		cfg.Webhook.MaxConcurrentFlush = 4
	}
	if cfg.Webhook.UpdateLockTTL <= 0 {
		cfg.Webhook.UpdateLockTTL = 30 * time.Second
	}
	if cfg.Webhook.PhoneMetadataTTL <= 0 {
		cfg.Webhook.PhoneMetadataTTL = 10 * time.Minute
	}
	if cfg.BulkUpsert.ReadBackDelay <= 0 {
		cfg.BulkUpsert.ReadBackDelay = time.Second
	}
	if cfg.BulkUpsert.ReadBackChunk <= 0 {
		cfg.BulkUpsert.ReadBackChunk = 20
	}
	if cfg.SQS.MaxConcurrentFlush <= 0 {
		cfg.SQS.MaxConcurrentFlush = 4
	}
	if cfg.SQS.ReceiveBatchSize <= 0 {
		cfg.SQS.ReceiveBatchSize = 10
	}
	if cfg.SQS.WaitTimeSeconds <= 0 {
		cfg.SQS.WaitTimeSeconds = 20
	}
	if cfg.SQS.VisibilityTimeout <= 0 {
		cfg.SQS.VisibilityTimeout = 120
	}
	if cfg.SQS.MaxConcurrency <= 0 {
		cfg.SQS.MaxConcurrency = 8
	}
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
