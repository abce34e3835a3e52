// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Database struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type Redis struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSizeMultiplier int           `mapstructure:"pool_size_multiplier"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

type Backoff struct {
	Base   time.Duration `mapstructure:"base"`
	Max    time.Duration `mapstructure:"max"`
	Jitter bool          `mapstructure:"jitter"`
}

// Worker configures the long-lived process that dequeues and runs pipelines.
type Worker struct {
	Count                 int           `mapstructure:"count"`
	HeartbeatTTL          time.Duration `mapstructure:"heartbeat_ttl"`
	MaxRetries            int           `mapstructure:"max_retries"`
	Backoff               Backoff       `mapstructure:"backoff"`
	ProcessingListPattern string        `mapstructure:"processing_list_pattern"`
	HeartbeatKeyPattern   string        `mapstructure:"heartbeat_key_pattern"`
	DeadLetterQueue       string        `mapstructure:"dead_letter_queue"`
	BRPopLPushTimeout     time.Duration `mapstructure:"brpoplpush_timeout"`
	BreakerPause          time.Duration `mapstructure:"breaker_pause"`
	SoftTimeout           time.Duration `mapstructure:"soft_timeout"`
	HardTimeout           time.Duration `mapstructure:"hard_timeout"`
	WorkspaceBaseDir      string        `mapstructure:"workspace_base_dir"`
	WorkspaceRetention    time.Duration `mapstructure:"workspace_retention"`
}

// Queues names the durable lanes the broker dispatches across. VideoProcessing
// and ImageGeneration carry job work; Maintenance is a separate lane that
// the control API routes submissions with priority "maintenance" to. Reserve
// polls it after the two job lanes, so its tasks never delay user work.
type Queues struct {
	VideoProcessing string `mapstructure:"video_processing"`
	Maintenance     string `mapstructure:"maintenance"`
	ImageGeneration string `mapstructure:"image_generation"`
}

type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Endpoint         string  `mapstructure:"endpoint"`
	Environment      string  `mapstructure:"environment"`
	SamplingStrategy string  `mapstructure:"sampling_strategy"`
	SamplingRate     float64 `mapstructure:"sampling_rate"`
}

type ObservabilityConfig struct {
	MetricsPort         int           `mapstructure:"metrics_port"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFile             string        `mapstructure:"log_file"`
	LogMaxSizeMB        int           `mapstructure:"log_max_size_mb"`
	LogMaxBackups       int           `mapstructure:"log_max_backups"`
	LogCompress         bool          `mapstructure:"log_compress"`
	Tracing             TracingConfig `mapstructure:"tracing"`
	QueueSampleInterval time.Duration `mapstructure:"queue_sample_interval"`
}

// Services holds the base URLs and deadlines for the external ML/storage
// collaborators behind the abstract service-client interfaces.
type Services struct {
	TTSBaseURL          string        `mapstructure:"tts_base_url"`
	TTSTimeout          time.Duration `mapstructure:"tts_timeout"`
	ImageBaseURL        string        `mapstructure:"image_base_url"`
	ImageTimeout        time.Duration `mapstructure:"image_timeout"`
	DigitalHumanBaseURL string        `mapstructure:"digital_human_base_url"`
	DigitalHumanTimeout time.Duration `mapstructure:"digital_human_timeout"`
	LLMBaseURL          string        `mapstructure:"llm_base_url"`
	LLMModel            string        `mapstructure:"llm_model"`
	LLMTimeout          time.Duration `mapstructure:"llm_timeout"`
	LLMCacheTTL         time.Duration `mapstructure:"llm_cache_ttl"`
}

type ObjectStore struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// Auth configures the control-plane's hand-rolled HMAC bearer tokens and
// the CORS allow-list enforced by its middleware chain.
type Auth struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

type Scheduler struct {
	ResetStuckInterval  time.Duration `mapstructure:"reset_stuck_interval"`
	StuckThreshold      time.Duration `mapstructure:"stuck_threshold"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	RetentionPeriod     time.Duration `mapstructure:"retention_period"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

type Config struct {
	Database       Database            `mapstructure:"database"`
	Redis          Redis               `mapstructure:"redis"`
	Worker         Worker              `mapstructure:"worker"`
	Queues         Queues              `mapstructure:"queues"`
	CircuitBreaker CircuitBreaker      `mapstructure:"circuit_breaker"`
	Observability  ObservabilityConfig `mapstructure:"observability"`
	Services       Services            `mapstructure:"services"`
	ObjectStore    ObjectStore         `mapstructure:"object_store"`
	Auth           Auth                `mapstructure:"auth"`
	Scheduler      Scheduler           `mapstructure:"scheduler"`
	Environment    string              `mapstructure:"environment"`
}

func defaultConfig() *Config {
	return &Config{
		Database: Database{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: Redis{
			Addr:               "localhost:6379",
			PoolSizeMultiplier: 10,
			MinIdleConns:       5,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
			MaxRetries:         3,
		},
		Worker: Worker{
			Count:                 16,
			HeartbeatTTL:          30 * time.Second,
			MaxRetries:            3,
			Backoff:               Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Minute, Jitter: true},
			ProcessingListPattern: "jobengine:worker:%s:processing",
			HeartbeatKeyPattern:   "jobengine:processing:worker:%s",
			DeadLetterQueue:       "jobengine:dead_letter",
			BRPopLPushTimeout:     1 * time.Second,
			BreakerPause:          100 * time.Millisecond,
			SoftTimeout:           55 * time.Minute,
			HardTimeout:           60 * time.Minute,
			WorkspaceBaseDir:      "./data/workspace",
			WorkspaceRetention:    72 * time.Hour,
		},
		Queues: Queues{
			VideoProcessing: "jobengine:video_processing",
			Maintenance:     "jobengine:maintenance",
			ImageGeneration: "jobengine:image_generation",
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       20,
		},
		Observability: ObservabilityConfig{
			MetricsPort:         9090,
			LogLevel:            "info",
			LogMaxSizeMB:        100,
			LogMaxBackups:       5,
			Tracing:             TracingConfig{Enabled: false, SamplingStrategy: "probabilistic", SamplingRate: 0.1},
			QueueSampleInterval: 2 * time.Second,
		},
		Services: Services{
			TTSTimeout:          30 * time.Minute,
			ImageTimeout:        2 * time.Minute,
			DigitalHumanTimeout: 10 * time.Minute,
			LLMTimeout:          30 * time.Second,
			LLMCacheTTL:         24 * time.Hour,
		},
		Auth: Auth{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Scheduler: Scheduler{
			ResetStuckInterval:  3 * time.Minute,
			StuckThreshold:      20 * time.Minute,
			CleanupInterval:     24 * time.Hour,
			RetentionPeriod:     30 * 24 * time.Hour,
			HealthCheckInterval: 1 * time.Hour,
		},
		Environment: "development",
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then layers environment-variable overrides.
// Callers that intend to run the engine must still call Validate — Load
// itself stays permissive so tests can exercise partial configs.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	setDefaults(v, def)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)

	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size_multiplier", def.Redis.PoolSizeMultiplier)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)

	v.SetDefault("worker.count", def.Worker.Count)
	v.SetDefault("worker.heartbeat_ttl", def.Worker.HeartbeatTTL)
	v.SetDefault("worker.max_retries", def.Worker.MaxRetries)
	v.SetDefault("worker.backoff.base", def.Worker.Backoff.Base)
	v.SetDefault("worker.backoff.max", def.Worker.Backoff.Max)
	v.SetDefault("worker.backoff.jitter", def.Worker.Backoff.Jitter)
	v.SetDefault("worker.processing_list_pattern", def.Worker.ProcessingListPattern)
	v.SetDefault("worker.heartbeat_key_pattern", def.Worker.HeartbeatKeyPattern)
	v.SetDefault("worker.dead_letter_queue", def.Worker.DeadLetterQueue)
	v.SetDefault("worker.brpoplpush_timeout", def.Worker.BRPopLPushTimeout)
	v.SetDefault("worker.breaker_pause", def.Worker.BreakerPause)
	v.SetDefault("worker.soft_timeout", def.Worker.SoftTimeout)
	v.SetDefault("worker.hard_timeout", def.Worker.HardTimeout)
	v.SetDefault("worker.workspace_base_dir", def.Worker.WorkspaceBaseDir)
	v.SetDefault("worker.workspace_retention", def.Worker.WorkspaceRetention)

	v.SetDefault("queues.video_processing", def.Queues.VideoProcessing)
	v.SetDefault("queues.maintenance", def.Queues.Maintenance)
	v.SetDefault("queues.image_generation", def.Queues.ImageGeneration)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.log_file", def.Observability.LogFile)
	v.SetDefault("observability.log_max_size_mb", def.Observability.LogMaxSizeMB)
	v.SetDefault("observability.log_max_backups", def.Observability.LogMaxBackups)
	v.SetDefault("observability.log_compress", def.Observability.LogCompress)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.sampling_strategy", def.Observability.Tracing.SamplingStrategy)
	v.SetDefault("observability.tracing.sampling_rate", def.Observability.Tracing.SamplingRate)
	v.SetDefault("observability.queue_sample_interval", def.Observability.QueueSampleInterval)

	v.SetDefault("services.tts_timeout", def.Services.TTSTimeout)
	v.SetDefault("services.image_timeout", def.Services.ImageTimeout)
	v.SetDefault("services.digital_human_timeout", def.Services.DigitalHumanTimeout)
	v.SetDefault("services.llm_timeout", def.Services.LLMTimeout)
	v.SetDefault("services.llm_cache_ttl", def.Services.LLMCacheTTL)

	v.SetDefault("auth.token_ttl", def.Auth.TokenTTL)

	v.SetDefault("scheduler.reset_stuck_interval", def.Scheduler.ResetStuckInterval)
	v.SetDefault("scheduler.stuck_threshold", def.Scheduler.StuckThreshold)
	v.SetDefault("scheduler.cleanup_interval", def.Scheduler.CleanupInterval)
	v.SetDefault("scheduler.retention_period", def.Scheduler.RetentionPeriod)
	v.SetDefault("scheduler.health_check_interval", def.Scheduler.HealthCheckInterval)

	v.SetDefault("environment", def.Environment)
}

// Validate checks cross-field constraints that a zero-value unmarshal can't
// catch: required secrets, production CORS hygiene, and the
// heartbeat/brpoplpush/soft-hard timeout relationships the worker relies on
// to never let a reservation's visibility timeout expire mid-poll.
func Validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if cfg.Environment == "production" {
		for _, o := range cfg.Auth.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("auth.cors_origins must not contain '*' in production")
			}
		}
	}
	if cfg.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be >= 1")
	}
	if cfg.Worker.HeartbeatTTL < 5*time.Second {
		return fmt.Errorf("worker.heartbeat_ttl must be >= 5s")
	}
	if cfg.Worker.BRPopLPushTimeout <= 0 || cfg.Worker.BRPopLPushTimeout > cfg.Worker.HeartbeatTTL/2 {
		return fmt.Errorf("worker.brpoplpush_timeout must be > 0 and <= heartbeat_ttl/2")
	}
	if cfg.Worker.SoftTimeout >= cfg.Worker.HardTimeout {
		return fmt.Errorf("worker.soft_timeout must be < worker.hard_timeout")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be in 1..65535")
	}
	return nil
}
