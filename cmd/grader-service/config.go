package main

import (
	"fmt"
	"os"
	"time"

	"examgrader/internal/common/cache"
	"examgrader/internal/common/db"
	"examgrader/internal/common/mq"
	"examgrader/internal/common/storage"
	"examgrader/internal/grader/auth"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/engine"
	"examgrader/internal/grader/sandbox/profile"
	"examgrader/internal/grader/service"
	"examgrader/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 2 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTTL       = 24 * time.Hour
	defaultLockTTL         = 10 * time.Minute
	defaultGradeTopic      = "grader.submissions"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka settings. Grading over Kafka is disabled when
// Brokers is empty.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`

	GradeTopic    string                  `yaml:"gradeTopic"`
	ConsumerGroup string                  `yaml:"consumerGroup"`
	Concurrency   int                     `yaml:"concurrency"`
	MaxRetries    int                     `yaml:"maxRetries"`
	RetryDelay    time.Duration           `yaml:"retryDelay"`
	DeadLetter    string                  `yaml:"deadLetterTopic"`
	MessageTTL    time.Duration           `yaml:"messageTTL"`
	PoolRetry     service.PoolRetryConfig `yaml:"poolRetry"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize     int           `yaml:"poolSize"`
	GradeTimeout time.Duration `yaml:"gradeTimeout"`
	SlotWait     time.Duration `yaml:"slotWait"`
}

// StatusConfig holds status persistence settings.
type StatusConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	FinalTopic string        `yaml:"finalTopic"`
	LockTTL    time.Duration `yaml:"lockTTL"`
}

// SandboxConfig holds workspace and process settings.
type SandboxConfig struct {
	WorkRoot      string        `yaml:"workRoot"`
	Timeout       time.Duration `yaml:"timeout"`
	engine.Config `yaml:",inline"`
}

// LanguageConfig overrides the templates of the built-in languages.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
}

// AppConfig holds grader-service config.
type AppConfig struct {
	Server   ServerConfig          `yaml:"server"`
	Logger   logger.Config         `yaml:"logger"`
	Kafka    KafkaConfig           `yaml:"kafka"`
	Database db.MySQLConfig        `yaml:"database"`
	Redis    cache.RedisConfig     `yaml:"redis"`
	MinIO    storage.MinIOConfig   `yaml:"minio"`
	Worker   WorkerConfig          `yaml:"worker"`
	Status   StatusConfig          `yaml:"status"`
	Sandbox  SandboxConfig         `yaml:"sandbox"`
	Language LanguageConfig        `yaml:"language"`
	Execute  service.ExecuteLimits `yaml:"execute"`
	Auth     auth.Config           `yaml:"auth"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if !cfg.Auth.Disabled && cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required unless auth is disabled")
	}
	if _, err := profile.WithOverrides(profile.CurrentHost(), cfg.Language.Languages...); err != nil {
		return nil, fmt.Errorf("invalid language config: %w", err)
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.LockTTL == 0 {
		cfg.Status.LockTTL = defaultLockTTL
	}
	if cfg.Status.FinalTopic == "" {
		cfg.Status.FinalTopic = "grader.status.final"
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = sandbox.DefaultTimeout
	}
	if cfg.Kafka.GradeTopic == "" {
		cfg.Kafka.GradeTopic = defaultGradeTopic
	}
	if cfg.Kafka.PoolRetry.Topic == "" {
		cfg.Kafka.PoolRetry.Topic = cfg.Kafka.GradeTopic
	}
	if cfg.Kafka.PoolRetry.MaxRetries <= 0 {
		cfg.Kafka.PoolRetry.MaxRetries = 5
	}
	if cfg.Kafka.PoolRetry.BaseDelay == 0 {
		cfg.Kafka.PoolRetry.BaseDelay = time.Second
	}
	if cfg.Kafka.PoolRetry.MaxDelay == 0 {
		cfg.Kafka.PoolRetry.MaxDelay = 30 * time.Second
	}
	if cfg.Kafka.PoolRetry.DeadLetter == "" {
		cfg.Kafka.PoolRetry.DeadLetter = cfg.Kafka.DeadLetter
	}
	if cfg.Kafka.Concurrency <= 0 {
		cfg.Kafka.Concurrency = cfg.Worker.PoolSize
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}

func (k KafkaConfig) enabled() bool {
	return len(k.Brokers) > 0
}

func (k KafkaConfig) subscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   k.ConsumerGroup,
		Concurrency:     k.Concurrency,
		MaxRetries:      k.MaxRetries,
		RetryDelay:      k.RetryDelay,
		DeadLetterTopic: k.DeadLetter,
		MessageTTL:      k.MessageTTL,
	}
}
