package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/profile"
	appErr "examgrader/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grader.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: "127.0.0.1:6379"
auth:
  disabled: true
`)
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Worker.PoolSize != 4 || cfg.Kafka.Concurrency != 4 {
		t.Fatalf("unexpected pool sizes: %d %d", cfg.Worker.PoolSize, cfg.Kafka.Concurrency)
	}
	if cfg.Status.TTL != defaultStatusTTL || cfg.Status.LockTTL != defaultLockTTL {
		t.Fatalf("unexpected status ttl: %+v", cfg.Status)
	}
	if cfg.Sandbox.Timeout != sandbox.DefaultTimeout {
		t.Fatalf("unexpected sandbox timeout: %v", cfg.Sandbox.Timeout)
	}
	if cfg.Kafka.GradeTopic != defaultGradeTopic || cfg.Kafka.PoolRetry.Topic != defaultGradeTopic {
		t.Fatalf("unexpected topics: %s %s", cfg.Kafka.GradeTopic, cfg.Kafka.PoolRetry.Topic)
	}
	if cfg.Redis.PoolSize == 0 || cfg.Redis.DialTimeout == 0 {
		t.Fatalf("redis defaults not applied: %+v", cfg.Redis)
	}
	if cfg.Kafka.enabled() {
		t.Fatalf("kafka should be disabled without brokers")
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: "redis:6379"
kafka:
  brokers: ["kafka:9092"]
  gradeTopic: exams.grade
  deadLetterTopic: exams.dlq
  poolRetry:
    topic: exams.grade.retry
sandbox:
  timeout: 2s
  inheritEnv: true
language:
  languages:
    - id: c
      extension: c
      sourceBase: solution
      compileEnabled: true
      compileCmd: "gcc -O2 {src} -o {bin} -lm"
      runCmd: "{bin}"
      binaryFile: solution
auth:
  secret: s3cret
`)
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if !cfg.Kafka.enabled() || cfg.Kafka.Brokers[0] != "kafka:9092" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka.KafkaConfig)
	}
	if cfg.Kafka.PoolRetry.Topic != "exams.grade.retry" || cfg.Kafka.PoolRetry.DeadLetter != "exams.dlq" {
		t.Fatalf("unexpected pool retry: %+v", cfg.Kafka.PoolRetry)
	}
	if cfg.Sandbox.Timeout != 2*time.Second || !cfg.Sandbox.InheritEnv {
		t.Fatalf("unexpected sandbox config: %+v", cfg.Sandbox)
	}
	if len(cfg.Language.Languages) != 1 || cfg.Language.Languages[0].ID != "c" {
		t.Fatalf("unexpected languages: %+v", cfg.Language.Languages)
	}
	opts := cfg.Kafka.subscribeOptions()
	if opts.DeadLetterTopic != "exams.dlq" || opts.Concurrency != cfg.Worker.PoolSize {
		t.Fatalf("unexpected subscribe options: %+v", opts)
	}
}

func TestLoadAppConfigRequiresRedisAndSecret(t *testing.T) {
	cases := map[string]string{
		"missing redis":  "auth:\n  disabled: true\n",
		"missing secret": "redis:\n  addr: \"127.0.0.1:6379\"\n",
	}
	for name, body := range cases {
		if _, err := loadAppConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAppConfigRejectsUnknownLanguage(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: "127.0.0.1:6379"
language:
  languages:
    - id: cpp
      extension: cpp
      sourceBase: solution
      compileEnabled: true
      compileCmd: "g++ {src} -o {bin}"
      runCmd: "{bin}"
      binaryFile: solution
auth:
  disabled: true
`)
	if _, err := loadAppConfig(path); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected language not supported, got %v", err)
	}
}

func TestShippedConfigKeepsFixedLanguageSet(t *testing.T) {
	cfg, err := loadAppConfig(filepath.Join("..", "..", "configs", "grader_service.yaml"))
	if err != nil {
		t.Fatalf("load shipped config failed: %v", err)
	}
	languages, err := profile.WithOverrides(profile.CurrentHost(), cfg.Language.Languages...)
	if err != nil {
		t.Fatalf("build registry failed: %v", err)
	}
	if _, err := languages.Resolve("cpp"); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected cpp to be unsupported, got %v", err)
	}
	got := languages.Languages()
	if len(got) != 3 || got[0] != "c" || got[1] != "java" || got[2] != "python" {
		t.Fatalf("unexpected languages: %v", got)
	}
}
