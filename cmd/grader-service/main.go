package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"examgrader/internal/common/cache"
	"examgrader/internal/common/db"
	"examgrader/internal/common/mq"
	"examgrader/internal/common/storage"
	"examgrader/internal/grader/auth"
	"examgrader/internal/grader/controller"
	"examgrader/internal/grader/repository"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/engine"
	"examgrader/internal/grader/sandbox/observer"
	"examgrader/internal/grader/sandbox/profile"
	"examgrader/internal/grader/sandbox/workspace"
	"examgrader/internal/grader/service"
	"examgrader/pkg/utils/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/grader_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "grader service exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	redisCache, err := cache.NewRedisCache(appCfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis failed: %w", err)
	}
	defer func() {
		_ = redisCache.Close()
	}()
	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
	healthChecks := map[string]controller.HealthCheck{"redis": redisCache.Ping}

	svcCfg := service.Config{
		StatusRepo:     statusRepo,
		Lock:           repository.NewGradeLock(redisCache, appCfg.Status.LockTTL),
		Retry:          appCfg.Kafka.PoolRetry,
		Limits:         appCfg.Execute,
		GradeTimeout:   appCfg.Worker.GradeTimeout,
		StatusTimeout:  appCfg.Status.Timeout,
		SlotWait:       appCfg.Worker.SlotWait,
		WorkerPoolSize: appCfg.Worker.PoolSize,
	}

	if appCfg.Database.DSN != "" {
		mysqlDB, err := db.NewMySQL(ctx, appCfg.Database)
		if err != nil {
			return fmt.Errorf("init database failed: %w", err)
		}
		defer func() {
			_ = mysqlDB.Close()
		}()
		svcCfg.Submissions = repository.NewSubmissionRepository(mysqlDB)
		healthChecks["mysql"] = mysqlDB.Ping
	} else {
		logger.Warn(ctx, "database dsn is empty, stored submissions cannot be graded")
	}

	var outcomes controller.OutcomeReader
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			return fmt.Errorf("init minio failed: %w", err)
		}
		if err := objStorage.EnsureBucket(ctx, appCfg.MinIO.Bucket); err != nil {
			return fmt.Errorf("ensure outcome bucket failed: %w", err)
		}
		archive := repository.NewOutcomeArchive(objStorage, appCfg.MinIO.Bucket)
		svcCfg.Archive = archive
		outcomes = archive
	}

	var mqClient mq.MessageQueue
	if appCfg.Kafka.enabled() {
		kafkaQueue, err := mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		mqClient = kafkaQueue
		defer func() {
			_ = mqClient.Close()
		}()
		healthChecks["kafka"] = mqClient.Ping
		svcCfg.Queue = mqClient
		svcCfg.Publisher = repository.NewMQStatusEventPublisher(mqClient, appCfg.Status.FinalTopic)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observer.NewPrometheusRecorder(registry)
	if err != nil {
		return fmt.Errorf("init metrics failed: %w", err)
	}

	host := profile.CurrentHost()
	languages, err := profile.WithOverrides(host, appCfg.Language.Languages...)
	if err != nil {
		return fmt.Errorf("init language registry failed: %w", err)
	}
	workspaces, err := workspace.NewManager(appCfg.Sandbox.WorkRoot)
	if err != nil {
		return fmt.Errorf("init workspace manager failed: %w", err)
	}
	tracker := service.NewProgressTracker(statusRepo, appCfg.Status.Timeout)
	svcCfg.Tracker = tracker
	svcCfg.Evaluator = sandbox.NewEvaluator(
		languages,
		workspaces,
		engine.NewEngine(appCfg.Sandbox.Config),
		sandbox.WithHost(host),
		sandbox.WithTimeout(appCfg.Sandbox.Timeout),
		sandbox.WithMetrics(metrics),
		sandbox.WithStatusReporter(tracker),
	)

	graderSvc, err := service.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("init grader service failed: %w", err)
	}

	if mqClient != nil {
		topics := []string{appCfg.Kafka.GradeTopic}
		if retry := appCfg.Kafka.PoolRetry.Topic; retry != "" && retry != appCfg.Kafka.GradeTopic {
			topics = append(topics, retry)
		}
		for _, topic := range topics {
			if err := mqClient.SubscribeWithOptions(ctx, topic, graderSvc.HandleMessage, appCfg.Kafka.subscribeOptions()); err != nil {
				return fmt.Errorf("subscribe %s failed: %w", topic, err)
			}
		}
		if err := mqClient.Start(); err != nil {
			return fmt.Errorf("start kafka consumer failed: %w", err)
		}
		defer func() {
			_ = mqClient.Stop()
		}()
		logger.Info(ctx, "grade consumer started", zap.Strings("topics", topics))
	} else {
		logger.Warn(ctx, "kafka brokers are empty, async grading is disabled")
	}

	httpServer := buildHTTPServer(appCfg, graderSvc, outcomes, mqClient, registry, healthChecks)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "grader http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Strings("languages", languages.Languages()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return nil
}

func buildHTTPServer(appCfg *AppConfig, svc *service.Service, outcomes controller.OutcomeReader, mqClient mq.MessageQueue, gatherer prometheus.Gatherer, healthChecks map[string]controller.HealthCheck) *http.Server {
	var queue mq.Producer
	if mqClient != nil {
		queue = mqClient
	}
	handler := controller.NewGraderController(svc, outcomes, queue, appCfg.Kafka.GradeTopic)
	router := controller.NewRouter(handler, controller.RouterConfig{
		Verifier:     auth.NewVerifier(appCfg.Auth),
		AuthDisabled: appCfg.Auth.Disabled,
		Gatherer:     gatherer,
		HealthChecks: healthChecks,
	})

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}
