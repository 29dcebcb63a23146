package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	fraudapp "fraud-risk-engine/internal/application/fraud"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/cache/redis"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
	"fraud-risk-engine/internal/infrastructure/http/router"
	"fraud-risk-engine/internal/infrastructure/ipintel"
	"fraud-risk-engine/internal/infrastructure/lock"
	"fraud-risk-engine/internal/infrastructure/messaging"
	"fraud-risk-engine/internal/infrastructure/messaging/amqp"
	"fraud-risk-engine/internal/infrastructure/messaging/kafka"
	"fraud-risk-engine/internal/infrastructure/messaging/nats"
	"fraud-risk-engine/internal/infrastructure/rules"
	"fraud-risk-engine/internal/interfaces/http/handler"
	"fraud-risk-engine/internal/pkg/config"
	"fraud-risk-engine/internal/pkg/logger"
	"fraud-risk-engine/internal/pkg/metrics"
	"fraud-risk-engine/internal/pkg/tracing"
)

const (
	serviceName = "fraud-risk-engine"
	version     = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Must(serviceName, cfg.Log)
	err = run(cfg, log)
	if err != nil {
		log.Error("service stopped with error", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting fraud risk engine",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, serviceName, version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// Database
	dbClient, err := postgres.NewClient(cfg.Database, log)
	if err != nil {
		return err
	}
	defer dbClient.Close()
	if cfg.Database.AutoMigrate {
		if err := dbClient.AutoMigrate(); err != nil {
			return err
		}
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.Int("port", cfg.Database.Port))

	activityRepo := postgres.NewActivityRepository(dbClient)
	ruleRepo := postgres.NewRuleRepository(dbClient)
	alertRepo := postgres.NewAlertRepository(dbClient)
	profileRepo := postgres.NewRiskProfileRepository(dbClient)
	checkRepo := postgres.NewCheckRepository(dbClient)
	deviceRepo := postgres.NewDeviceRepository(dbClient)
	statsRepo := postgres.NewStatisticsRepository(dbClient)

	// Redis is optional; without it locking and limiting stay in process
	var (
		redisClient *redis.Client
		limiterRDB  *goredis.Client
		locker      fraudapp.UserLocker            = lock.NewLocal(cfg.Fraud.LockWait)
		ipStore     fraud.IPIntelligenceRepository = postgres.NewIPIntelligenceRepository(dbClient)
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))

		limiterRDB = redisClient.Redis()
		locker = redis.NewUserLock(redisClient, cfg.Fraud.LockTTL, cfg.Fraud.LockWait)
		ipStore = redis.NewIPCache(redisClient, ipStore)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Events
	var events fraud.EventPublisher = fraud.NopPublisher{}
	publisher, err := newEventPublisher(cfg, log)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		events = publisher
	}

	// IP intelligence
	geoip, err := ipintel.OpenGeoIP(cfg.GeoIP.CountryDBPath, cfg.GeoIP.AnonymousIPDBPath)
	if err != nil {
		return err
	}
	defer geoip.Close()

	var providers ipintel.Chain
	if geoip.Enabled() {
		providers = append(providers, geoip)
	}
	if cfg.IPReputation.URL != "" {
		providers = append(providers, ipintel.NewHTTPProvider(cfg.IPReputation.URL, cfg.IPReputation.APIKey, cfg.IPReputation.Timeout))
	}

	var refresher rules.RefreshRequester
	if len(providers) > 0 {
		r := ipintel.NewRefresher(providers, ipStore, ipintel.RefresherConfig{
			QueueSize: cfg.Fraud.IPRefreshQueue,
			Workers:   cfg.Fraud.IPRefreshWorker,
			TTL:       cfg.Fraud.IPCacheTTL,
		}, m, log)
		r.Start(ctx)
		defer r.Stop()
		refresher = r
	} else {
		log.Warn("no IP intelligence provider configured, IP reputation checks will report unknown")
	}

	// Scoring
	ruleCache := rules.NewRuleCache(ruleRepo, cfg.Fraud.RuleCacheTTL)
	engine := rules.NewEngine([]rules.Analyzer{
		rules.NewVelocityAnalyzer(activityRepo),
		rules.NewGeolocationAnalyzer(ipStore, refresher),
		rules.NewDeviceAnalyzer(deviceRepo),
		rules.NewPaymentAnalyzer(activityRepo),
		rules.NewBehaviorAnalyzer(activityRepo),
	}, rules.EngineOptions{
		IsolateFailures: cfg.Fraud.IsolateAnalyzerFailures,
		Metrics:         m,
		Logger:          log,
		Tracer:          tracing.Tracer(),
	})

	checkUseCase := fraudapp.NewCheckFraudUseCase(fraudapp.CheckFraudDeps{
		Rules:    ruleCache,
		Engine:   engine,
		Users:    activityRepo,
		Profiles: profileRepo,
		Checks:   checkRepo,
		Locker:   locker,
		Events:   events,
		Metrics:  m,
		Logger:   log,
		Tracer:   tracing.Tracer(),
	})

	fraudService := fraud.NewService(fraud.ServiceDeps{
		Rules:      ruleRepo,
		Alerts:     alertRepo,
		Profiles:   profileRepo,
		Checks:     checkRepo,
		Statistics: statsRepo,
		Accounts:   activityRepo,
		RuleCache:  ruleCache,
		Events:     events,
		Logger:     log,
	})

	// HTTP
	checkLimiter, err := router.NewRateLimiter(cfg.RateLimit, limiterRDB)
	if err != nil {
		return err
	}

	health := map[string]handler.HealthChecker{"database": dbClient}
	if redisClient != nil {
		health["redis"] = redisClient
	}

	opts := router.Options{
		Check:        handler.NewCheckHandler(checkUseCase, log),
		Fraud:        handler.NewFraudHandler(fraudService, log),
		Health:       handler.NewHealthHandler(version, health),
		CheckLimiter: checkLimiter,
		Logger:       log,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = handler.MetricsHandler(registry)
		opts.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.NewRouter(opts).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newEventPublisher connects the configured alert event backend, if any
func newEventPublisher(cfg *config.Config, log *zap.Logger) (*messaging.Publisher, error) {
	switch {
	case cfg.Kafka.Enabled:
		log.Info("publishing alert events to kafka", zap.String("topic", cfg.Kafka.FraudAlertsTopic))
		return kafka.NewPublisher(cfg.Kafka), nil
	case cfg.NATS.Enabled:
		publisher, err := nats.NewPublisher(cfg.NATS)
		if err != nil {
			return nil, err
		}
		log.Info("publishing alert events to nats", zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
		return publisher, nil
	case cfg.AMQP.Enabled:
		publisher, err := amqp.NewPublisher(cfg.AMQP)
		if err != nil {
			return nil, err
		}
		log.Info("publishing alert events to amqp", zap.String("exchange", cfg.AMQP.Exchange))
		return publisher, nil
	default:
		return nil, nil
	}
}
