// Package main - точка входа HTTP API сервера Rankings Hub.
//
// Сервер отвечает за:
// - Приём финализированных результатов событий (outcomes)
// - Выдачу рейтингов участников и таблиц standings
// - Административные триггеры decay и пересчёта standings
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/proam-rankings/rankings-hub/config"
	"github.com/proam-rankings/rankings-hub/internal/application/command"
	"github.com/proam-rankings/rankings-hub/internal/application/query"
	"github.com/proam-rankings/rankings-hub/internal/domain/outcome"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/messaging"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/metrics"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/persistence/postgres"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/persistence/redis"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/proam-rankings/rankings-hub/internal/interface/http"
	"github.com/proam-rankings/rankings-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Rankings Hub API server",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var standingsCache standings.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(toRedisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			standingsCache = redis.NewGuardedStandingsCache(redis.NewStandingsCache(redisCache), log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	var metricsService metrics.Metrics = metrics.Noop{}
	if cfg.Observability.MetricsEnabled {
		metricsService = metrics.NewService()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕПОЗИТОРИИ И ДОМЕННЫЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	competitorRepo := postgres.NewCompetitorRepository(dbConn)
	standingsRepo := postgres.NewStandingsRepository(dbConn)
	apiKeyRepo := postgres.NewAPIKeyRepository(dbConn)

	processor, err := outcome.NewProcessor(cfg.Rating.ToOutcomeConfig())
	if err != nil {
		return fmt.Errorf("invalid rating configuration: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT BUS И ДИСПЕТЧЕР
	// Redis-транспорт раздаёт события между сервером и worker'ом; без него
	// шина остаётся внутрипроцессной.
	// ─────────────────────────────────────────────────────────────────────────
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if cfg.Events.Transport == "redis" && redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSubBridge(redisCache),
			ChannelName:    cfg.Events.Channel,
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
		log.Info("event bus connected to Redis", "channel", cfg.Events.Channel)
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		eventBus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	if err := messaging.RegisterAuditObservers(dispatcher, log); err != nil {
		return fmt.Errorf("failed to register event observers: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ФОНОВЫЕ ЗАДАЧИ КАК КОМАНДЫ
	// Админские эндпоинты гоняют те же job-экземпляры, что и worker, поэтому
	// ручной и плановый запуск разделяют один код.
	// ─────────────────────────────────────────────────────────────────────────
	decayConfig := jobs.DefaultDecayTickConfig()
	decayConfig.Policy = cfg.Rating.ToDecayPolicy()
	decayConfig.Timeout = cfg.Scheduler.JobTimeout
	decayJob := jobs.NewDecayTickJob(competitorRepo, competitorRepo, standingsCache, eventBus, log, decayConfig)

	recomputeConfig := jobs.DefaultRecomputeStandingsConfig()
	recomputeConfig.SnapshotRetentionDays = cfg.Scheduler.SnapshotRetentionDays
	recomputeConfig.Timeout = cfg.Scheduler.JobTimeout
	recomputeJob := jobs.NewRecomputeStandingsJob(competitorRepo, standingsRepo, standingsCache, eventBus, log, recomputeConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. CQRS ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	submitHandler := command.NewSubmitOutcomeHandler(competitorRepo, competitorRepo, processor, standingsCache, eventBus, metricsService)
	registerHandler := command.NewRegisterCompetitorHandler(competitorRepo, eventBus)
	runDecayHandler := command.NewRunDecayHandler(decayJob, metricsService)
	recomputeHandler := command.NewRecomputeStandingsHandler(recomputeJob, metricsService)

	getStandingsHandler := query.NewGetStandingsHandler(standingsRepo, standingsCache, metricsService)
	getRatingHandler := query.NewGetCompetitorRatingHandler(competitorRepo, standingsRepo, standingsCache, cfg.Rating.ProvisionalGames)
	getResultsHandler := query.NewGetResultsHandler(competitorRepo, competitorRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	var rateLimiter handlers.RateLimiter
	if cfg.HTTP.RateLimit > 0 && cfg.Features.IsEnabled(config.FeatureAPIRateLimit, nil) {
		if redisCache != nil {
			rateLimiter = handlers.NewRedisRateLimiter(redisCache, func(id string) string {
				return redis.RateLimitKey(id, "http")
			}, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		} else {
			rateLimiter = handlers.NewMemoryRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		}
	}

	serverConfig := httpapi.DefaultConfig()
	serverConfig.Addr = cfg.HTTP.Addr
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableMetrics = cfg.Observability.MetricsEnabled

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		SubmitOutcomeHandler:       submitHandler,
		RegisterCompetitorHandler:  registerHandler,
		RunDecayHandler:            runDecayHandler,
		RecomputeHandler:           recomputeHandler,
		GetStandingsHandler:        getStandingsHandler,
		GetCompetitorRatingHandler: getRatingHandler,
		GetResultsHandler:          getResultsHandler,
		Auth:                       &apiKeyVerifier{repo: apiKeyRepo},
		RateLimiter:                rateLimiter,
		Features:                   cfg.Features,
		Metrics:                    metricsService,
		MetricsHandler:             metrics.NewMetricsHandler(),
		Logger:                     log,
		HealthChecker:              healthChecker,
	})

	errCh := server.StartAsync()
	log.Info("Rankings Hub API server is running", "addr", cfg.HTTP.Addr)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// apiKeyVerifier адаптирует postgres.APIKeyRepository под handlers.KeyVerifier.
type apiKeyVerifier struct {
	repo *postgres.APIKeyRepository
}

func (v *apiKeyVerifier) VerifyKey(ctx context.Context, name, secret string) (handlers.Principal, error) {
	key, err := v.repo.Verify(ctx, name, secret)
	if err != nil {
		return handlers.Principal{}, err
	}
	return handlers.Principal{Name: key.Name, Admin: key.CanAdmin()}, nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.App.Environment == config.EnvProduction {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toRedisConfig переводит настройки приложения в конфигурацию клиента.
func toRedisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}
	return rc
}
