// Package main - точка входа для фоновых процессов (Worker) Rankings Hub.
//
// Worker отвечает за периодические задачи:
// - Decay tick: списание RP у неактивных участников
// - Пересчёт standings и запись снапшотов
//
// Worker и API сервер могут работать независимо: сервер принимает outcomes
// и читает standings, worker поддерживает их актуальность.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/proam-rankings/rankings-hub/config"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/messaging"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/persistence/postgres"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/persistence/redis"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/scheduler"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/scheduler/jobs"
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
	log.Info("starting Rankings Hub Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to run (set SCHEDULER_ENABLED=true)")
	}

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
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
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
	// 6. РЕПОЗИТОРИИ И EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	competitorRepo := postgres.NewCompetitorRepository(dbConn)
	standingsRepo := postgres.NewStandingsRepository(dbConn)

	// Redis-транспорт позволяет API серверу видеть события worker'а
	// (завершённые тики распада, пересчёты таблицы) и наоборот.
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
	// 7. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	sched := scheduler.NewScheduler(schedConfig)

	decayConfig := jobs.DefaultDecayTickConfig()
	decayConfig.Policy = cfg.Rating.ToDecayPolicy()
	decayConfig.Timeout = cfg.Scheduler.JobTimeout
	decayJob := jobs.NewDecayTickJob(competitorRepo, competitorRepo, standingsCache, eventBus, log, decayConfig)

	recomputeConfig := jobs.DefaultRecomputeStandingsConfig()
	recomputeConfig.SnapshotRetentionDays = cfg.Scheduler.SnapshotRetentionDays
	recomputeConfig.Timeout = cfg.Scheduler.JobTimeout
	recomputeJob := jobs.NewRecomputeStandingsJob(competitorRepo, standingsRepo, standingsCache, eventBus, log, recomputeConfig)

	// Тик распада: по умолчанию интервал, но его можно прибить к
	// настенным часам cron-выражением (например, "0 4 * * *").
	var decaySchedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.DecayTickInterval)
	if cfg.Scheduler.DecayCron != "" {
		cronSchedule, err := scheduler.NewCronSchedule(cfg.Scheduler.DecayCron)
		if err != nil {
			return fmt.Errorf("invalid decay cron expression: %w", err)
		}
		decaySchedule = cronSchedule
	}

	// Фича-флаг позволяет остановить распад, не трогая расписание пересчёта.
	if cfg.Features.IsEnabled(config.FeatureRatingDecay, nil) {
		if err := sched.Register(decayJob, decaySchedule); err != nil {
			return fmt.Errorf("failed to register decay job: %w", err)
		}
	} else {
		log.Warn("rating decay is disabled by feature flag, decay job not scheduled")
	}
	if err := sched.Register(recomputeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval)); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("Rankings Hub Worker is running",
		"decay_schedule", decaySchedule.String(),
		"recompute_interval", cfg.Scheduler.RecomputeInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

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
