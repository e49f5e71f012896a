// Package main is the entry point of the gradebook API server.
//
// The server keeps student records, scores and exams in PostgreSQL (or in
// memory for development), asset bundles in MongoDB, and uses Redis for the
// finalize lock, the statistics cache and cross-instance event fan-out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/calculus-oom/gradebook/config"
	"github.com/calculus-oom/gradebook/internal/application/command"
	"github.com/calculus-oom/gradebook/internal/application/eventhandler"
	"github.com/calculus-oom/gradebook/internal/application/query"
	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/gradebook"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/infrastructure/filestore"
	"github.com/calculus-oom/gradebook/internal/infrastructure/messaging"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/memory"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/mongo"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/calculus-oom/gradebook/internal/infrastructure/persistence/redis"
	httpserver "github.com/calculus-oom/gradebook/internal/interface/http"
	"github.com/calculus-oom/gradebook/internal/interface/http/health"
	"github.com/calculus-oom/gradebook/pkg/circuitbreaker"
	"github.com/calculus-oom/gradebook/pkg/logger"
	"github.com/calculus-oom/gradebook/pkg/retry"
	"github.com/calculus-oom/gradebook/pkg/timeutil"
)

// eventBus is what both bus implementations offer.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// store is the relational side: a unit of work that can be pinged.
type store interface {
	gradebook.UnitOfWork
	health.Pinger
}

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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log, slogger := setupLogger(cfg)
	log.Info("starting gradebook server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("started_at", timeutil.FormatLocal(time.Now())),
	)

	connect := retry.StartupRetrier(cfg.App.StartupRetries, cfg.App.StartupRetryDelay,
		func(attempt int, err error, delay time.Duration) {
			log.Warn("backing store not ready, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		})

	checks := health.NewComposite(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. RELATIONAL STORE (PostgreSQL or memory)
	// ─────────────────────────────────────────────────────────────────────────
	var db store
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		log.Info("connecting to database...")
		var conn *postgres.Connection
		err := connect.Do(ctx, func(ctx context.Context) (err error) {
			conn, err = postgres.NewConnection(ctx, postgresConfig(cfg.Database))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		if cfg.Database.AutoMigrate {
			log.Info("applying database migrations...")
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		db = postgres.NewUnitOfWork(conn)
		log.Info("database connection established")
	default:
		log.Warn("using in-memory storage, data is lost on restart")
		db = memory.NewStore()
	}
	checks.AddCheck("database", health.PingCheck(db))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ASSET STORES (MongoDB bundles, local files)
	// ─────────────────────────────────────────────────────────────────────────
	var assets asset.Store
	if cfg.Mongo.Disabled {
		log.Warn("MongoDB disabled, keeping asset bundles in memory")
		assets = memory.NewAssetStore()
	} else {
		log.Info("connecting to MongoDB...")
		var (
			client     *mongodriver.Client
			mongoStore *mongo.AssetStore
		)
		err := connect.Do(ctx, func(ctx context.Context) error {
			c, database, err := mongo.Connect(ctx, mongoConfig(cfg.Mongo))
			if err != nil {
				return err
			}
			client = c
			mongoStore = mongo.NewAssetStore(database)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() {
			log.Info("closing MongoDB connection...")
			if err := mongo.Disconnect(client); err != nil {
				log.Warn("MongoDB disconnect failed", logger.Err(err))
			}
		}()
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create asset indexes: %w", err)
		}
		assets = mongoStore
		checks.AddCheck("assets", health.PingCheck(mongoStore))
		log.Info("MongoDB connection established")
	}

	var files asset.FileStore
	switch cfg.Storage.FilesDriver {
	case config.FilesB2:
		log.Info("opening B2 bucket...", logger.String("bucket", cfg.Storage.B2Bucket))
		err := connect.Do(ctx, func(ctx context.Context) (err error) {
			files, err = filestore.NewB2(ctx, filestore.B2Config{
				AccountID:      cfg.Storage.B2AccountID,
				ApplicationKey: cfg.Storage.B2ApplicationKey,
				Bucket:         cfg.Storage.B2Bucket,
				Prefix:         cfg.Storage.B2Prefix,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to open B2 bucket: %w", err)
		}
	default:
		local, err := filestore.NewLocal(cfg.Storage.FilesDir)
		if err != nil {
			return fmt.Errorf("failed to open file store: %w", err)
		}
		checks.AddCheck("files", func(context.Context) error {
			_, err := os.Stat(local.Root())
			return err
		})
		files = local
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (lock, statistics cache, event fan-out) or in-process fallbacks
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = slogger

	var (
		locker     gradebook.TermLocker
		statsCache query.StatisticsCache
		bus        eventBus
	)

	if cfg.Redis.Disabled {
		log.Warn("Redis disabled, using in-process lock and event bus without statistics cache")
		locker = memory.NewTermLocker()
		bus = messaging.NewInMemoryEventBus(busConfig)
	} else {
		log.Info("connecting to Redis...")
		var cache *redis.Cache
		err := connect.Do(ctx, func(ctx context.Context) (err error) {
			cache, err = redis.NewCache(ctx, redisConfig(cfg.Redis))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = cache.Close()
		}()
		checks.AddCheck("redis", health.PingCheck(cache))

		locker = redis.NewTermLocker(cache, cfg.Grading.FinalizeLockTTL)

		breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
		redisStats := redis.NewStatisticsCache(cache, cfg.Grading.StatsCacheTTL).WithBreaker(breaker)
		statsCache = redisStats

		redisBus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:         cache.Client(),
			Channel:        cfg.Redis.EventChannel,
			LocalBusConfig: busConfig,
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to event channel: %w", err)
		}
		bus = redisBus

		invalidate := eventhandler.NewInvalidateStatisticsHandler(redisStats, slogger)
		if err := invalidate.Register(bus); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
		log.Info("Redis connection established", logger.String("channel", cfg.Redis.EventChannel))
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	deps := command.Deps{
		UnitOfWork: db,
		Locker:     locker,
		Assets:     assets,
		Files:      files,
		Events:     bus,
		IDs:        shared.NewIDGenerator(),
		Clock:      timeutil.SystemClock{},
		Logger:     log,
		Policy: command.Policy{
			WeightTolerance:         cfg.Grading.WeightTolerance,
			FinalizeWeightTolerance: cfg.Grading.FinalizeWeightTolerance,
		},
	}
	records := query.NewRecordsHandler(db, assets, files)
	stats := query.NewSlotStatisticsHandler(db, statsCache, log).
		WithDefaultBinWidth(cfg.Grading.HistogramBinWidth)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverDeps := httpserver.NewDependencies(deps, records, stats)
	serverDeps.Logger = log
	serverDeps.Health = checks

	server := httpserver.NewServer(serverConfig(cfg.HTTP), serverDeps)
	serverErr := server.StartAsync()
	log.Info("gradebook server is running", logger.String("addr", serverConfig(cfg.HTTP).Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the application logger and a matching slog logger for
// the event bus, and installs the latter as the slog default.
func setupLogger(cfg *config.Config) (*logger.Logger, *slog.Logger) {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	format := logger.ParseFormat(cfg.Observability.LogFormat)
	if cfg.App.Debug && cfg.Observability.LogLevel == "" {
		level = logger.LevelDebug
	}

	log := logger.New(logger.Options{
		Output:  os.Stdout,
		Level:   level,
		Format:  format,
		Service: cfg.App.Name,
	})

	opts := &slog.HandlerOptions{Level: level.Slog()}
	var handler slog.Handler
	if format == logger.FormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slogger := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(slogger)

	return log, slogger
}

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = c.URL
	pg.MaxConns = int32(c.MaxConns)
	pg.MinConns = int32(c.MinConns)
	pg.MaxConnLifetime = c.ConnMaxLifetime
	pg.MaxConnIdleTime = c.ConnMaxIdleTime
	pg.ConnectTimeout = c.ConnectTimeout
	return pg
}

func mongoConfig(c config.MongoConfig) mongo.Config {
	m := mongo.DefaultConfig()
	m.URI = c.URI
	m.Database = c.Database
	m.ConnectTimeout = c.ConnectTimeout
	m.MaxPoolSize = c.MaxPoolSize
	if m.MinPoolSize > m.MaxPoolSize {
		m.MinPoolSize = m.MaxPoolSize
	}
	return m
}

func redisConfig(c config.RedisConfig) redis.Config {
	r := redis.DefaultConfig()
	r.URL = c.URL
	r.Host = c.Host
	r.Port = c.Port
	r.Password = c.Password
	r.DB = c.DB
	r.PoolSize = c.PoolSize
	r.MinIdleConns = c.MinIdleConns
	r.DialTimeout = c.DialTimeout
	r.ReadTimeout = c.ReadTimeout
	r.WriteTimeout = c.WriteTimeout
	return r
}

func serverConfig(c config.HTTPConfig) httpserver.Config {
	s := httpserver.DefaultConfig()
	s.Host = c.Host
	s.Port = c.Port
	s.ReadTimeout = c.ReadTimeout
	s.WriteTimeout = c.WriteTimeout
	s.IdleTimeout = c.IdleTimeout
	s.RequestTimeout = c.RequestTimeout
	s.AllowedOrigins = c.AllowedOrigins
	s.MaxUploadBytes = c.MaxUploadBytes
	s.RateLimitPerMinute = c.RateLimitPerMinute
	return s
}
