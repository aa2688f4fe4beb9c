package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/database"
	"todo-api/internal/handlers"
	"todo-api/internal/monitoring"
	"todo-api/internal/services"
	"todo-api/internal/store"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

// app holds everything main has to tear down, in the order it was built.
type app struct {
	pool     *database.DatabasePool
	store    store.TaskStore
	cache    *cache.MultiLevelCache
	registry *monitoring.Registry
	router   *gin.Engine
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Listening on %s (store=%s, cache=%t)", srv.Addr, cfg.Store.Backend, a.cache != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Operations in the map run concurrently, so ordering lives inside one.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"todo-api": func(ctx context.Context) error {
				log.Println("Draining HTTP connections...")
				err := srv.Shutdown(ctx)
				return errors.Join(err, a.close())
			},
		},
	)

	exitCode := <-wait
	log.Printf("Exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{registry: monitoring.NewRegistry()}

	if err := a.openStore(cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Enabled {
		a.wrapCache(cfg)
	}

	st := a.store
	a.registry.RegisterHealthCheck("store", st.Health)
	if a.pool != nil {
		a.registry.RegisterSource("database", func() interface{} { return a.pool.Stats() })
	}

	a.router = handlers.NewRouter(services.NewTaskService(st), a.registry, handlers.RouterConfig{
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RequestsPerMinute: rateLimit(cfg.RateLimit),
		Burst:             cfg.RateLimit.BurstSize,
		AccessLog:         !cfg.IsProduction(),
	})
	return a, nil
}

func (a *app) openStore(cfg *config.Config) error {
	switch cfg.Store.Backend {
	case config.BackendFile:
		fs, err := store.NewFileStore(store.FileStoreConfig{
			Path:         cfg.Store.FilePath,
			Vocabulary:   store.StatusVocabulary(cfg.Store.Vocabulary),
			DefaultOwner: cfg.Store.DefaultOwner,
		})
		if err != nil {
			return fmt.Errorf("open task file: %w", err)
		}
		a.store = fs
		return nil

	default:
		pool, err := database.NewDatabasePool(&database.PoolConfig{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.GetDatabaseDSN(),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			LogLevel:        database.ParseLogLevel(cfg.Database.LogLevel),
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		gs := store.NewGormStore(pool.DB)
		if err := gs.Migrate(); err != nil {
			pool.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.pool = pool
		a.store = gs
		return nil
	}
}

func (a *app) wrapCache(cfg *config.Config) {
	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		KeyPrefix:    "todo:",
	})

	a.cache = cache.NewMultiLevelCache(redisCache, cache.MultiLevelConfig{})
	a.store = store.NewCachedStore(a.store, a.cache, cfg.Redis.CacheTTL)

	a.registry.RegisterHealthCheck("cache", a.cache.Health)
	a.registry.RegisterSource("cache", func() interface{} {
		return map[string]interface{}{
			"breaker": a.cache.BreakerState().String(),
			"counts":  a.cache.Metrics(),
			"pool":    redisCache.PoolStats(),
		}
	})
}

func (a *app) close() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func rateLimit(cfg config.RateLimitConfig) int {
	if !cfg.Enabled {
		return 0
	}
	return cfg.RequestsPerMin
}
