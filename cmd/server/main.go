package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geowatch/internal/config"
	"geowatch/internal/handlers"
	"geowatch/internal/ingest"
	"geowatch/internal/middleware"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/repositories/memory"
	"geowatch/internal/repositories/mongodb"
	"geowatch/internal/repositories/sqlite"
	"geowatch/internal/services"
	"geowatch/internal/utils"
	"geowatch/pkg/cache"
	"geowatch/pkg/database"
	"geowatch/pkg/logger"
	"geowatch/pkg/websocket"
	"geowatch/routes"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     cfg.App.LogOutput,
		TimeFormat: time.RFC3339Nano,
		Caller:     cfg.App.Debug,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
	log.Info("Server stopped")
}

// repositories bundles one storage backend behind the repository contracts.
type repositories struct {
	geofences interfaces.GeofenceRepository
	locations interfaces.LocationRepository
	events    interfaces.GeofenceEventRepository
	alerts    interfaces.AlertRepository
	sessions  interfaces.SessionRepository
	health    handlers.Pinger
	close     func() error
}

func openRepositories(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*repositories, error) {
	switch cfg.Driver {
	case config.DatabaseDriverMongo:
		db, err := database.NewMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.NewMigrator(db.Database, log).Up(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &repositories{
			geofences: mongodb.NewGeofenceRepository(db.Database),
			locations: mongodb.NewLocationRepository(db.Database),
			events:    mongodb.NewGeofenceEventRepository(db.Database),
			alerts:    mongodb.NewAlertRepository(db.Database),
			sessions:  mongodb.NewSessionRepository(db.Database),
			health:    db,
			close:     db.Close,
		}, nil

	case config.DatabaseDriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store := sqlite.NewStore(db)
		return &repositories{
			geofences: store,
			locations: store,
			events:    store,
			alerts:    store,
			sessions:  store,
			health:    db,
			close:     db.Close,
		}, nil

	case config.DatabaseDriverMemory:
		store := memory.NewStore()
		if cfg.MemorySeed != "" {
			data, err := os.ReadFile(cfg.MemorySeed)
			if err != nil {
				return nil, fmt.Errorf("failed to read memory seed: %w", err)
			}
			if err := store.LoadSeed(data); err != nil {
				return nil, err
			}
		} else {
			log.Warn("Memory store started without DATABASE_MEMORY_SEED; every session is unknown until seeded")
		}
		return &repositories{
			geofences: store,
			locations: store,
			events:    store,
			alerts:    store,
			sessions:  store,
			close:     func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	repos, err := openRepositories(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.close(); err != nil {
			log.WithError(err).Warn("Failed to close database")
		}
	}()

	checks := map[string]handlers.Pinger{}
	if repos.health != nil {
		checks["database"] = repos.health
	}

	geofenceRepo := repos.geofences
	var locker services.Locker = services.NewKeyedMutex()
	var publishers []services.AlertPublisher

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		checks["redis"] = redisCache

		if cfg.Geofence.LockBackend == config.LockBackendRedis {
			locker = cache.NewRedisLocker(redisCache, utils.CacheLockPrefix, cfg.Geofence.LockTTL)
		}
		if cfg.Geofence.PublishAlerts {
			publishers = append(publishers, services.NewRedisAlertPublisher(redisCache))
		}
		geofenceRepo = services.NewCachedGeofenceRepository(geofenceRepo, redisCache, cfg.Geofence.CacheTTL, log)
	}

	hub := websocket.NewHub(log)
	var wsHandler *websocket.Handler
	if cfg.WebSocket.Enabled {
		wsHandler = websocket.NewHandler(hub, cfg.WebSocket, services.SessionMembership(repos.sessions))
		if cfg.Geofence.PublishAlerts {
			publishers = append(publishers, services.NewWebSocketAlertPublisher(hub))
		}
	}

	schedules := services.NewScheduleEvaluator(cfg.Geofence.ScheduleTimezoneMode, location, log)
	locationService := services.NewLocationService(
		repos.locations,
		repos.events,
		services.NewGeofenceEvaluator(geofenceRepo, schedules, log),
		services.NewEventRecorder(repos.events, locker, cfg.Geofence.ViolationCooldown, log),
		services.NewAlertDispatcher(repos.alerts, repos.sessions, publishers, log),
		locker,
		cfg.Geofence.DispatchTimeout,
		log,
	)
	defer locationService.Wait()

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	routes.SetupGeofenceRoutes(router, &routes.Handlers{
		Geofence:  handlers.NewGeofenceHandler(locationService, repos.sessions, log),
		Health:    handlers.NewHealthHandler(checks),
		WebSocket: wsHandler,
	}, cfg.Security.JWTSecret, middleware.NewRateLimiter(cfg.Security.RateLimitPerMinute, cfg.Security.RateLimitBurst))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var kafkaConsumer *ingest.KafkaConsumer
	if cfg.Ingest.Kafka.Enabled {
		kafkaConsumer, err = ingest.NewKafkaConsumer(cfg.Ingest.Kafka, locationService, log)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Ingest.MQTT.Enabled {
		subscriber := ingest.NewMQTTSubscriber(cfg.Ingest.MQTT, locationService, log)
		g.Go(func() error { return subscriber.Run(ctx) })
	}

	if kafkaConsumer != nil {
		g.Go(func() error { return kafkaConsumer.Run(ctx) })
	}

	return g.Wait()
}
