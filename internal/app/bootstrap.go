package app

import (
	"context"
	"errors"
	"fmt"

	"coderoom/internal/app/health"
	"coderoom/internal/app/history"
	"coderoom/internal/app/session"
	"coderoom/internal/app/upload"
	"coderoom/internal/config"
	"coderoom/internal/db"
	"coderoom/internal/gateways/websocket"
	"coderoom/internal/providers/minio"
	"coderoom/internal/providers/redis"
	"coderoom/internal/router"
	"coderoom/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Application struct {
	Router *router.Router
	DB     *gorm.DB

	hub       *websocket.Hub
	persister *history.Persister
	redisP    *redis.RedisProvider
	logger    *zap.Logger
}

func Bootstrap(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	application := &Application{logger: logger}
	checker := &utils.HealthChecker{}

	repo, err := application.historyRepository(cfg, checker)
	if err != nil {
		return nil, err
	}

	storage, localStorage, err := blobStorage(cfg, checker, logger)
	if err != nil {
		return nil, err
	}

	ledger := history.Restore(context.Background(), repo, logger)
	application.persister = history.NewPersister(repo, logger)

	registry := session.NewRegistry(cfg.AdminKey)
	uploadService := upload.NewService(storage, cfg.MaxFileSize, logger)

	hub := websocket.NewHub(logger)
	application.hub = hub
	room := websocket.NewRoom(hub, ledger, registry, application.persister, uploadService,
		websocket.RoomOptions{
			RequireJoin: cfg.RequireJoin,
			Presence:    cfg.PresenceEnabled,
		}, logger)

	wsHandler := websocket.NewHandler(room, hub,
		websocket.NewOriginPolicy(cfg.AllowedOrigins, logger),
		websocket.ClientOptions{
			SendBuffer: cfg.SendBuffer,
			RateRPS:    cfg.RateLimitRPS,
			RateBurst:  cfg.RateLimitBurst,
		},
		cfg.MaxFileSize, logger)

	checker.Clients = hub.Count
	checker.Messages = ledger.Len

	r := router.NewRouter(cfg.AllowedOrigins, logger)
	r.RegisterHealthRoutes(health.NewHandler(health.NewService(checker)))
	r.RegisterWebSocketRoutes(wsHandler)
	r.RegisterMetricsRoutes()
	if localStorage != nil {
		r.RegisterUploadRoutes(localStorage)
	}

	application.Router = r
	application.DB = checker.DB
	return application, nil
}

func (a *Application) historyRepository(cfg *config.Config, checker *utils.HealthChecker) (history.Repository, error) {
	switch cfg.HistoryBackend {
	case config.BackendFile:
		return history.NewFileRepository(cfg.HistoryFile), nil

	case config.BackendRedis:
		a.redisP = redis.NewRedisProvider(cfg.RedisURL, a.logger)
		checker.Redis = a.redisP.Client
		return history.NewRedisRepository(a.redisP, cfg.RedisKey), nil

	case config.BackendPostgres:
		dbConn, err := db.Connect(cfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(dbConn, a.logger); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		checker.DB = dbConn
		return history.NewPostgresRepository(dbConn), nil

	default:
		return nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}
}

// blobStorage returns the configured store. The local store is also returned
// on its own so its directory can be served.
func blobStorage(cfg *config.Config, checker *utils.HealthChecker, logger *zap.Logger) (upload.Storage, *upload.LocalStorage, error) {
	switch cfg.BlobBackend {
	case config.BlobLocal:
		local, err := upload.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Serving uploads from disk",
			zap.String("dir", local.Root()),
			zap.String("prefix", local.URLPrefix()),
		)
		return local, local, nil

	case config.BlobMinio:
		minioProvider, err := minio.NewMinioProvider(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize minio: %w", err)
		}
		checker.Blob = minioProvider
		return upload.NewMinioStorage(minioProvider), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

// Close disconnects every client, then flushes the last pending history
// snapshot and releases backend connections.
func (a *Application) Close(ctx context.Context) error {
	var errs []error

	if err := a.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := a.persister.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush history: %w", err))
	}
	if a.redisP != nil {
		if err := a.redisP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close postgres: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}
