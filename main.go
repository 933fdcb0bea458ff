package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coderoom/internal/app"
	"coderoom/internal/config"
	"coderoom/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	bootLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	utils.LoadEnv(bootLogger)

	cfg := config.LoadConfig()

	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		bootLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Config loaded",
		zap.String("server_port", cfg.ServerPort),
		zap.String("env", cfg.Env),
		zap.String("history_backend", cfg.HistoryBackend),
		zap.String("blob_backend", cfg.BlobBackend),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("require_join", cfg.RequireJoin),
		zap.Int64("max_file_size", cfg.MaxFileSize),
	)

	if !cfg.AdminEnabled() {
		logger.Warn("ADMIN_KEY is not set; admin edit and delete are disabled")
	}

	application, err := app.Bootstrap(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to bootstrap application", zap.Error(err))
	}

	addr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:    addr,
		Handler: application.Router.Engine,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", "localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := application.Close(ctx); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
