package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "genstudio/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"genstudio/internal/auth"
	"genstudio/internal/cache"
	"genstudio/internal/config"
	"genstudio/internal/db"
	"genstudio/internal/handler"
	"genstudio/internal/logging"
	"genstudio/internal/metrics"
	"genstudio/internal/repository"
	"genstudio/internal/router"
	"genstudio/internal/service"
	"genstudio/internal/storage"
)

// @title Generation Studio API
// @version 1.0
// @description Simulated image generation API with JWT authentication and per-user history.
// @host localhost:4000
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, generationRepo := openStore(cfg, logger)

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, running without cache and token revocation", zap.Error(err))
	}

	artifacts := openArtifactStore(ctx, cfg, logger)
	if cfg.PublicDir != "" {
		if err := storage.EnsurePlaceholder(cfg.PublicDir); err != nil {
			logger.Warn("placeholder image unavailable", zap.String("dir", cfg.PublicDir), zap.Error(err))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	overload := service.ProbabilisticOverload(cfg.OverloadProbability)
	if cfg.OverloadDisabled {
		overload = service.NeverOverloaded
	}
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, logger)
	userService := service.NewUserService(userRepo, cacheClient)
	generationService := service.NewGenerationService(userRepo, generationRepo, artifacts, cacheClient, service.GenerationOptions{
		Overload: overload,
		Metrics:  metrics.New(registry),
		Logger:   logger,
	})

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	generationHandler := handler.NewGenerationHandler(generationService, logger)

	e := echo.New()
	router.Register(e, cfg, logger, registry, authService, authHandler, userHandler, generationHandler)

	logger.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("server starting", zap.String("addr", addr), zap.Bool("overload_disabled", cfg.OverloadDisabled))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (repository.UserRepository, repository.GenerationRepository) {
	if cfg.StoreDriver == "memory" {
		logger.Info("using in-memory record store")
		store := repository.NewMemoryStore()
		return store.Users(), store.Generations()
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	if cfg.ResetDB {
		logger.Warn("RESET_DB=true detected, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		logger.Fatal("auto-migrate", zap.Error(err))
	}
	return repository.NewUserRepository(gormDB), repository.NewGenerationRepository(gormDB)
}

func openArtifactStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) storage.ArtifactStore {
	if cfg.S3Bucket == "" {
		dir := filepath.Join(cfg.PublicDir, "uploads")
		logger.Info("storing uploads on local disk", zap.String("dir", dir))
		return storage.NewLocalStore(dir, "/static/uploads")
	}

	client, err := storage.NewS3Client(ctx, storage.S3Options{
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Endpoint:  cfg.S3Endpoint,
	})
	if err != nil {
		logger.Fatal("s3 init", zap.Error(err))
	}
	logger.Info("storing uploads in s3", zap.String("bucket", cfg.S3Bucket))
	return storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL)
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
