package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"genstudio/internal/auth"
	"genstudio/internal/config"
	"genstudio/internal/db"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/logging"
	"genstudio/internal/repository"
	"genstudio/internal/service"
)

const (
	defaultSeedEmail    = "demo@example.com"
	defaultSeedPassword = "password123"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting seed script")

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	logger.Info("connected to database")

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB, false); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	email := envOr("SEED_EMAIL", defaultSeedEmail)
	password := envOr("SEED_PASSWORD", defaultSeedPassword)

	authService := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL),
		auth.NewTokenStore(nil),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := seedUser(ctx, authService, email, password)
	if err != nil {
		logger.Fatal("failed to seed demo user", zap.Error(err))
	}
	if created {
		logger.Info("demo user created", zap.String("email", email))
	} else {
		logger.Info("demo user already present", zap.String("email", email))
	}
}

// seedUser creates the demo account. An existing account is not an error.
func seedUser(ctx context.Context, authService service.AuthService, email, password string) (bool, error) {
	_, _, err := authService.Signup(ctx, email, password)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
