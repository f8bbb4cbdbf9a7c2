package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pr-review-service/internal/app"
	"pr-review-service/internal/config"
	"pr-review-service/internal/db"
	"pr-review-service/internal/handler"
	"pr-review-service/internal/logger"
	"pr-review-service/internal/repository"
	"pr-review-service/internal/service/assignment"
	"pr-review-service/internal/service/pullrequest"
	"pr-review-service/internal/service/team"
	"pr-review-service/internal/service/user"
	"pr-review-service/migrations"
)

func main() {
	// .env is optional; real deployments pass env vars directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("pr-review-service", cfg.Logger.Level, cfg.Logger.Encoding, cfg.Logger.Development)
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	dsn := cfg.Database.DSN()

	if err := db.Migrate(dsn, migrations.FS); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}
	log.Info("Migrations applied")

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal("Failed to parse DB config", zap.Error(err))
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}
	log.Info("Successfully connected to database")

	// Context manager for transactions
	contextManager := db.NewContextManager(dbPool, log)

	// Repositories
	teamRepo := repository.NewTeamRepository(contextManager)
	userRepo := repository.NewUserRepository(contextManager)
	prRepo := repository.NewPRRepository(contextManager)

	// Services
	selector := assignment.NewSelector()
	teamService := team.NewService(teamRepo, userRepo, prRepo, contextManager, selector)
	userService := user.NewService(userRepo, prRepo)
	prService := pullrequest.NewService(prRepo, userRepo, contextManager, selector)

	// Handlers
	teamHandler := handler.NewTeamHandler(teamService, log)
	userHandler := handler.NewUserHandler(userService, log)
	prHandler := handler.NewPRHandler(prService, log)
	healthHandler := handler.NewHealthHandler()
	docsHandler := handler.NewDocsHandler("openapi.yml")
	statsHandler := handler.NewStatsHandler(prService, log)

	server := app.NewServer(cfg, log, teamHandler, userHandler, prHandler, healthHandler, docsHandler, statsHandler)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
