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

	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/logger"
	"learner-portal/internal/middleware"
	"learner-portal/internal/repository"
	"learner-portal/internal/server"
	"learner-portal/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.Log)

	db, err := client.InitDBClient(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("open completion store")
	}

	var stores server.Stores
	if db != nil {
		stores.Completions = repository.NewCompletionRepository(db)
		stores.Submissions = repository.NewSubmissionRepository(db)
	} else {
		log.Info().Msg("completion store disabled, progress is kept per session")
	}

	courseClient := client.NewCourseClient(&cfg.Backend)
	resolver := service.NewEnrollmentResolver(courseClient, log)
	watchSessions := service.NewWatchSessions()
	sessionStore := middleware.NewCookieStore(cfg.SessionKey)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg, courseClient, resolver, watchSessions, stores, sessionStore, log)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go srv.RunSweeper(sweepCtx, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTimeout)

	log.Info().Str("addr", serverAddr).Str("environment", cfg.Environment.Name).Str("backend", cfg.Backend.BaseApiURL).Msg("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info().Msg("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopSweeper()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	watchSessions.CloseAll()

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
