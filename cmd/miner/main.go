package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ankaboot-source/leadminer-engine/internal/aggregate"
	"github.com/ankaboot-source/leadminer-engine/internal/api"
	"github.com/ankaboot-source/leadminer-engine/internal/config"
	"github.com/ankaboot-source/leadminer-engine/internal/credentials"
	"github.com/ankaboot-source/leadminer-engine/internal/database"
	"github.com/ankaboot-source/leadminer-engine/internal/dnscheck"
	"github.com/ankaboot-source/leadminer-engine/internal/logger"
	"github.com/ankaboot-source/leadminer-engine/internal/miner"
	"github.com/ankaboot-source/leadminer-engine/internal/progress"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

func main() {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	sourceRepo := repository.NewSourceRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	contactRepo := repository.NewContactRepository(db)

	// Progress hub
	hub := progress.NewHub(log)
	go hub.Run()

	// Shared caches, scoped to the process, not to a single task
	existenceCache := aggregate.NewExistenceCache()
	validator := dnscheck.NewValidator(dnscheck.Config{
		CacheTTL:      cfg.DNSCacheTTL,
		LookupTimeout: cfg.DNSTimeout,
	}, log)

	provider := credentials.NewProvider(sourceRepo,
		credentials.OAuthApp{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		},
		credentials.OAuthApp{
			ClientID:     cfg.AzureClientID,
			ClientSecret: cfg.AzureClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		},
		log)

	engine := miner.NewEngine(miner.Config{
		MaxConnsPerAccount: cfg.MaxConnsPerAccount,
		MaxConnsPerFolder:  cfg.MaxConnsPerFolder,
		ConnectTimeout:     cfg.ConnectTimeout,
		ChunkSize:          uint32(cfg.FetchChunkSize),
		BodyMaxBytes:       cfg.BodyMaxBytes,
		FetchBody:          cfg.FetchBody,
		ParseWorkers:       cfg.WorkerCount,
		FlushBatchSize:     cfg.FlushBatchSize,
	}, taskRepo, contactRepo, provider, validator, existenceCache, hub, log)

	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Engine:         engine,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("starting API server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("API server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}

	log.Info("server stopped")
}
