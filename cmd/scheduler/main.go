package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/flowgate-io/flowgate/internal/domain/repositories"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/config"
	"github.com/flowgate-io/flowgate/internal/pkg/database"
	"github.com/flowgate-io/flowgate/internal/pkg/httpclient"
	"github.com/flowgate-io/flowgate/internal/pkg/logger"
	"github.com/flowgate-io/flowgate/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init(cfg.App.Environment, cfg.App.Debug)

	log.Info().
		Str("app", cfg.App.Name).
		Str("service", "scheduler").
		Msg("Starting scheduler service")

	// Connect to database
	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Initialize repositories
	webhookRepo := repositories.NewWebhookRepository(db)
	runRepo := repositories.NewRunRepository(db)
	scheduleRepo := repositories.NewScheduleRepository(db)

	// Outbound HTTP client
	clientCfg := httpclient.DefaultConfig()
	clientCfg.DialTimeout = cfg.Dispatcher.ConnectionTimeout
	clientCfg.MaxIdleConns = cfg.Dispatcher.MaxIdleConns
	clientCfg.MaxIdleConnsPerHost = cfg.Dispatcher.MaxIdleConnsPerHost
	client := httpclient.NewPooledClient(clientCfg)
	defer client.CloseIdleConnections()

	dispatcher := services.NewDispatcher(webhookRepo, runRepo, client)

	// Create engine
	engine := scheduler.New(&scheduler.Config{
		ScanInterval:    cfg.Scheduler.ScanInterval,
		ShutdownTimeout: cfg.Scheduler.ShutdownTimeout,
	}, scheduleRepo, webhookRepo, dispatcher)

	engine.Start()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Received shutdown signal")

	engine.Stop()
}
