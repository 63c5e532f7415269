package main

import (
	"github.com/rs/zerolog/log"

	"github.com/flowgate-io/flowgate/internal/api"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/config"
	"github.com/flowgate-io/flowgate/internal/pkg/database"
	"github.com/flowgate-io/flowgate/internal/pkg/httpclient"
	"github.com/flowgate-io/flowgate/internal/pkg/logger"
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
		Str("env", cfg.App.Environment).
		Msg("Starting API server")

	// Connect to database
	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize repositories
	workflowRepo := repositories.NewWorkflowRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
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

	// Initialize services
	workflowSvc := services.NewWorkflowService(workflowRepo)
	approvalSvc := services.NewApprovalService(taskRepo, workflowRepo)
	dispatcher := services.NewDispatcher(webhookRepo, runRepo, client)
	webhookSvc := services.NewWebhookService(webhookRepo, runRepo)
	scheduleSvc := services.NewScheduleService(scheduleRepo, webhookRepo)

	// Create server
	server := api.NewServer(
		cfg,
		&api.Services{
			Workflow:   workflowSvc,
			Approval:   approvalSvc,
			Webhook:    webhookSvc,
			Schedule:   scheduleSvc,
			Dispatcher: dispatcher,
			HTTPClient: client,
		},
		db,
	)

	// Start server
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
