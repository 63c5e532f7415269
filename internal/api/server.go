package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/api/handlers"
	"github.com/flowgate-io/flowgate/internal/api/middleware"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/config"
	"github.com/flowgate-io/flowgate/internal/pkg/httpclient"
	"github.com/flowgate-io/flowgate/internal/pkg/metrics"
)

type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	httpServer *http.Server
}

type Services struct {
	Workflow   *services.WorkflowService
	Approval   *services.ApprovalService
	Webhook    *services.WebhookService
	Schedule   *services.ScheduleService
	Dispatcher *services.Dispatcher
	// HTTPClient is the outbound client; health reports its circuit states.
	HTTPClient *httpclient.PooledClient
}

func NewServer(cfg *config.Config, svc *Services, db *gorm.DB) *Server {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.TraceID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger())
	router.Use(middleware.Recoverer())
	router.Use(metrics.Middleware)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.HeaderOwnerType, middleware.HeaderOwnerID, middleware.HeaderTraceID},
		ExposedHeaders: []string{"X-Request-ID", middleware.HeaderTraceID},
		MaxAge:         300,
	})
	router.Use(corsHandler.Handler)

	// Initialize handlers
	workflowHandler := handlers.NewWorkflowHandler(svc.Workflow)
	taskHandler := handlers.NewTaskHandler(svc.Approval)
	webhookHandler := handlers.NewWebhookHandler(svc.Webhook, svc.Dispatcher)
	runHandler := handlers.NewRunHandler(svc.Webhook)
	scheduleHandler := handlers.NewScheduleHandler(svc.Schedule)
	healthHandler := handlers.NewHealthHandler(db, svc.HTTPClient)

	// Routes
	router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/health", healthHandler.Health)
			r.Get("/health/live", healthHandler.Live)
			r.Get("/health/ready", healthHandler.Ready)
		})

		// Owner-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner)

			// Approval workflows
			r.Get("/workflows", workflowHandler.List)
			r.Post("/workflows", workflowHandler.Create)
			r.Get("/workflows/{workflowID}", workflowHandler.Get)
			r.Patch("/workflows/{workflowID}", workflowHandler.Update)

			// Approval tasks
			r.Post("/tasks", taskHandler.Create)
			r.Post("/tasks/bulk", taskHandler.BulkCreate)
			r.Post("/tasks/discard", taskHandler.Discard)
			r.Get("/tasks/{taskID}", taskHandler.Get)
			r.Post("/tasks/{taskID}/approve", taskHandler.Approve)
			r.Post("/tasks/{taskID}/reject", taskHandler.Reject)

			// Webhook subscriptions
			r.Get("/webhooks", webhookHandler.List)
			r.Post("/webhooks", webhookHandler.Create)
			r.Post("/webhooks/trigger", webhookHandler.Trigger)
			r.Get("/webhooks/{webhookID}", webhookHandler.Get)
			r.Patch("/webhooks/{webhookID}", webhookHandler.Update)
			r.Delete("/webhooks/{webhookID}", webhookHandler.Delete)

			// Webhook runs
			r.Get("/webhook-runs", runHandler.List)
			r.Get("/webhook-runs/{runID}", runHandler.Get)
			r.Get("/webhook-runs/{runID}/executions", runHandler.ListExecutions)

			// Schedules
			r.Get("/schedules", scheduleHandler.List)
			r.Post("/schedules", scheduleHandler.Create)
			r.Get("/schedules/{scheduleID}", scheduleHandler.Get)
			r.Patch("/schedules/{scheduleID}", scheduleHandler.Update)
			r.Delete("/schedules/{scheduleID}", scheduleHandler.Delete)
		})
	})

	// Metrics endpoint (Prometheus)
	router.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		cfg:        cfg,
		router:     router,
		httpServer: httpServer,
	}
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
