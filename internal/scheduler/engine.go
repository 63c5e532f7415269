// Package scheduler runs the periodic scan that fires due schedules through
// the webhook dispatcher.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/metrics"
	"github.com/flowgate-io/flowgate/internal/scheduler/cron"
)

type Config struct {
	ScanInterval    time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		ScanInterval:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ScheduleSource is the persistence surface the engine needs.
// *repositories.ScheduleRepository satisfies it.
type ScheduleSource interface {
	FindActive(ctx context.Context) ([]models.Schedule, error)
	RecordRun(ctx context.Context, scheduleID uuid.UUID, lastRunAt, nextRunAt time.Time) error
	MarkExpired(ctx context.Context, scheduleID uuid.UUID) error
}

// WebhookFinder resolves a schedule's target subscription.
type WebhookFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
}

// Trigger is the dispatcher operation the engine invokes, scoped to one
// webhook per schedule. *services.Dispatcher satisfies it.
type Trigger interface {
	Trigger(ctx context.Context, input services.TriggerInput) (*services.TriggerResult, error)
}

// Engine owns the scan timer. Start and Stop are idempotent. The engine is
// single-process; there is no distributed coordination.
type Engine struct {
	config       *Config
	scheduleRepo ScheduleSource
	webhookRepo  WebhookFinder
	dispatcher   Trigger
	parser       *cron.Parser

	now func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg *Config, scheduleRepo ScheduleSource, webhookRepo WebhookFinder, dispatcher Trigger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		config:       cfg,
		scheduleRepo: scheduleRepo,
		webhookRepo:  webhookRepo,
		dispatcher:   dispatcher,
		parser:       cron.NewParser(),
		now:          time.Now,
	}
}

// Start launches the scan loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(ctx)

	log.Info().
		Dur("scan_interval", e.config.ScanInterval).
		Msg("Schedule engine started")
}

// Stop cancels the loop and waits for an in-flight scan to finish, bounded by
// the shutdown timeout. Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Schedule engine stopped")
	case <-time.After(e.config.ShutdownTimeout):
		log.Warn().Msg("Schedule engine shutdown timed out")
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Scan(ctx)
		}
	}
}

// Scan processes every due schedule once. Schedules are handled concurrently
// and independently; one schedule's failure is logged and never blocks the
// rest of the scan.
func (e *Engine) Scan(ctx context.Context) {
	scanAt := e.now().UTC()
	metrics.ScheduleScansTotal.Inc()

	schedules, err := e.scheduleRepo.FindActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load schedules")
		return
	}

	var wg sync.WaitGroup
	for i := range schedules {
		schedule := schedules[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("schedule_id", schedule.ID.String()).
						Msg("Panic processing schedule")
				}
			}()
			e.process(ctx, schedule, scanAt)
		}()
	}
	wg.Wait()
}

func (e *Engine) process(ctx context.Context, schedule models.Schedule, scanAt time.Time) {
	if schedule.EndAt != nil && !schedule.EndAt.After(scanAt) {
		if err := e.scheduleRepo.MarkExpired(ctx, schedule.ID); err != nil {
			log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Failed to expire schedule")
			return
		}
		metrics.SchedulesExpiredTotal.Inc()
		log.Info().Str("schedule_id", schedule.ID.String()).Msg("Schedule expired")
		return
	}
	if schedule.NextRunAt != nil && schedule.NextRunAt.After(scanAt) {
		return
	}

	webhook, err := e.webhookRepo.FindByID(ctx, schedule.WebhookID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("schedule_id", schedule.ID.String()).
			Str("webhook_id", schedule.WebhookID.String()).
			Msg("Schedule target webhook not resolvable")
		return
	}
	if !webhook.Enabled {
		return
	}

	_, err = e.dispatcher.Trigger(ctx, services.TriggerInput{
		ResourceType: webhook.ResourceType,
		ResourceID:   webhook.ResourceID,
		Content:      schedule.Content,
		TriggeredBy:  schedule.EffectiveTriggeredBy(),
		WebhookIDs:   []uuid.UUID{webhook.ID},
	})
	if err != nil {
		// Delivery failures are recorded outcomes inside the run; an error
		// here means the run itself could not be created or persisted, so the
		// run pointers are left untouched and the next scan retries.
		log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Failed to fire schedule")
		return
	}

	metrics.SchedulesFiredTotal.Inc()

	nextRun, err := e.parser.Next(schedule.Frequency, scanAt)
	if err != nil {
		// Frequencies are validated on write; reaching this means the row was
		// changed outside the API.
		log.Error().
			Err(err).
			Str("schedule_id", schedule.ID.String()).
			Str("frequency", schedule.Frequency).
			Msg("Failed to compute next run")
		return
	}
	if err := e.scheduleRepo.RecordRun(ctx, schedule.ID, scanAt, nextRun); err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("Failed to record schedule run")
	}
}
