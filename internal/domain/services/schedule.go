package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
)

// Schedule errors
var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrWebhookNotFound  = errors.New("webhook not found")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

// ScheduleStore is the persistence surface the schedule service needs.
// *repositories.ScheduleRepository satisfies it.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	FindByOwner(ctx context.Context, owner models.Owner, opts *repositories.ListOptions) ([]models.Schedule, int64, error)
}

// WebhookFinder resolves the schedule's target subscription.
type WebhookFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
}

type ScheduleService struct {
	scheduleRepo ScheduleStore
	webhookRepo  WebhookFinder
	cronParser   cron.Parser
}

func NewScheduleService(scheduleRepo ScheduleStore, webhookRepo WebhookFinder) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		webhookRepo:  webhookRepo,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

type CreateScheduleInput struct {
	WebhookID   uuid.UUID
	Frequency   string
	Content     models.JSON
	Enabled     *bool
	EndAt       *time.Time
	TriggeredBy *string
}

// Create validates the cron expression at write time; a schedule that made it
// into the table always carries a parseable frequency. The target webhook
// must belong to the caller.
func (s *ScheduleService) Create(ctx context.Context, owner models.Owner, input CreateScheduleInput) (*models.Schedule, error) {
	nextRun, err := s.nextRun(input.Frequency, time.Now().UTC())
	if err != nil {
		return nil, ErrInvalidCron
	}

	if _, err := s.ownedTargetWebhook(ctx, owner, input.WebhookID); err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	schedule := &models.Schedule{
		WebhookID:   input.WebhookID,
		Frequency:   input.Frequency,
		Content:     input.Content,
		Enabled:     enabled,
		Status:      models.ScheduleStatusActive,
		EndAt:       input.EndAt,
		TriggeredBy: input.TriggeredBy,
		NextRunAt:   &nextRun,
	}
	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	log.Info().
		Str("schedule_id", schedule.ID.String()).
		Str("webhook_id", input.WebhookID.String()).
		Str("frequency", input.Frequency).
		Time("next_run_at", nextRun).
		Msg("Schedule created")

	return schedule, nil
}

func (s *ScheduleService) GetByID(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Schedule, error) {
	return s.ownedSchedule(ctx, owner, id)
}

func (s *ScheduleService) List(ctx context.Context, owner models.Owner, opts *repositories.ListOptions) ([]models.Schedule, int64, error) {
	return s.scheduleRepo.FindByOwner(ctx, owner, opts)
}

type UpdateScheduleInput struct {
	Frequency   *string
	Content     models.JSON
	Enabled     *bool
	EndAt       *time.Time
	TriggeredBy *string
}

func (s *ScheduleService) Update(ctx context.Context, owner models.Owner, id uuid.UUID, input UpdateScheduleInput) (*models.Schedule, error) {
	schedule, err := s.ownedSchedule(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if input.Frequency != nil {
		nextRun, err := s.nextRun(*input.Frequency, time.Now().UTC())
		if err != nil {
			return nil, ErrInvalidCron
		}
		schedule.Frequency = *input.Frequency
		schedule.NextRunAt = &nextRun
	}
	if input.Content != nil {
		schedule.Content = input.Content
	}
	if input.Enabled != nil {
		schedule.Enabled = *input.Enabled
	}
	if input.EndAt != nil {
		schedule.EndAt = input.EndAt
	}
	if input.TriggeredBy != nil {
		schedule.TriggeredBy = input.TriggeredBy
	}

	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	log.Info().Str("schedule_id", schedule.ID.String()).Msg("Schedule updated")
	return schedule, nil
}

func (s *ScheduleService) Delete(ctx context.Context, owner models.Owner, id uuid.UUID) error {
	schedule, err := s.ownedSchedule(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := s.scheduleRepo.Delete(ctx, schedule.ID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	log.Info().Str("schedule_id", schedule.ID.String()).Msg("Schedule deleted")
	return nil
}

// ownedSchedule loads a schedule and checks ownership through its target
// webhook. A schedule owned by someone else is answered with the same
// not-found error as a missing row.
func (s *ScheduleService) ownedSchedule(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	webhook, err := s.webhookRepo.FindByID(ctx, schedule.WebhookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	if !owner.Matches(webhook.OwnerType, webhook.OwnerID) {
		return nil, ErrScheduleNotFound
	}
	return schedule, nil
}

// ownedTargetWebhook resolves a webhook for schedule creation, hiding other
// owners' webhooks behind not-found.
func (s *ScheduleService) ownedTargetWebhook(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Webhook, error) {
	webhook, err := s.webhookRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	if !owner.Matches(webhook.OwnerType, webhook.OwnerID) {
		return nil, ErrWebhookNotFound
	}
	return webhook, nil
}

func (s *ScheduleService) nextRun(expr string, after time.Time) (time.Time, error) {
	schedule, err := s.cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}
