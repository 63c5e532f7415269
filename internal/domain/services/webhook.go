package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
)

// Webhook errors
var (
	ErrDuplicateWebhook = errors.New("an identical webhook is already registered")
	ErrRunNotFound      = errors.New("webhook run not found")
)

// WebhookStore is the persistence surface the webhook service needs.
// *repositories.WebhookRepository satisfies it.
type WebhookStore interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	ExistsDuplicate(ctx context.Context, webhook *models.Webhook) (bool, error)
	Search(ctx context.Context, filter repositories.WebhookFilter, opts *repositories.ListOptions) ([]models.Webhook, int64, error)
}

// RunSource is the read surface for runs and their executions.
// *repositories.RunRepository satisfies it.
type RunSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookRun, error)
	SearchWithCounts(ctx context.Context, filter repositories.RunFilter, opts *repositories.ListOptions) ([]repositories.RunWithCounts, int64, error)
	FindExecutionsByRun(ctx context.Context, runID uuid.UUID, opts *repositories.ListOptions) ([]models.WebhookExecution, int64, error)
}

type WebhookService struct {
	webhookRepo WebhookStore
	runRepo     RunSource
}

func NewWebhookService(webhookRepo WebhookStore, runRepo RunSource) *WebhookService {
	return &WebhookService{webhookRepo: webhookRepo, runRepo: runRepo}
}

type CreateWebhookInput struct {
	ResourceType      string
	ResourceID        string
	URL               string
	Headers           models.StringMap
	ConnectionTimeout *int
	RequestTimeout    *int
	Enabled           *bool
}

func (s *WebhookService) Create(ctx context.Context, owner models.Owner, input CreateWebhookInput) (*models.Webhook, error) {
	webhook := &models.Webhook{
		ResourceType:      input.ResourceType,
		ResourceID:        input.ResourceID,
		OwnerType:         owner.Type,
		OwnerID:           owner.ID,
		WebhookType:       models.WebhookTypeHTTP,
		URL:               input.URL,
		Headers:           input.Headers,
		ConnectionTimeout: 10,
		RequestTimeout:    30,
		Enabled:           true,
	}
	if input.ConnectionTimeout != nil {
		webhook.ConnectionTimeout = *input.ConnectionTimeout
	}
	if input.RequestTimeout != nil {
		webhook.RequestTimeout = *input.RequestTimeout
	}
	if input.Enabled != nil {
		webhook.Enabled = *input.Enabled
	}

	dup, err := s.webhookRepo.ExistsDuplicate(ctx, webhook)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if dup {
		return nil, ErrDuplicateWebhook
	}

	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	log.Info().
		Str("webhook_id", webhook.ID.String()).
		Str("resource_type", webhook.ResourceType).
		Str("resource_id", webhook.ResourceID).
		Str("owner_type", owner.Type).
		Str("owner_id", owner.ID).
		Msg("Webhook registered")

	return webhook, nil
}

func (s *WebhookService) GetByID(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Webhook, error) {
	return s.ownedWebhook(ctx, owner, id)
}

func (s *WebhookService) List(ctx context.Context, owner models.Owner, filter repositories.WebhookFilter, opts *repositories.ListOptions) ([]models.Webhook, int64, error) {
	filter.OwnerType = owner.Type
	filter.OwnerID = owner.ID
	return s.webhookRepo.Search(ctx, filter, opts)
}

type UpdateWebhookInput struct {
	URL               *string
	Headers           models.StringMap
	ConnectionTimeout *int
	RequestTimeout    *int
	Enabled           *bool
}

func (s *WebhookService) Update(ctx context.Context, owner models.Owner, id uuid.UUID, input UpdateWebhookInput) (*models.Webhook, error) {
	webhook, err := s.ownedWebhook(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if input.URL != nil {
		webhook.URL = *input.URL
	}
	if input.Headers != nil {
		webhook.Headers = input.Headers
	}
	if input.ConnectionTimeout != nil {
		webhook.ConnectionTimeout = *input.ConnectionTimeout
	}
	if input.RequestTimeout != nil {
		webhook.RequestTimeout = *input.RequestTimeout
	}
	if input.Enabled != nil {
		webhook.Enabled = *input.Enabled
	}

	if err := s.webhookRepo.Update(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	log.Info().Str("webhook_id", webhook.ID.String()).Msg("Webhook updated")
	return webhook, nil
}

func (s *WebhookService) Delete(ctx context.Context, owner models.Owner, id uuid.UUID) error {
	webhook, err := s.ownedWebhook(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := s.webhookRepo.Delete(ctx, webhook.ID); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	log.Info().Str("webhook_id", webhook.ID.String()).Msg("Webhook deleted")
	return nil
}

// RunDetail is one trigger event with its full execution set.
type RunDetail struct {
	Run        *models.WebhookRun        `json:"run"`
	Executions []models.WebhookExecution `json:"executions"`
}

func (s *WebhookService) GetRun(ctx context.Context, id uuid.UUID) (*RunDetail, error) {
	run, err := s.runRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	executions, _, err := s.runRepo.FindExecutionsByRun(ctx, run.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}

	return &RunDetail{Run: run, Executions: executions}, nil
}

func (s *WebhookService) ListRuns(ctx context.Context, filter repositories.RunFilter, opts *repositories.ListOptions) ([]repositories.RunWithCounts, int64, error) {
	return s.runRepo.SearchWithCounts(ctx, filter, opts)
}

func (s *WebhookService) ListExecutions(ctx context.Context, runID uuid.UUID, opts *repositories.ListOptions) ([]models.WebhookExecution, int64, error) {
	if _, err := s.runRepo.FindByID(ctx, runID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrRunNotFound
		}
		return nil, 0, fmt.Errorf("failed to load run: %w", err)
	}
	return s.runRepo.FindExecutionsByRun(ctx, runID, opts)
}

// ownedWebhook loads a webhook and hides rows owned by someone else behind
// the same not-found error.
func (s *WebhookService) ownedWebhook(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Webhook, error) {
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
