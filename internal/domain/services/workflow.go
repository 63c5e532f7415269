package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
)

// Workflow errors
var (
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrWorkflowDisabled     = errors.New("workflow is disabled")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrLevelSequence        = errors.New("approval levels must form the exact sequence 1..N")
	ErrLevelRolesRequired   = errors.New("approval level requires at least one allowed role")
)

// WorkflowStore is the persistence surface the workflow service needs.
// *repositories.WorkflowRepository satisfies it.
type WorkflowStore interface {
	CreateWithLevels(ctx context.Context, workflow *models.Workflow) error
	FindOwned(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Workflow, error)
	FindByOwner(ctx context.Context, owner models.Owner, opts *repositories.ListOptions) ([]models.Workflow, int64, error)
	Update(ctx context.Context, workflow *models.Workflow) error
}

type WorkflowService struct {
	workflowRepo WorkflowStore
}

func NewWorkflowService(workflowRepo WorkflowStore) *WorkflowService {
	return &WorkflowService{workflowRepo: workflowRepo}
}

type ApprovalLevelInput struct {
	Name                   string
	Level                  int
	AllowedRoles           []string
	ApprovalCountsRequired int
}

type CreateWorkflowInput struct {
	Name         string
	ResourceType string
	Enabled      *bool
	Approvals    []ApprovalLevelInput
}

// Create validates the approval-level configuration and persists the workflow
// together with its levels. Levels are fixed at creation; the update surface
// covers only name and enabled.
func (s *WorkflowService) Create(ctx context.Context, owner models.Owner, input CreateWorkflowInput) (*models.Workflow, error) {
	if input.Name == "" {
		return nil, ErrWorkflowNameRequired
	}
	if err := validateLevels(input.Approvals); err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	workflow := &models.Workflow{
		Name:         input.Name,
		ResourceType: input.ResourceType,
		OwnerType:    owner.Type,
		OwnerID:      owner.ID,
		Enabled:      enabled,
	}
	for _, lvl := range input.Approvals {
		counts := lvl.ApprovalCountsRequired
		if counts < 1 {
			counts = 1
		}
		workflow.Approvals = append(workflow.Approvals, models.ApprovalLevel{
			Name:                   lvl.Name,
			Level:                  lvl.Level,
			AllowedRoles:           lvl.AllowedRoles,
			ApprovalCountsRequired: counts,
		})
	}

	if err := s.workflowRepo.CreateWithLevels(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	log.Info().
		Str("workflow_id", workflow.ID.String()).
		Str("owner_type", owner.Type).
		Str("owner_id", owner.ID).
		Int("levels", len(workflow.Approvals)).
		Msg("Workflow created")

	return workflow, nil
}

func (s *WorkflowService) GetByID(ctx context.Context, owner models.Owner, id uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.workflowRepo.FindOwned(ctx, id, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return workflow, nil
}

func (s *WorkflowService) List(ctx context.Context, owner models.Owner, opts *repositories.ListOptions) ([]models.Workflow, int64, error) {
	return s.workflowRepo.FindByOwner(ctx, owner, opts)
}

type UpdateWorkflowInput struct {
	Name    *string
	Enabled *bool
}

// Update changes name and/or enabled. Approval levels are not reconfigurable
// after creation.
func (s *WorkflowService) Update(ctx context.Context, owner models.Owner, id uuid.UUID, input UpdateWorkflowInput) (*models.Workflow, error) {
	workflow, err := s.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrWorkflowNameRequired
		}
		workflow.Name = *input.Name
	}
	if input.Enabled != nil {
		workflow.Enabled = *input.Enabled
	}

	if err := s.workflowRepo.Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	log.Info().Str("workflow_id", workflow.ID.String()).Msg("Workflow updated")
	return workflow, nil
}

// validateLevels enforces the level-consecutiveness invariant: the level
// numbers, sorted ascending, must be exactly 1,2,...,N with no duplicate and
// no gap, and every level must name at least one allowed role.
func validateLevels(levels []ApprovalLevelInput) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: no levels supplied", ErrLevelSequence)
	}

	numbers := make([]int, len(levels))
	for i, lvl := range levels {
		if len(lvl.AllowedRoles) == 0 {
			return fmt.Errorf("%w: level %d", ErrLevelRolesRequired, lvl.Level)
		}
		numbers[i] = lvl.Level
	}
	sort.Ints(numbers)

	for i, n := range numbers {
		want := i + 1
		if n == want {
			continue
		}
		if i > 0 && n == numbers[i-1] {
			return fmt.Errorf("%w: duplicate level %d", ErrLevelSequence, n)
		}
		return fmt.Errorf("%w: expected level %d, got %d", ErrLevelSequence, want, n)
	}
	return nil
}
