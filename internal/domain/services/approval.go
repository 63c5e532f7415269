package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
	"github.com/flowgate-io/flowgate/internal/pkg/metrics"
)

// Approval task errors
var (
	ErrTaskNotFound     = errors.New("approval task not found")
	ErrInvalidState     = errors.New("action not permitted in current task state")
	ErrLevelConfig      = errors.New("no approval level configured for the task's review level")
	ErrCommentRequired  = errors.New("a comment is required to reject")
	ErrReviewerRequired = errors.New("reviewer id and at least one reviewer role are required")
	ErrConflict         = errors.New("task was modified concurrently")
)

// RoleError is returned when the reviewer's roles do not intersect the
// current level's allowed roles. It names the roles that would be accepted.
type RoleError struct {
	Level    int
	Required []string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("reviewer is not permitted to act at level %d (requires one of: %s)",
		e.Level, strings.Join(e.Required, ", "))
}

// TaskStore is the persistence surface the approval service needs.
// *repositories.TaskRepository satisfies it.
type TaskStore interface {
	Create(ctx context.Context, task *models.ApprovalTask) error
	CreateBatch(ctx context.Context, tasks []*models.ApprovalTask) error
	FindWithWorkflow(ctx context.Context, id uuid.UUID) (*models.ApprovalTask, error)
	SaveTransition(ctx context.Context, task *models.ApprovalTask, action *models.TaskAction) error
	SaveTransitions(ctx context.Context, tasks []*models.ApprovalTask, actions []*models.TaskAction) error
}

// WorkflowSource resolves owned workflows for task creation.
type WorkflowSource interface {
	FindOwned(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Workflow, error)
}

type ApprovalService struct {
	taskRepo     TaskStore
	workflowRepo WorkflowSource
}

func NewApprovalService(taskRepo TaskStore, workflowRepo WorkflowSource) *ApprovalService {
	return &ApprovalService{taskRepo: taskRepo, workflowRepo: workflowRepo}
}

// TaskView is a task as returned by the API. NextReviewRoles is computed from
// the workflow's level configuration on every read and never stored.
type TaskView struct {
	*models.ApprovalTask
	NextReviewRoles []string `json:"next_review_roles"`
}

func newTaskView(task *models.ApprovalTask, workflow *models.Workflow) *TaskView {
	view := &TaskView{ApprovalTask: task, NextReviewRoles: []string{}}
	if task.NextReviewLevel == nil || workflow == nil {
		return view
	}
	if level := workflow.LevelAt(*task.NextReviewLevel); level != nil {
		view.NextReviewRoles = level.AllowedRoles
	}
	return view
}

// CreateTask starts a resource instance through a workflow. The workflow must
// exist, be owned by the caller and be enabled.
func (s *ApprovalService) CreateTask(ctx context.Context, owner models.Owner, workflowID uuid.UUID, resourceID string) (*TaskView, error) {
	workflow, err := s.ownedEnabledWorkflow(ctx, owner, workflowID)
	if err != nil {
		return nil, err
	}

	task := newPendingTask(workflowID, resourceID)
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	log.Info().
		Str("task_id", task.ID.String()).
		Str("workflow_id", workflowID.String()).
		Str("resource_id", resourceID).
		Msg("Approval task created")

	return newTaskView(task, workflow), nil
}

// BulkCreateTasks validates the workflow once and creates one task per
// resource id.
func (s *ApprovalService) BulkCreateTasks(ctx context.Context, owner models.Owner, workflowID uuid.UUID, resourceIDs []string) ([]*TaskView, error) {
	workflow, err := s.ownedEnabledWorkflow(ctx, owner, workflowID)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.ApprovalTask, len(resourceIDs))
	for i, resourceID := range resourceIDs {
		tasks[i] = newPendingTask(workflowID, resourceID)
	}
	if err := s.taskRepo.CreateBatch(ctx, tasks); err != nil {
		return nil, fmt.Errorf("failed to create tasks: %w", err)
	}

	log.Info().
		Str("workflow_id", workflowID.String()).
		Int("count", len(tasks)).
		Msg("Approval tasks created")

	views := make([]*TaskView, len(tasks))
	for i, task := range tasks {
		views[i] = newTaskView(task, workflow)
	}
	return views, nil
}

func (s *ApprovalService) GetTask(ctx context.Context, owner models.Owner, taskID uuid.UUID) (*TaskView, error) {
	task, err := s.ownedTask(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}
	return newTaskView(task, &task.Workflow), nil
}

type ActionInput struct {
	ReviewerID    string
	ReviewerRoles []string
	Comment       *string
}

// Approve advances the task one level, or completes it when the current level
// is the workflow's last.
func (s *ApprovalService) Approve(ctx context.Context, owner models.Owner, taskID uuid.UUID, input ActionInput) (*TaskView, error) {
	return s.transition(ctx, owner, taskID, models.ActionApprove, input)
}

// Reject sends the task back one level, or rejects it outright when the
// current level is the first. The comment is mandatory.
func (s *ApprovalService) Reject(ctx context.Context, owner models.Owner, taskID uuid.UUID, input ActionInput) (*TaskView, error) {
	if input.Comment == nil || *input.Comment == "" {
		return nil, ErrCommentRequired
	}
	return s.transition(ctx, owner, taskID, models.ActionReject, input)
}

func (s *ApprovalService) transition(ctx context.Context, owner models.Owner, taskID uuid.UUID, actionType string, input ActionInput) (*TaskView, error) {
	if input.ReviewerID == "" || len(input.ReviewerRoles) == 0 {
		return nil, ErrReviewerRequired
	}

	task, err := s.ownedTask(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}

	if models.IsTerminalTaskStatus(task.Status) {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidState, task.Status)
	}
	if task.NextReviewLevel == nil {
		return nil, fmt.Errorf("%w: task has no next review level", ErrInvalidState)
	}

	current := *task.NextReviewLevel
	level := task.Workflow.LevelAt(current)
	if level == nil {
		return nil, fmt.Errorf("%w: level %d", ErrLevelConfig, current)
	}
	if !rolesIntersect(input.ReviewerRoles, level.AllowedRoles) {
		return nil, &RoleError{Level: current, Required: level.AllowedRoles}
	}

	var toStatus string
	var toLevel *int
	switch actionType {
	case models.ActionApprove:
		toStatus, toLevel = approveTarget(current, task.Workflow.MaxLevel())
	case models.ActionReject:
		toStatus, toLevel = rejectTarget(current)
	default:
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}

	action := &models.TaskAction{
		TaskID:        task.ID,
		ReviewerID:    input.ReviewerID,
		ReviewerRoles: input.ReviewerRoles,
		ActionType:    actionType,
		Comment:       input.Comment,
		FromLevel:     intPtr(current),
		ToLevel:       toLevel,
		FromStatus:    task.Status,
		ToStatus:      toStatus,
	}

	task.Status = toStatus
	task.NextReviewLevel = toLevel

	if err := s.taskRepo.SaveTransition(ctx, task, action); err != nil {
		if errors.Is(err, repositories.ErrStaleRow) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}
	task.LockVersion++
	task.Actions = append(task.Actions, *action)

	metrics.TaskTransitionsTotal.WithLabelValues(actionType, task.Status).Inc()

	log.Info().
		Str("task_id", task.ID.String()).
		Str("action", actionType).
		Str("status", task.Status).
		Str("reviewer_id", input.ReviewerID).
		Msg("Approval task transitioned")

	return newTaskView(task, &task.Workflow), nil
}

type DiscardInput struct {
	TaskIDs       []uuid.UUID
	ReviewerID    string
	ReviewerRoles []string
	Comment       *string
}

type DiscardError struct {
	TaskID uuid.UUID `json:"task_id"`
	Error  string    `json:"error"`
}

type DiscardResult struct {
	Discarded []uuid.UUID    `json:"discarded"`
	Errors    []DiscardError `json:"errors"`
}

// Discard terminates a batch of tasks. Each task is checked independently;
// ineligible tasks are reported in the errors list and never fail the batch.
// All eligible tasks are updated in one write.
func (s *ApprovalService) Discard(ctx context.Context, owner models.Owner, input DiscardInput) (*DiscardResult, error) {
	if input.ReviewerID == "" || len(input.ReviewerRoles) == 0 {
		return nil, ErrReviewerRequired
	}

	result := &DiscardResult{Discarded: []uuid.UUID{}, Errors: []DiscardError{}}
	var tasks []*models.ApprovalTask
	var actions []*models.TaskAction

	for _, taskID := range input.TaskIDs {
		task, err := s.ownedTask(ctx, owner, taskID)
		if err != nil {
			result.Errors = append(result.Errors, DiscardError{TaskID: taskID, Error: err.Error()})
			continue
		}
		if models.IsTerminalTaskStatus(task.Status) {
			result.Errors = append(result.Errors, DiscardError{
				TaskID: taskID,
				Error:  fmt.Sprintf("task is already %s", task.Status),
			})
			continue
		}

		// The role gate applies only when the task's current level actually
		// resolves to a configured level; a task with a dangling level can
		// still be discarded.
		if task.NextReviewLevel != nil {
			if level := task.Workflow.LevelAt(*task.NextReviewLevel); level != nil {
				if !rolesIntersect(input.ReviewerRoles, level.AllowedRoles) {
					roleErr := &RoleError{Level: *task.NextReviewLevel, Required: level.AllowedRoles}
					result.Errors = append(result.Errors, DiscardError{TaskID: taskID, Error: roleErr.Error()})
					continue
				}
			}
		}

		actions = append(actions, &models.TaskAction{
			TaskID:        task.ID,
			ReviewerID:    input.ReviewerID,
			ReviewerRoles: input.ReviewerRoles,
			ActionType:    models.ActionDiscard,
			Comment:       input.Comment,
			FromLevel:     task.NextReviewLevel,
			ToLevel:       nil,
			FromStatus:    task.Status,
			ToStatus:      models.TaskStatusDiscarded,
		})
		task.Status = models.TaskStatusDiscarded
		task.NextReviewLevel = nil
		tasks = append(tasks, task)
	}

	if err := s.taskRepo.SaveTransitions(ctx, tasks, actions); err != nil {
		if errors.Is(err, repositories.ErrStaleRow) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to discard tasks: %w", err)
	}
	for _, task := range tasks {
		result.Discarded = append(result.Discarded, task.ID)
		metrics.TaskTransitionsTotal.WithLabelValues(models.ActionDiscard, task.Status).Inc()
	}

	log.Info().
		Int("discarded", len(result.Discarded)).
		Int("errors", len(result.Errors)).
		Str("reviewer_id", input.ReviewerID).
		Msg("Approval tasks discarded")

	return result, nil
}

// approveTarget resolves the post-approve state: completing at the final
// level, advancing one level otherwise.
func approveTarget(current, maxLevel int) (string, *int) {
	if current >= maxLevel {
		return models.TaskStatusCompleted, nil
	}
	return models.TaskStatusInProgress, intPtr(current + 1)
}

// rejectTarget resolves the post-reject state. Policy: a rejection at level 1
// terminates the task; any later rejection sends it back exactly one level.
func rejectTarget(current int) (string, *int) {
	if current <= 1 {
		return models.TaskStatusRejected, nil
	}
	return models.TaskStatusInProgress, intPtr(current - 1)
}

// ownedTask loads a task and enforces ownership through its workflow. A task
// owned by another tenant is indistinguishable from a missing one.
func (s *ApprovalService) ownedTask(ctx context.Context, owner models.Owner, taskID uuid.UUID) (*models.ApprovalTask, error) {
	task, err := s.taskRepo.FindWithWorkflow(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if !owner.Matches(task.Workflow.OwnerType, task.Workflow.OwnerID) {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *ApprovalService) ownedEnabledWorkflow(ctx context.Context, owner models.Owner, workflowID uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.workflowRepo.FindOwned(ctx, workflowID, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if !workflow.Enabled {
		return nil, ErrWorkflowDisabled
	}
	return workflow, nil
}

func newPendingTask(workflowID uuid.UUID, resourceID string) *models.ApprovalTask {
	return &models.ApprovalTask{
		WorkflowID:      workflowID,
		ResourceID:      resourceID,
		Status:          models.TaskStatusPending,
		NextReviewLevel: intPtr(1),
	}
}

func rolesIntersect(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func intPtr(v int) *int {
	return &v
}
