package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

type RunRepository struct {
	*BaseRepository[models.WebhookRun]
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{
		BaseRepository: NewBaseRepository[models.WebhookRun](db),
	}
}

// Complete marks the run finished. Called only after every execution row for
// the run has been persisted.
func (r *RunRepository) Complete(ctx context.Context, runID uuid.UUID, at time.Time) error {
	return r.DB().WithContext(ctx).Model(&models.WebhookRun{}).
		Where("id = ?", runID).
		Update("completed_at", at).Error
}

func (r *RunRepository) CreateExecutions(ctx context.Context, executions []models.WebhookExecution) error {
	if len(executions) == 0 {
		return nil
	}
	return r.DB().WithContext(ctx).Create(&executions).Error
}

type RunFilter struct {
	ResourceType string
	ResourceID   string
	TriggeredBy  string
}

// RunWithCounts is a run row joined with its per-result execution counts.
type RunWithCounts struct {
	models.WebhookRun
	SuccessCount int64 `gorm:"column:success_count" json:"success_count"`
	FailureCount int64 `gorm:"column:failure_count" json:"failure_count"`
}

func (r *RunRepository) SearchWithCounts(ctx context.Context, filter RunFilter, opts *ListOptions) ([]RunWithCounts, int64, error) {
	query := r.DB().WithContext(ctx).Model(&models.WebhookRun{})
	if filter.ResourceType != "" {
		query = query.Where("webhook_runs.resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("webhook_runs.resource_id = ?", filter.ResourceID)
	}
	if filter.TriggeredBy != "" {
		query = query.Where("webhook_runs.triggered_by = ?", filter.TriggeredBy)
	}

	var total int64
	query.Count(&total)

	var runs []RunWithCounts
	err := paginate(query, opts).
		Select("webhook_runs.*, " +
			"COUNT(webhook_executions.id) FILTER (WHERE webhook_executions.result = 'success') AS success_count, " +
			"COUNT(webhook_executions.id) FILTER (WHERE webhook_executions.result = 'failure') AS failure_count").
		Joins("LEFT JOIN webhook_executions ON webhook_executions.run_id = webhook_runs.id").
		Group("webhook_runs.id").
		Find(&runs).Error
	return runs, total, err
}

func (r *RunRepository) FindExecutionsByRun(ctx context.Context, runID uuid.UUID, opts *ListOptions) ([]models.WebhookExecution, int64, error) {
	query := r.DB().WithContext(ctx).Model(&models.WebhookExecution{}).
		Where("run_id = ?", runID)

	var total int64
	query.Count(&total)

	var executions []models.WebhookExecution
	err := paginate(query, opts).Find(&executions).Error
	return executions, total, err
}
