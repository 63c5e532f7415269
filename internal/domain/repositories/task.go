package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

// ErrStaleRow is returned when a compare-and-swap update matched no row,
// meaning another writer got there first.
var ErrStaleRow = errors.New("row version is stale")

type TaskRepository struct {
	*BaseRepository[models.ApprovalTask]
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{
		BaseRepository: NewBaseRepository[models.ApprovalTask](db),
	}
}

// FindWithWorkflow loads a task together with its workflow, the workflow's
// approval levels and the task's full action history.
func (r *TaskRepository) FindWithWorkflow(ctx context.Context, id uuid.UUID) (*models.ApprovalTask, error) {
	var task models.ApprovalTask
	err := r.DB().WithContext(ctx).
		Preload("Workflow").
		Preload("Workflow.Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("level ASC")
		}).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// SaveTransition atomically applies a state transition: the task row is
// updated with a compare-and-swap on lock_version and the history entry is
// appended in the same transaction. ErrStaleRow means a concurrent writer won.
func (r *TaskRepository) SaveTransition(ctx context.Context, task *models.ApprovalTask, action *models.TaskAction) error {
	return r.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ApprovalTask{}).
			Where("id = ? AND lock_version = ?", task.ID, task.LockVersion).
			Updates(map[string]interface{}{
				"status":            task.Status,
				"next_review_level": task.NextReviewLevel,
				"lock_version":      gorm.Expr("lock_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleRow
		}
		return tx.Create(action).Error
	})
}

// SaveTransitions applies a batch of transitions in one transaction. Used by
// bulk discard once per-task eligibility has been decided.
func (r *TaskRepository) SaveTransitions(ctx context.Context, tasks []*models.ApprovalTask, actions []*models.TaskAction) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, task := range tasks {
			res := tx.Model(&models.ApprovalTask{}).
				Where("id = ? AND lock_version = ?", task.ID, task.LockVersion).
				Updates(map[string]interface{}{
					"status":            task.Status,
					"next_review_level": task.NextReviewLevel,
					"lock_version":      gorm.Expr("lock_version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStaleRow
			}
		}
		return tx.Create(actions).Error
	})
}

func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []*models.ApprovalTask) error {
	return r.DB().WithContext(ctx).Create(tasks).Error
}
