package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

type WorkflowRepository struct {
	*BaseRepository[models.Workflow]
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{
		BaseRepository: NewBaseRepository[models.Workflow](db),
	}
}

// CreateWithLevels persists a workflow and its approval levels in one
// transaction.
func (r *WorkflowRepository) CreateWithLevels(ctx context.Context, workflow *models.Workflow) error {
	return r.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(workflow).Error
	})
}

// FindOwned returns the workflow with its approval levels, scoped to the
// caller's owner identity. A workflow owned by someone else is reported the
// same way as a missing one.
func (r *WorkflowRepository) FindOwned(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Workflow, error) {
	var workflow models.Workflow
	err := r.DB().WithContext(ctx).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("level ASC")
		}).
		Where("id = ? AND owner_type = ? AND owner_id = ?", id, owner.Type, owner.ID).
		First(&workflow).Error
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

func (r *WorkflowRepository) FindByOwner(ctx context.Context, owner models.Owner, opts *ListOptions) ([]models.Workflow, int64, error) {
	var workflows []models.Workflow
	var total int64

	query := r.DB().WithContext(ctx).
		Model(&models.Workflow{}).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID)
	query.Count(&total)

	err := paginate(query, opts).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("level ASC")
		}).
		Find(&workflows).Error
	return workflows, total, err
}
