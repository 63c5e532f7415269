package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

type ScheduleRepository struct {
	*BaseRepository[models.Schedule]
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{
		BaseRepository: NewBaseRepository[models.Schedule](db),
	}
}

// FindActive returns every schedule the engine should consider in a scan:
// enabled and not yet expired. Due-ness is decided in the engine against the
// scan instant.
func (r *ScheduleRepository) FindActive(ctx context.Context) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.DB().WithContext(ctx).
		Where("enabled = ? AND status = ?", true, models.ScheduleStatusActive).
		Find(&schedules).Error
	return schedules, err
}

func (r *ScheduleRepository) FindByWebhookID(ctx context.Context, webhookID uuid.UUID) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.DB().WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Find(&schedules).Error
	return schedules, err
}

// FindByOwner lists the schedules whose target webhook belongs to the owner.
// Schedules carry no owner columns of their own; ownership is inherited from
// the subscription they fire.
func (r *ScheduleRepository) FindByOwner(ctx context.Context, owner models.Owner, opts *ListOptions) ([]models.Schedule, int64, error) {
	query := r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Joins("JOIN webhooks ON webhooks.id = schedules.webhook_id").
		Where("webhooks.owner_type = ? AND webhooks.owner_id = ?", owner.Type, owner.ID)

	var total int64
	query.Count(&total)

	// Qualify the sort column; both joined tables carry created_at.
	if opts != nil && opts.OrderBy != "" {
		scoped := *opts
		scoped.OrderBy = "schedules." + scoped.OrderBy
		opts = &scoped
	}

	var schedules []models.Schedule
	err := paginate(query.Select("schedules.*"), opts).Find(&schedules).Error
	return schedules, total, err
}

// RecordRun advances the schedule's run pointers after a fire.
func (r *ScheduleRepository) RecordRun(ctx context.Context, scheduleID uuid.UUID, lastRunAt, nextRunAt time.Time) error {
	return r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Updates(map[string]interface{}{
			"last_run_at": lastRunAt,
			"next_run_at": nextRunAt,
		}).Error
}

// MarkExpired moves a schedule past its end_at into the terminal expired
// state so later scans skip it at the query level.
func (r *ScheduleRepository) MarkExpired(ctx context.Context, scheduleID uuid.UUID) error {
	return r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Update("status", models.ScheduleStatusExpired).Error
}
