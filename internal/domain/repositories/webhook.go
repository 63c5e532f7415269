package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

type WebhookRepository struct {
	*BaseRepository[models.Webhook]
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{
		BaseRepository: NewBaseRepository[models.Webhook](db),
	}
}

// FindMatching returns the enabled subscriptions listening on the given
// resource. A non-empty webhookIDs set further restricts the result; the
// schedule engine uses that to fire exactly one subscription.
func (r *WebhookRepository) FindMatching(ctx context.Context, resourceType, resourceID string, webhookIDs []uuid.UUID) ([]models.Webhook, error) {
	query := r.DB().WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND enabled = ?", resourceType, resourceID, true)
	if len(webhookIDs) > 0 {
		query = query.Where("id IN ?", webhookIDs)
	}

	var webhooks []models.Webhook
	err := query.Find(&webhooks).Error
	return webhooks, err
}

// ExistsDuplicate reports whether an identical subscription (same resource,
// owner and URL) is already registered.
func (r *WebhookRepository) ExistsDuplicate(ctx context.Context, w *models.Webhook) (bool, error) {
	var count int64
	err := r.DB().WithContext(ctx).Model(&models.Webhook{}).
		Where("resource_type = ? AND resource_id = ? AND owner_type = ? AND owner_id = ? AND url = ?",
			w.ResourceType, w.ResourceID, w.OwnerType, w.OwnerID, w.URL).
		Count(&count).Error
	return count > 0, err
}

type WebhookFilter struct {
	ResourceType string
	ResourceID   string
	OwnerType    string
	OwnerID      string
	Enabled      *bool
}

func (r *WebhookRepository) Search(ctx context.Context, filter WebhookFilter, opts *ListOptions) ([]models.Webhook, int64, error) {
	query := r.DB().WithContext(ctx).Model(&models.Webhook{})
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.OwnerType != "" {
		query = query.Where("owner_type = ?", filter.OwnerType)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}

	var total int64
	query.Count(&total)

	var webhooks []models.Webhook
	err := paginate(query, opts).Find(&webhooks).Error
	return webhooks, total, err
}
