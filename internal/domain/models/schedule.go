package models

import (
	"time"

	"github.com/google/uuid"
)

// Schedule is a recurring, cron-driven trigger bound to one webhook.
type Schedule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	WebhookID uuid.UUID `gorm:"type:uuid;index;not null" json:"webhook_id"`
	// Frequency is a standard 5-field cron expression, validated on write.
	Frequency   string     `gorm:"size:100;not null" json:"frequency"`
	Content     JSON       `gorm:"type:jsonb" json:"content"`
	Enabled     bool       `gorm:"default:true" json:"enabled"`
	Status      string     `gorm:"size:20;not null;default:active;index" json:"status"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	TriggeredBy *string    `gorm:"size:255" json:"triggered_by,omitempty"`
	NextRunAt   *time.Time `gorm:"index" json:"next_run_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Webhook Webhook `gorm:"foreignKey:WebhookID" json:"-"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// EffectiveTriggeredBy is the actor recorded on runs fired by this schedule.
func (s *Schedule) EffectiveTriggeredBy() string {
	if s.TriggeredBy != nil && *s.TriggeredBy != "" {
		return *s.TriggeredBy
	}
	return "schedule_" + s.ID.String()
}
