package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is one subscription: an HTTP callback registered against a
// resource type + id pair.
type Webhook struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ResourceType string    `gorm:"size:100;not null;index:idx_webhooks_resource" json:"resource_type"`
	ResourceID   string    `gorm:"size:255;not null;index:idx_webhooks_resource" json:"resource_id"`
	OwnerType    string    `gorm:"size:100;not null" json:"owner_type"`
	OwnerID      string    `gorm:"size:100;not null" json:"owner_id"`
	WebhookType  string    `gorm:"size:20;not null;default:http" json:"webhook_type"`
	URL          string    `gorm:"size:2048;not null" json:"webhook_url"`
	Headers      StringMap `gorm:"type:jsonb" json:"headers,omitempty"`
	// Timeouts are stored in seconds. RequestTimeout bounds each delivery;
	// ConnectionTimeout is advisory, dialing uses the shared client's dial
	// timeout.
	ConnectionTimeout int       `gorm:"not null;default:10" json:"connection_timeout"`
	RequestTimeout    int       `gorm:"not null;default:30" json:"request_timeout"`
	Enabled           bool      `gorm:"default:true" json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// WebhookRun is one trigger event. The row is created before any delivery is
// attempted; CompletedAt is set only after every execution for the run has
// been persisted, so a run with a non-null CompletedAt always has a complete
// execution set.
type WebhookRun struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ResourceType string     `gorm:"size:100;not null;index:idx_webhook_runs_resource" json:"resource_type"`
	ResourceID   string     `gorm:"size:255;not null;index:idx_webhook_runs_resource" json:"resource_id"`
	Content      JSON       `gorm:"type:jsonb" json:"content"`
	Headers      StringMap  `gorm:"type:jsonb" json:"headers,omitempty"`
	TriggeredAt  time.Time  `gorm:"not null;index" json:"triggered_at"`
	TriggeredBy  string     `gorm:"size:255;not null" json:"triggered_by"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (WebhookRun) TableName() string {
	return "webhook_runs"
}

// WebhookExecution is one delivery attempt to one subscriber within a run.
// Subscriber metadata is denormalized at delivery time so the record stays
// meaningful if the subscription is later changed or deleted.
type WebhookExecution struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RunID       uuid.UUID `gorm:"type:uuid;index;not null" json:"webhook_run_id"`
	WebhookID   uuid.UUID `gorm:"type:uuid;index;not null" json:"webhook_id"`
	OwnerType   string    `gorm:"size:100;not null" json:"owner_type"`
	OwnerID     string    `gorm:"size:100;not null" json:"owner_id"`
	WebhookType string    `gorm:"size:20;not null" json:"webhook_type"`
	URL         string    `gorm:"size:2048;not null" json:"webhook_url"`
	Headers     StringMap `gorm:"type:jsonb" json:"headers,omitempty"`
	Result      string    `gorm:"size:20;not null;index" json:"result"`
	StatusCode  *int      `json:"status_code"`
	Response    *string   `gorm:"type:text" json:"response,omitempty"`
	StartedAt   time.Time `gorm:"not null" json:"started_at"`
	EndedAt     time.Time `gorm:"not null" json:"ended_at"`
}

func (WebhookExecution) TableName() string {
	return "webhook_executions"
}
