package models

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalTask struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	WorkflowID uuid.UUID `gorm:"type:uuid;index;not null" json:"workflow_id"`
	ResourceID string    `gorm:"size:255;not null;index" json:"resource_id"`
	Status     string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	// NextReviewLevel is null exactly when the task is terminal.
	NextReviewLevel *int `json:"next_review_level"`
	// LockVersion guards concurrent approve/reject/discard against the same
	// task. Updates compare-and-swap on it; a lost race surfaces as a conflict.
	LockVersion int       `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Workflow Workflow     `gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE" json:"-"`
	Actions  []TaskAction `gorm:"foreignKey:TaskID" json:"action_history"`
}

func (ApprovalTask) TableName() string {
	return "approval_tasks"
}

// TaskAction is one entry of a task's append-only audit history. Rows are
// inserted on every successful action and never updated or deleted.
type TaskAction struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TaskID        uuid.UUID   `gorm:"type:uuid;index;not null" json:"task_id"`
	ReviewerID    string      `gorm:"size:255;not null" json:"reviewer_id"`
	ReviewerRoles StringArray `gorm:"type:text[]" json:"reviewer_roles"`
	ActionType    string      `gorm:"size:20;not null" json:"action_type"`
	Comment       *string     `gorm:"type:text" json:"comment,omitempty"`
	FromLevel     *int        `json:"current_level"`
	ToLevel       *int        `json:"next_level"`
	FromStatus    string      `gorm:"size:20;not null" json:"current_status"`
	ToStatus      string      `gorm:"size:20;not null" json:"next_status"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (TaskAction) TableName() string {
	return "task_actions"
}
