package models

import (
	"time"

	"github.com/google/uuid"
)

type Workflow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ResourceType string    `gorm:"size:100;not null;index" json:"resource_type"`
	OwnerType    string    `gorm:"size:100;not null;index:idx_workflows_owner" json:"owner_type"`
	OwnerID      string    `gorm:"size:100;not null;index:idx_workflows_owner" json:"owner_id"`
	Enabled      bool      `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Approvals []ApprovalLevel `gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE" json:"approvals"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// MaxLevel returns the highest approval level number. Levels are validated at
// creation to form the exact sequence 1..N, so this is also the level count.
func (w *Workflow) MaxLevel() int {
	max := 0
	for _, a := range w.Approvals {
		if a.Level > max {
			max = a.Level
		}
	}
	return max
}

// LevelAt returns the approval level with the given number, or nil.
func (w *Workflow) LevelAt(level int) *ApprovalLevel {
	for i := range w.Approvals {
		if w.Approvals[i].Level == level {
			return &w.Approvals[i]
		}
	}
	return nil
}

type ApprovalLevel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	WorkflowID uuid.UUID `gorm:"type:uuid;index;not null" json:"workflow_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Level      int       `gorm:"not null" json:"level"`
	// AllowedRoles is the set of caller roles permitted to act at this level.
	AllowedRoles StringArray `gorm:"type:text[];not null" json:"allowed_roles"`
	// ApprovalCountsRequired is captured from configuration but no quorum
	// logic consumes it yet.
	ApprovalCountsRequired int       `gorm:"not null;default:1" json:"approval_counts_required"`
	CreatedAt              time.Time `json:"created_at"`
}

func (ApprovalLevel) TableName() string {
	return "approval_levels"
}
