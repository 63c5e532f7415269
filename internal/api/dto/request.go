package dto

import "github.com/flowgate-io/flowgate/internal/domain/models"

// Workflows
type ApprovalLevelRequest struct {
	Name                   string   `json:"name" validate:"required,min=1,max=255"`
	Level                  int      `json:"level" validate:"required,min=1"`
	AllowedRoles           []string `json:"allowed_roles" validate:"required,min=1,dive,min=1"`
	ApprovalCountsRequired int      `json:"approval_counts_required,omitempty" validate:"omitempty,min=1"`
}

type CreateWorkflowRequest struct {
	Name         string                 `json:"name" validate:"required,min=1,max=255"`
	ResourceType string                 `json:"resource_type" validate:"required,min=1,max=100"`
	Enabled      *bool                  `json:"enabled,omitempty"`
	Approvals    []ApprovalLevelRequest `json:"approvals" validate:"required,min=1,dive"`
}

type UpdateWorkflowRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// Approval tasks
type CreateTaskRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required,uuid"`
	ResourceID string `json:"resource_id" validate:"required,min=1,max=255"`
}

type BulkCreateTasksRequest struct {
	WorkflowID  string   `json:"workflow_id" validate:"required,uuid"`
	ResourceIDs []string `json:"resource_ids" validate:"required,min=1,dive,min=1"`
}

type ReviewRequest struct {
	ReviewerID    string   `json:"reviewer_id" validate:"required,min=1,max=255"`
	ReviewerRoles []string `json:"reviewer_roles" validate:"required,min=1,dive,min=1"`
	Comment       *string  `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type DiscardTasksRequest struct {
	TaskIDs       []string `json:"task_ids" validate:"required,min=1,dive,uuid"`
	ReviewerID    string   `json:"reviewer_id" validate:"required,min=1,max=255"`
	ReviewerRoles []string `json:"reviewer_roles" validate:"required,min=1,dive,min=1"`
	Comment       *string  `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// Webhooks
type CreateWebhookRequest struct {
	ResourceType      string           `json:"resource_type" validate:"required,min=1,max=100"`
	ResourceID        string           `json:"resource_id" validate:"required,min=1,max=255"`
	URL               string           `json:"webhook_url" validate:"required,url,max=2048"`
	Headers           models.StringMap `json:"headers,omitempty"`
	ConnectionTimeout *int             `json:"connection_timeout,omitempty" validate:"omitempty,min=1,max=300"`
	RequestTimeout    *int             `json:"request_timeout,omitempty" validate:"omitempty,min=1,max=300"`
	Enabled           *bool            `json:"enabled,omitempty"`
}

type UpdateWebhookRequest struct {
	URL               *string          `json:"webhook_url,omitempty" validate:"omitempty,url,max=2048"`
	Headers           models.StringMap `json:"headers,omitempty"`
	ConnectionTimeout *int             `json:"connection_timeout,omitempty" validate:"omitempty,min=1,max=300"`
	RequestTimeout    *int             `json:"request_timeout,omitempty" validate:"omitempty,min=1,max=300"`
	Enabled           *bool            `json:"enabled,omitempty"`
}

type TriggerWebhooksRequest struct {
	ResourceType string           `json:"resource_type" validate:"required,min=1,max=100"`
	ResourceID   string           `json:"resource_id" validate:"required,min=1,max=255"`
	Content      models.JSON      `json:"content" validate:"required"`
	Headers      models.StringMap `json:"headers,omitempty"`
	TriggeredBy  string           `json:"triggered_by" validate:"required,min=1,max=255"`
}

// Schedules
type CreateScheduleRequest struct {
	WebhookID   string      `json:"webhook_id" validate:"required,uuid"`
	Frequency   string      `json:"frequency" validate:"required,cron"`
	Content     models.JSON `json:"content,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty"`
	EndAt       *int64      `json:"end_at,omitempty"`
	TriggeredBy *string     `json:"triggered_by,omitempty" validate:"omitempty,min=1,max=255"`
}

type UpdateScheduleRequest struct {
	Frequency   *string     `json:"frequency,omitempty" validate:"omitempty,cron"`
	Content     models.JSON `json:"content,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty"`
	EndAt       *int64      `json:"end_at,omitempty"`
	TriggeredBy *string     `json:"triggered_by,omitempty" validate:"omitempty,min=1,max=255"`
}
