package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

// JSON type for JSONB columns
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSON: not a byte slice")
	}
	return json.Unmarshal(bytes, j)
}

// StringMap type for JSONB columns holding flat string maps (HTTP headers)
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan StringMap: not a byte slice")
	}
	return json.Unmarshal(bytes, m)
}

// StringArray type for text[] columns
type StringArray = pq.StringArray

// Owner identifies the tenant that created a workflow or webhook. It arrives
// on every request as the X-Owner-Type / X-Owner-Id header pair and is the
// principal used for all authorization checks.
type Owner struct {
	Type string `json:"owner_type"`
	ID   string `json:"owner_id"`
}

func (o Owner) Matches(ownerType, ownerID string) bool {
	return o.Type == ownerType && o.ID == ownerID
}

// Approval task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusRejected   = "rejected"
	TaskStatusDiscarded  = "discarded"
)

// IsTerminalTaskStatus reports whether a task status permits no further
// actions. Completed, rejected and discarded are all terminal.
func IsTerminalTaskStatus(status string) bool {
	switch status {
	case TaskStatusCompleted, TaskStatusRejected, TaskStatusDiscarded:
		return true
	}
	return false
}

// Task action types
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionDiscard = "discard"
)

// Webhook types
const (
	WebhookTypeHTTP = "http"
)

// Webhook execution results
const (
	ExecutionResultSuccess = "success"
	ExecutionResultFailure = "failure"
)

// Schedule status constants. A schedule whose end_at has passed is marked
// expired during a scan and never scanned again.
const (
	ScheduleStatusActive  = "active"
	ScheduleStatusExpired = "expired"
)
