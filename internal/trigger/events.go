// Package trigger decides when the decision pipeline runs: scheduled due
// sweeps, webhook pushes, and detected context mismatches all funnel into
// the same Event model.
package trigger

import (
	"time"

	"github.com/google/uuid"

	"github.com/avyuktsoni0731/continuum/internal/policy"
)

// Type identifies what produced an event.
type Type string

const (
	TypeScheduled       Type = "scheduled"
	TypeWebhook         Type = "webhook"
	TypeContextMismatch Type = "context_mismatch"
)

// ChangeDetails summarizes one field change carried by a webhook.
type ChangeDetails struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
	By    string `json:"by,omitempty"`
}

// EventData carries the task identity and change context of an event.
type EventData struct {
	TaskType    policy.TaskType   `json:"task_type"`
	TaskKey     string            `json:"task_key"`
	OwnerID     string            `json:"owner_id,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	Change      *ChangeDetails    `json:"change,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Event is one stimulus for the decision pipeline.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // github, jira, scheduler
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(typ Type, source string, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// ScheduledTask is one unit of future work watched by the Monitor.
type ScheduledTask struct {
	ID          string            `json:"id"`
	TaskType    policy.TaskType   `json:"task_type"`
	TaskKey     string            `json:"task_key"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	OwnerID     string            `json:"owner_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// MismatchReason classifies why planned work no longer fits reality.
type MismatchReason string

const (
	ReasonUserInMeeting    MismatchReason = "user_in_meeting"
	ReasonTaskOverdue      MismatchReason = "task_overdue"
	ReasonCalendarConflict MismatchReason = "calendar_conflict"
	ReasonPriorityChanged  MismatchReason = "priority_changed"
)

// Severity grades a detected mismatch.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ContextMismatch is a transient detection result; it is never persisted.
type ContextMismatch struct {
	Task       ScheduledTask
	Reason     MismatchReason
	Severity   Severity
	Detail     string
	DetectedAt time.Time
}
