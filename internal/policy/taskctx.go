// Package policy contains the decision core: criticality and automation
// feasibility scoring, guardrail checks, and the action decision engine.
// Everything in this package is pure and free of I/O.
package policy

import "time"

// TaskType identifies what kind of work a TaskContext describes.
type TaskType string

const (
	TaskPR            TaskType = "pr"
	TaskIssue         TaskType = "issue"
	TaskCalendarEvent TaskType = "calendar_event"
)

// Priority is the externally reported priority of a task.
// PriorityUnknown means the source did not report one.
type Priority string

const (
	PriorityUnknown Priority = ""
	PriorityLowest  Priority = "lowest"
	PriorityLow     Priority = "low"
	PriorityMedium  Priority = "medium"
	PriorityHigh    Priority = "high"
	PriorityHighest Priority = "highest"
)

// SizeClass buckets a change by size. SizeUnknown means not reported.
type SizeClass string

const (
	SizeUnknown SizeClass = ""
	SizeSmall   SizeClass = "small"
	SizeMedium  SizeClass = "medium"
	SizeLarge   SizeClass = "large"
)

// PRDetails holds pull-request-specific fields.
type PRDetails struct {
	Number       int    `json:"number"`
	Author       string `json:"author,omitempty"`
	URL          string `json:"url,omitempty"`
	ChangedFiles int    `json:"changed_files,omitempty"`
}

// IssueDetails holds issue-tracker-specific fields.
type IssueDetails struct {
	Key        string   `json:"key"`
	Reporter   string   `json:"reporter,omitempty"`
	URL        string   `json:"url,omitempty"`
	Components []string `json:"components,omitempty"`
}

// TaskContext is an immutable snapshot of one unit of work at decision time.
// Optional fields use pointers; nil means "unknown" and every scoring and
// guardrail rule has a defined neutral branch for it.
type TaskContext struct {
	Type   TaskType `json:"task_type"`
	ID     string   `json:"task_id"`
	Title  string   `json:"title"`
	Status string   `json:"status,omitempty"`

	Priority Priority   `json:"priority,omitempty"`
	Size     SizeClass  `json:"size,omitempty"`
	AgeDays  *float64   `json:"age_days,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Labels   []string   `json:"labels,omitempty"`

	CIPassed    *bool `json:"ci_passed,omitempty"`
	HasBlockers *bool `json:"has_blockers,omitempty"`
	Mergeable   *bool `json:"mergeable,omitempty"`
	Approvals   *int  `json:"approvals,omitempty"`

	Assignee string `json:"assignee,omitempty"`

	// Exactly one of these is set for PR/issue tasks; both nil for
	// calendar events. Downstream code may read them, scoring only uses
	// the shared fields above.
	PR    *PRDetails    `json:"pr,omitempty"`
	Issue *IssueDetails `json:"issue,omitempty"`
}

// Author returns the task's author or reporter handle, if known.
func (c TaskContext) Author() string {
	switch {
	case c.PR != nil:
		return c.PR.Author
	case c.Issue != nil:
		return c.Issue.Reporter
	}
	return ""
}

// URL returns the task's external link, if known.
func (c TaskContext) URL() string {
	switch {
	case c.PR != nil:
		return c.PR.URL
	case c.Issue != nil:
		return c.Issue.URL
	}
	return ""
}

// Helpers for building optional fields in call sites and tests.

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
