package trigger

import (
	"context"
	"time"

	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
)

// CalendarEvent is one busy block on a user's calendar.
type CalendarEvent struct {
	Start   time.Time
	End     time.Time
	Summary string
}

// Calendar lists a user's events inside a window.
type Calendar interface {
	EventsBetween(ctx context.Context, ownerID string, start, end time.Time) ([]CalendarEvent, error)
}

// PullSource resolves the current state of a pull request.
type PullSource interface {
	PullRequest(ctx context.Context, key string) (policy.TaskContext, error)
}

// IssueSource resolves the current state of an issue.
type IssueSource interface {
	Issue(ctx context.Context, key string) (policy.TaskContext, error)
}

const (
	meetingWindow = 30 * time.Minute
	overdueAfter  = time.Hour
	lookupTimeout = 30 * time.Second
)

// Detector checks whether previously planned work now conflicts with
// reality. Collaborator failures degrade to "check not triggered".
type Detector struct {
	calendar Calendar
	pulls    PullSource
	issues   IssueSource
	now      func() time.Time
	log      *logging.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorClock overrides the detector's clock.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector. Any collaborator may be nil; its
// checks are then skipped.
func NewDetector(calendar Calendar, pulls PullSource, issues IssueSource, opts ...DetectorOption) *Detector {
	d := &Detector{
		calendar: calendar,
		pulls:    pulls,
		issues:   issues,
		now:      time.Now,
		log:      logging.Component("detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectMismatch runs the mismatch checks in order and returns the first
// positive result, or nil. Events without a scheduled time are skipped.
func (d *Detector) DetectMismatch(ctx context.Context, event Event) *ContextMismatch {
	if event.Data.ScheduledAt == nil {
		return nil
	}
	at := *event.Data.ScheduledAt

	task := ScheduledTask{
		TaskType:    event.Data.TaskType,
		TaskKey:     event.Data.TaskKey,
		ScheduledAt: at,
		OwnerID:     event.Data.OwnerID,
		Metadata:    event.Data.Metadata,
	}

	if d.userInMeeting(ctx, event.Data.OwnerID, at) {
		return d.mismatch(task, ReasonUserInMeeting, SeverityHigh, "owner is in a meeting at the scheduled time")
	}

	if at.Before(d.now().Add(-overdueAfter)) {
		return d.mismatch(task, ReasonTaskOverdue, SeverityHigh, "scheduled time passed more than an hour ago")
	}

	// Conflict check currently reuses the meeting overlap test.
	if d.userInMeeting(ctx, event.Data.OwnerID, at) {
		return d.mismatch(task, ReasonCalendarConflict, SeverityMedium, "calendar conflict around the scheduled time")
	}

	if d.priorityChanged(ctx, event.Data) {
		return d.mismatch(task, ReasonPriorityChanged, SeverityMedium, "task priority escalated since scheduling")
	}

	return nil
}

func (d *Detector) mismatch(task ScheduledTask, reason MismatchReason, severity Severity, detail string) *ContextMismatch {
	d.log.InfoCtx("context mismatch detected", map[string]any{
		"task":     task.TaskKey,
		"reason":   string(reason),
		"severity": string(severity),
	})
	return &ContextMismatch{
		Task:       task,
		Reason:     reason,
		Severity:   severity,
		Detail:     detail,
		DetectedAt: d.now(),
	}
}

// userInMeeting reports whether a calendar event properly contains the
// scheduled time, searching within a ±30 minute window.
func (d *Detector) userInMeeting(ctx context.Context, ownerID string, at time.Time) bool {
	if d.calendar == nil || ownerID == "" {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	events, err := d.calendar.EventsBetween(callCtx, ownerID, at.Add(-meetingWindow), at.Add(meetingWindow))
	if err != nil {
		d.log.Warnf("calendar lookup failed, skipping meeting check: %v", err)
		return false
	}

	for _, ev := range events {
		if ev.Start.Before(at) && at.Before(ev.End) {
			return true
		}
	}
	return false
}

func (d *Detector) priorityChanged(ctx context.Context, data EventData) bool {
	callCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	switch data.TaskType {
	case policy.TaskPR:
		if d.pulls == nil {
			return false
		}
		taskCtx, err := d.pulls.PullRequest(callCtx, data.TaskKey)
		if err != nil {
			d.log.Warnf("pull request lookup failed, skipping priority check: %v", err)
			return false
		}
		return policy.HasUrgentLabel(taskCtx.Labels)
	case policy.TaskIssue:
		if d.issues == nil {
			return false
		}
		taskCtx, err := d.issues.Issue(callCtx, data.TaskKey)
		if err != nil {
			d.log.Warnf("issue lookup failed, skipping priority check: %v", err)
			return false
		}
		return taskCtx.Priority == policy.PriorityHigh || taskCtx.Priority == policy.PriorityHighest
	default:
		return false
	}
}
