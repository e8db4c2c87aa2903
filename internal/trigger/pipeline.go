package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avyuktsoni0731/continuum/internal/delegation"
	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
)

// TeammateSelector ranks teammates for delegated work.
type TeammateSelector interface {
	Select(taskCtx policy.TaskContext) *delegation.TeammateScore
}

// TraceStore persists decision traces for audit.
type TraceStore interface {
	SaveTrace(taskKey string, trace policy.DecisionTrace) error
}

// Pipeline runs the decision flow for one event: resolve the task,
// detect mismatches, decide, and act on the decision. Collaborator
// failures degrade toward "notify later"; Process never panics and a
// returned error only means the event could not be acted on at all.
type Pipeline struct {
	engine   *policy.Engine
	detector *Detector
	selector TeammateSelector
	notifier delegation.Notifier
	roster   *delegation.Roster
	traces   TraceStore

	pulls    PullSource
	issues   IssueSource
	calendar Calendar

	automationEnabled bool
	now               func() time.Time
	log               *logging.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineClock overrides the pipeline's clock.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithAutomation enables the automation opt-in signal passed to Decide.
func WithAutomation(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.automationEnabled = enabled }
}

// WithTraceStore persists every decision trace.
func WithTraceStore(traces TraceStore) PipelineOption {
	return func(p *Pipeline) { p.traces = traces }
}

// WithTaskSources sets the collaborators used to resolve task state.
func WithTaskSources(pulls PullSource, issues IssueSource, calendar Calendar) PipelineOption {
	return func(p *Pipeline) {
		p.pulls = pulls
		p.issues = issues
		p.calendar = calendar
	}
}

// WithRoster lets the notify path resolve owners to teammates.
func WithRoster(roster *delegation.Roster) PipelineOption {
	return func(p *Pipeline) { p.roster = roster }
}

// NewPipeline creates a pipeline around the decision engine.
func NewPipeline(engine *policy.Engine, detector *Detector, selector TeammateSelector, notifier delegation.Notifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		engine:   engine,
		detector: detector,
		selector: selector,
		notifier: notifier,
		now:      time.Now,
		log:      logging.Component("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full decision flow for one event.
func (p *Pipeline) Process(ctx context.Context, event Event) error {
	taskCtx := p.resolveContext(ctx, event)

	var mismatch *ContextMismatch
	if p.detector != nil {
		mismatch = p.detector.DetectMismatch(ctx, event)
	}

	userAvailable := p.userAvailable(ctx, event.Data.OwnerID)
	trace := p.engine.Decide(taskCtx, userAvailable, p.automationEnabled)

	if mismatch != nil {
		trace.Reasoning = trace.Reasoning + ". Context mismatch: " + mismatch.Detail
		trace.Factors["mismatch_reason"] = string(mismatch.Reason)
		trace.Factors["mismatch_severity"] = string(mismatch.Severity)
	}

	p.log.InfoCtx("decision made", map[string]any{
		"task":   event.Data.TaskKey,
		"source": event.Source,
		"action": string(trace.Action),
		"cs":     trace.CriticalityScore,
		"afs":    trace.FeasibilityScore,
	})

	switch trace.Action {
	case policy.ActionDelegate:
		p.delegate(ctx, event, taskCtx, &trace, mismatch)
	case policy.ActionNotify, policy.ActionReschedule, policy.ActionSummarize:
		p.notifyOwner(ctx, event, taskCtx, trace, mismatch)
	case policy.ActionExecute, policy.ActionAutomate:
		// Execution itself lives outside the engine; surface the
		// decision to the owner so the work starts.
		p.notifyOwner(ctx, event, taskCtx, trace, mismatch)
	}

	if p.traces != nil {
		if err := p.traces.SaveTrace(event.Data.TaskKey, trace); err != nil {
			p.log.Warnf("persisting trace for %s failed: %v", event.Data.TaskKey, err)
		}
	}
	return nil
}

func (p *Pipeline) delegate(ctx context.Context, event Event, taskCtx policy.TaskContext, trace *policy.DecisionTrace, mismatch *ContextMismatch) {
	if p.selector == nil {
		p.log.Warn("no selector configured, delegation skipped")
		return
	}

	best := p.selector.Select(taskCtx)
	if best == nil {
		p.log.Warnf("no teammate available for %s, delegation skipped", event.Data.TaskKey)
		return
	}
	trace.SelectedTeammate = best.Teammate.Username

	p.send(ctx, best.Teammate, event, taskCtx, *trace, mismatch, "take over this task")
}

func (p *Pipeline) notifyOwner(ctx context.Context, event Event, taskCtx policy.TaskContext, trace policy.DecisionTrace, mismatch *ContextMismatch) {
	owner := p.findOwner(event.Data.OwnerID)
	if owner == nil {
		p.log.Debugf("owner %q not in roster, notification skipped", event.Data.OwnerID)
		return
	}

	var request string
	switch trace.Action {
	case policy.ActionExecute:
		request = "act on this now"
	case policy.ActionAutomate:
		request = "automation approved, review the result"
	case policy.ActionReschedule:
		request = "pick a new time for this task"
	case policy.ActionSummarize:
		request = "review in your next summary"
	default:
		request = "take a look when you can"
	}

	p.send(ctx, *owner, event, taskCtx, trace, mismatch, request)
}

func (p *Pipeline) send(ctx context.Context, teammate delegation.Teammate, event Event, taskCtx policy.TaskContext, trace policy.DecisionTrace, mismatch *ContextMismatch, request string) {
	if p.notifier == nil {
		return
	}

	note := delegation.Notification{
		Teammate:        teammate,
		TaskType:        string(taskCtx.Type),
		TaskID:          event.Data.TaskKey,
		TaskTitle:       taskCtx.Title,
		ActionRequested: request,
		Urgency:         urgency(trace, mismatch),
		Context: map[string]string{
			"criticality_score": fmt.Sprintf("%.1f", trace.CriticalityScore),
			"reasoning":         trace.Reasoning,
			"url":               taskCtx.URL(),
		},
	}

	if err := p.notifier.Notify(ctx, note); err != nil {
		p.log.Errorf("notifying %s about %s failed: %v", teammate.Username, event.Data.TaskKey, err)
	}
}

// resolveContext fetches the task's current state. A failed lookup falls
// back to the identity the event already carries.
func (p *Pipeline) resolveContext(ctx context.Context, event Event) policy.TaskContext {
	fallback := policy.TaskContext{
		Type:  event.Data.TaskType,
		ID:    event.Data.TaskKey,
		Title: event.Data.Metadata["title"],
	}
	if fallback.Title == "" {
		fallback.Title = event.Data.Metadata["summary"]
	}

	callCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	switch event.Data.TaskType {
	case policy.TaskPR:
		if p.pulls == nil {
			return fallback
		}
		taskCtx, err := p.pulls.PullRequest(callCtx, event.Data.TaskKey)
		if err != nil {
			p.log.Warnf("resolving PR %s failed, using event data: %v", event.Data.TaskKey, err)
			return fallback
		}
		return taskCtx
	case policy.TaskIssue:
		if p.issues == nil {
			return fallback
		}
		taskCtx, err := p.issues.Issue(callCtx, event.Data.TaskKey)
		if err != nil {
			p.log.Warnf("resolving issue %s failed, using event data: %v", event.Data.TaskKey, err)
			return fallback
		}
		return taskCtx
	default:
		return fallback
	}
}

// userAvailable reports whether the owner is free right now: busy iff a
// calendar event spans the current moment. Lookup failures assume
// available.
func (p *Pipeline) userAvailable(ctx context.Context, ownerID string) bool {
	if p.calendar == nil || ownerID == "" {
		return true
	}

	callCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	now := p.now()
	events, err := p.calendar.EventsBetween(callCtx, ownerID, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		p.log.Warnf("availability check for %s failed, assuming available: %v", ownerID, err)
		return true
	}

	for _, ev := range events {
		if ev.Start.Before(now) && now.Before(ev.End) {
			return false
		}
	}
	return true
}

func (p *Pipeline) findOwner(ownerID string) *delegation.Teammate {
	if p.roster == nil || ownerID == "" {
		return nil
	}
	for _, tm := range p.roster.Members() {
		if strings.EqualFold(tm.Username, ownerID) || strings.EqualFold(tm.GitHubLogin, ownerID) {
			tmCopy := tm
			return &tmCopy
		}
	}
	return nil
}

func urgency(trace policy.DecisionTrace, mismatch *ContextMismatch) string {
	if mismatch != nil {
		return string(mismatch.Severity)
	}
	switch {
	case trace.CriticalityScore > 80:
		return "high"
	case trace.CriticalityScore > 60:
		return "medium"
	default:
		return "low"
	}
}
