package policy

import (
	"fmt"
	"strings"
	"time"
)

// Action is what the system decides to do with a task.
type Action string

const (
	ActionExecute    Action = "execute"    // user available, act now
	ActionDelegate   Action = "delegate"   // hand to the best teammate
	ActionSummarize  Action = "summarize"  // low priority, batch for later
	ActionReschedule Action = "reschedule" // can't do now, pick a new time
	ActionAutomate   Action = "automate"   // safe to act without a human
	ActionNotify     Action = "notify"     // just tell someone
)

// Valid reports whether a is one of the closed set of actions.
func (a Action) Valid() bool {
	switch a {
	case ActionExecute, ActionDelegate, ActionSummarize, ActionReschedule, ActionAutomate, ActionNotify:
		return true
	}
	return false
}

// DecisionTrace records a decision and everything that produced it, for
// explainability and audit.
type DecisionTrace struct {
	Action           Action          `json:"action"`
	CriticalityScore float64         `json:"criticality_score"`
	FeasibilityScore float64         `json:"automation_feasibility_score"`
	UserAvailable    bool            `json:"user_available"`
	Reasoning        string          `json:"reasoning"`
	Factors          map[string]any  `json:"factors"`
	SelectedTeammate string          `json:"selected_teammate,omitempty"`
	GuardrailChecks  map[string]bool `json:"guardrail_checks,omitempty"`
}

// Engine makes decisions. It holds only a clock so traces are reproducible
// under test; Decide itself is pure and safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a decision engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide maps a task context plus live signals onto one action. The rule
// list is ordered and the first match wins:
//
//  1. CS > 80 and user available            -> Execute
//  2. CS > 60 and user unavailable          -> Delegate
//  3. CS > 60, AFS >= 70, automation opt-in -> Automate (guardrails willing)
//  4. CS < 40                               -> Summarize
//  5. CS in [40,60] and user unavailable    -> Reschedule
//  6. otherwise                             -> Notify
//
// Decide never fails: missing fields degrade to the unknown branch of the
// relevant scoring rule, and a guardrail rejection is a normal Delegate
// outcome, not an error.
func (e *Engine) Decide(ctx TaskContext, userAvailable, automationEnabled bool) DecisionTrace {
	now := e.now()
	cs := Criticality(ctx, now)
	afs := AutomationFeasibility(ctx)

	factors := map[string]any{
		"criticality_score":            cs,
		"automation_feasibility_score": afs,
		"user_available":               userAvailable,
		"task_type":                    ctx.Type,
		"priority":                     ctx.Priority,
		"status":                       ctx.Status,
	}

	var action Action
	var reasons []string

	switch {
	case cs > 80 && userAvailable:
		action = ActionExecute
		reasons = append(reasons,
			fmt.Sprintf("High criticality (CS: %.1f)", cs),
			"User is available",
			"Execute directly")

	case cs > 60 && !userAvailable:
		action = ActionDelegate
		reasons = append(reasons,
			fmt.Sprintf("High criticality (CS: %.1f)", cs),
			"User is unavailable",
			"Delegate to best teammate")

	case cs > 60 && afs >= 70 && automationEnabled:
		guard := e.CheckGuardrails(ActionAutomate, ctx, automationEnabled)
		if guard.Allowed {
			action = ActionAutomate
			reasons = append(reasons,
				fmt.Sprintf("High criticality (CS: %.1f)", cs),
				fmt.Sprintf("High automation feasibility (AFS: %.1f)", afs),
				"Guardrails passed",
				"Safe to automate")
		} else {
			action = ActionDelegate
			reasons = append(reasons,
				fmt.Sprintf("High criticality (CS: %.1f)", cs),
				"Automation not safe",
				guard.Reason,
				"Delegate instead")
		}

	case cs < 40:
		action = ActionSummarize
		reasons = append(reasons,
			fmt.Sprintf("Low criticality (CS: %.1f)", cs),
			"Summarize and batch for later")

	case !userAvailable:
		// cs is in [40,60] here by elimination.
		action = ActionReschedule
		reasons = append(reasons,
			fmt.Sprintf("Medium criticality (CS: %.1f)", cs),
			"User is unavailable",
			"Reschedule for when user is available")

	default:
		action = ActionNotify
		reasons = append(reasons,
			fmt.Sprintf("Criticality: %.1f", cs),
			"Notify user/team")
	}

	trace := DecisionTrace{
		Action:           action,
		CriticalityScore: cs,
		FeasibilityScore: afs,
		UserAvailable:    userAvailable,
		Reasoning:        strings.Join(reasons, ". "),
		Factors:          factors,
	}

	// Attach the checks that actually gate the chosen action. Execute is
	// guarded too: the no-blockers rule applies to direct execution.
	if action == ActionAutomate || action == ActionExecute {
		trace.GuardrailChecks = e.CheckGuardrails(action, ctx, automationEnabled).Checks
	}

	return trace
}
