package policy

import (
	"strings"
	"testing"
	"time"
)

func TestDecide_RuleOrdering(t *testing.T) {
	// CS > 80 with the user available must pick Execute (rule 1) even when
	// the automation rule would also match.
	ctx := automatablePR()
	ctx.Priority = PriorityHighest
	ctx.Labels = []string{"urgent"}
	ctx.Status = "blocked"

	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(ctx, true, true)

	if trace.CriticalityScore <= 80 {
		t.Fatalf("fixture CS = %v, want > 80", trace.CriticalityScore)
	}
	if trace.FeasibilityScore < 70 {
		t.Fatalf("fixture AFS = %v, want >= 70", trace.FeasibilityScore)
	}
	if trace.Action != ActionExecute {
		t.Errorf("Action = %s, want execute", trace.Action)
	}
	if trace.GuardrailChecks == nil {
		t.Error("GuardrailChecks missing for Execute")
	}
}

func TestDecide_DelegateWhenUnavailable(t *testing.T) {
	ctx := automatablePR()
	ctx.Priority = PriorityHighest

	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(ctx, false, true)

	if trace.Action != ActionDelegate {
		t.Errorf("Action = %s, want delegate", trace.Action)
	}
	if !strings.Contains(trace.Reasoning, "User is unavailable") {
		t.Errorf("Reasoning = %q, want unavailability clause", trace.Reasoning)
	}
	if trace.GuardrailChecks != nil {
		t.Error("GuardrailChecks present for Delegate, want absent")
	}
}

func TestDecide_Automate(t *testing.T) {
	// CS in (60,80], AFS >= 70, opt-in, guardrails clean.
	ctx := automatablePR()
	ctx.Status = "in progress" // CS 65

	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(ctx, true, true)

	if trace.Action != ActionAutomate {
		t.Fatalf("Action = %s (CS %v, AFS %v), want automate",
			trace.Action, trace.CriticalityScore, trace.FeasibilityScore)
	}
	if !strings.Contains(trace.Reasoning, "Guardrails passed") {
		t.Errorf("Reasoning = %q, want guardrail clause", trace.Reasoning)
	}
	for name, ok := range trace.GuardrailChecks {
		if !ok {
			t.Errorf("guardrail %q = false on an Automate trace", name)
		}
	}
}

func TestDecide_GuardrailFallback(t *testing.T) {
	// AFS stays at 70 with CI failed (approvals 25 + no blockers 20 +
	// mergeable 15 + PR 10), so rule 3 matches but the CI guardrail vetoes.
	ctx := automatablePR()
	ctx.Status = "in progress"
	ctx.CIPassed = BoolPtr(false)

	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(ctx, true, true)

	if trace.FeasibilityScore != 70 {
		t.Fatalf("fixture AFS = %v, want 70", trace.FeasibilityScore)
	}
	if trace.Action != ActionDelegate {
		t.Errorf("Action = %s, want delegate fallback", trace.Action)
	}
	if !strings.Contains(trace.Reasoning, "CI must pass") {
		t.Errorf("Reasoning = %q, want CI failure explanation", trace.Reasoning)
	}
}

func TestDecide_CriticalityFloor(t *testing.T) {
	// The base score plus non-negative contributions keeps CS at 50 or
	// above, so the summarize branch cannot fire from scored input. The
	// quietest possible task still lands on notify/reschedule.
	ctx := TaskContext{Type: TaskCalendarEvent, Priority: PriorityLowest}

	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(ctx, true, false)

	if trace.CriticalityScore < 50 {
		t.Errorf("CS = %v, want >= 50", trace.CriticalityScore)
	}
	if trace.Action != ActionNotify {
		t.Errorf("Action = %s, want notify", trace.Action)
	}
}

func TestDecide_Reschedule(t *testing.T) {
	// CS exactly 60 (unknown priority) with the user away.
	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(TaskContext{Type: TaskIssue}, false, false)

	if trace.CriticalityScore != 60 {
		t.Fatalf("fixture CS = %v, want 60", trace.CriticalityScore)
	}
	if trace.Action != ActionReschedule {
		t.Errorf("Action = %s, want reschedule", trace.Action)
	}
}

func TestDecide_NotifyDefault(t *testing.T) {
	// Medium criticality and the user is around: nothing stronger applies.
	e := NewEngine(WithClock(businessHours()))
	trace := e.Decide(TaskContext{Type: TaskIssue}, true, false)

	if trace.Action != ActionNotify {
		t.Errorf("Action = %s, want notify", trace.Action)
	}
}

func TestDecide_EndToEndPR42(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	ctx := TaskContext{
		Type:        TaskPR,
		ID:          "42",
		Title:       "Rework payment retries",
		Status:      "in progress",
		Size:        SizeLarge,
		AgeDays:     FloatPtr(4),
		DueAt:       TimePtr(now.Add(12 * time.Hour)),
		Labels:      []string{"urgent"},
		CIPassed:    BoolPtr(true),
		Approvals:   IntPtr(2),
		HasBlockers: BoolPtr(false),
		Mergeable:   BoolPtr(true),
		PR:          &PRDetails{Number: 42},
	}

	e := NewEngine(WithClock(func() time.Time { return now }))
	trace := e.Decide(ctx, false, true)

	if trace.CriticalityScore != 100 {
		t.Errorf("CS = %v, want 100 (clamped)", trace.CriticalityScore)
	}
	if trace.FeasibilityScore != 100 {
		t.Errorf("AFS = %v, want 100", trace.FeasibilityScore)
	}
	if trace.Action != ActionDelegate {
		t.Errorf("Action = %s, want delegate (user unavailable)", trace.Action)
	}
}

func TestDecide_Factors(t *testing.T) {
	e := NewEngine(WithClock(businessHours()))
	ctx := TaskContext{Type: TaskIssue, Priority: PriorityHigh, Status: "open"}
	trace := e.Decide(ctx, true, false)

	if trace.Factors["task_type"] != TaskIssue {
		t.Errorf("factors task_type = %v, want %v", trace.Factors["task_type"], TaskIssue)
	}
	if trace.Factors["priority"] != PriorityHigh {
		t.Errorf("factors priority = %v, want %v", trace.Factors["priority"], PriorityHigh)
	}
	if trace.Factors["status"] != "open" {
		t.Errorf("factors status = %v, want open", trace.Factors["status"])
	}
}

func TestAction_Valid(t *testing.T) {
	for _, a := range []Action{ActionExecute, ActionDelegate, ActionSummarize, ActionReschedule, ActionAutomate, ActionNotify} {
		if !a.Valid() {
			t.Errorf("Action(%s).Valid() = false", a)
		}
	}
	if Action("escalate").Valid() {
		t.Error(`Action("escalate").Valid() = true`)
	}
}
