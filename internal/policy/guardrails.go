package policy

import (
	"fmt"
	"strings"
)

// productionLabels mark a task as touching a production-like surface.
var productionLabels = []string{"production", "prod", "live", "main", "master"}

// GuardrailResult reports the outcome of the safety checks for one action.
// Allowed is the AND of all entries in Checks.
type GuardrailResult struct {
	Allowed bool            `json:"allowed"`
	Reason  string          `json:"reason"`
	Checks  map[string]bool `json:"checks"`
}

// allPassedReason is the sentinel used when every check holds.
const allPassedReason = "All checks passed"

// CheckGuardrails evaluates the safety predicates that gate an action.
// Only Automate and Execute are guarded; any other action returns a vacuous
// pass with an empty check map, so callers must not rely on guardrails to
// veto Delegate or Notify. The AFS check recomputes the score rather than
// trusting one handed in, so a stale caller value can never open the gate.
func (e *Engine) CheckGuardrails(action Action, ctx TaskContext, automationEnabled bool) GuardrailResult {
	checks := make(map[string]bool)
	var reasons []string

	if action == ActionAutomate {
		checks["automation_opt_in"] = automationEnabled
		if !automationEnabled {
			reasons = append(reasons, "User has not opted into automation")
		}

		afs := AutomationFeasibility(ctx)
		checks["high_afs"] = afs >= 70
		if afs < 70 {
			reasons = append(reasons, fmt.Sprintf("Automation feasibility too low (AFS: %.1f < 70)", afs))
		}

		approvals := 0
		if ctx.Approvals != nil {
			approvals = *ctx.Approvals
		}
		isProduction := touchesProduction(ctx.Labels)
		checks["production_safe"] = !isProduction || approvals >= 2
		if isProduction && approvals < 2 {
			reasons = append(reasons, "Production changes require 2+ approvals")
		}

		// Unknown CI is not good enough to automate.
		ciPassed := ctx.CIPassed != nil && *ctx.CIPassed
		checks["ci_passed"] = ciPassed
		if !ciPassed {
			reasons = append(reasons, "CI must pass before automation")
		}

		hour := e.now().Hour()
		checks["business_hours"] = hour >= 9 && hour < 18
		if hour < 9 || hour >= 18 {
			reasons = append(reasons, "Automation only allowed during business hours")
		}
	}

	if action == ActionAutomate || action == ActionExecute {
		blocked := ctx.HasBlockers != nil && *ctx.HasBlockers
		checks["no_blockers"] = !blocked
		if blocked {
			reasons = append(reasons, "Task has blockers")
		}
	}

	allowed := true
	for _, ok := range checks {
		if !ok {
			allowed = false
			break
		}
	}

	reason := allPassedReason
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return GuardrailResult{Allowed: allowed, Reason: reason, Checks: checks}
}

func touchesProduction(labels []string) bool {
	for _, label := range labels {
		l := strings.ToLower(label)
		for _, prod := range productionLabels {
			if l == prod {
				return true
			}
		}
	}
	return false
}
