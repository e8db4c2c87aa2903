package policy

import (
	"strings"
	"time"
)

// urgencyVocabulary is matched case-insensitively as substrings of labels.
var urgencyVocabulary = []string{"urgent", "critical", "blocker", "hotfix", "p0", "p1"}

// Criticality computes the Criticality Score (CS) in [0,100].
// Higher means the task needs attention more urgently. Contributions are
// independent and additive: priority, due-date proximity relative to now,
// age, size, urgent labels, and status. Missing fields contribute their
// neutral amount, never an error.
func Criticality(ctx TaskContext, now time.Time) float64 {
	score := 50.0 // neutral base

	// Priority (0-30). Unknown priority still signals "someone filed it".
	switch ctx.Priority {
	case PriorityHighest:
		score += 30
	case PriorityHigh:
		score += 25
	case PriorityMedium:
		score += 15
	case PriorityLow:
		score += 5
	case PriorityLowest:
		score += 0
	default:
		score += 10
	}

	// Due date proximity (0-25).
	if ctx.DueAt != nil {
		hoursLeft := ctx.DueAt.Sub(now).Hours()
		switch {
		case hoursLeft < 0:
			score += 25
		case hoursLeft < 24:
			score += 20
		case hoursLeft < 48:
			score += 15
		case hoursLeft < 168:
			score += 10
		}
	}

	// Age (0-20). Old undone work grows more critical.
	if ctx.AgeDays != nil {
		switch {
		case *ctx.AgeDays > 7:
			score += 20
		case *ctx.AgeDays > 3:
			score += 15
		case *ctx.AgeDays > 1:
			score += 10
		}
	}

	// Size (0-15), only for size-bearing tasks. An unrecognized size still
	// earns the small-change credit.
	if ctx.Size != SizeUnknown {
		switch ctx.Size {
		case SizeLarge:
			score += 15
		case SizeMedium:
			score += 10
		default:
			score += 5
		}
	}

	// Labels (0-10). One urgent label is enough.
	if HasUrgentLabel(ctx.Labels) {
		score += 10
	}

	// Status (0-10).
	status := strings.ToLower(ctx.Status)
	switch {
	case strings.Contains(status, "blocked"), strings.Contains(status, "stuck"):
		score += 10
	case strings.Contains(status, "in progress"):
		score += 5
	}

	return clampScore(score)
}

// AutomationFeasibility computes the Automation Feasibility Score (AFS) in
// [0,100]. Unlike CS there is no base offset: the score accumulates evidence
// that acting without a human is safe. Unknown fields earn partial credit.
func AutomationFeasibility(ctx TaskContext) float64 {
	score := 0.0

	// CI status (0-30).
	switch {
	case ctx.CIPassed == nil:
		score += 15
	case *ctx.CIPassed:
		score += 30
	}

	// Approvals (0-25). Absent counts as no evidence at all.
	if ctx.Approvals != nil {
		switch {
		case *ctx.Approvals >= 2:
			score += 25
		case *ctx.Approvals == 1:
			score += 15
		default:
			score += 5
		}
	}

	// Blockers (0-20).
	switch {
	case ctx.HasBlockers == nil:
		score += 10
	case !*ctx.HasBlockers:
		score += 20
	}

	// Mergeability (0-15).
	switch {
	case ctx.Mergeable == nil:
		score += 7
	case *ctx.Mergeable:
		score += 15
	}

	// Task type (0-10). PRs carry machine-checkable signals; issues need
	// more human judgment.
	switch ctx.Type {
	case TaskPR:
		score += 10
	case TaskIssue:
		score += 5
	}

	return clampScore(score)
}

// HasUrgentLabel reports whether any label contains a term from the
// urgency vocabulary, case-insensitively.
func HasUrgentLabel(labels []string) bool {
	for _, label := range labels {
		l := strings.ToLower(label)
		for _, urgent := range urgencyVocabulary {
			if strings.Contains(l, urgent) {
				return true
			}
		}
	}
	return false
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
