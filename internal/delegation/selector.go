package delegation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
)

// Sub-score weights and defaults. Workload and availability default to the
// moderate midpoints used when no collaborator signal is present.
const (
	ownershipWeight    = 0.4
	workloadWeight     = 0.3
	availabilityWeight = 0.3

	defaultWorkload     = 30.0
	defaultAvailability = 50.0
)

// Selector ranks roster members for a task.
type Selector struct {
	roster *Roster
	log    *logging.Logger
}

// NewSelector creates a selector over the given roster.
func NewSelector(roster *Roster) *Selector {
	return &Selector{
		roster: roster,
		log:    logging.Component("selector"),
	}
}

// Select returns the best teammate for the task, or nil when the roster is
// empty. Repeated calls with unchanged inputs return the same candidate.
func (s *Selector) Select(taskCtx policy.TaskContext) *TeammateScore {
	ranked := s.rank(taskCtx)
	if len(ranked) == 0 {
		s.log.Warn("no teammates available for delegation")
		return nil
	}

	best := ranked[0]
	s.log.InfoCtx("selected teammate", map[string]any{
		"teammate": best.Teammate.Username,
		"score":    best.Total,
		"task":     taskCtx.ID,
	})
	return &best
}

// SelectTopN returns the n best candidates, for multi-reviewer scenarios.
func (s *Selector) SelectTopN(taskCtx policy.TaskContext, n int) []TeammateScore {
	ranked := s.rank(taskCtx)
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

func (s *Selector) rank(taskCtx policy.TaskContext) []TeammateScore {
	members := s.roster.Members()
	scored := make([]TeammateScore, 0, len(members))

	for _, tm := range members {
		ownership := ownershipScore(tm, taskCtx)
		workload := tm.Workload
		if workload == 0 {
			workload = defaultWorkload
		}
		availability := tm.Availability
		if availability == 0 {
			availability = defaultAvailability
		}

		total := ownership*ownershipWeight +
			(100-workload)*workloadWeight +
			availability*availabilityWeight

		scored = append(scored, TeammateScore{
			Teammate:  tm,
			Total:     total,
			Reasoning: buildReasoning(ownership, workload, availability),
			Factors: map[string]float64{
				"ownership":    ownership,
				"workload":     workload,
				"availability": availability,
			},
		})
	}

	// Stable order: score descending, username as tiebreak so a fixed
	// roster always ranks the same way.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		return scored[i].Teammate.Username < scored[j].Teammate.Username
	})

	return scored
}

// ownershipScore gives +50 for authoring the task and a +20 familiarity
// credit for PR and issue work, capped at 100.
func ownershipScore(tm Teammate, taskCtx policy.TaskContext) float64 {
	score := 0.0

	author := taskCtx.Author()
	if author != "" && tm.GitHubLogin != "" && strings.EqualFold(author, tm.GitHubLogin) {
		score += 50
	}

	switch taskCtx.Type {
	case policy.TaskPR, policy.TaskIssue:
		score += 20
	}

	if score > 100 {
		score = 100
	}
	return score
}

func buildReasoning(ownership, workload, availability float64) string {
	var parts []string
	if ownership > 50 {
		parts = append(parts, fmt.Sprintf("High ownership match (%.1f)", ownership))
	}
	if workload < 50 {
		parts = append(parts, fmt.Sprintf("Low workload (%.1f)", workload))
	}
	if availability > 50 {
		parts = append(parts, fmt.Sprintf("Available (%.1f)", availability))
	}
	if len(parts) == 0 {
		return "General availability"
	}
	return strings.Join(parts, ". ")
}
