// Package delegation selects the best teammate for handed-off work and
// notifies them. Selection is a pure score-and-sort over a roster; the
// roster itself is the only I/O boundary.
package delegation

// Teammate is one candidate for delegated work. Workload and Availability
// are 0-100 signals supplied by collaborators (or roster defaults);
// ownership is computed per task and never stored.
type Teammate struct {
	Username     string  `yaml:"username" json:"username"`
	Email        string  `yaml:"email,omitempty" json:"email,omitempty"`
	SlackID      string  `yaml:"slack_id,omitempty" json:"slack_id,omitempty"`
	GitHubLogin  string  `yaml:"github_login,omitempty" json:"github_login,omitempty"`
	Timezone     string  `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Workload     float64 `yaml:"workload,omitempty" json:"workload,omitempty"`
	Availability float64 `yaml:"availability,omitempty" json:"availability,omitempty"`
}

// TeammateScore is a ranked candidate with the sub-scores that produced
// the ranking.
type TeammateScore struct {
	Teammate  Teammate           `json:"teammate"`
	Total     float64            `json:"total_score"`
	Reasoning string             `json:"reasoning"`
	Factors   map[string]float64 `json:"factors"`
}
