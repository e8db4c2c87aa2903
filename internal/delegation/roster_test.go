package delegation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const rosterYAML = `teammates:
  - username: alice
    github_login: alice-gh
    slack_id: U001
    workload: 20
    availability: 80
  - username: bob
    github_login: bob-gh
  - username: ""
    github_login: ghost
`

func writeRosterFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "team.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing roster file: %v", err)
	}
	return path
}

func TestNewRosterFromFile(t *testing.T) {
	path := writeRosterFile(t, rosterYAML)

	roster, err := NewRosterFromFile(path)
	if err != nil {
		t.Fatalf("NewRosterFromFile() error: %v", err)
	}

	members := roster.Members()
	if len(members) != 2 {
		t.Fatalf("expected 2 teammates (empty username dropped), got %d", len(members))
	}
	if members[0].Username != "alice" || members[0].Workload != 20 {
		t.Errorf("unexpected first member: %+v", members[0])
	}
}

func TestNewRosterFromFile_Missing(t *testing.T) {
	if _, err := NewRosterFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing roster file")
	}
}

func TestNewRosterFromFile_Invalid(t *testing.T) {
	path := writeRosterFile(t, "teammates: [not: valid: yaml")
	if _, err := NewRosterFromFile(path); err == nil {
		t.Error("expected error for malformed roster file")
	}
}

func TestRoster_MembersSnapshot(t *testing.T) {
	roster := NewRoster([]Teammate{{Username: "alice"}})

	snapshot := roster.Members()
	snapshot[0].Username = "mutated"

	if roster.Members()[0].Username != "alice" {
		t.Error("Members() snapshot mutation leaked into roster")
	}
}

func TestRoster_Watch(t *testing.T) {
	path := writeRosterFile(t, rosterYAML)

	roster, err := NewRosterFromFile(path)
	if err != nil {
		t.Fatalf("NewRosterFromFile() error: %v", err)
	}
	if err := roster.Watch(); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer func() { _ = roster.Close() }()

	updated := `teammates:
  - username: carol
    github_login: carol-gh
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewriting roster file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		members := roster.Members()
		if len(members) == 1 && members[0].Username == "carol" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("roster not reloaded after file write: %+v", roster.Members())
}

func TestRoster_WatchInline(t *testing.T) {
	roster := NewRoster([]Teammate{{Username: "alice"}})
	if err := roster.Watch(); err != nil {
		t.Errorf("Watch() on inline roster should be a no-op, got %v", err)
	}
	if err := roster.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
