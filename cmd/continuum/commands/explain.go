package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/avyuktsoni0731/continuum/internal/delegation"
	"github.com/avyuktsoni0731/continuum/internal/policy"
)

var explainCmd = &cobra.Command{
	Use:   "explain <task-context.json>",
	Short: "Explain what the engine would decide for a task",
	Long: `Read a task context from a JSON file (or stdin with "-") and print the
decision the engine would make, with the scores and reasoning behind it.

Use --unavailable to simulate the owner being busy, --automation to enable
the automation opt-in, and --json for the raw trace.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().Bool("unavailable", false, "Treat the task owner as unavailable")
	explainCmd.Flags().Bool("automation", false, "Enable the automation opt-in")
	explainCmd.Flags().Bool("json", false, "Output the raw decision trace as JSON")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	unavailable, _ := cmd.Flags().GetBool("unavailable")
	automation, _ := cmd.Flags().GetBool("automation")
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := readContextFile(args[0])
	if err != nil {
		return err
	}

	var taskCtx policy.TaskContext
	if err := json.Unmarshal(data, &taskCtx); err != nil {
		return fmt.Errorf("parsing task context: %w", err)
	}

	engine := policy.NewEngine()
	trace := engine.Decide(taskCtx, !unavailable, automation)

	if trace.Action == policy.ActionDelegate {
		if best := rankTeammate(taskCtx); best != nil {
			trace.SelectedTeammate = best.Teammate.Username
		}
	}

	if asJSON {
		out, err := marshalJSON(trace)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Printf("Action: %s\n", trace.Action)
	fmt.Printf("Criticality: %.1f\n", trace.CriticalityScore)
	fmt.Printf("Automation feasibility: %.1f\n", trace.FeasibilityScore)
	fmt.Printf("Reasoning: %s\n", trace.Reasoning)
	if trace.SelectedTeammate != "" {
		fmt.Printf("Delegate to: %s\n", trace.SelectedTeammate)
	}
	if len(trace.GuardrailChecks) > 0 {
		fmt.Println("Guardrails:")
		for name, passed := range trace.GuardrailChecks {
			mark := "fail"
			if passed {
				mark = "pass"
			}
			fmt.Printf("  %s: %s\n", name, mark)
		}
	}
	return nil
}

// rankTeammate runs the selector over the configured roster, if any.
func rankTeammate(taskCtx policy.TaskContext) *delegation.TeammateScore {
	cfg, err := loadConfig()
	if err != nil || cfg.ExpandedRosterPath() == "" {
		return nil
	}
	roster, err := delegation.NewRosterFromFile(cfg.ExpandedRosterPath())
	if err != nil {
		return nil
	}
	return delegation.NewSelector(roster).Select(taskCtx)
}

func readContextFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task context: %w", err)
	}
	return data, nil
}
