package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/avyuktsoni0731/continuum/internal/policy"
	"github.com/avyuktsoni0731/continuum/internal/store"
	"github.com/avyuktsoni0731/continuum/internal/trigger"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
	Long:  `Add, list, and remove tasks in the scheduled task registry.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a task",
	Long: `Add a task to the registry. The daemon picks it up on its next sweep
once the scheduled time is within the due window.

The --at flag accepts a duration offset ("2h", "45m"), RFC3339, or
"2006-01-02 15:04".`,
	RunE: runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE:  runTaskList,
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRemove,
}

var taskTracesCmd = &cobra.Command{
	Use:   "traces <task-key>",
	Short: "Show recent decision traces for a task",
	Long: `Show the most recent decisions the engine made for a task key,
newest first. Use --limit to change how many are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskTraces,
}

func init() {
	taskAddCmd.Flags().String("type", "pr", "Task type (pr, issue, calendar_event)")
	taskAddCmd.Flags().String("key", "", "Task key (PR number or issue key)")
	taskAddCmd.Flags().String("owner", "", "Owner username")
	taskAddCmd.Flags().String("at", "", "When the task is scheduled")
	_ = taskAddCmd.MarkFlagRequired("key")
	_ = taskAddCmd.MarkFlagRequired("at")

	taskTracesCmd.Flags().Int("limit", 10, "Maximum traces to show")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskTracesCmd)
	rootCmd.AddCommand(taskCmd)
}

// openStore opens the sqlite store at the configured path.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(cfg.ExpandedDBPath())
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	taskType, _ := cmd.Flags().GetString("type")
	taskKey, _ := cmd.Flags().GetString("key")
	owner, _ := cmd.Flags().GetString("owner")
	at, _ := cmd.Flags().GetString("at")

	scheduledAt, err := parseWhen(at)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	task := trigger.ScheduledTask{
		ID:          uuid.NewString(),
		TaskType:    policy.TaskType(taskType),
		TaskKey:     taskKey,
		OwnerID:     owner,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
	if err := db.SaveTask(task); err != nil {
		return fmt.Errorf("saving task: %w", err)
	}

	fmt.Printf("scheduled %s %s at %s (id %s)\n", taskType, taskKey, scheduledAt.Format(time.RFC3339), task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tasks, err := db.ListTasks()
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No scheduled tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tKEY\tOWNER\tSCHEDULED AT")
	for _, task := range tasks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			task.TaskType,
			task.TaskKey,
			task.OwnerID,
			task.ScheduledAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runTaskRemove(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.DeleteTask(args[0]); err != nil {
		return fmt.Errorf("removing task: %w", err)
	}

	fmt.Printf("removed %s\n", args[0])
	return nil
}

func runTaskTraces(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	records, err := db.ListTraces(args[0], limit)
	if err != nil {
		return fmt.Errorf("listing traces: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No traces recorded.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  cs=%.1f afs=%.1f", rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Trace.Action, rec.Trace.CriticalityScore, rec.Trace.FeasibilityScore)
		if rec.Trace.SelectedTeammate != "" {
			fmt.Printf("  -> %s", rec.Trace.SelectedTeammate)
		}
		fmt.Println()
		fmt.Printf("    %s\n", rec.Trace.Reasoning)
	}
	return nil
}

// parseWhen accepts a duration offset from now or an absolute time.
func parseWhen(s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// marshalJSON pretty-prints a value for CLI output.
func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
