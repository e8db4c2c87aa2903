package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avyuktsoni0731/continuum/internal/config"
	"github.com/avyuktsoni0731/continuum/internal/delegation"
	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
	"github.com/avyuktsoni0731/continuum/internal/sched"
	"github.com/avyuktsoni0731/continuum/internal/server"
	"github.com/avyuktsoni0731/continuum/internal/store"
	"github.com/avyuktsoni0731/continuum/internal/trigger"
)

const (
	pidFileName = "continuum.pid"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage background daemon",
	Long:  `Start, stop, or check status of the continuum background daemon.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start background daemon",
	Long: `Start the continuum daemon as a background process.

The daemon sweeps the scheduled task registry on the configured schedule,
listens for GitHub and Jira webhooks, and routes every trigger through
the decision engine.`,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop background daemon",
	Long:  `Stop the running continuum daemon by sending SIGTERM.`,
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  `Check if the continuum daemon is running and show status information.`,
	RunE:  runDaemonStatus,
}

var daemonForegroundFlag bool

func init() {
	daemonStartCmd.Flags().BoolVarP(&daemonForegroundFlag, "foreground", "f", false, "Run in foreground (don't daemonize)")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

// pidFilePath returns the path to the PID file.
func pidFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "continuum", pidFileName)
}

// writePidFile writes the current process PID to the PID file.
func writePidFile() error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath()), 0755); err != nil {
		return fmt.Errorf("creating pid dir: %w", err)
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readPidFile reads the PID from the PID file.
func readPidFile() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// removePidFile removes the PID file.
func removePidFile() error {
	return os.Remove(pidFilePath())
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; send signal 0 to check if alive
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// isDaemonRunning checks if the daemon is currently running.
func isDaemonRunning() (bool, int) {
	pid, err := readPidFile()
	if err != nil {
		return false, 0
	}
	return isProcessRunning(pid), pid
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if running, pid := isDaemonRunning(); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if daemonForegroundFlag {
		return runDaemonLoop(cfg)
	}

	// Daemonize: start a new process with --foreground flag
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable: %w", err)
	}

	childArgs := []string{"daemon", "start", "--foreground"}
	if configPathFlag != "" {
		childArgs = append(childArgs, "--config", configPathFlag)
	}

	child := exec.Command(executable, childArgs...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	// Detach from parent process group
	child.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Printf("daemon started (pid %d)\n", child.Process.Pid)
	return nil
}

func runDaemonLoop(cfg *config.Config) error {
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("daemon")

	if err := writePidFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = removePidFile() }()

	log.Info("daemon starting")

	db, err := store.Open(cfg.ExpandedDBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	roster, err := buildRoster(cfg)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	defer func() { _ = roster.Close() }()

	var notifier delegation.Notifier
	if cfg.Notify.SlackToken != "" {
		notifier = delegation.NewSlackNotifier(cfg.Notify.SlackToken)
	} else {
		log.Warn("no slack token configured, notifications disabled")
	}

	engine := policy.NewEngine()
	selector := delegation.NewSelector(roster)
	detector := trigger.NewDetector(nil, nil, nil)

	pipeline := trigger.NewPipeline(engine, detector, selector, notifier,
		trigger.WithAutomation(cfg.Automation.Enabled),
		trigger.WithRoster(roster),
		trigger.WithTraceStore(db),
	)

	scheduler, err := sched.NewFromConfig(&cfg.Schedule)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	monitor := trigger.NewMonitor(db, pipeline, scheduler)
	if err := monitor.Load(); err != nil {
		return fmt.Errorf("load task registry: %w", err)
	}

	ingestor := trigger.NewIngestor(trigger.NewDedup(0), pipeline)
	srv := server.New(monitor, ingestor, cfg.Server.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	log.InfoCtx("daemon running", map[string]any{
		"addr":     cfg.Server.Addr,
		"next_run": scheduler.NextRun().Format(time.RFC3339),
		"tasks":    len(monitor.List()),
	})

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Errorf("server: %v", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutting down server: %v", err)
	}

	if err := monitor.Stop(); err != nil {
		log.Errorf("stopping monitor: %v", err)
	}

	log.Info("daemon stopped")
	return nil
}

// buildRoster loads the teammate roster and starts the file watcher when a
// roster file is configured.
func buildRoster(cfg *config.Config) (*delegation.Roster, error) {
	path := cfg.ExpandedRosterPath()
	if path == "" {
		return delegation.NewRoster(nil), nil
	}

	roster, err := delegation.NewRosterFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := roster.Watch(); err != nil {
		_ = roster.Close()
		return nil, err
	}
	return roster, nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	running, pid := isDaemonRunning()
	if !running {
		// Check if PID file exists but process is dead
		if _, err := readPidFile(); err == nil {
			_ = removePidFile()
			fmt.Println("daemon not running (stale pid file removed)")
			return nil
		}
		fmt.Println("daemon not running")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM: %w", err)
	}

	fmt.Printf("stopping daemon (pid %d)...\n", pid)

	timeout := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-timeout:
			fmt.Println("daemon did not stop, sending SIGKILL")
			_ = process.Signal(syscall.SIGKILL)
			_ = removePidFile()
			return nil
		case <-tick.C:
			if !isProcessRunning(pid) {
				fmt.Println("daemon stopped")
				_ = removePidFile()
				return nil
			}
		}
	}
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	running, pid := isDaemonRunning()

	if !running {
		fmt.Println("Status: not running")
		return nil
	}

	fmt.Printf("Status: running\n")
	fmt.Printf("PID: %d\n", pid)

	cfg, err := loadConfig()
	if err == nil {
		if cfg.Schedule.Cron != "" {
			fmt.Printf("Schedule: cron %s\n", cfg.Schedule.Cron)
		} else if cfg.Schedule.Interval != "" {
			fmt.Printf("Schedule: every %s\n", cfg.Schedule.Interval)
		}
		if cfg.Schedule.Window != nil {
			fmt.Printf("Window: %s - %s", cfg.Schedule.Window.Start, cfg.Schedule.Window.End)
			if cfg.Schedule.Window.Timezone != "" {
				fmt.Printf(" (%s)", cfg.Schedule.Window.Timezone)
			}
			fmt.Println()
		}
		fmt.Printf("Listen: %s\n", cfg.Server.Addr)
	}

	fmt.Printf("PID file: %s\n", pidFilePath())
	return nil
}
