package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
	"github.com/avyuktsoni0731/continuum/internal/sched"
)

// dueSoonWindow is how far ahead a sweep looks for due tasks.
const dueSoonWindow = time.Hour

// TaskStore persists the scheduled-task registry across restarts.
type TaskStore interface {
	SaveTask(task ScheduledTask) error
	DeleteTask(id string) error
	ListTasks() ([]ScheduledTask, error)
}

// Handler consumes trigger events. The Monitor never looks at the result
// beyond logging it; one failing event must not abort a sweep.
type Handler interface {
	Process(ctx context.Context, event Event) error
}

// Monitor owns the registry of scheduled tasks and periodically emits a
// Scheduled event for each task due within the next hour.
type Monitor struct {
	mu       sync.Mutex
	registry map[string]ScheduledTask
	running  bool

	store     TaskStore
	handler   Handler
	scheduler *sched.Scheduler
	now       func() time.Time
	log       *logging.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorClock overrides the monitor's clock.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a monitor. The store may be nil for an in-memory
// registry; the scheduler drives the sweep cadence.
func NewMonitor(store TaskStore, handler Handler, scheduler *sched.Scheduler, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry:  make(map[string]ScheduledTask),
		store:     store,
		handler:   handler,
		scheduler: scheduler,
		now:       time.Now,
		log:       logging.Component("monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the registry from the store.
func (m *Monitor) Load() error {
	if m.store == nil {
		return nil
	}
	tasks, err := m.store.ListTasks()
	if err != nil {
		return fmt.Errorf("loading scheduled tasks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range tasks {
		m.registry[task.ID] = task
	}
	m.log.Infof("loaded %d scheduled tasks", len(tasks))
	return nil
}

// Add registers a task to watch. A missing ID is filled in.
func (m *Monitor) Add(task ScheduledTask) (ScheduledTask, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = m.now()
	}

	if m.store != nil {
		if err := m.store.SaveTask(task); err != nil {
			return ScheduledTask{}, err
		}
	}

	m.mu.Lock()
	m.registry[task.ID] = task
	m.mu.Unlock()

	m.log.InfoCtx("task scheduled", map[string]any{
		"task":         task.TaskKey,
		"type":         string(task.TaskType),
		"scheduled_at": task.ScheduledAt,
	})
	return task, nil
}

// SchedulePRReview schedules a review pass over a pull request.
func (m *Monitor) SchedulePRReview(prKey, ownerID string, at time.Time) (ScheduledTask, error) {
	return m.Add(ScheduledTask{
		TaskType:    policy.TaskPR,
		TaskKey:     prKey,
		ScheduledAt: at,
		OwnerID:     ownerID,
		Metadata:    map[string]string{"intent": "review"},
	})
}

// ScheduleIssueWork schedules work time for an issue.
func (m *Monitor) ScheduleIssueWork(issueKey, ownerID string, at time.Time) (ScheduledTask, error) {
	return m.Add(ScheduledTask{
		TaskType:    policy.TaskIssue,
		TaskKey:     issueKey,
		ScheduledAt: at,
		OwnerID:     ownerID,
		Metadata:    map[string]string{"intent": "work"},
	})
}

// Remove forgets a task. Removal is the only way a task leaves the
// registry; there is no terminal state owned by the monitor itself.
func (m *Monitor) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.registry[id]
	delete(m.registry, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteTask(id); err != nil {
			return err
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("task %s not scheduled", id)
	}
	return nil
}

// List returns all watched tasks ordered by scheduled time.
func (m *Monitor) List() []ScheduledTask {
	m.mu.Lock()
	tasks := make([]ScheduledTask, 0, len(m.registry))
	for _, task := range m.registry {
		tasks = append(tasks, task)
	}
	m.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
	})
	return tasks
}

// Start begins periodic sweeps. Starting twice logs and no-ops.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn("monitor already running")
		return nil
	}
	m.running = true
	m.mu.Unlock()

	m.scheduler.AddJob(m.Sweep)
	if err := m.scheduler.Start(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	m.log.Info("monitor started")
	return nil
}

// Stop halts sweeps. Stopping when not running no-ops.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	if err := m.scheduler.Stop(); err != nil && err != sched.ErrNotRunning {
		return err
	}
	m.log.Info("monitor stopped")
	return nil
}

// Sweep emits one Scheduled event for each task due within the next
// hour. One failing task never aborts the rest of the tick.
func (m *Monitor) Sweep(ctx context.Context) error {
	threshold := m.now().Add(dueSoonWindow)

	due := make([]ScheduledTask, 0)
	m.mu.Lock()
	for _, task := range m.registry {
		if !task.ScheduledAt.After(threshold) {
			due = append(due, task)
		}
	}
	m.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	m.log.Infof("sweep found %d due tasks", len(due))

	for _, task := range due {
		at := task.ScheduledAt
		event := NewEvent(TypeScheduled, "scheduler", EventData{
			TaskType:    task.TaskType,
			TaskKey:     task.TaskKey,
			OwnerID:     task.OwnerID,
			ScheduledAt: &at,
			Metadata:    task.Metadata,
		})

		if err := m.handler.Process(ctx, event); err != nil {
			m.log.ErrorCtx("processing scheduled task failed", map[string]any{
				"task":  task.TaskKey,
				"error": err.Error(),
			})
		}
	}
	return nil
}
