// Package sched runs registered jobs on a cron expression or a fixed
// interval, optionally restricted to a daily time window.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avyuktsoni0731/continuum/internal/config"
	"github.com/avyuktsoni0731/continuum/internal/logging"
)

var (
	ErrNoSchedule     = errors.New("no schedule configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Job is a unit of scheduled work. Errors are logged, not fatal.
type Job func(ctx context.Context) error

// Scheduler runs jobs on a cron or interval schedule.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	schedule cron.Schedule
	interval time.Duration
	window   *Window
	jobs     []Job

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	nextRun time.Time

	log *logging.Logger
}

// New creates an unconfigured scheduler. Set a cron expression or an
// interval before Start.
func New() *Scheduler {
	return &Scheduler{
		log: logging.Component("sched"),
	}
}

// NewFromConfig builds a scheduler from config. Cron takes precedence
// over interval when both are set.
func NewFromConfig(cfg *config.ScheduleConfig) (*Scheduler, error) {
	s := New()

	switch {
	case cfg.Cron != "":
		if err := s.SetCron(cfg.Cron); err != nil {
			return nil, err
		}
	case cfg.Interval != "":
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("parsing interval %q: %w", cfg.Interval, err)
		}
		if err := s.SetInterval(d); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSchedule
	}

	if cfg.Window != nil {
		if err := s.SetWindow(cfg.Window); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SetCron configures a standard five-field cron schedule.
func (s *Scheduler) SetCron(expr string) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parsing cron %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.schedule = schedule
	s.interval = 0
	return nil
}

// SetInterval configures a fixed-interval schedule.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.cronExpr = ""
	s.schedule = nil
	return nil
}

// SetWindow restricts job execution to a daily time window.
func (s *Scheduler) SetWindow(cfg *config.WindowConfig) error {
	start, err := ParseTimeOfDay(cfg.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	end, err := ParseTimeOfDay(cfg.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("window timezone: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = &Window{Start: start, End: end, Location: loc}
	return nil
}

// AddJob registers a job to run on every tick.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start begins running jobs on schedule. It returns once the loop is
// running; cancel ctx or call Stop to end it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.schedule == nil && s.interval == 0 {
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.nextRun = s.next(time.Now())

	go s.run(runCtx)
	return nil
}

// Stop halts the schedule loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// IsRunning reports whether the schedule loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled tick.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

// IsInWindow reports whether t is inside the configured window. With no
// window configured every time qualifies.
func (s *Scheduler) IsInWindow(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		return true
	}
	return s.window.Contains(t)
}

// next computes the tick following now. Callers must hold s.mu.
func (s *Scheduler) next(now time.Time) time.Time {
	if s.schedule != nil {
		return s.schedule.Next(now)
	}
	return now.Add(s.interval)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		next := s.nextRun
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now := <-timer.C:
			if s.IsInWindow(now) {
				s.runJobs(ctx)
			} else {
				s.log.Debug("tick outside window, skipping")
			}

			s.mu.Lock()
			s.nextRun = s.next(time.Now())
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) runJobs(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	for _, job := range jobs {
		if err := job(ctx); err != nil {
			s.log.Errorf("scheduled job failed: %v", err)
		}
	}
}
