// Package scheduler runs recurring tasks on fixed intervals.
//
// Tasks are registered under an id with a textual interval ("5m", "2h",
// "1d"). A single background loop ticks once per second and dispatches
// every task whose next run time has passed. Task functions are isolated:
// a panic inside one task is logged and does not affect the loop or the
// remaining tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/coinsentry/pkg/logger"
	str2duration "github.com/xhit/go-str2duration/v2"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidInterval = errors.New("invalid interval")
)

const (
	tickResolution  = time.Second
	stopGracePeriod = 5 * time.Second
)

// Task is a single scheduled registration. Several tasks may share the
// same ID; Cancel removes all of them at once.
type Task struct {
	ID       string
	Interval time.Duration
	NextRun  time.Time
	fn       func()
}

type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task
	log   logger.Logger

	now     func() time.Time
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log: log,
		now: time.Now,
	}
}

// ParseInterval converts a textual interval into a duration. Only
// minute, hour and day units are accepted.
func ParseInterval(interval string) (time.Duration, error) {
	interval = strings.TrimSpace(strings.ToLower(interval))
	if interval == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidInterval)
	}

	switch interval[len(interval)-1] {
	case 'm', 'h', 'd':
	default:
		return 0, fmt.Errorf("%w: %q must end in m, h or d", ErrInvalidInterval, interval)
	}

	d, err := str2duration.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidInterval, interval)
	}

	return d, nil
}

// Schedule registers fn to run every interval, starting one interval
// from now.
func (s *Scheduler) Schedule(taskID, interval string, fn func()) error {
	d, err := ParseInterval(interval)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		ID:       taskID,
		Interval: d,
		NextRun:  s.now().Add(d),
		fn:       fn,
	})

	s.log.WithFields(map[string]any{
		"task":     taskID,
		"interval": interval,
	}).Info("task scheduled")

	return nil
}

// Cancel removes every registration under taskID.
func (s *Scheduler) Cancel(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if t.ID == taskID {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept

	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	s.log.WithField("task", taskID).Info("task cancelled")
	return nil
}

// Tasks returns a snapshot of the current registrations.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, Task{ID: t.ID, Interval: t.Interval, NextRun: t.NextRun})
	}
	return out
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	s.log.Info("scheduler started")
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		s.log.Warn("scheduler did not stop within grace period")
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPending(s.now())
		}
	}
}

// runPending dispatches every task due at the given time. Tasks run
// sequentially; the due list is snapshotted under the lock so task
// functions may schedule or cancel without deadlocking.
func (s *Scheduler) runPending(now time.Time) {
	s.mu.Lock()
	var due []*Task
	for _, t := range s.tasks {
		if !t.NextRun.After(now) {
			t.NextRun = now.Add(t.Interval)
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.runTask(t)
	}
}

func (s *Scheduler) runTask(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("task", t.ID).Errorf("task panicked: %v", r)
		}
	}()
	t.fn()
}
