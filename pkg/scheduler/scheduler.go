// Package scheduler runs repeating background tasks at a fixed period.
//
// Every registered task gets its own goroutine and ticker, so a slow task
// cannot starve the others. The trade-off is one goroutine per task, which
// is fine for the handful of maintenance jobs a process registers.
//
// Known limitations:
//   - there is no handle to cancel a single task, only StopAll;
//   - a run is never interrupted or timed out;
//   - a run that takes longer than its interval delays the next firing
//     (missed ticks are dropped, runs of one task never overlap).
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/dobby/pkg/configstore"
)

// DisabledKey is the configuration key that turns the scheduler off.
const DisabledKey = "dobby.scheduler.disabled"

// ErrInvalidInterval is returned by AddRepeating for a non-positive interval.
var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Config configures a Scheduler.
type Config struct {
	// Disabled makes AddRepeating log a warning and register nothing.
	Disabled bool
}

// ConfigFromLookup reads the scheduler configuration.
func ConfigFromLookup(l configstore.Lookup) Config {
	return Config{Disabled: l.Bool(DisabledKey, false)}
}

// Scheduler owns a set of repeating tasks. It is safe for concurrent use.
type Scheduler struct {
	disabled bool

	mu     sync.Mutex
	timers []*timer
}

type timer struct {
	name string
	stop chan struct{}
	done chan struct{}
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{disabled: cfg.Disabled}
}

// Disabled reports whether the scheduler ignores registrations.
func (s *Scheduler) Disabled() bool {
	return s.disabled
}

// AddRepeating runs task immediately and then every interval on a dedicated
// goroutine until StopAll. The name is only used in log output.
// When the scheduler is disabled nothing is registered and nil is returned.
func (s *Scheduler) AddRepeating(name string, task func(), interval time.Duration) error {
	if s.disabled {
		slog.Warn("scheduler: disabled, not scheduling task", "task", name)
		return nil
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %s for task %q", ErrInvalidInterval, interval, name)
	}

	t := &timer{
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()

	go t.loop(task, interval)

	slog.Debug("scheduler: task registered", "task", name, "interval", interval)
	return nil
}

// Len returns the number of running tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// StopAll stops every task and waits for their goroutines to return. A run
// in progress is allowed to finish. Calling StopAll again is a no-op.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	for _, t := range timers {
		close(t.stop)
	}
	for _, t := range timers {
		<-t.done
	}
	if len(timers) > 0 {
		slog.Info("scheduler: stopped", "tasks", len(timers))
	}
}

func (t *timer) loop(task func(), interval time.Duration) {
	defer close(t.done)

	t.run(task)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			// stop wins over a tick that fired at the same time
			select {
			case <-t.stop:
				return
			default:
			}
			t.run(task)
		}
	}
}

// run executes one firing. A panic is logged and the timer keeps going.
func (t *timer) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler: task panicked", "task", t.name, "panic", r)
		}
	}()
	task()
}
