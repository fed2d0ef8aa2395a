// Package scheduler implements Grizzly's cron-driven background refresh
// worker: a single worker goroutine wakes on a tick, scans active
// schedules for those due to fire, and dispatches model refreshes via the
// model registry, with a per-schedule retry/backoff state machine.
//
// Cron field parsing is delegated to robfig/cron/v3 rather than
// hand-rolled: successor-of-now under the expression is exactly
// cron.Schedule.Next's contract.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"

	"github.com/zhukovaskychina/grizzly/audit"
	"github.com/zhukovaskychina/grizzly/errs"
)

// State is one of the schedule lifecycle states.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateFiring
	StateArmedBackoff
	StateFailed
	StateTombstoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateFiring:
		return "firing"
	case StateArmedBackoff:
		return "armed-with-backoff"
	case StateFailed:
		return "failed"
	case StateTombstoned:
		return "tombstoned"
	}
	return "unknown"
}

// Refresher is the model-refresh callback the scheduler dispatches to;
// engine.Database satisfies this by wrapping model.Registry + the
// incremental rewrite + execution pipeline.
type Refresher interface {
	RefreshModel(ctx context.Context, modelName string) error
}

// Schedule is one `CREATE SCHEDULE ... FOR MODEL ... CRON '...'` entry.
type Schedule struct {
	ID        string
	ModelName string
	CronExpr  string
	MaxRetries int

	mu        sync.Mutex
	state     State
	schedule  cron.Schedule
	nextFire  time.Time
	retries   atomic.Int32
}

// NewSchedule parses cronExpr (classic 5-field minute/hour/dom/month/
// dow) and returns an armed Schedule with its first next_fire computed
// from now.
func NewSchedule(id, modelName, cronExpr string, maxRetries int, now time.Time) (*Schedule, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, errs.New(errs.InvalidCronExpression, "invalid cron expression %q: %v", cronExpr, err)
	}
	return &Schedule{
		ID:         id,
		ModelName:  modelName,
		CronExpr:   cronExpr,
		MaxRetries: maxRetries,
		state:      StateArmed,
		schedule:   sched,
		nextFire:   sched.Next(now),
	}, nil
}

// State returns the schedule's current lifecycle state.
func (s *Schedule) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextFire returns the schedule's next scheduled fire time.
func (s *Schedule) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

// RetryCount returns the current consecutive-failure count.
func (s *Schedule) RetryCount() int {
	return int(s.retries.Load())
}

// due reports whether the schedule should fire at now, and if so
// transitions it to firing.
func (s *Schedule) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateArmed && s.state != StateArmedBackoff {
		return false
	}
	if now.Before(s.nextFire) {
		return false
	}
	s.state = StateFiring
	return true
}

// succeed resets the retry counter, advances next_fire, and re-arms.
func (s *Schedule) succeed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries.Store(0)
	s.nextFire = s.schedule.Next(now)
	s.state = StateArmed
}

// fail increments the retry counter; past MaxRetries the schedule moves
// to StateFailed (terminal), otherwise it is re-armed with backoff at the
// expression's next tick.
func (s *Schedule) fail(now time.Time) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.retries.Inc()
	if int(n) > s.MaxRetries {
		s.state = StateFailed
		return StateFailed
	}
	s.nextFire = s.schedule.Next(now)
	s.state = StateArmedBackoff
	return StateArmedBackoff
}

// tombstone cancels the schedule; the worker skips tombstoned entries on
// its next pass.
func (s *Schedule) tombstone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateTombstoned
}

// Scheduler owns the registered schedules and the single background
// worker goroutine that drives them.
type Scheduler struct {
	mu        sync.Mutex
	schedules map[string]*Schedule
	refresher Refresher
	audit     *audit.Stream
	tick      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler. tick is the worker's wake interval, clamped
// to 1s resolution; aud may be nil.
func New(refresher Refresher, aud *audit.Stream, tick time.Duration) *Scheduler {
	if tick <= 0 || tick > time.Second {
		tick = time.Second
	}
	return &Scheduler{
		schedules: map[string]*Schedule{},
		refresher: refresher,
		audit:     aud,
		tick:      tick,
	}
}

// Add registers a new schedule, parsing its cron expression immediately so
// a malformed expression is rejected at CREATE SCHEDULE time rather than
// silently never firing.
func (sc *Scheduler) Add(id, modelName, cronExpr string, maxRetries int) (*Schedule, error) {
	s, err := NewSchedule(id, modelName, cronExpr, maxRetries, time.Now())
	if err != nil {
		return nil, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.schedules[id] = s
	return s, nil
}

// Drop tombstones id (DROP SCHEDULE); the entry is left in the map (the
// worker's due() check simply never fires a tombstoned entry again) so a
// concurrent worker pass never races a delete.
func (sc *Scheduler) Drop(id string) {
	sc.mu.Lock()
	s, ok := sc.schedules[id]
	sc.mu.Unlock()
	if ok {
		s.tombstone()
	}
}

// Get returns the named schedule.
func (sc *Scheduler) Get(id string) (*Schedule, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s, ok := sc.schedules[id]
	return s, ok
}

// List returns every non-tombstoned schedule.
func (sc *Scheduler) List() []*Schedule {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]*Schedule, 0, len(sc.schedules))
	for _, s := range sc.schedules {
		if s.State() != StateTombstoned {
			out = append(out, s)
		}
	}
	return out
}

// Start launches the background worker goroutine; it runs until Stop
// cancels its context.
func (sc *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel
	sc.done = make(chan struct{})
	go sc.run(ctx)
}

// Stop cancels the worker goroutine and waits for it to exit.
func (sc *Scheduler) Stop() {
	if sc.cancel == nil {
		return
	}
	sc.cancel()
	<-sc.done
}

func (sc *Scheduler) run(ctx context.Context) {
	defer close(sc.done)
	ticker := time.NewTicker(sc.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sc.sweep(ctx, now)
		}
	}
}

// sweep scans every schedule once, firing and dispatching the ones that
// are due.
func (sc *Scheduler) sweep(ctx context.Context, now time.Time) {
	for _, s := range sc.List() {
		if !s.due(now) {
			continue
		}
		sc.fire(ctx, s, now)
	}
}

func (sc *Scheduler) fire(ctx context.Context, s *Schedule, now time.Time) {
	err := sc.refresher.RefreshModel(ctx, s.ModelName)
	if err != nil {
		state := s.fail(now)
		sc.logEvent(audit.SeverityWarn, s, "refresh failed: "+err.Error())
		if state == StateFailed {
			sc.logEvent(audit.SeverityError, s, "schedule marked failed after exceeding max retries")
		}
		return
	}
	s.succeed(now)
}

func (sc *Scheduler) logEvent(sev audit.Severity, s *Schedule, msg string) {
	if sc.audit == nil {
		return
	}
	sc.audit.Log(audit.Event{
		Operation: audit.OpSchedule,
		Component: "scheduler",
		Severity:  sev,
		Subject:   s.ID,
		Message:   msg,
	})
}
