// Package scheduler runs registered background tasks on cron schedules.
//
// A task is a descriptor {Name, Schedule, Timezone, Handler}. Every run is
// isolated: a returned error or a panic is logged and recorded on the task,
// and the next run proceeds as usual. A task never overlaps itself; a tick
// that fires while the previous run is still going is skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/jobs-service/internal/logging"
)

// ErrUnknownTask is returned by RunNow for an unregistered name.
var ErrUnknownTask = errors.New("unknown task")

// ErrSkipped is returned by RunNow when the task is already running.
var ErrSkipped = errors.New("task already running")

// Task describes one scheduled job.
type Task struct {
	Name string
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@hourly" / "@every 30m".
	Schedule string
	// Timezone is an IANA name. Empty means UTC.
	Timezone string
	Handler  func(ctx context.Context) error
}

// Status is a snapshot of a task's bookkeeping.
type Status struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Timezone  string     `json:"timezone"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int        `json:"runs"`
}

type entry struct {
	task    Task
	cronID  cron.EntryID
	running sync.Mutex

	mu        sync.Mutex
	lastRun   *time.Time
	lastError string
	runs      int
}

// Runner wraps robfig/cron and owns the registered tasks.
type Runner struct {
	cron *cron.Cron
	log  *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a Runner. Tasks receive a context that is cancelled by Stop.
func New(log *logging.Logger) *Runner {
	log = log.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:    cron.New(cron.WithLogger(cronLogger{log})),
		log:     log,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register validates t and adds it to the cron table.
func (r *Runner) Register(t Task) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("task needs a name and a handler")
	}
	tz := t.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("task %s: timezone %q: %w", t.Name, tz, err)
	}
	t.Timezone = tz

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[t.Name]; dup {
		return fmt.Errorf("task %s already registered", t.Name)
	}

	e := &entry{task: t}
	id, err := r.cron.AddFunc("CRON_TZ="+tz+" "+t.Schedule, func() {
		r.run(r.ctx, e)
	})
	if err != nil {
		return fmt.Errorf("task %s: cron.AddFunc: %w", t.Name, err)
	}
	e.cronID = id
	r.entries[t.Name] = e
	r.log.Info("task registered", "task", t.Name, "schedule", t.Schedule, "timezone", tz)
	return nil
}

// Start begins firing schedules. It does not block.
func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info("scheduler started", "tasks", len(r.entries))
}

// Stop cancels running tasks' context and waits for them to return or for
// ctx to expire.
func (r *Runner) Stop(ctx context.Context) {
	r.cancel()
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.log.Info("scheduler stopped")
	case <-ctx.Done():
		r.log.Warn("scheduler stop timed out", "err", ctx.Err())
	}
}

// RunNow runs the named task synchronously, outside its schedule. The run is
// isolated the same way a scheduled run is; its error is also returned.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return r.run(ctx, e)
}

// Statuses returns every task's bookkeeping, sorted by name.
func (r *Runner) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		s := Status{
			Name:      e.task.Name,
			Schedule:  e.task.Schedule,
			Timezone:  e.task.Timezone,
			LastRun:   e.lastRun,
			LastError: e.lastError,
			Runs:      e.runs,
		}
		e.mu.Unlock()
		if next := r.cron.Entry(e.cronID).Next; !next.IsZero() {
			s.NextRun = &next
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) run(ctx context.Context, e *entry) (err error) {
	if !e.running.TryLock() {
		r.log.Warn("task still running, skipping", "task", e.task.Name)
		return ErrSkipped
	}
	defer e.running.Unlock()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", e.task.Name, p)
		}

		e.mu.Lock()
		e.lastRun = &start
		e.runs++
		e.lastError = ""
		if err != nil {
			e.lastError = err.Error()
		}
		e.mu.Unlock()

		if err != nil {
			r.log.Error("task failed", "task", e.task.Name, "duration", time.Since(start), "err", err)
			return
		}
		r.log.Info("task finished", "task", e.task.Name, "duration", time.Since(start))
	}()

	return e.task.Handler(ctx)
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
