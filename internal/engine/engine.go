// Package engine drives the scheduler loop: on every tick it computes the
// due set of tasks and dispatches each one to its own runner goroutine,
// with at most one execution in flight per task id.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"bedrockcron/config"
	"bedrockcron/internal/executor"
	"bedrockcron/internal/models"
	"bedrockcron/internal/schedule"
	"bedrockcron/pkg/logger"
)

// storeAlertThreshold is how many consecutive skipped ticks escalate to a
// StoreUnavailable event.
const storeAlertThreshold = 3

// TaskStore is the slice of the task store the engine needs.
type TaskStore interface {
	GetTasks() ([]models.Task, error)
	GetTaskByID(id string) (*models.Task, error)
	RecordRun(id string, at time.Time, result models.RunResult) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	// Tick is the scheduling period. Defaults to one minute; sub-minute
	// ticks buy nothing since the finest schedule granularity is a minute.
	Tick time.Duration
	// ExecTimeout is the hard cap on a single command execution.
	ExecTimeout time.Duration
	// Profile resolves the current connection profile. Called at most once
	// per tick.
	Profile func() (config.Profile, error)
	// Events receives execution outcomes and health alerts. Defaults to a
	// sink that writes to Log.
	Events Events
	Log    *logger.Logger
}

type Engine struct {
	store       TaskStore
	tick        time.Duration
	execTimeout time.Duration
	profileFn   func() (config.Profile, error)
	events      Events
	log         *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	profile  config.Profile
	exec     executor.Executor

	failedTicks int

	// Swapped out in tests.
	now         func() time.Time
	newExecutor func(config.Profile) (executor.Executor, error)

	wg sync.WaitGroup
}

func New(store TaskStore, opts Options) *Engine {
	if opts.Tick <= 0 {
		opts.Tick = time.Minute
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	if opts.Events == nil {
		opts.Events = &LogEvents{Log: opts.Log}
	}
	if opts.Profile == nil {
		opts.Profile = config.LoadProfile
	}

	return &Engine{
		store:       store,
		tick:        opts.Tick,
		execTimeout: opts.ExecTimeout,
		profileFn:   opts.Profile,
		events:      opts.Events,
		log:         opts.Log,
		inflight:    make(map[string]struct{}),
		now:         time.Now,
		newExecutor: executor.New,
	}
}

// Run drives the scheduler until ctx is cancelled, then waits for in-flight
// runs to finish. Nothing that happens inside a tick stops the loop.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("scheduler started",
		logger.Duration("tick", e.tick),
		logger.Duration("exec_timeout", e.execTimeout),
	)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("scheduler stopping, waiting for in-flight runs")
			e.wg.Wait()
			e.closeExecutor()
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: refresh the profile, read the store,
// dispatch every enabled due task in creation order.
func (e *Engine) Tick(ctx context.Context) {
	e.refreshProfile()

	tasks, err := e.store.GetTasks()
	if err != nil {
		e.failedTicks++
		e.log.Error("task store unavailable, skipping tick",
			logger.Err(err),
			logger.Int("consecutive", e.failedTicks),
		)
		if e.failedTicks == storeAlertThreshold {
			e.events.StoreUnavailable(err, e.failedTicks)
		}
		return
	}
	e.failedTicks = 0

	now := e.now()
	for _, t := range tasks {
		if !t.Enabled {
			continue
		}
		spec, err := schedule.Parse(t.Schedule)
		if err != nil {
			// The store validates schedules on write, so this only happens
			// if the database was edited by hand.
			e.log.Warn("task has unparseable schedule",
				logger.String("task_id", t.ID),
				logger.String("schedule", t.Schedule),
				logger.Err(err),
			)
			continue
		}
		if !spec.Due(t.LastRunAt, t.CreatedAt, now) {
			continue
		}
		e.dispatch(ctx, t)
	}
}

// RunNow executes a task immediately, outside its schedule, honoring the
// same in-flight exclusion as the loop.
func (e *Engine) RunNow(ctx context.Context, id string) error {
	e.refreshProfile()

	t, err := e.store.GetTaskByID(id)
	if err != nil {
		return err
	}

	exec, ok := e.acquire(t.ID)
	if !ok {
		return fmt.Errorf("task %s is already running", id)
	}
	if exec == nil {
		e.release(t.ID)
		return fmt.Errorf("no usable connection profile")
	}
	defer e.release(t.ID)

	e.runOne(ctx, *t, exec)
	return nil
}

// dispatch hands one due task to its own runner goroutine, unless a
// previous run of the same id is still in flight.
func (e *Engine) dispatch(ctx context.Context, t models.Task) {
	exec, ok := e.acquire(t.ID)
	if !ok {
		e.log.Debug("previous run still in flight, not re-dispatching",
			logger.String("task_id", t.ID),
			logger.String("name", t.Name),
		)
		return
	}
	if exec == nil {
		e.release(t.ID)
		e.log.Warn("no usable connection profile, task not dispatched",
			logger.String("task_id", t.ID),
		)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(t.ID)
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("task runner panicked",
					logger.String("task_id", t.ID),
					logger.Any("panic", r),
				)
			}
		}()
		e.runOne(ctx, t, exec)
	}()
}

// runOne executes exactly one task end-to-end: call the executor with a
// bounded timeout, record the outcome, emit one event. Failures stay inside
// the runner; they never reach the loop.
func (e *Engine) runOne(ctx context.Context, t models.Task, exec executor.Executor) {
	start := e.now()
	runCtx, cancel := context.WithTimeout(ctx, e.execTimeout)
	defer cancel()

	output, err := exec.Execute(runCtx, t.Command)

	result := models.RunResult{OK: err == nil, Output: output}
	if err != nil {
		result.Error = err.Error()
	}

	// A delete racing this run makes RecordRun a silent no-op; the run
	// itself still completes.
	if rerr := e.store.RecordRun(t.ID, start, result); rerr != nil {
		e.log.Error("failed to record run",
			logger.String("task_id", t.ID),
			logger.Err(rerr),
		)
	}

	e.events.TaskRan(Outcome{
		TaskID:   t.ID,
		Name:     t.Name,
		At:       start,
		Duration: e.now().Sub(start),
		OK:       err == nil,
		Output:   output,
		Err:      err,
	})
}

// acquire test-and-inserts the in-flight marker for id under one lock and
// returns the executor to use. ok is false when a run is already in flight.
func (e *Engine) acquire(id string) (exec executor.Executor, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.inflight[id]; running {
		return nil, false
	}
	e.inflight[id] = struct{}{}
	return e.exec, true
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// refreshProfile reloads the connection profile and rebuilds the executor
// only when the profile actually changed. A reload failure keeps the
// previous profile so a half-edited config file cannot take the scheduler
// down.
func (e *Engine) refreshProfile() {
	profile, err := e.profileFn()
	if err != nil {
		e.log.Warn("connection profile reload failed, keeping previous", logger.Err(err))
		return
	}

	e.mu.Lock()
	unchanged := profile == e.profile && e.exec != nil
	e.mu.Unlock()
	if unchanged {
		return
	}

	next, err := e.newExecutor(profile)
	if err != nil {
		e.log.Warn("cannot build executor for profile", logger.Err(err))
		return
	}

	e.mu.Lock()
	old := e.exec
	e.profile = profile
	e.exec = next
	e.mu.Unlock()

	if closer, ok := old.(io.Closer); ok {
		_ = closer.Close()
	}

	e.log.Info("connection profile loaded",
		logger.String("mode", string(profile.Mode)),
		logger.String("container", profile.Container),
	)
}

func (e *Engine) closeExecutor() {
	e.mu.Lock()
	exec := e.exec
	e.exec = nil
	e.mu.Unlock()
	if closer, ok := exec.(io.Closer); ok {
		_ = closer.Close()
	}
}
