// Package task runs cancellable background operations that report progress.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a task. Succeeded, Failed and Canceled
// are terminal.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

// Progress is emitted every time a task's percentage or state changes.
type Progress struct {
	TaskID  string `json:"task_id"`
	Kind    string `json:"kind"`
	State   State  `json:"state"`
	Percent int    `json:"percent"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of a task.
type Snapshot struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      State     `json:"state"`
	Percent    int       `json:"percent"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Handle is the type-erased view of a Task, for registries.
type Handle interface {
	ID() string
	Snapshot() Snapshot
	Cancel()
	Done() <-chan struct{}
}

// Func does the work of a task. It must call report with a percentage in
// [0, 100] as it advances and return promptly once ctx is cancelled.
type Func[T any] func(ctx context.Context, report func(percent int)) (T, error)

// Option configures a task at start.
type Option func(*options)

type options struct {
	observer func(Progress)
}

// WithObserver registers fn to be called synchronously on every progress
// change. fn must not block.
func WithObserver(fn func(Progress)) Option {
	return func(o *options) { o.observer = fn }
}

// Task is a running operation producing a T.
type Task[T any] struct {
	id       string
	kind     string
	cancel   context.CancelFunc
	done     chan struct{}
	progress chan Progress
	observer func(Progress)

	mu       sync.RWMutex
	state    State
	percent  int
	result   T
	err      error
	created  time.Time
	finished time.Time
}

// Start launches fn in its own goroutine. The task is cancelled when ctx is
// done or Cancel is called.
func Start[T any](ctx context.Context, kind string, fn Func[T], opts ...Option) *Task[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		id:       uuid.NewString(),
		kind:     kind,
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: make(chan Progress, 128),
		observer: o.observer,
		state:    StateQueued,
		created:  time.Now(),
	}
	go t.run(ctx, fn)
	return t
}

func (t *Task[T]) run(ctx context.Context, fn Func[T]) {
	defer t.cancel()
	t.transition(StateRunning, 0, nil)

	res, err := fn(ctx, t.report)

	t.mu.Lock()
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		t.state = StateCanceled
		t.err = err
	case err != nil:
		t.state = StateFailed
		t.err = err
	default:
		t.state = StateSucceeded
		t.percent = 100
		t.result = res
	}
	t.finished = time.Now()
	p := t.progressLocked()
	t.mu.Unlock()

	t.emit(p)
	close(t.progress)
	close(t.done)
}

func (t *Task[T]) report(percent int) {
	percent = min(max(percent, 0), 100)
	t.mu.Lock()
	if t.state != StateRunning || percent <= t.percent {
		t.mu.Unlock()
		return
	}
	t.percent = percent
	p := t.progressLocked()
	t.mu.Unlock()
	t.emit(p)
}

func (t *Task[T]) transition(s State, percent int, err error) {
	t.mu.Lock()
	t.state = s
	t.percent = percent
	t.err = err
	p := t.progressLocked()
	t.mu.Unlock()
	t.emit(p)
}

func (t *Task[T]) progressLocked() Progress {
	p := Progress{TaskID: t.id, Kind: t.kind, State: t.state, Percent: t.percent}
	if t.err != nil {
		p.Error = t.err.Error()
	}
	return p
}

// emit never blocks: a full progress channel drops the update, Snapshot
// still reflects it.
func (t *Task[T]) emit(p Progress) {
	if t.observer != nil {
		t.observer(p)
	}
	select {
	case t.progress <- p:
	default:
	}
}

// ID returns the task identifier.
func (t *Task[T]) ID() string { return t.id }

// Kind returns the label the task was started with.
func (t *Task[T]) Kind() string { return t.kind }

// Progress returns the stream of progress updates. It is closed after the
// terminal update.
func (t *Task[T]) Progress() <-chan Progress { return t.progress }

// Done is closed once the task reaches a terminal state.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Cancel asks the task to stop. It is a no-op once the task has finished.
func (t *Task[T]) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err
}

// Snapshot returns the current state of the task.
func (t *Task[T]) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{
		ID:         t.id,
		Kind:       t.kind,
		State:      t.state,
		Percent:    t.percent,
		CreatedAt:  t.created,
		FinishedAt: t.finished,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// Steps reports n+1 evenly spaced percentages from 0 to 100, sleeping
// interval after each one. It stands in for work whose duration is known
// up front.
func Steps(ctx context.Context, n int, interval time.Duration, report func(int)) error {
	if n <= 0 {
		report(100)
		return ctx.Err()
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for i := 0; i <= n; i++ {
		report(i * 100 / n)
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
