package completeness

import (
	"context"
	"sync"
	"time"
)

// Task is one tracked reconciliation pass.
type Task struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}
	result map[string]bool
	err    error
}

func (t *Task) Key() string { return t.key }

// Done is closed when the pass has finished or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the pass. Its results will not be merged.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the pass finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (map[string]bool, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tracker runs at most one pass per key at a time and can cancel them.
type Tracker struct {
	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	timeout time.Duration
	tasks   map[string]*Task
	wg      sync.WaitGroup
}

// NewTracker creates a tracker. A zero timeout means passes run until done or cancelled.
func NewTracker(timeout time.Duration) *Tracker {
	base, stop := context.WithCancel(context.Background())
	return &Tracker{base: base, stop: stop, timeout: timeout, tasks: make(map[string]*Task)}
}

// Start launches fn under key unless a pass for key is already in flight,
// in which case the running task is returned and started is false.
func (t *Tracker) Start(key string, fn func(ctx context.Context) (map[string]bool, error)) (task *Task, started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.tasks[key]; ok {
		return existing, false
	}
	return t.launch(key, fn), true
}

// Replace cancels the pass in flight for key, if any, and starts fn in its
// place.
func (t *Tracker) Replace(key string, fn func(ctx context.Context) (map[string]bool, error)) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.tasks[key]; ok {
		delete(t.tasks, key)
		existing.Cancel()
	}
	return t.launch(key, fn)
}

// launch must be called with t.mu held.
func (t *Tracker) launch(key string, fn func(ctx context.Context) (map[string]bool, error)) *Task {
	var ctx context.Context
	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(t.base, t.timeout)
	} else {
		ctx, cancel = context.WithCancel(t.base)
	}
	task := &Task{key: key, cancel: cancel, done: make(chan struct{})}
	t.tasks[key] = task

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		result, err := fn(ctx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			result = nil
		}
		task.result, task.err = result, err

		t.mu.Lock()
		if t.tasks[key] == task {
			delete(t.tasks, key)
		}
		t.mu.Unlock()
		close(task.done)
	}()
	return task
}

// Running reports whether a pass for key is in flight.
func (t *Tracker) Running(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[key]
	return ok
}

// Cancel stops the in-flight pass for key, if any. The key is free for a new
// pass immediately.
func (t *Tracker) Cancel(key string) bool {
	t.mu.Lock()
	task, ok := t.tasks[key]
	if ok {
		delete(t.tasks, key)
	}
	t.mu.Unlock()
	if ok {
		task.Cancel()
	}
	return ok
}

// Close cancels every pass and waits for them to return.
func (t *Tracker) Close() {
	t.stop()
	t.wg.Wait()
}
