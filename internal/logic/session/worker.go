package session

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
)

// Worker runs tasks one at a time in submission order on its own goroutine.
// Suspend holds back the next task until Resume; a running task is never
// interrupted and queued tasks are never dropped, except on Close.
type Worker struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []func()
	suspended bool
	closed    bool
	done      chan struct{}
}

// NewWorker starts a worker.
func NewWorker() *Worker {
	w := &Worker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for (len(w.queue) == 0 || w.suspended) && !w.closed {
			w.cond.Wait()
		}
		if w.closed && (len(w.queue) == 0 || w.suspended) {
			w.mu.Unlock()
			return
		}
		task := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		run(task)
	}
}

func run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			debug.Error(fmt.Errorf("worker task panic: %v", r))
		}
	}()
	task()
}

// Enqueue appends a task. It reports false once the worker is closed.
func (w *Worker) Enqueue(task func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, task)
	w.cond.Signal()
	return true
}

// Suspend pauses the worker after the current task.
func (w *Worker) Suspend() {
	w.mu.Lock()
	w.suspended = true
	w.mu.Unlock()
	debug.Trace("Worker: suspended")
}

// Resume lets queued tasks run again.
func (w *Worker) Resume() {
	w.mu.Lock()
	w.suspended = false
	w.cond.Signal()
	w.mu.Unlock()
	debug.Trace("Worker: resumed")
}

// Suspended reports whether the gate is closed.
func (w *Worker) Suspended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspended
}

// Flush blocks until every task enqueued before the call has run.
// It returns immediately if the worker is closed.
func (w *Worker) Flush() {
	ch := make(chan struct{})
	if !w.Enqueue(func() { close(ch) }) {
		return
	}
	select {
	case <-ch:
	case <-w.done:
	}
}

// Close runs the remaining tasks (unless suspended) and stops the worker.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()
	<-w.done
}
