// Package scheduler runs background tasks one at a time in submission order.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of background work. ctx is canceled when the scheduler closes.
type Task func(ctx context.Context)

type item struct {
	name string
	fn   Task
}

// Scheduler is a FIFO task queue drained by a single worker.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	items  []item
	wake   chan struct{}
	closed bool
	idle   *sync.Cond
	busy   bool
	done   chan struct{}
}

// New starts a scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{ctx: ctx, cancel: cancel, wake: make(chan struct{}, 1), done: make(chan struct{})}
	s.idle = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Submit queues fn. Tasks submitted after Close are dropped.
func (s *Scheduler) Submit(name string, fn Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Debug("Dropped task on closed scheduler", "task", name)
		return
	}
	s.items = append(s.items, item{name: name, fn: fn})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks, excluding the running one.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Wait blocks until the queue is empty and no task is running.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.items) != 0 || s.busy {
		s.idle.Wait()
	}
}

// Close runs the queued tasks, then stops the worker. Running tasks see
// their context canceled only after the queue is drained.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
	s.cancel()
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.items) == 0 {
			closed := s.closed
			s.busy = false
			s.idle.Broadcast()
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		it := s.items[0]
		s.items = s.items[1:]
		s.busy = true
		s.mu.Unlock()
		s.exec(it)
	}
}

func (s *Scheduler) exec(it item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Background task panicked", "task", it.name, "panic", r)
		}
	}()
	it.fn(s.ctx)
}
