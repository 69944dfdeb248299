package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type serialTask struct {
	run  func(context.Context) error
	done chan error
}

// Serializer runs full-preparation tasks one at a time in FIFO submission
// order. The rendering engine's preparation routine is not safe to call
// concurrently from multiple call sites sharing one visualization, so every
// caller funnels through one of these. It is constructor-injected, not a
// package global, and holds no task payload beyond the one executing.
type Serializer struct {
	tasks    chan serialTask
	cooldown time.Duration
	wg       sync.WaitGroup
	closeMu  sync.Mutex
	closed   bool
}

// NewSerializer starts the single worker. cooldown is a fixed pause between
// consecutive tasks to let downstream rendering settle; it never drops work.
func NewSerializer(ctx context.Context, depth int, cooldown time.Duration) *Serializer {
	if depth < 1 {
		depth = 1
	}
	s := &Serializer{
		tasks:    make(chan serialTask, depth),
		cooldown: cooldown,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	return s
}

func (s *Serializer) loop(ctx context.Context) {
	for t := range s.tasks {
		t.done <- s.runOne(ctx, t)
		if s.cooldown > 0 {
			select {
			case <-time.After(s.cooldown):
			case <-ctx.Done():
			}
		}
	}
}

// runOne converts a panic into an error so a failing task rejects only its
// own caller and the next queued task still runs.
func (s *Serializer) runOne(ctx context.Context, t serialTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preparation task panicked: %v", r)
		}
	}()
	return t.run(ctx)
}

// Enqueue submits fn and blocks until it has run, returning its error.
// Callers abandoning via ctx get ctx.Err(); the task itself still runs so
// the queue is never left with silently dropped work.
func (s *Serializer) Enqueue(ctx context.Context, fn func(context.Context) error) error {
	t := serialTask{run: fn, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (s *Serializer) Close() {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
	s.closeMu.Unlock()
	s.wg.Wait()
}
