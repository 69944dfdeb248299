package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	s := NewSerializer(ctx, 8, 0)
	defer s.Close()

	var mu sync.Mutex
	var order []string
	record := func(name string, d time.Duration) func(context.Context) error {
		return func(context.Context) error {
			time.Sleep(d)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	var wg sync.WaitGroup
	enqueue := func(name string, d time.Duration) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Enqueue(ctx, record(name, d))
		}()
		// Give the submission a moment to land before the next one.
		time.Sleep(20 * time.Millisecond)
	}

	// T2 is the slowest; completion order must still be T1, T2, T3.
	enqueue("t1", 10*time.Millisecond)
	enqueue("t2", 150*time.Millisecond)
	enqueue("t3", 10*time.Millisecond)
	wg.Wait()

	assert.Equal(t, []string{"t1", "t2", "t3"}, order)
}

func TestSerializer_SingleFlight(t *testing.T) {
	ctx := context.Background()
	s := NewSerializer(ctx, 8, 0)
	defer s.Close()

	var mu sync.Mutex
	running, maxRunning := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Enqueue(ctx, func(context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxRunning, "at most one task may run at a time")
}

func TestSerializer_FailureRejectsOnlyItsCaller(t *testing.T) {
	ctx := context.Background()
	s := NewSerializer(ctx, 8, 0)
	defer s.Close()

	boom := errors.New("boom")
	var wg sync.WaitGroup
	errs := make([]error, 3)
	tasks := []func(context.Context) error{
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
		func(context.Context) error { return nil },
	}
	for i, fn := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Enqueue(ctx, fn)
		}()
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2], "a failing task must not block the next one")
}

func TestSerializer_PanicBecomesError(t *testing.T) {
	ctx := context.Background()
	s := NewSerializer(ctx, 4, 0)
	defer s.Close()

	err := s.Enqueue(ctx, func(context.Context) error { panic("unhinged") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhinged")

	assert.NoError(t, s.Enqueue(ctx, func(context.Context) error { return nil }))
}

func TestSerializer_AbandonedCallerStillRuns(t *testing.T) {
	ctx := context.Background()
	s := NewSerializer(ctx, 4, 0)
	defer s.Close()

	// Occupy the worker so the second task sits in the queue.
	gate := make(chan struct{})
	go func() {
		_ = s.Enqueue(ctx, func(context.Context) error {
			<-gate
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ran := make(chan struct{})
	callerCtx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := s.Enqueue(callerCtx, func(context.Context) error {
		close(ran)
		return nil
	})

	// The abandoning caller gets its context error, but the queued work is
	// never dropped.
	require.ErrorIs(t, err, context.Canceled)
	close(gate)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued task never ran")
	}
}
