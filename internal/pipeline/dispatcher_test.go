package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDispatcherRunsEnqueuedTasks(t *testing.T) {
	d := NewDispatcher(8, 2, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := d.Enqueue(func(context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if !ok {
			t.Fatal("enqueue rejected with free capacity")
		}
	}
	wg.Wait()
	cancel()
	<-done

	if ran.Load() != 5 {
		t.Fatalf("expected 5 tasks run, got %d", ran.Load())
	}
	if d.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", d.Dropped())
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	// workers never started, so the buffer is the only capacity
	d := NewDispatcher(1, 1, time.Second, zerolog.Nop())

	if !d.Enqueue(func(context.Context) {}) {
		t.Fatal("first enqueue should fit the buffer")
	}
	if d.Enqueue(func(context.Context) {}) {
		t.Fatal("second enqueue should be dropped")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", d.Dropped())
	}
}

func TestRunDrainsAcceptedTasksOnCancel(t *testing.T) {
	d := NewDispatcher(8, 1, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int64
	block := make(chan struct{})
	d.Enqueue(func(context.Context) {
		<-block
		ran.Add(1)
	})
	d.Enqueue(func(context.Context) { ran.Add(1) })

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	close(block)
	<-done

	if ran.Load() != 2 {
		t.Fatalf("accepted tasks not drained: %d", ran.Load())
	}
}

func TestEnqueueAfterShutdownIsRejected(t *testing.T) {
	d := NewDispatcher(8, 1, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if d.Enqueue(func(context.Context) {}) {
		t.Fatal("enqueue after shutdown should be rejected")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", d.Dropped())
	}
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	d := NewDispatcher(8, 1, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	survived := make(chan struct{})
	d.Enqueue(func(context.Context) { panic("boom") })
	d.Enqueue(func(context.Context) { close(survived) })

	select {
	case <-survived:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	cancel()
	<-done
}

func TestTaskContextCarriesTimeout(t *testing.T) {
	d := NewDispatcher(8, 1, 50*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadlineSet := make(chan bool, 1)
	d.Enqueue(func(taskCtx context.Context) {
		_, ok := taskCtx.Deadline()
		deadlineSet <- ok
	})

	select {
	case ok := <-deadlineSet:
		if !ok {
			t.Fatal("task context should carry a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	cancel()
	<-done
}
