package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_LimitsConcurrency(t *testing.T) {
	pool := NewPool(context.Background(), 2, testLogger())

	var running, peak atomic.Int32
	for i := 0; i < 6; i++ {
		pool.Go("job", func(ctx context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
	}
	pool.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if pool.InFlight() != 0 {
		t.Errorf("in flight after Wait = %d", pool.InFlight())
	}
}

func TestPool_GoDoesNotBlock(t *testing.T) {
	pool := NewPool(context.Background(), 1, testLogger())
	release := make(chan struct{})

	start := time.Now()
	for i := 0; i < 5; i++ {
		pool.Go("blocked", func(ctx context.Context) { <-release })
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Go blocked for %s", elapsed)
	}

	close(release)
	pool.Wait()
}

func TestPool_RecoversPanics(t *testing.T) {
	pool := NewPool(context.Background(), 2, testLogger())
	var ran atomic.Bool

	pool.Go("panics", func(ctx context.Context) { panic("bad payload") })
	pool.Go("survivor", func(ctx context.Context) { ran.Store(true) })
	pool.Wait()

	if !ran.Load() {
		t.Error("a panicking pipeline stopped another from running")
	}
}

func TestPool_CancelledContextDropsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1, testLogger())
	release := make(chan struct{})
	var ran atomic.Int32

	pool.Go("holder", func(ctx context.Context) { <-release })
	time.Sleep(20 * time.Millisecond)
	pool.Go("waiter", func(ctx context.Context) { ran.Add(1) })

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)
	pool.Wait()

	if ran.Load() != 0 {
		t.Error("waiting pipeline ran after the pool was cancelled")
	}
}
