// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/imgpipe/pkg/support/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Bounded(t *testing.T) {
	const maxParallelism = 3
	pool := New(maxParallelism)
	ctx := context.Background()

	var running, peak atomic.Int32
	release := xsync.NewLatch()
	var wg sync.WaitGroup
	started := make(chan struct{}, 10)
	go func() {
		for range 10 {
			wg.Add(1)
			assert.NoError(t, pool.WaitToStart(ctx, func() {
				defer wg.Done()
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				started <- struct{}{}
				release.Wait()
				running.Add(-1)
			}))
		}
	}()

	// Only maxParallelism tasks can be started before release.
	for range maxParallelism {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for tasks to start")
		}
	}
	select {
	case <-started:
		t.Fatal("more tasks started than the pool allows")
	case <-time.After(50 * time.Millisecond):
	}
	release.Trigger()
	for range 10 - maxParallelism {
		<-started
	}
	wg.Wait()
	assert.Equal(t, int32(maxParallelism), peak.Load())
}

func TestPool_Inline(t *testing.T) {
	pool := New(0)
	assert.False(t, pool.IsEnabled())
	var count int
	require.NoError(t, pool.WaitToStart(context.Background(), func() { count++ }))
	assert.Equal(t, 1, count) // Ran inline, so already finished.
}

func TestPool_Cancelled(t *testing.T) {
	pool := New(1)
	release := xsync.NewLatch()
	require.NoError(t, pool.WaitToStart(context.Background(), func() { release.Wait() }))
	defer release.Trigger()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- pool.WaitToStart(ctx, func() { t.Error("task should not have run") })
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errs:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock WaitToStart")
	}
	assert.Equal(t, 1, pool.NumRunning())
}
