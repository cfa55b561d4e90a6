// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements some extra synchronization tools.
package xsync

import "sync"

// Latch is a signal that can be waited for until it is triggered.
// Once triggered it never changes state, it's forever triggered.
type Latch struct {
	mu   sync.Mutex
	wait chan struct{}
}

// NewLatch returns an un-triggered latch.
func NewLatch() *Latch {
	return &Latch{wait: make(chan struct{})}
}

// Trigger latch. Triggering an already triggered latch is a no-op.
func (l *Latch) Trigger() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Test() {
		return
	}
	close(l.wait)
}

// Wait waits for the latch to be triggered.
func (l *Latch) Wait() {
	<-l.wait
}

// Test checks whether the latch has been triggered.
func (l *Latch) Test() bool {
	select {
	case <-l.wait:
		return true
	default:
		return false
	}
}

// WaitChan returns a channel that is closed when the latch triggers, to be used in a `select`.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.wait
}

// Future is a latch that carries the result of an asynchronous computation: a value and an error.
//
// It is triggered once by the producer with Set, and read by any number of consumers with Wait.
// Later calls to Set are discarded.
type Future[T any] struct {
	value T
	err   error
	latch *Latch
}

// NewFuture returns an unset Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{latch: NewLatch()}
}

// Go runs fn in a new goroutine and returns the Future that will hold its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		value, err := fn()
		f.Set(value, err)
	}()
	return f
}

// Set the result and trigger the future.
func (f *Future[T]) Set(value T, err error) {
	f.latch.mu.Lock()
	defer f.latch.mu.Unlock()
	if f.latch.Test() {
		return
	}
	f.value, f.err = value, err
	close(f.latch.wait)
}

// Wait blocks until the result is set and returns it.
func (f *Future[T]) Wait() (T, error) {
	f.latch.Wait()
	return f.value, f.err
}

// Done returns a channel closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.latch.WaitChan()
}

// Ready returns whether the result is available, without blocking.
func (f *Future[T]) Ready() bool {
	return f.latch.Test()
}
