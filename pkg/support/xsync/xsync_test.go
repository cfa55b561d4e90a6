// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	require.False(t, l.Test())
	go l.Trigger()
	select {
	case <-l.WaitChan():
	case <-time.After(time.Second):
		t.Fatal("latch never triggered")
	}
	require.True(t, l.Test())
	l.Trigger() // Second trigger is a no-op.
	l.Wait()
}

func TestFuture(t *testing.T) {
	release := NewLatch()
	f := Go(func() (int, error) {
		release.Wait()
		return 7, nil
	})
	assert.False(t, f.Ready())
	release.Trigger()
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, f.Ready())

	// Only the first Set counts.
	f2 := NewFuture[string]()
	f2.Set("", errors.New("boom"))
	f2.Set("ok", nil)
	<-f2.Done()
	_, err = f2.Wait()
	require.ErrorContains(t, err, "boom")
}
