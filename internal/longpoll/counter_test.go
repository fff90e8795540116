// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package longpoll

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter_EnterRelease(t *testing.T) {
	var c Counter
	r1 := c.Enter()
	r2 := c.Enter()
	assert.Equal(t, int64(2), c.Count())

	r1()
	r1()
	assert.Equal(t, int64(1), c.Count(), "release must be idempotent")

	r2()
	assert.Equal(t, int64(0), c.Count())
}

func TestCounter_Concurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := c.Enter()
			defer release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), c.Count())
}

func TestState_Transitions(t *testing.T) {
	assert.True(t, CanTransition(StateCreated, StateSubscribed))
	assert.True(t, CanTransition(StateCreated, StateFailed))
	assert.True(t, CanTransition(StateWaiting, StateTimedOut))
	assert.True(t, CanTransition(StateDelivered, StateClosed))

	assert.False(t, CanTransition(StateCreated, StateWaiting))
	assert.False(t, CanTransition(StateSubscribed, StateDelivered))
	assert.False(t, CanTransition(StateClosed, StateWaiting))

	assert.True(t, StateTimedOut.IsOutcome())
	assert.False(t, StateWaiting.IsOutcome())
	assert.Equal(t, "timed_out", StateTimedOut.Outcome())
}
