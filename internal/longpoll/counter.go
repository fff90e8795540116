// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package longpoll

import (
	"sync"
	"sync/atomic"
)

// Counter tracks how many wait sessions are currently blocked.
type Counter struct {
	n atomic.Int64
}

// Enter increments the counter and returns the matching release. Release is safe
// to call more than once; only the first call decrements.
func (c *Counter) Enter() (release func()) {
	c.n.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { c.n.Add(-1) })
	}
}

// Count returns the current value.
func (c *Counter) Count() int64 {
	return c.n.Load()
}
