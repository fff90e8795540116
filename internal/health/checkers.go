// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Pinger is implemented by bus backends that talk to a remote broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BusChecker reports whether the message bus is usable.
type BusChecker struct {
	backend string
	pinger  Pinger
	timeout time.Duration
}

// NewBusChecker creates a bus checker. A nil pinger means an in-process bus that is
// always reachable.
func NewBusChecker(backend string, pinger Pinger) *BusChecker {
	return &BusChecker{backend: backend, pinger: pinger, timeout: 2 * time.Second}
}

func (c *BusChecker) Name() string {
	return "bus"
}

func (c *BusChecker) Check(ctx context.Context) CheckResult {
	if c.pinger == nil {
		return CheckResult{Status: StatusHealthy, Message: c.backend + " (in-process)"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: c.backend + " unreachable",
			Error:   err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: c.backend + " reachable"}
}

// DrainChecker turns unhealthy once shutdown begins so load balancers stop routing
// new long polls to this instance.
type DrainChecker struct {
	draining atomic.Bool
}

func (c *DrainChecker) Name() string {
	return "lifecycle"
}

// StartDraining marks the daemon as shutting down.
func (c *DrainChecker) StartDraining() {
	c.draining.Store(true)
}

func (c *DrainChecker) Check(context.Context) CheckResult {
	if c.draining.Load() {
		return CheckResult{Status: StatusUnhealthy, Message: "shutting down"}
	}
	return CheckResult{Status: StatusHealthy, Message: "serving"}
}

// StaticDirChecker verifies an override directory for the chat client.
type StaticDirChecker struct {
	dir string
}

// NewStaticDirChecker creates a checker for dir. An empty dir means embedded assets.
func NewStaticDirChecker(dir string) *StaticDirChecker {
	return &StaticDirChecker{dir: dir}
}

func (c *StaticDirChecker) Name() string {
	return "static"
}

func (c *StaticDirChecker) Check(context.Context) CheckResult {
	if c.dir == "" {
		return CheckResult{Status: StatusHealthy, Message: "embedded assets"}
	}
	info, err := os.Stat(c.dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.dir}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.dir}
	}
	if _, err := os.Stat(filepath.Join(c.dir, "index.html")); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%s has no index.html", c.dir),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: c.dir}
}
