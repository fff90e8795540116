// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StaticRequestsTotal counts chat client asset requests by result
// (served, not_found, denied).
var StaticRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pubsub_static_requests_total",
	Help: "Total number of static asset requests by result",
}, []string{"result", "reason"})

// IncStaticServed records an asset handed to the file server.
func IncStaticServed() {
	StaticRequestsTotal.WithLabelValues("served", "").Inc()
}

// IncStaticDenied records a rejected asset request.
func IncStaticDenied(reason string) {
	StaticRequestsTotal.WithLabelValues("denied", label(reason)).Inc()
}
