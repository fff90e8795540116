// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared across packages.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LongPollSessionsTotal counts resolved wait sessions by outcome
	// (delivered, disconnected, failed, timed_out).
	LongPollSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_longpoll_sessions_total",
		Help: "Total number of resolved long-poll sessions by outcome",
	}, []string{"outcome"})

	LongPollWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pubsub_longpoll_wait_seconds",
		Help:    "Time long-poll sessions spent blocked before resolving",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
	}, []string{"outcome"})
)

// ObserveSession records one resolved session.
func ObserveSession(outcome string, waited time.Duration) {
	outcome = label(outcome)
	LongPollSessionsTotal.WithLabelValues(outcome).Inc()
	LongPollWaitSeconds.WithLabelValues(outcome).Observe(waited.Seconds())
}

// RegisterWaitingGauge exposes the active-session counter as pubsub_longpoll_waiting.
// A gauge that is already registered (e.g. by an earlier server in tests) is kept.
func RegisterWaitingGauge(reg prometheus.Registerer, read func() float64) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pubsub_longpoll_waiting",
		Help: "Current number of long-poll sessions blocked waiting for a message",
	}, read)
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
