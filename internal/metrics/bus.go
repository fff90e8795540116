// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_bus_published_total",
		Help: "Total number of messages handed to the bus, by backend",
	}, []string{"backend"})

	BusDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_bus_delivered_total",
		Help: "Total number of per-subscription message deliveries, by backend",
	}, []string{"backend"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_bus_dropped_total",
		Help: "Total number of per-subscription message drops by backend and reason",
	}, []string{"backend", "reason"})

	BusSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pubsub_bus_subscriptions",
		Help: "Current number of live bus subscriptions, by backend",
	}, []string{"backend"})
)

// IncBusPublished records a message handed to the bus.
func IncBusPublished(backend string) {
	BusPublishedTotal.WithLabelValues(label(backend)).Inc()
}

// AddBusDelivered records n per-subscription deliveries of one published message.
func AddBusDelivered(backend string, n int) {
	if n <= 0 {
		return
	}
	BusDeliveredTotal.WithLabelValues(label(backend)).Add(float64(n))
}

// IncBusDrop records a message a subscription missed because its buffer was full.
func IncBusDrop(backend string) {
	IncBusDropReason(backend, "full")
}

// IncBusDropReason records a dropped message with a concrete reason.
func IncBusDropReason(backend, reason string) {
	BusDroppedTotal.WithLabelValues(label(backend), label(reason)).Inc()
}

// SetBusSubscriptions publishes the current size of the fan-out set.
func SetBusSubscriptions(backend string, n int) {
	BusSubscriptions.WithLabelValues(label(backend)).Set(float64(n))
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
