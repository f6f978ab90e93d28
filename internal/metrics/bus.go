// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgbus_publish_total",
		Help: "Total number of messages published on the bus",
	}, []string{"bus"})

	BusDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgbus_deliveries_total",
		Help: "Total number of handler invocations scheduled by publishes",
	}, []string{"bus"})

	BusHandlerFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgbus_handler_faults_total",
		Help: "Total number of publishes whose handlers reported at least one fault",
	}, []string{"bus"})

	BusDeadPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgbus_dead_purged_total",
		Help: "Total number of handlers removed because their subscriber was collected",
	}, []string{"bus"})

	BusSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "msgbus_subscribers",
		Help: "Number of handlers currently registered on the bus",
	}, []string{"bus"})

	BusPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "msgbus_publish_duration_seconds",
		Help:    "Time from dispatch start until fan-out and cleanup finished",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"bus"})
)

func busLabel(bus string) string {
	if bus == "" {
		return "default"
	}
	return bus
}

// IncBusPublish records one publish on the named bus.
func IncBusPublish(bus string) {
	BusPublishTotal.WithLabelValues(busLabel(bus)).Inc()
}

// AddBusDeliveries records n scheduled handler invocations.
func AddBusDeliveries(bus string, n int) {
	if n <= 0 {
		return
	}
	BusDeliveriesTotal.WithLabelValues(busLabel(bus)).Add(float64(n))
}

// IncBusHandlerFault records a publish that completed with handler faults.
func IncBusHandlerFault(bus string) {
	BusHandlerFaultsTotal.WithLabelValues(busLabel(bus)).Inc()
}

// AddBusDeadPurged records n purged dead handlers.
func AddBusDeadPurged(bus string, n int) {
	if n <= 0 {
		return
	}
	BusDeadPurgedTotal.WithLabelValues(busLabel(bus)).Add(float64(n))
}

// SetBusSubscribers reports the current registry size.
func SetBusSubscribers(bus string, n int) {
	BusSubscribers.WithLabelValues(busLabel(bus)).Set(float64(n))
}

// ObserveBusPublish records how long one dispatch took.
func ObserveBusPublish(bus string, d time.Duration) {
	BusPublishDuration.WithLabelValues(busLabel(bus)).Observe(d.Seconds())
}
