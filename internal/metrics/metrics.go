/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package metrics exposes the supervisor's Prometheus instrumentation:
// join attempts/failures, reconnection episodes, the current retry
// interval, and scan duration. The scan-duration histogram is registered,
// but no code in this module records observations into it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the supervisor's counters and gauges. Register attaches
// them to a registry; cmd/ap.stad registers them on its own
// prometheus.NewRegistry.
type Metrics struct {
	JoinAttempts       prometheus.Counter
	JoinFailures       prometheus.Counter
	ReconnectEpisodes  prometheus.Counter
	CurrentRetryMS     prometheus.Gauge
	ScanDurationMS     prometheus.Histogram
}

// New constructs a Metrics bundle with the supervisor's fixed namespace.
func New() *Metrics {
	return &Metrics{
		JoinAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stad",
			Name:      "join_attempts_total",
			Help:      "Total number of connect attempts issued to the radio adapter.",
		}),
		JoinFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stad",
			Name:      "join_failures_total",
			Help:      "Total number of failed join attempts (synchronous connect errors and join-failure callbacks).",
		}),
		ReconnectEpisodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stad",
			Name:      "reconnect_episodes_total",
			Help:      "Total number of times the station had to re-enter the reconnection regime.",
		}),
		CurrentRetryMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stad",
			Name:      "retry_interval_ms",
			Help:      "Current reconnection retry interval in milliseconds.",
		}),
		ScanDurationMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stad",
			Name:      "scan_duration_ms",
			Help:      "Duration of completed scan operations in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}),
	}
}

// Register adds every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.JoinAttempts, m.JoinFailures, m.ReconnectEpisodes,
		m.CurrentRetryMS, m.ScanDurationMS,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
