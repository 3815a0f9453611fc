// Package metrics provides Prometheus counters and gauges describing the
// forwarder itself: intake outcomes, queue depth, flushes, delivery attempts
// and latency, and check process lifecycle. Handler() is mounted at /metrics
// on the intake listener.
package metrics
