// Package intake implements the forwarder's loopback HTTP surface.
//
// New(queue, metrics) returns an http.Handler that serves:
//
//	POST /intake/   form fields payload + hash; 200 {"id":N} once queued,
//	                500 on hash mismatch or undecodable payload,
//	                503 if the scheduler is not accepting data
//	GET  /status    queue depth, flush state, live transactions, check pid
//	GET  /metrics   Prometheus exposition of the forwarder's own metrics
//
// An accepted message becomes a queued transaction and nudges a flush. The
// answer never waits for delivery. No external HTTP framework is used.
package intake
