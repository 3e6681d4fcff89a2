// Package telemetry implements the metrics export surface: a bounded
// pending-upload buffer with retry backoff, sinks that publish
// drained metrics externally, and an HTTP server exposing the buffer's
// own queue-depth, overflow and drain-latency metrics for scraping.
package telemetry

import "time"

// Metric is one reportable observation: a suite run's metric values
// plus the tags identifying which run/partition/environment produced
// them.
type Metric struct {
	SuiteName   string
	Tags        map[string]string
	Values      map[string]float64
	CollectedAt time.Time
}
