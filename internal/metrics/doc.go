// Package metrics exposes operational counters in the Prometheus text
// exposition format.
//
// The Collector implements cache.Listener and cache.FailureListener, counting
// refresh outcomes as they happen; snapshot-level gauges (generation, lesson
// count, last diff sizes) are read straight from the store at scrape time so
// they can never drift from what the API serves.
package metrics
