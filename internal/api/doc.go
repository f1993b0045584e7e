// Package api implements the HTTP REST API of meshwatch.
//
// New(view, client) returns an http.Handler that serves:
//
//	GET  /api/v1/snapshot              full latest snapshot
//	GET  /api/v1/health                per-state counts, overall state, per-service diagnostics
//	GET  /api/v1/metrics               summary counters in display order
//	GET  /api/v1/activity              formatted activity feed
//	POST /api/v1/refresh               run one cycle now and return its snapshot
//	GET  /api/v1/services/{key}/stats  upstream statistics passthrough
//	GET  /metrics                      Prometheus text exposition
//
// Snapshot-backed endpoints return 503 until the first cycle completes.
// Wrong methods get 405. Upstream failures on the passthrough become 502
// with the endpoint error kind. No external HTTP framework is used.
package api
