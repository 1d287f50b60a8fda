// Package api defines wire-format types and converters for the HTTP API, plus
// a small client the CLI uses to talk to a running daemon.
//
// # Key Types
//
// Recording: transport representation of a recording row. Field names match
// the metadata schema (id, filename, start_time, end_time, duration, filesize).
//
// HealthResponse: daemon liveness, pipeline counters, and dependency checks.
//
// # Converters
//
// FromRecord: recordings.Record -> Recording.
//
// FromHealth: pipeline.Health -> HealthStats.
//
// # Design Notes
//
// Timestamps use RFC3339 in UTC with millisecond precision so they read the
// same as the stored values. Health stats use camelCase keys for browser
// dashboards.
package api
