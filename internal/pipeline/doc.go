// Package pipeline holds the daemon's shared ingestion state and the periodic
// scheduler that drives recording assembly.
//
// Pipeline is the single owner of the frame buffer and rate statistics; the
// ingest endpoint feeds it, the HTTP API reads its Health snapshot, and the
// Scheduler fires the assembler on a ticker. Overlapping ticks are absorbed by
// the assembler's own single-flight guard.
package pipeline
