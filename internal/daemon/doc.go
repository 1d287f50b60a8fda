// Package daemon coordinates the long-running camrec process.
//
// It wires the pipeline, the assembly scheduler, the WebSocket ingest listener,
// and the HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances from recording into the same directories. Component
// construction lives in daemonrun; the daemon focuses on startup, shutdown, and
// status reporting.
package daemon
