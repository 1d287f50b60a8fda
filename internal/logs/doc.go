// Package logs reads the daemon log file for the CLI: the last N lines, then
// optionally new lines as they are appended. The daemon rotates its log at
// startup, so a file that shrinks while being followed is read again from the
// beginning.
package logs
