// Package logging assembles the structured slog loggers used across camrec.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag lines with assembly run ids and request ids. The
// console format lifts the component attribute into a prefix so daemon logs
// read as "assembler: recording committed". NewNop gives tests and optional
// wiring a logger that cannot fail.
package logging
