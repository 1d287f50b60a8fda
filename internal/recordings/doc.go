// Package recordings persists metadata for finished recordings.
//
// Sink is the contract the assembler commits through; SQLiteStore is the
// default and PostgresStore serves shared deployments. Rows are append-only:
// nothing in camrec updates or deletes a record. Timestamps are stored as
// ISO-8601 UTC strings with millisecond precision, and filenames are paths
// relative to the recordings root, prefixed by the recording's local date so
// ListByDate is a plain prefix match.
package recordings
