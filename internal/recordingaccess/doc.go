// Package recordingaccess lets CLI commands query recordings through a running
// daemon when one answers, and straight from the metadata database otherwise.
package recordingaccess
