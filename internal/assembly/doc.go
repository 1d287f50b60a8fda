// Package assembly turns buffered frames into MP4 recordings.
//
// An Assembler run drains the whole queue, writes each frame into a fresh
// proc_<unixmillis> scratch directory, hands an ordered concat manifest to the
// encoder, verifies the output, and commits a recordings.Record. The scratch
// directory is removed whether the run succeeds or not, and a single-flight
// guard keeps at most one run (and one encoder process) alive at a time.
//
// Failures are tagged with ErrDirectory, ErrWrite, ErrEncoder, ErrOutputMissing,
// or ErrPersistence. A failed batch is not retried: its frames are gone.
package assembly
