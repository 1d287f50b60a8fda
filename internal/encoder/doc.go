// Package encoder wraps the external video encoder.
//
// FFmpeg runs the binary as a blocking call with an optional timeout, captures
// a bounded tail of its combined output, and reports failures as *ExitError.
// BuildManifest produces the ordered concat list the encoder reads frames from.
package encoder
