// Package frames holds the in-memory frame buffer shared by ingestion and
// assembly, plus the ingestion rate meter.
//
// Queue favors recency over completeness: once full, every push evicts the
// oldest frame. Sequence numbers come from one counter per queue and keep
// increasing across evictions and drains, so they are usable for on-disk
// ordering but not for gap detection.
package frames
