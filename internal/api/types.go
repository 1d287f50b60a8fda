package api

import (
	"time"

	"camrec/internal/deps"
	"camrec/internal/pipeline"
	"camrec/internal/recordings"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes one recording in a transport-friendly format.
type Recording struct {
	ID        int64   `json:"id"`
	Filename  string  `json:"filename"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Duration  float64 `json:"duration"`
	Filesize  int64   `json:"filesize"`
}

// HealthStats mirrors the pipeline snapshot.
type HealthStats struct {
	Mode                string     `json:"mode"`
	BufferSize          int        `json:"bufferSize"`
	BufferCapacity      int        `json:"bufferCapacity"`
	CurrentFPS          float64    `json:"currentFps"`
	VideoProcessRunning bool       `json:"videoProcessRunning"`
	AssemblyState       string     `json:"assemblyState"`
	FramesReceived      uint64     `json:"framesReceived"`
	FramesDropped       uint64     `json:"framesDropped"`
	Viewers             int        `json:"viewers"`
	LastFrameAt         string     `json:"lastFrameAt,omitempty"`
	RunsSucceeded       uint64     `json:"runsSucceeded"`
	RunsFailed          uint64     `json:"runsFailed"`
	RunsSkipped         uint64     `json:"runsSkipped"`
	LastError           string     `json:"lastError,omitempty"`
	LastErrorAt         string     `json:"lastErrorAt,omitempty"`
	LastRecording       *Recording `json:"lastRecording,omitempty"`
}

// DaemonInfo captures process-level details.
type DaemonInfo struct {
	PID            int    `json:"pid"`
	StartedAt      string `json:"startedAt,omitempty"`
	LockFilePath   string `json:"lockFilePath"`
	MetadataDriver string `json:"metadataDriver"`
	IngestAddress  string `json:"ingestAddress,omitempty"`
	Scheduler      bool   `json:"schedulerRunning"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string             `json:"status"`
	Timestamp    string             `json:"timestamp"`
	Stats        HealthStats        `json:"stats"`
	Daemon       DaemonInfo         `json:"daemon"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormatTime renders t in the API timestamp format; zero times render empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromRecord converts a stored recording.
func FromRecord(rec recordings.Record) Recording {
	return Recording{
		ID:        rec.ID,
		Filename:  rec.Filename,
		StartTime: FormatTime(rec.StartTime),
		EndTime:   FormatTime(rec.EndTime),
		Duration:  rec.DurationSeconds,
		Filesize:  rec.FilesizeBytes,
	}
}

// FromRecords converts a slice, returning an empty (non-nil) slice for no rows.
func FromRecords(recs []recordings.Record) []Recording {
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromHealth converts a pipeline snapshot.
func FromHealth(h pipeline.Health, viewers int) HealthStats {
	stats := HealthStats{
		Mode:                h.Mode,
		BufferSize:          h.BufferLength,
		BufferCapacity:      h.BufferCapacity,
		CurrentFPS:          h.IngestFPS,
		VideoProcessRunning: h.AssemblyActive,
		AssemblyState:       h.AssemblyState,
		FramesReceived:      h.FramesReceived,
		FramesDropped:       h.FramesDropped,
		Viewers:             viewers,
	}
	if h.LastFrameAt != nil {
		stats.LastFrameAt = FormatTime(*h.LastFrameAt)
	}
	if h.Runs != nil {
		stats.RunsSucceeded = h.Runs.Succeeded
		stats.RunsFailed = h.Runs.Failed
		stats.RunsSkipped = h.Runs.Skipped
		stats.LastError = h.Runs.LastError
		stats.LastErrorAt = FormatTime(h.Runs.LastErrorAt)
		if h.Runs.LastRecording != nil {
			rec := FromRecord(*h.Runs.LastRecording)
			stats.LastRecording = &rec
		}
	}
	return stats
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		})
	}
	return out
}
