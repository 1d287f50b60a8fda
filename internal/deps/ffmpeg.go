package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// CheckFFmpeg resolves the configured encoder binary and, when present, records
// the first line of `ffmpeg -version`.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	status := checkBinary(Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Encodes buffered frames into MP4 recordings",
	})
	if !status.Available {
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, status.Command, "-version").Output() //nolint:gosec
	if err != nil {
		status.Detail = "version probe failed: " + err.Error()
		return status
	}
	line, _, _ := strings.Cut(string(out), "\n")
	status.Version = strings.TrimSpace(line)
	return status
}
