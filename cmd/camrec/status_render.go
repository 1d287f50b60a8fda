package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"camrec/internal/api"
	"camrec/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func daemonLines(baseURL string, resp *api.HealthResponse, colorize bool) []string {
	d := resp.Daemon
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("%s at %s", resp.Status, baseURL), colorize),
		renderStatusLine("PID", statusInfo, fmt.Sprintf("%d", d.PID), colorize),
	}
	if d.StartedAt != "" {
		lines = append(lines, renderStatusLine("Started", statusInfo, d.StartedAt, colorize))
	}
	if d.IngestAddress != "" {
		lines = append(lines, renderStatusLine("Ingest", statusInfo, "ws://"+d.IngestAddress+"/", colorize))
	}
	lines = append(lines,
		renderStatusLine("Metadata", statusInfo, d.MetadataDriver, colorize),
		renderStatusLine("Scheduler", schedulerKind(resp.Stats.Mode, d.Scheduler), yesNo(d.Scheduler), colorize),
	)
	return lines
}

func schedulerKind(mode string, running bool) statusKind {
	if running || mode == "relay" {
		return statusOK
	}
	return statusWarn
}

func pipelineLines(stats api.HealthStats, colorize bool) []string {
	bufferKind := statusOK
	if stats.BufferCapacity > 0 && stats.BufferSize >= stats.BufferCapacity {
		bufferKind = statusWarn
	}
	lines := []string{
		renderStatusLine("Mode", statusInfo, titleLabel(stats.Mode), colorize),
		renderStatusLine("Buffer", bufferKind, fmt.Sprintf("%s / %s frames",
			formatCount(uint64(stats.BufferSize)), formatCount(uint64(stats.BufferCapacity))), colorize),
		renderStatusLine("Ingest rate", statusInfo, formatFPS(stats.CurrentFPS), colorize),
		renderStatusLine("Viewers", statusInfo, formatCount(uint64(stats.Viewers)), colorize),
		renderStatusLine("Frames received", statusInfo, formatCount(stats.FramesReceived), colorize),
	}
	droppedKind := statusInfo
	if stats.FramesDropped > 0 {
		droppedKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Frames dropped", droppedKind, formatCount(stats.FramesDropped), colorize))
	if stats.Mode == "relay" {
		return lines
	}

	stateKind := statusInfo
	if stats.VideoProcessRunning {
		stateKind = statusOK
	}
	lines = append(lines,
		renderStatusLine("Assembly", stateKind, titleLabel(stats.AssemblyState), colorize),
		renderStatusLine("Runs", statusInfo, fmt.Sprintf("%s ok, %s failed, %s skipped",
			formatCount(stats.RunsSucceeded), formatCount(stats.RunsFailed), formatCount(stats.RunsSkipped)), colorize),
	)
	if stats.LastRecording != nil {
		rec := stats.LastRecording
		lines = append(lines, renderStatusLine("Last recording", statusOK,
			fmt.Sprintf("%s (%s, %s)", rec.Filename, formatSeconds(rec.Duration), formatBytes(rec.Filesize)), colorize))
	}
	if stats.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, fmt.Sprintf("%s (%s)", stats.LastError, stats.LastErrorAt), colorize))
	}
	return lines
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	if len(deps) == 0 {
		return []string{renderStatusLine("Encoder", statusInfo, "not used in relay mode", colorize)}
	}
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Version != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Version)
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
