package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"camrec/internal/api"
	"camrec/internal/logging"
)

const banner = "camrec server is running"

// datePrefixLayouts are the accepted forms of the ?date= filter.
var datePrefixLayouts = []string{"2006-01-02", "2006-01", "2006"}

type apiHandler struct {
	daemon *Daemon
	logger *slog.Logger
	now    func() time.Time
}

func newAPIHandler(d *Daemon) http.Handler {
	h := &apiHandler{
		daemon: d,
		logger: logging.NewComponentLogger(d.logger, "api-server"),
		now:    time.Now,
	}
	token := strings.TrimSpace(d.cfg.Paths.APIToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleIndex)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/recordings", authMiddleware(token, h.handleRecordings))
	mux.HandleFunc("/api/recordings/", authMiddleware(token, h.handleRecording))
	mux.Handle("/recordings/", http.StripPrefix("/recordings/", recordingsFileServer(d.cfg.Paths.RecordingsDir, d.cfg.Paths.ScratchDir)))
	if metricsHandler := d.metricsHandler(); metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return withRequestID(withCORS(withAccessLog(h.logger, mux)))
}

func (h *apiHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(banner))
}

func (h *apiHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := h.daemon.Status()
	payload := api.HealthResponse{
		Status:    "healthy",
		Timestamp: api.FormatTime(h.now()),
		Stats:     api.FromHealth(status.Pipeline, status.Viewers),
		Daemon: api.DaemonInfo{
			PID:            status.PID,
			StartedAt:      api.FormatTime(status.StartedAt),
			LockFilePath:   status.LockFilePath,
			MetadataDriver: status.MetadataDriver,
			IngestAddress:  status.IngestAddress,
			Scheduler:      status.SchedulerRunning,
		},
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *apiHandler) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = h.now().Format("2006-01-02")
	} else if !validDatePrefix(date) {
		h.writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	recs, err := h.daemon.comps.Sink.ListByDate(r.Context(), date)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "recording query failed", "recording_query_failed",
			logging.Error(err),
			logging.String("date", date),
			logging.String(logging.FieldErrorHint, "check the metadata database"),
		)
		h.writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	h.writeJSON(w, http.StatusOK, api.FromRecords(recs))
}

func (h *apiHandler) handleRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	if idStr == "" || strings.Contains(idStr, "/") {
		h.writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recording id")
		return
	}
	rec, err := h.daemon.comps.Sink.Get(r.Context(), id)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "recording lookup failed", "recording_query_failed",
			logging.Error(err),
			logging.Int64(logging.FieldRecordingID, id),
			logging.String(logging.FieldErrorHint, "check the metadata database"),
		)
		h.writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	h.writeJSON(w, http.StatusOK, api.FromRecord(*rec))
}

func validDatePrefix(value string) bool {
	for _, layout := range datePrefixLayouts {
		if len(value) != len(layout) {
			continue
		}
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// recordingsFileServer serves finished videos from root, hiding the scratch
// directory when it lives inside root.
func recordingsFileServer(root, scratch string) http.Handler {
	files := http.FileServer(http.Dir(root))
	hidden := ""
	if rel, err := filepath.Rel(root, scratch); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		hidden = filepath.ToSlash(rel)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		clean := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+r.URL.Path)), "/")
		if hidden != "" && (clean == hidden || strings.HasPrefix(clean, hidden+"/")) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, api.ErrorResponse{Error: message})
}
