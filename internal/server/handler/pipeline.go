package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Triggerer requests an out-of-schedule pipeline cycle.
type Triggerer interface {
	Trigger() bool
}

// PipelineHandler serves the run trigger endpoint.
type PipelineHandler struct {
	trigger Triggerer
	logger  *slog.Logger
}

// NewPipelineHandler creates a PipelineHandler. trigger may be nil when this
// process does not run the pipeline.
func NewPipelineHandler(trigger Triggerer, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{trigger: trigger, logger: logHandler(logger, "pipeline")}
}

// TriggerRun enqueues one ingest+score cycle. A request made while another is
// still pending is coalesced into it.
// POST /api/trendbot/runs
func (h *PipelineHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline is not running in this process")
		return
	}
	queued := h.trigger.Trigger()
	h.logger.InfoContext(r.Context(), "run trigger requested", slog.Bool("queued", queued))

	msg := "run enqueued"
	if !queued {
		msg = "a run is already pending"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      msg,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
