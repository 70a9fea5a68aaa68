package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heliograph/research-digest/internal/domain"
)

// SSE event types emitted by the progress stream.
const (
	eventProgress = "progress_update"
	eventTerminal = "workflow_terminal"
	eventNotFound = "not_found"
	eventTimeout  = "timeout"
)

// streamStatus handles GET /api/v1/status/{workflowID}/stream (SSE). It
// samples the registry at a fixed interval and forwards each snapshot,
// closing after the first terminal snapshot has been delivered.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if s.metrics != nil {
		s.metrics.StreamSubscribers.Inc()
		defer s.metrics.StreamSubscribers.Dec()
	}

	logger := s.logger.With().Str("workflow_id", workflowID).Logger()

	// The server write timeout suits ordinary responses, not a stream
	// bounded by StreamMaxDuration. Lift the connection deadline so long
	// streams end with a timeout event instead of a severed connection.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug().Err(err).Msg("could not lift stream write deadline")
	}

	record, found := s.registry.Get(workflowID)
	if !found {
		s.sendEvent(w, flusher, eventNotFound, notFoundPayload(workflowID))
		return
	}

	s.sendSnapshot(w, flusher, record)
	if record.Status.IsTerminal() {
		s.graceWait(r)
		return
	}

	deadline := time.NewTimer(s.config.StreamMaxDuration)
	defer deadline.Stop()
	ticker := time.NewTicker(s.config.StreamSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("progress stream client disconnected")
			return

		case <-deadline.C:
			s.sendEvent(w, flusher, eventTimeout, map[string]string{
				"id":      workflowID,
				"message": "stream max duration exceeded",
			})
			return

		case <-ticker.C:
			record, found := s.registry.Get(workflowID)
			if !found {
				s.sendEvent(w, flusher, eventNotFound, notFoundPayload(workflowID))
				return
			}
			s.sendSnapshot(w, flusher, record)
			if record.Status.IsTerminal() {
				logger.Debug().Str("status", string(record.Status)).Msg("terminal snapshot delivered, closing stream")
				s.graceWait(r)
				return
			}
		}
	}
}

// sendSnapshot forwards one record snapshot, degrading to the reduced
// summary if the full record cannot be serialized.
func (s *Server) sendSnapshot(w http.ResponseWriter, flusher http.Flusher, record *domain.WorkflowRecord) {
	eventType := eventProgress
	if record.Status.IsTerminal() {
		eventType = eventTerminal
	}

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn().Err(err).Str("workflow_id", record.ID).Msg("snapshot serialization failed, sending reduced summary")
		s.sendEvent(w, flusher, eventType, reducedStatus(record))
		return
	}
	writeSSE(w, flusher, eventType, data)
}

// sendEvent marshals and writes one SSE event.
func (s *Server) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	writeSSE(w, flusher, eventType, data)
}

// graceWait holds the connection briefly after the final event so the
// client can consume it before the stream closes.
func (s *Server) graceWait(r *http.Request) {
	select {
	case <-time.After(s.config.StreamGraceDelay):
	case <-r.Context().Done():
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	flusher.Flush()
}

func notFoundPayload(workflowID string) map[string]string {
	return map[string]string{
		"id":      workflowID,
		"message": "Workflow not found",
	}
}
