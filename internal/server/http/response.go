package httpserver

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/heliograph/research-digest/internal/domain"
)

// submitResponse acknowledges a search submission.
type submitResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// uploadResponse acknowledges an upload submission.
type uploadResponse struct {
	WorkflowID    string   `json:"workflow_id"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploaded_files"`
	Topics        []string `json:"topics"`
}

// reducedStatusResponse is the degraded status shape used when the full
// record cannot be serialized.
type reducedStatusResponse struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Progress        float64   `json:"progress"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
	PapersProcessed int       `json:"papers_processed"`
}

// reducedStatus builds the degraded snapshot for a record. Non-finite
// progress values are clamped so the reduced form always serializes.
func reducedStatus(record *domain.WorkflowRecord) reducedStatusResponse {
	progress := record.Progress
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		progress = 0
	}
	reduced := reducedStatusResponse{
		ID:        record.ID,
		Status:    string(record.Status),
		Progress:  progress,
		Message:   record.Message,
		CreatedAt: record.CreatedAt,
	}
	if record.Result != nil {
		reduced.PapersProcessed = record.Result.PapersProcessed
	}
	return reduced
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
