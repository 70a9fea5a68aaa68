package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/heliograph/research-digest/internal/pipeline"
)

const (
	maxRequestBodySize = 1 << 20  // 1 MB limit for JSON request bodies
	maxUploadMemory    = 32 << 20 // 32 MB in-memory threshold for multipart parsing
	maxUploadFiles     = 20
)

// searchRequest is the JSON request body for search submissions. The
// "query" field is an accepted alias for "search_query".
type searchRequest struct {
	SearchQuery string   `json:"search_query" validate:"omitempty,min=2,max=500"`
	Query       string   `json:"query" validate:"omitempty,min=2,max=500"`
	MaxPapers   int      `json:"max_papers" validate:"omitempty,min=1,max=50"`
	YearFrom    int      `json:"year_from" validate:"omitempty,min=1900,max=2100"`
	YearTo      int      `json:"year_to" validate:"omitempty,min=1900,max=2100"`
	Category    string   `json:"category" validate:"omitempty,max=50"`
	MustInclude []string `json:"must_include" validate:"omitempty,max=10,dive,min=1,max=100"`
	MustExclude []string `json:"must_exclude" validate:"omitempty,max=10,dive,min=1,max=100"`
	Topics      []string `json:"topics" validate:"omitempty,max=10,dive,min=1,max=100"`
}

// processSearch handles POST /api/v1/process/search. It validates the
// request, registers a workflow, and starts the pipeline in the background.
func (s *Server) processSearch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	query := strings.TrimSpace(req.SearchQuery)
	if query == "" {
		query = strings.TrimSpace(req.Query)
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "search_query or query is required")
		return
	}
	req.SearchQuery = query

	if err := s.validate.Struct(&req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.YearFrom > 0 && req.YearTo > 0 && req.YearFrom > req.YearTo {
		writeError(w, http.StatusBadRequest, "year_from must not be after year_to")
		return
	}

	workflowID := uuid.NewString()
	s.coordinator.StartSearch(workflowID, pipeline.SearchRequest{
		Query:       query,
		MaxPapers:   req.MaxPapers,
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		Category:    req.Category,
		MustInclude: req.MustInclude,
		MustExclude: req.MustExclude,
		TopicHints:  req.Topics,
	})

	s.logger.Info().Str("workflow_id", workflowID).Str("query", query).Msg("search request accepted")

	writeJSON(w, http.StatusAccepted, submitResponse{
		WorkflowID: workflowID,
		Status:     "processing",
		Message:    "Search request submitted for processing",
	})
}

// processUpload handles POST /api/v1/process/upload. Uploaded files are
// stored under the uploads directory and handed to the extraction flow.
func (s *Server) processUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required")
		return
	}
	if len(fileHeaders) > maxUploadFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files are allowed", maxUploadFiles))
		return
	}

	filePaths := make([]string, 0, len(fileHeaders))
	fileNames := make([]string, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		path, err := s.storeUpload(header)
		if err != nil {
			s.logger.Error().Err(err).Str("filename", header.Filename).Msg("failed to store upload")
			writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
			return
		}
		filePaths = append(filePaths, path)
		fileNames = append(fileNames, filepath.Base(path))
	}

	topics := make([]string, 0)
	for _, topic := range r.MultipartForm.Value["topics"] {
		if trimmed := strings.TrimSpace(topic); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}

	workflowID := uuid.NewString()
	s.coordinator.StartUpload(workflowID, pipeline.UploadRequest{
		FilePaths: filePaths,
		Topics:    topics,
	})

	s.logger.Info().Str("workflow_id", workflowID).Int("files", len(filePaths)).Msg("upload request accepted")

	writeJSON(w, http.StatusAccepted, uploadResponse{
		WorkflowID:    workflowID,
		Status:        "processing",
		Message:       "Upload request submitted for processing",
		UploadedFiles: fileNames,
		Topics:        topics,
	})
}

// storeUpload writes one uploaded file into the uploads directory. The
// client-supplied name is reduced to its base name so it cannot escape
// the directory.
func (s *Server) storeUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.config.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating uploads directory: %w", err)
	}

	name := filepath.Base(filepath.Clean(header.Filename))
	if name == "." || name == string(filepath.Separator) {
		name = uuid.NewString() + ".txt"
	}
	path := filepath.Join(s.config.UploadsDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

// getStatus handles GET /api/v1/status/{workflowID}. An unknown id is a
// distinct 404, not an empty record.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	record, ok := s.registry.Get(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		// A result payload that cannot be serialized degrades to a
		// reduced summary rather than an error response.
		s.logger.Warn().Err(err).Str("workflow_id", workflowID).Msg("status serialization failed, sending reduced summary")
		writeJSON(w, http.StatusOK, reducedStatus(record))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeValidationError turns validator errors into a 400 with the first
// failing field named.
func writeValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid value for field %s", first.Field()))
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request")
}
