package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/sqlite"
)

const apiVersion = "0.1.0"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// documentResourceBody is one requested resource in the wire format of
// POST /api/v1/documents.
type documentResourceBody struct {
	Lang string `json:"lang_code"`
	Type string `json:"resource_type"`
	Code string `json:"resource_code"`
}

// documentRequestBody is the request body for document generation.
type documentRequestBody struct {
	Resources []documentResourceBody `json:"resources"`
	Strategy  string                 `json:"assembly_strategy,omitempty"`
	PDF       bool                   `json:"pdf,omitempty"`
}

func (b documentRequestBody) toModel() model.DocumentRequest {
	req := model.DocumentRequest{
		Strategy: model.AssemblyStrategy(b.Strategy),
		PDF:      b.PDF,
	}
	for _, r := range b.Resources {
		req.Resources = append(req.Resources, model.ResourceRequest{
			Lang: r.Lang,
			Type: r.Type,
			Code: r.Code,
		})
	}
	return req
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status     string      `json:"status"`
	Version    string      `json:"version"`
	Uptime     string      `json:"uptime"`
	Jobs       int         `json:"jobs"`
	Clients    int         `json:"websocket_clients"`
	LedgerPath string      `json:"ledger_path,omitempty"`
	SQLite     sqlite.Info `json:"sqlite"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "CedarPress API",
		"version": apiVersion,
		"endpoints": []string{
			"GET /health/status",
			"POST /api/v1/documents",
			"GET /api/v1/documents",
			"GET /api/v1/documents/:key",
			"GET /api/v1/documents/:key/content",
			"GET /api/v1/jobs",
			"GET /api/v1/jobs/:id",
			"DELETE /api/v1/jobs/:id",
			"WS /ws/jobs/:id",
			"GET /api/v1/language_codes",
			"GET /api/v1/language_codes_and_names",
			"GET /api/v1/resource_types",
			"GET /api/v1/resource_codes",
		},
	})
}

func (s *Server) handleHealthStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	info := HealthInfo{
		Status:  "healthy",
		Version: apiVersion,
		Uptime:  time.Since(s.started).String(),
		Jobs:    s.jobs.Count(),
		Clients: s.hub.ClientCount(),
		SQLite:  sqlite.GetInfo(),
	}
	if s.ledger != nil {
		info.LedgerPath = s.ledger.Path()
	}

	respond(w, http.StatusOK, info)
}

// handleDocuments handles POST /api/v1/documents (generate) and
// GET /api/v1/documents (list recorded runs).
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createDocumentHandler(w, r)
	case http.MethodGet:
		s.listDocumentsHandler(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) createDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var body documentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	req := body.toModel()
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", err.Error())
		return
	}

	if r.URL.Query().Get("async") == "true" {
		job := s.jobs.Create(req)
		s.runJob(job)
		respond(w, http.StatusAccepted, job)
		return
	}

	gen, err := s.newGenerator(nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	fin, err := gen.Run(r.Context(), req)
	if err != nil {
		status, code := httpStatusFor(err)
		respondError(w, status, code, err.Error())
		return
	}

	respond(w, http.StatusOK, fin)
}

func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "LEDGER_DISABLED", "Run ledger is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LEDGER_ERROR", err.Error())
		return
	}

	respondList(w, http.StatusOK, runs, len(runs))
}

// handleDocumentByKey handles GET /api/v1/documents/{key} (ledger
// lookup) and GET /api/v1/documents/{key}/content (assembled HTML).
func (s *Server) handleDocumentByKey(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
	if rest == "" {
		respondError(w, http.StatusBadRequest, "MISSING_KEY", "Document key is required")
		return
	}

	key, sub, hasSub := strings.Cut(rest, "/")
	if err := ValidateKey(key); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_KEY", fmt.Sprintf("Invalid document key: %v", err))
		return
	}

	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	if hasSub {
		if sub != "content" {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
			return
		}
		s.serveDocumentContent(w, r, key)
		return
	}

	if s.ledger == nil {
		respondError(w, http.StatusServiceUnavailable, "LEDGER_DISABLED", "Run ledger is not configured")
		return
	}

	run, err := s.ledger.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("No recorded run for key %q", key))
			return
		}
		respondError(w, http.StatusInternalServerError, "LEDGER_ERROR", err.Error())
		return
	}

	respond(w, http.StatusOK, run)
}

// serveDocumentContent returns the assembled HTML for a key, from the
// in-memory cache when the document was generated by this process, from
// the output directory otherwise.
func (s *Server) serveDocumentContent(w http.ResponseWriter, r *http.Request, key string) {
	if html, ok := s.docCache.Get(key); ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
		return
	}

	safePath, err := ValidatePath(s.cfg.OutputDir, key+".html")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", fmt.Sprintf("Invalid document path: %v", err))
		return
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.OutputDir, safePath))
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("No generated document for key %q", key))
		return
	}

	s.docCache.Put(key, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleJobs handles GET /api/v1/jobs - list jobs. Jobs are created via
// POST /api/v1/documents?async=true.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET is allowed; create jobs via POST /api/v1/documents?async=true")
		return
	}

	jobs := s.jobs.List()
	respondList(w, http.StatusOK, jobs, len(jobs))
}

// handleJobByID handles GET /api/v1/jobs/{id} - job status and
// DELETE /api/v1/jobs/{id} - cancel job.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getJobHandler(w, r, id)
	case http.MethodDelete:
		s.cancelJobHandler(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request, id string) {
	job, exists := s.jobs.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	respond(w, http.StatusOK, job)
}

func (s *Server) cancelJobHandler(w http.ResponseWriter, r *http.Request, id string) {
	if _, exists := s.jobs.Get(id); !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	if err := s.jobs.Cancel(id); err != nil {
		respondError(w, http.StatusBadRequest, "CANCEL_FAILED", err.Error())
		return
	}

	respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}

// handleJobSocket handles GET /ws/jobs/{id} - WebSocket progress stream
// for one job.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}

	job, exists := s.jobs.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	snapshot := ProgressMessage{
		Type:    "progress",
		JobID:   job.ID,
		Stage:   job.Stage,
		Percent: job.Progress,
	}
	switch job.Status {
	case JobStatusCompleted:
		snapshot.Type = "complete"
		snapshot.Percent = 100
	case JobStatusFailed, JobStatusCancelled:
		snapshot.Type = "error"
		snapshot.Message = job.Error
	}

	serveJobSocket(s.hub, &s.upgrader, w, r, id, snapshot)
}

func (s *Server) handleLanguageCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	codes, err := s.catalog.Languages(r.Context())
	if err != nil {
		status, code := httpStatusFor(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondList(w, http.StatusOK, codes, len(codes))
}

func (s *Server) handleLanguageCodesAndNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	names, err := s.catalog.LanguageNames(r.Context())
	if err != nil {
		status, code := httpStatusFor(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondList(w, http.StatusOK, names, len(names))
}

func (s *Server) handleResourceTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "lang query parameter is required")
		return
	}

	types, err := s.catalog.Types(r.Context(), lang)
	if err != nil {
		status, code := httpStatusFor(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondList(w, http.StatusOK, types, len(types))
}

func (s *Server) handleResourceCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	lang := r.URL.Query().Get("lang")
	typ := r.URL.Query().Get("type")
	if lang == "" || typ == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "lang and type query parameters are required")
		return
	}

	codes, err := s.catalog.Codes(r.Context(), lang, typ)
	if err != nil {
		status, code := httpStatusFor(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondList(w, http.StatusOK, codes, len(codes))
}

// httpStatusFor maps pipeline errors onto HTTP statuses and error codes.
func httpStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrMalformedRequest):
		return http.StatusBadRequest, "MALFORMED_REQUEST"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrFetch):
		return http.StatusBadGateway, "FETCH_FAILED"
	case errors.Is(err, errors.ErrParse):
		return http.StatusUnprocessableEntity, "PARSE_FAILED"
	case errors.Is(err, errors.ErrTypeset):
		return http.StatusInternalServerError, "TYPESET_FAILED"
	case errors.Is(err, errors.ErrLedger):
		return http.StatusInternalServerError, "LEDGER_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, status int, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
