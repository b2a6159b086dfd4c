package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and the country/erp fields.
const multipartOverhead = 64 << 10

// maxAnalyzeBody caps the /analyze JSON request.
const maxAnalyzeBody = 64 << 10

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type uploadResponse struct {
	UploadID   string `json:"uploadId"`
	Message    string `json:"message"`
	RowsParsed int    `json:"rowsParsed"`
}

type analyzeRequest struct {
	Questionnaire map[string]any `json:"questionnaire"`
	UploadID      string         `json:"uploadId"`
}

type healthResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
	Uptime    float64   `json:"uptime"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "E-Invoicing Readiness Analyzer API",
		"version": APIVersion,
		"endpoints": map[string]string{
			"upload":        "POST /upload",
			"analyze":       "POST /analyze",
			"getReport":     "GET /report/:id",
			"recentReports": "GET /reports",
			"health":        "GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := healthResponse{
		Timestamp: now.UTC(),
		Status:    "OK",
		Database:  "connected",
		Uptime:    now.Sub(s.started).Seconds(),
	}

	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "Service Unavailable"
		resp.Database = "disconnected"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. The limit is %d bytes.", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded. Please select a CSV or JSON file.")
		return
	}
	defer func() { _ = file.Close() }()

	records, err := s.parser.ParseFile(header.Filename, file)
	if err != nil {
		if errors.Is(err, common.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "Unsupported file format. Use CSV or JSON.")
			return
		}
		s.fail(w, err, "Upload failed")
		return
	}

	upload := &model.Upload{
		Country:    formValue(r, "country", s.opts.DefaultCountry),
		ERP:        formValue(r, "erp", s.opts.DefaultERP),
		Records:    records,
		RowsParsed: len(records),
	}
	if err := s.store.SaveUpload(r.Context(), upload); err != nil {
		s.fail(w, err, "Upload failed")
		return
	}

	slog.Info("Upload saved",
		"upload_id", upload.ID,
		"file", header.Filename,
		"rows", upload.RowsParsed,
		"country", upload.Country)

	writeJSON(w, http.StatusOK, uploadResponse{
		UploadID:   upload.ID,
		RowsParsed: upload.RowsParsed,
		Message:    "File uploaded successfully",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAnalyzeBody)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body too large. The limit is %d bytes.", maxAnalyzeBody))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UploadID) == "" {
		writeError(w, http.StatusBadRequest, "uploadId is required")
		return
	}

	report, err := s.analyzer.Analyze(r.Context(), req.UploadID, model.QuestionnaireFromMap(req.Questionnaire), nil)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Upload not found")
			return
		}
		s.fail(w, err, "Analysis failed")
		return
	}

	if err := s.store.SaveReport(r.Context(), report); err != nil {
		s.fail(w, err, "Analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "reportId is required")
		return
	}

	report, err := s.store.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Report not found")
			return
		}
		s.fail(w, err, "Failed to retrieve report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = storage.DefaultRecentLimit
	}

	reports, err := s.store.RecentReports(r.Context(), limit)
	if err != nil {
		s.fail(w, err, "Failed to retrieve recent reports")
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// fail maps an error to a response. Client errors echo their message;
// everything else is logged and hidden behind the fallback.
func (s *Server) fail(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case common.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fallback, Details: err.Error()})
	default:
		common.LogError(err, fallback, nil)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func formValue(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
