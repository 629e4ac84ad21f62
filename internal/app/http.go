package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tenderdesk/api/internal/ingest"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) == 0 || segments[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	segments = segments[1:]

	switch {
	case len(segments) == 1 && segments[0] == "imports" && r.Method == http.MethodPost:
		s.handleImport(w, r)
	case len(segments) == 1 && segments[0] == "tenders" && r.Method == http.MethodGet:
		s.handleListTenders(w, r)
	case len(segments) == 1 && segments[0] == "tenders" && r.Method == http.MethodPost:
		s.handleCreateTender(w, r)
	case len(segments) == 2 && segments[0] == "tenders" && r.Method == http.MethodGet:
		s.handleGetTender(w, r, segments[1])
	case len(segments) == 2 && segments[0] == "tenders" && r.Method == http.MethodPatch:
		s.handleUpdateTender(w, r, segments[1])
	case len(segments) == 2 && segments[0] == "tenders" && r.Method == http.MethodDelete:
		s.handleDeleteTender(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "tenders" && segments[2] == "status" && r.Method == http.MethodPost:
		s.handleTransitionStatus(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "tenders" && segments[2] == "urgency" && r.Method == http.MethodGet:
		s.handleTenderUrgency(w, r, segments[1])
	case len(segments) == 1 && segments[0] == "board" && r.Method == http.MethodGet:
		s.handleBoard(w, r)
	case len(segments) == 1 && segments[0] == "calendar" && r.Method == http.MethodGet:
		s.handleCalendar(w, r)
	case len(segments) == 1 && segments[0] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r)
	case len(segments) == 1 && segments[0] == "supports" && r.Method == http.MethodGet:
		s.handleListSupports(w, r)
	case len(segments) == 1 && segments[0] == "supports" && r.Method == http.MethodPost:
		s.handleCreateSupport(w, r)
	case len(segments) == 2 && segments[0] == "supports" && r.Method == http.MethodGet:
		s.handleGetSupport(w, r, segments[1])
	case len(segments) == 2 && segments[0] == "supports" && r.Method == http.MethodPatch:
		s.handleUpdateSupport(w, r, segments[1])
	case len(segments) == 2 && segments[0] == "supports" && r.Method == http.MethodDelete:
		s.handleDeleteSupport(w, r, segments[1])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Headers []string     `json:"headers"`
		Rows    []ingest.Row `json:"rows"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if len(body.Headers) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "headers is required", nil)
		return
	}

	report, err := s.service.ImportRows(r.Context(), body.Headers, body.Rows)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleListTenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := ListTendersInput{
		Query:       query.Get("q"),
		Institution: query.Get("institution"),
		Integrator:  query.Get("integrator"),
		Status:      query.Get("status"),
		Category:    query.Get("category"),
	}
	if raw := query.Get("letterSent"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "letterSent must be a boolean", nil)
			return
		}
		input.LetterSent = &parsed
	}

	items, err := s.service.ListTenders(r.Context(), input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenders": items})
}

func (s *HTTPServer) handleCreateTender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key    string         `json:"key"`
		Fields map[string]any `json:"fields"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	item, err := s.service.CreateTender(r.Context(), body.Key, body.Fields)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// todayParam reads the caller's reference day, defaulting to the server's
// current UTC day. This is the only place the wall clock leaks in; everything
// below it takes the day as an argument.
func todayParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("today")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("today must be YYYY-MM-DD")
	}
	return parsed, nil
}

func (s *HTTPServer) windowParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return s.service.WindowDays(), nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("window must be a positive integer")
	}
	return parsed, nil
}

func (s *HTTPServer) handleGetTender(w http.ResponseWriter, r *http.Request, key string) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	item, err := s.service.GetTender(r.Context(), key, today, window)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleUpdateTender(w http.ResponseWriter, r *http.Request, key string) {
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	item, err := s.service.UpdateTender(r.Context(), key, fields)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteTender(w http.ResponseWriter, r *http.Request, key string) {
	if err := s.service.DeleteTender(r.Context(), key); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleTransitionStatus(w http.ResponseWriter, r *http.Request, key string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.TransitionStatus(r.Context(), key, body.Status)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleTenderUrgency(w http.ResponseWriter, r *http.Request, key string) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	result, err := s.service.TenderUrgency(r.Context(), key, today, window)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleBoard(w http.ResponseWriter, r *http.Request) {
	today, err := todayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
		return
	}

	snapshot, err := s.service.Board(r.Context(), today, window)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.Calendar(r.Context())
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	table, err := s.service.ExportRows(r.Context())
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *HTTPServer) handleListSupports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := ListSupportsInput{
		Query:    query.Get("q"),
		Status:   query.Get("status"),
		Priority: query.Get("priority"),
		Kind:     query.Get("kind"),
	}

	result, err := s.service.ListSupportRequests(r.Context(), input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCreateSupport(w http.ResponseWriter, r *http.Request) {
	var body SupportRequestInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	item, err := s.service.CreateSupportRequest(r.Context(), body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleGetSupport(w http.ResponseWriter, r *http.Request, id string) {
	item, err := s.service.GetSupportRequest(r.Context(), id)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleUpdateSupport(w http.ResponseWriter, r *http.Request, id string) {
	var body SupportRequestInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	item, err := s.service.UpdateSupportRequest(r.Context(), id, body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteSupport(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteSupportRequest(r.Context(), id); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
