package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
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

	if r.Method == http.MethodPost && r.URL.Path == "/api/sessions" {
		s.handleOpenSession(w, r, "")
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/sessions/{id}[/...]
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" {
		sessionID := parts[2]

		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				view, err := s.service.SessionState(sessionID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, view)
				return
			case http.MethodDelete:
				if err := s.service.CloseSession(r.Context(), sessionID); err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		}

		if len(parts) == 4 {
			s.handleSessionAction(w, r, sessionID, parts[3])
			return
		}

		if len(parts) == 5 && parts[3] == "export" && parts[4] == "pdf" && r.Method == http.MethodGet {
			s.handleExportPDF(w, r, sessionID)
			return
		}
	}

	// /api/documents/{id}/...
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "documents" {
		documentID := parts[2]

		if parts[3] == "revisions" && r.Method == http.MethodGet {
			if len(parts) == 4 {
				s.handleRevisionList(w, r, documentID)
				return
			}
			if len(parts) == 5 {
				s.handleRevisionContent(w, r, documentID, parts[4])
				return
			}
		}

		if parts[3] == "share" && len(parts) == 4 {
			switch r.Method {
			case http.MethodPost:
				s.handleCreateShare(w, r, documentID)
				return
			case http.MethodDelete:
				if err := s.service.RevokeShareLink(r.Context(), documentID); err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	var body struct {
		IsNewDocument    bool   `json:"isNewDocument"`
		CollectionID     string `json:"collectionId"`
		ParentDocumentID string `json:"parentDocumentId"`
		SlugOrID         string `json:"slugOrId"`
		ShareToken       string `json:"shareToken"`
		SharePassword    string `json:"sharePassword"`
		Authenticated    bool   `json:"authenticated"`
		EditMode         bool   `json:"editMode"`
		Author           string `json:"author"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if !body.IsNewDocument && strings.TrimSpace(body.SlugOrID) == "" && body.ShareToken == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slugOrId is required", nil)
		return
	}

	view, err := s.service.OpenSession(r.Context(), OpenRequest{
		SessionID:        sessionID,
		IsNewDocument:    body.IsNewDocument,
		CollectionID:     body.CollectionID,
		ParentDocumentID: body.ParentDocumentID,
		SlugOrID:         body.SlugOrID,
		ShareToken:       body.ShareToken,
		SharePassword:    body.SharePassword,
		Authenticated:    body.Authenticated,
		EditMode:         body.EditMode,
		Author:           body.Author,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSessionAction(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	switch {
	case r.Method == http.MethodPost && action == "open":
		s.handleOpenSession(w, r, sessionID)

	case r.Method == http.MethodPost && action == "text":
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.TextChanged(sessionID, body.Text); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && action == "save":
		var body struct {
			Done     bool `json:"done"`
			Publish  bool `json:"publish"`
			Autosave bool `json:"autosave"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.Save(r.Context(), sessionID, session.SaveOptions{
			Done:     body.Done,
			Publish:  body.Publish,
			Autosave: body.Autosave,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodPost && action == "edit-mode":
		var body struct {
			EditMode bool `json:"editMode"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetEditMode(sessionID, body.EditMode); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && action == "move-modal":
		var body struct {
			Open bool `json:"open"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetMoveModal(sessionID, body.Open); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodPost && action == "upload":
		s.handleUpload(w, r, sessionID)

	case r.Method == http.MethodPost && action == "link-click":
		var body struct {
			Href string `json:"href"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ClickLink(sessionID, body.Href); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodGet && action == "links":
		term := strings.TrimSpace(r.URL.Query().Get("q"))
		results, err := s.service.SearchLinks(r.Context(), sessionID, term)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		if results == nil {
			results = []session.LinkResult{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})

	case r.Method == http.MethodPost && action == "navigate":
		var body struct {
			URL       string `json:"url"`
			Confirmed bool   `json:"confirmed"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.Navigate(sessionID, body.URL, body.Confirmed)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodGet && action == "guard":
		message, blocked, err := s.service.GuardNavigation(sessionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocked": blocked, "message": message})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

const maxUploadBytes = 25 << 20

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	url, err := s.service.UploadImage(r.Context(), sessionID, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request, sessionID string) {
	result, err := s.service.ExportPDF(r.Context(), sessionID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleRevisionList(w http.ResponseWriter, r *http.Request, documentID string) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	revisionList, err := s.service.RevisionHistory(documentID, limit)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisionList})
}

func (s *HTTPServer) handleRevisionContent(w http.ResponseWriter, r *http.Request, documentID, hash string) {
	content, err := s.service.RevisionContent(documentID, hash)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *HTTPServer) handleCreateShare(w http.ResponseWriter, r *http.Request, documentID string) {
	var body struct {
		Password string `json:"password"`
		Author   string `json:"author"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	link, err := s.service.CreateShareLink(r.Context(), documentID, body.Password, body.Author)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, link)
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
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
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
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrOffline) {
		return http.StatusServiceUnavailable, "OFFLINE", "Storage unreachable", nil
	}
	if errors.Is(err, session.ErrClosed) {
		return http.StatusGone, "SESSION_CLOSED", "Session closed", nil
	}
	if errors.Is(err, session.ErrNoUploader) {
		return http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
