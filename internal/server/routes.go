package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docpin/docpin/internal/extract"
	"github.com/docpin/docpin/internal/pdfindex"
	"github.com/docpin/docpin/internal/providers"
	"github.com/docpin/docpin/internal/resolve"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/querytypes", s.handleQueryTypes)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/documents/{id}/extract", s.handleExtract)
}

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Documents int    `json:"documents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Documents: len(s.store.List()),
	})
}

func (s *Server) handleQueryTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"query_types": s.registry.All(),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": s.store.List(),
	})
}

// handleUpload accepts a PDF as a multipart "file" field or as the raw
// request body, indexes it, and stores it for later extraction calls.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.configMgr.Get().Server.MaxUploadMB)
	if maxBytes <= 0 {
		maxBytes = 50
	}
	maxBytes *= 1 << 20

	data, filename, err := readUpload(r, maxBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("empty upload"))
		return
	}

	index, err := pdfindex.New(data)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	doc := s.store.Add(filename, index)
	s.logger.Info("document indexed",
		"id", doc.ID, "filename", doc.Filename,
		"pages", doc.Pages, "segments", doc.Segments)
	writeJSON(w, http.StatusCreated, doc)
}

func readUpload(r *http.Request, maxBytes int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, "", fmt.Errorf("failed to parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read upload: %w", err)
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return data, "", nil
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, errors.New("document not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExtractRequest is the body of an extraction call. Provider and Model are
// optional overrides of the configured defaults.
type ExtractRequest struct {
	QueryTypes []string `json:"query_types"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
}

// ExtractResponse carries the resolved items plus diagnostic counts.
type ExtractResponse struct {
	Items        []resolve.Item `json:"items"`
	Count        int            `json:"count"`
	Dropped      int            `json:"dropped"`
	FailedChunks int            `json:"failed_chunks"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("document not found"))
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	appCfg := s.configMgr.Get()
	providerCfg, err := appCfg.ToProviderConfig(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Model != "" {
		providerCfg.Model = req.Model
	}

	resp, err := extract.Run(r.Context(), extract.Request{
		Index:        doc.index,
		QueryTypes:   req.QueryTypes,
		Config:       providerCfg,
		Registry:     s.registry,
		ContextRunes: appCfg.Defaults.ContextRunes,
		Logger:       s.logger,
	})
	if err != nil {
		s.logger.Error("extraction failed", "document", doc.ID, "error", err)
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, ExtractResponse{
		Items:        resp.Items,
		Count:        len(resp.Items),
		Dropped:      resp.Dropped,
		FailedChunks: resp.FailedChunks,
	})
}

// statusForError maps pipeline errors onto HTTP status codes.
func statusForError(err error) int {
	var rle *providers.RateLimitError
	switch {
	case errors.Is(err, pdfindex.ErrDocumentParse):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.As(err, &rle), errors.Is(err, providers.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, providers.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, providers.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, providers.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
