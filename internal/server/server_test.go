package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docpin/docpin/internal/config"
	"github.com/docpin/docpin/internal/pdfindex"
	"github.com/docpin/docpin/internal/resolve"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
defaults:
  provider: rules
providers:
  rules:
    enabled: true
`
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr, err := config.NewManager(configFile)
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}

	srv, err := New(Config{ConfigManager: mgr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func seedDocument(srv *Server) *storedDocument {
	segments := []pdfindex.PageSegment{
		{Page: 1, Text: "报告引用了《红楼梦》的内容", Order: 0,
			BBox: pdfindex.BBox{X0: 72, Y0: 700, X1: 300, Y1: 712}},
		{Page: 2, Text: "营收同比增长 42%", Order: 1,
			BBox: pdfindex.BBox{X0: 72, Y0: 650, X1: 250, Y1: 662}},
	}
	return srv.store.Add("report.pdf", pdfindex.NewFromSegments(segments, 2))
}

func do(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestQueryTypesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/api/querytypes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		QueryTypes []struct {
			Name string `json:"name"`
		} `json:"query_types"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.QueryTypes) != 6 {
		t.Errorf("got %d query types, want 6", len(resp.QueryTypes))
	}
}

func TestUploadRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader("definitely not a pdf"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExtractEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	doc := seedDocument(srv)

	body, _ := json.Marshal(ExtractRequest{
		QueryTypes: []string{"book_title", "number"},
	})
	rec := do(srv, http.MethodPost, "/api/documents/"+doc.ID+"/extract", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != len(resp.Items) || resp.Count == 0 {
		t.Fatalf("count = %d, items = %d", resp.Count, len(resp.Items))
	}

	found := map[string]resolve.Item{}
	for _, item := range resp.Items {
		found[item.Value] = item
	}
	if item, ok := found["红楼梦"]; !ok || item.Page != 1 || item.Type != "book_title" {
		t.Errorf("book title missing or mislocated: %+v", resp.Items)
	}
	if item, ok := found["42%"]; !ok || item.Page != 2 || item.Type != "number" {
		t.Errorf("number missing or mislocated: %+v", resp.Items)
	}
}

func TestExtractDocumentNotFound(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(ExtractRequest{QueryTypes: []string{"number"}})
	rec := do(srv, http.MethodPost, "/api/documents/missing/extract", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExtractUnknownProvider(t *testing.T) {
	srv := newTestServer(t)
	doc := seedDocument(srv)

	body, _ := json.Marshal(ExtractRequest{
		QueryTypes: []string{"number"},
		Provider:   "clippy",
	})
	rec := do(srv, http.MethodPost, "/api/documents/"+doc.ID+"/extract", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestExtractUnknownQueryType(t *testing.T) {
	srv := newTestServer(t)
	doc := seedDocument(srv)

	body, _ := json.Marshal(ExtractRequest{QueryTypes: []string{"telepathy"}})
	rec := do(srv, http.MethodPost, "/api/documents/"+doc.ID+"/extract", body)
	if rec.Code != http.StatusInternalServerError && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 4xx/5xx: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentLifecycle(t *testing.T) {
	srv := newTestServer(t)
	doc := seedDocument(srv)

	rec := do(srv, http.MethodGet, "/api/documents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var list struct {
		Documents []storedDocument `json:"documents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Documents) != 1 || list.Documents[0].ID != doc.ID {
		t.Fatalf("documents = %+v, want just %s", list.Documents, doc.ID)
	}

	if rec := do(srv, http.MethodDelete, "/api/documents/"+doc.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := do(srv, http.MethodDelete, "/api/documents/"+doc.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
