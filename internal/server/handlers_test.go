package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/config"
	"github.com/kioku/kioku/internal/embedding"
	"github.com/kioku/kioku/internal/extract"
	"github.com/kioku/kioku/internal/models"
	"github.com/kioku/kioku/internal/registry"
	"github.com/kioku/kioku/internal/store"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Store.Path = filepath.Join(dir, "store")
	cfg.Embedding.Dimensions = 8
	cfg.Embedding.BatchSize = 4
	cfg.Chunking.ChunkSize = 50
	cfg.Chunking.ChunkOverlap = 10
	cfg.Intake.Directory = filepath.Join(dir, "uploads")
	cfg.Intake.RegistryPath = filepath.Join(dir, "registry.db")

	ks, err := store.New(cfg, embedding.NewMockProvider(8), extract.NewExtractor(), zap.NewNop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	reg, err := registry.Open(cfg.Intake.RegistryPath)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = ks.Close()
		_ = reg.Close()
	})
	return NewServer(ks, reg, cfg, zap.NewNop()), cfg
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
}

func TestUploadAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "files", "notes.txt", "Searchable notes about Go.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(srv, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	var resp struct {
		Documents []models.IntakeDocument `json:"documents"`
		Count     int                     `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Count != 1 || len(resp.Documents) != 1 {
		t.Fatalf("list count = %d, want 1", resp.Count)
	}
	if resp.Documents[0].Filename != "notes.txt" {
		t.Errorf("filename = %s, want notes.txt", resp.Documents[0].Filename)
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "files", "malware.exe", "nope")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(srv, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload of .exe returned %d, want 400", w.Code)
	}
}

func TestUploadMixedBatchSavesNothing(t *testing.T) {
	srv, cfg := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, content string }{
		{"good.txt", "fine"},
		{"bad.exe", "nope"},
	} {
		fw, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := doRequest(srv, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("mixed batch returned %d, want 400", w.Code)
	}

	// The valid file must not have been saved or registered.
	if _, err := os.Stat(filepath.Join(cfg.Intake.Directory, "good.txt")); !os.IsNotExist(err) {
		t.Error("rejected batch left good.txt in the intake directory")
	}
	count, err := srv.registry.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected batch registered %d document(s)", count)
	}
}

func TestBuildWithoutDocuments(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-base/build", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("build without uploads returned %d, want 400", w.Code)
	}
}

func TestUploadBuildSearchFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "files", "go.txt",
		"Goroutines are lightweight threads managed by the Go runtime.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	if w := doRequest(srv, req); w.Code != http.StatusCreated {
		t.Fatalf("upload status %d", w.Code)
	}

	w := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-base/build", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("build status %d: %s", w.Code, w.Body.String())
	}
	var build models.BuildResult
	if err := json.NewDecoder(w.Body).Decode(&build); err != nil {
		t.Fatalf("decode build: %v", err)
	}
	if !build.Success || build.DocumentsAdded == 0 {
		t.Fatalf("build result: %+v", build)
	}

	searchBody, _ := json.Marshal(models.SearchRequest{Query: "Goroutines are lightweight threads managed by the Go runtime.", TopK: 3})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(searchBody))
	w = doRequest(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search status %d: %s", w.Code, w.Body.String())
	}
	var search models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&search); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if !search.Success || len(search.Results) == 0 {
		t.Fatalf("search response: %+v", search)
	}
	if search.Results[0].SourceDocument != "go.txt" {
		t.Errorf("top result source = %s, want go.txt", search.Results[0].SourceDocument)
	}
}

func TestSearchEmptyKnowledgeBase(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(models.SearchRequest{Query: "anything"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := doRequest(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search status %d", w.Code)
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("empty knowledge base returned %d results", len(resp.Results))
	}
	if resp.Message != "knowledge base is empty" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(models.SearchRequest{Query: ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	if w := doRequest(srv, req); w.Code != http.StatusBadRequest {
		t.Fatalf("empty query returned %d, want 400", w.Code)
	}
}

func TestSearchClampsTopK(t *testing.T) {
	srv, cfg := newTestServer(t)

	var chunks []models.Chunk
	for i, text := range []string{"one", "two", "three", "four", "five"} {
		chunks = append(chunks, models.Chunk{Text: text, SourceDocument: "n.txt", ChunkID: i})
	}
	if _, err := srv.store.AddChunks(context.Background(), chunks); err != nil {
		t.Fatalf("AddChunks: %v", err)
	}

	body, _ := json.Marshal(models.SearchRequest{Query: "one", TopK: cfg.Search.MaxTopK + 100})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := doRequest(srv, req)
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) > cfg.Search.MaxTopK {
		t.Errorf("top_k not clamped: got %d results", len(resp.Results))
	}
}

func TestStatsAndClear(t *testing.T) {
	srv, _ := newTestServer(t)

	if _, err := srv.store.AddChunks(context.Background(), []models.Chunk{
		{Text: "a chunk", SourceDocument: "a.txt"},
	}); err != nil {
		t.Fatalf("AddChunks: %v", err)
	}

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/knowledge-base/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats status %d", w.Code)
	}
	var stats map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["num_documents"].(float64) != 1 {
		t.Errorf("num_documents = %v, want 1", stats["num_documents"])
	}
	if _, ok := stats["disk_usage_bytes"]; !ok {
		t.Error("stats missing disk_usage_bytes")
	}

	w = doRequest(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/knowledge-base", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear status %d", w.Code)
	}
	if srv.store.Stats().IndexSize != 0 {
		t.Error("knowledge base not empty after clear")
	}
}
