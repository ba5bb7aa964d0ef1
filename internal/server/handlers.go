package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/models"
	"github.com/kioku/kioku/internal/store"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Intake.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request or file too large")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files in request")
		return
	}

	// Reject the whole request before saving anything, so a bad file in a
	// multi-file upload does not leave earlier files behind.
	for _, header := range files {
		ext := filepath.Ext(filepath.Base(header.Filename))
		if !s.config.Intake.AllowedExtension(ext) {
			s.respondError(w, http.StatusBadRequest,
				fmt.Sprintf("file type not allowed: %s", ext))
			return
		}
	}

	var saved []*models.IntakeDocument
	for _, header := range files {
		name := filepath.Base(header.Filename)
		doc, err := s.saveUpload(header, name)
		if err != nil {
			s.logger.Error("upload failed", zap.String("filename", name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := s.registry.Upsert(r.Context(), doc); err != nil {
			s.logger.Error("failed to register upload", zap.String("filename", name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		saved = append(saved, doc)
	}
	s.logger.Info("documents uploaded", zap.Int("count", len(saved)))
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":    "uploaded",
		"documents": saved,
	})
}

func (s *Server) saveUpload(header *multipart.FileHeader, name string) (*models.IntakeDocument, error) {
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.config.Intake.Directory, 0755); err != nil {
		return nil, fmt.Errorf("create intake directory: %w", err)
	}
	path := filepath.Join(s.config.Intake.Directory, name)
	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	// Use the on-disk mtime so the intake watcher recognizes the upload as
	// already registered and does not ingest it a second time.
	modTime := time.Now()
	if info, statErr := os.Stat(path); statErr == nil {
		modTime = info.ModTime()
	}
	return &models.IntakeDocument{
		Filename: name,
		Path:     path,
		Size:     size,
		ModTime:  modTime,
	}, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.IntakeDocument{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req models.BuildRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	paths := req.FilePaths
	if len(paths) == 0 {
		docs, err := s.registry.List(r.Context())
		if err != nil {
			s.logger.Error("list documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, doc := range docs {
			paths = append(paths, doc.Path)
		}
	}
	if len(paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "No files found. Please upload documents first.")
		return
	}

	result, err := s.store.BuildKnowledgeBase(r.Context(), paths, req.ClearExisting)
	if err != nil {
		s.logger.Error("build failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.Search.DefaultTopK
	}
	if topK > s.config.Search.MaxTopK {
		topK = s.config.Search.MaxTopK
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", topK))

	start := time.Now()
	results, err := s.store.Search(r.Context(), req.Query, topK)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := models.SearchResponse{
		Success:     true,
		Results:     results,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}
	switch {
	case s.store.Stats().IndexSize == 0:
		resp.Message = "knowledge base is empty"
	case len(results) == 0:
		resp.Message = "no relevant results"
	default:
		resp.Message = fmt.Sprintf("found %d results", len(results))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	resp := map[string]interface{}{
		"collection_name":     stats.CollectionName,
		"num_documents":       stats.NumDocuments,
		"index_size":          stats.IndexSize,
		"embedding_dimension": stats.EmbeddingDimension,
		"store_path":          stats.StorePath,
	}
	if diskBytes, err := store.DiskUsageBytes(stats.StorePath, s.config.Intake.Directory); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	if count, err := s.registry.Count(r.Context()); err == nil {
		resp["uploaded_documents"] = count
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("clear knowledge base requested")
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
