// Package extract converts document files of various formats into plain text
// for chunking and embedding.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Extractor dispatches text extraction by file extension.
type Extractor struct {
	logger *zap.Logger // optional; when set, logs per-file extraction events
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for extraction warnings (unknown formats, fallbacks).
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text content.
// Plain text and markdown are returned as-is (UTF-8, with a latin-1 fallback
// for undecodable content). JSON is re-serialized as an indented readable
// string. PDF pages are concatenated with page-number separators. HTML keeps
// its tags but drops script and style blocks. DOCX yields paragraph text then
// table cells row by row. XLSX yields sheet rows as tab-separated lines.
// Unknown extensions fall back to plain text with a warning, never an error.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext, which should include
// the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".txt", ".md", "":
		return extractPlain(content)
	case ".json":
		return extractJSON(content)
	case ".pdf":
		return extractPDF(content)
	case ".html", ".htm":
		return extractHTML(content)
	case ".docx":
		// Only OOXML is handled; legacy OLE .doc is an unrelated binary
		// format and falls through to the plain-text default.
		return extractDOCX(content)
	case ".xlsx":
		return extractXLSX(content)
	default:
		if e.logger != nil {
			e.logger.Warn("unsupported file type, treating as plain text", zap.String("extension", ext))
		}
		return extractPlain(content)
	}
}
