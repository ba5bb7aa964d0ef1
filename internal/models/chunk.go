// Package models defines core data structures for chunks, search results, and store state.
package models

import "time"

// DocumentSource identifies the file a chunk's text was extracted from.
type DocumentSource struct {
	SourceDocument string `json:"source_document"`
	FileType       string `json:"file_type"`
	FilePath       string `json:"file_path"`
}

// Chunk is a bounded, metadata-tagged slice of a document's text. It is the
// unit of embedding and retrieval. ChunkID is 0-based and contiguous within a
// document; ChunkSize is the character count of Text.
type Chunk struct {
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
	FileType       string `json:"file_type"`
	FilePath       string `json:"file_path"`
	ChunkID        int    `json:"chunk_id"`
	ChunkSize      int    `json:"chunk_size"`
}

// IntakeDocument is a file registered in the intake directory, tracked in the
// document registry.
type IntakeDocument struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
