// Package chunker splits extracted document text into overlapping,
// bounded-size segments with stable per-chunk metadata.
package chunker

import (
	"strings"
	"unicode"

	"github.com/kioku/kioku/internal/models"
)

// Chunker splits text into character-bounded chunks that prefer sentence and
// word boundaries. chunkOverlap must be smaller than chunkSize; the advance
// step is clamped regardless so chunking always terminates.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// DefaultChunkSize and DefaultChunkOverlap are the chunking defaults, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// NewChunker creates a chunker. Non-positive chunkSize falls back to
// DefaultChunkSize; a negative overlap is treated as zero and an overlap that
// would prevent forward progress is reduced to chunkSize-1.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into chunks tagged with src. Boundaries are chosen per
// window: the last sentence terminator (".", "!", "?") strictly after the
// window start wins, then the last whitespace, then the hard window edge.
// Each slice is trimmed and dropped if empty. Empty or whitespace-only input
// yields no chunks. ChunkIDs are contiguous starting at 0.
func (c *Chunker) Chunk(text string, src models.DocumentSource) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []models.Chunk
	start := 0
	chunkID := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end < len(runes) {
			if cut := lastSentenceEnd(runes, start, end); cut > start {
				end = cut + 1
			} else if cut := lastWhitespace(runes, start, end); cut > start {
				end = cut
			}
		} else {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, models.Chunk{
				Text:           piece,
				SourceDocument: src.SourceDocument,
				FileType:       src.FileType,
				FilePath:       src.FilePath,
				ChunkID:        chunkID,
				ChunkSize:      len([]rune(piece)),
			})
			chunkID++
		}
		if end >= len(runes) {
			break
		}
		next := end - c.chunkOverlap
		// Never regress past the previous start, so the loop always advances
		// even when the boundary search moved end close to start.
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// lastSentenceEnd returns the index of the last '.', '!', or '?' in
// runes[start:end], or -1 if none.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// lastWhitespace returns the index of the last whitespace rune in
// runes[start:end], or -1 if none.
func lastWhitespace(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
