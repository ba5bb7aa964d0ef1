package chunker

import (
	"strings"
	"testing"

	"github.com/kioku/kioku/internal/models"
)

var testSource = models.DocumentSource{
	SourceDocument: "doc.txt",
	FileType:       ".txt",
	FilePath:       "/data/doc.txt",
}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(100, 20)
	if got := c.Chunk("", testSource); got != nil {
		t.Errorf("empty text should yield nil, got %d chunks", len(got))
	}
	if got := c.Chunk("  \n\t  ", testSource); got != nil {
		t.Errorf("whitespace-only text should yield nil, got %d chunks", len(got))
	}
}

func TestChunker_SingleChunk(t *testing.T) {
	c := NewChunker(100, 20)
	chunks := c.Chunk("short text", testSource)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.Text != "short text" {
		t.Errorf("Text=%q", ch.Text)
	}
	if ch.ChunkID != 0 || ch.ChunkSize != len("short text") {
		t.Errorf("ChunkID=%d ChunkSize=%d", ch.ChunkID, ch.ChunkSize)
	}
	if ch.SourceDocument != "doc.txt" || ch.FileType != ".txt" || ch.FilePath != "/data/doc.txt" {
		t.Errorf("source metadata not carried: %+v", ch)
	}
}

func TestChunker_SentenceBoundary(t *testing.T) {
	c := NewChunker(30, 5)
	chunks := c.Chunk("First sentence here. Second sentence follows after it.", testSource)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("first chunk should end at sentence terminator, got %q", chunks[0].Text)
	}
}

func TestChunker_WordBoundary(t *testing.T) {
	c := NewChunker(20, 4)
	chunks := c.Chunk("alpha beta gamma delta epsilon zeta", testSource)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// No sentence terminators, so each non-final cut falls on whitespace and
	// the trimmed chunk never splits a word.
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			if !strings.Contains("alpha beta gamma delta epsilon zeta", w) {
				t.Errorf("chunk split inside a word: %q", w)
			}
		}
	}
}

func TestChunker_ContiguousIDsAndBoundedSize(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	chunks := c.Chunk(text, testSource)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if ch.ChunkID != i {
			t.Errorf("chunk %d has ChunkID %d", i, ch.ChunkID)
		}
		if ch.ChunkSize > 50 {
			t.Errorf("chunk %d exceeds size limit: %d", i, ch.ChunkSize)
		}
		if ch.ChunkSize != len([]rune(ch.Text)) {
			t.Errorf("chunk %d ChunkSize=%d, text length %d", i, ch.ChunkSize, len([]rune(ch.Text)))
		}
	}
}

func TestChunker_CoverageNoGaps(t *testing.T) {
	c := NewChunker(40, 10)
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur. ", 20)
	chunks := c.Chunk(text, testSource)

	// Every chunk must appear in the original, and each chunk must start at or
	// before the previous chunk's end (overlap, never a gap).
	prevEnd := 0
	searchFrom := 0
	for i, ch := range chunks {
		at := strings.Index(text[searchFrom:], ch.Text)
		if at < 0 {
			t.Fatalf("chunk %d not found in original text", i)
		}
		begin := searchFrom + at
		if begin > prevEnd {
			t.Errorf("gap before chunk %d: starts at %d, previous ended at %d", i, begin, prevEnd)
		}
		prevEnd = begin + len(ch.Text)
		searchFrom = begin + 1
	}
	if remainder := strings.TrimSpace(text[prevEnd:]); remainder != "" {
		t.Errorf("tail of text not covered: %q", remainder)
	}
}

func TestChunker_TerminatesWithoutBoundaries(t *testing.T) {
	// A long run with no sentence terminators or whitespace forces hard cuts;
	// the advance clamp must still guarantee termination and full coverage.
	c := NewChunker(10, 9)
	text := strings.Repeat("x", 100)
	chunks := c.Chunk(text, testSource)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if ch.ChunkID != i {
			t.Errorf("chunk %d has ChunkID %d", i, ch.ChunkID)
		}
	}
}

func TestNewChunker_SanitizesConfig(t *testing.T) {
	c := NewChunker(0, -5)
	if c.chunkSize != DefaultChunkSize || c.chunkOverlap != 0 {
		t.Errorf("got size=%d overlap=%d", c.chunkSize, c.chunkOverlap)
	}
	c = NewChunker(10, 50)
	if c.chunkOverlap >= c.chunkSize {
		t.Errorf("overlap %d not reduced below size %d", c.chunkOverlap, c.chunkSize)
	}
	// Must terminate even with the degenerate overlap.
	chunks := c.Chunk(strings.Repeat("a b ", 50), testSource)
	if len(chunks) == 0 {
		t.Error("expected chunks")
	}
}
