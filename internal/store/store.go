// Package store implements the knowledge store: it orchestrates chunking,
// embedding, vector indexing, and durable persistence of a document
// collection, and answers top-k similarity queries against it.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/chunker"
	"github.com/kioku/kioku/internal/config"
	"github.com/kioku/kioku/internal/embedding"
	"github.com/kioku/kioku/internal/extract"
	"github.com/kioku/kioku/internal/models"
	"github.com/kioku/kioku/internal/vector"
)

// KnowledgeStore ties chunking, embedding, indexing, and on-disk persistence
// into document-set lifecycle operations. The index and the metadata sequence
// are co-indexed by record id and always the same length.
//
// A single RWMutex serializes access: mutating operations (build, add, clear)
// hold the write lock for their whole duration including persistence, so
// readers never observe a partially appended index/metadata pair.
type KnowledgeStore struct {
	mu sync.RWMutex

	path       string
	collection string
	dimension  int
	batchSize  int
	strictLoad bool

	index    *vector.FlatIndex
	metadata []models.Chunk

	provider  embedding.Provider
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	logger    *zap.Logger
}

// New creates a KnowledgeStore rooted at cfg.Store.Path, loading a previously
// persisted index when one exists and creating an empty one otherwise. The
// store directory is created if absent. A nil logger is replaced with a no-op
// logger.
func New(cfg *config.Config, provider embedding.Provider, extractor *extract.Extractor, logger *zap.Logger) (*KnowledgeStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider.Dimensions() != cfg.Embedding.Dimensions {
		return nil, fmt.Errorf("provider dimension %d does not match configured dimension %d",
			provider.Dimensions(), cfg.Embedding.Dimensions)
	}
	s := &KnowledgeStore{
		path:       cfg.Store.Path,
		collection: cfg.Store.CollectionName,
		dimension:  cfg.Embedding.Dimensions,
		batchSize:  cfg.Embedding.BatchSize,
		strictLoad: cfg.Store.StrictLoad,
		provider:   provider,
		extractor:  extractor,
		chunker:    chunker.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		logger:     logger,
	}
	if err := s.loadOrCreate(); err != nil {
		return nil, err
	}
	logger.Info("knowledge store initialized",
		zap.String("store_path", s.path),
		zap.String("collection", s.collection),
		zap.Int("embedding_dimension", s.dimension),
		zap.Int("documents", len(s.metadata)),
	)
	return s, nil
}

// BuildKnowledgeBase extracts and chunks every file in filePaths, embeds the
// resulting chunks, appends them to the index, and persists the store. When
// clearExisting is set the store is reset (and the reset persisted) first.
// A file that fails extraction is logged and skipped; it does not abort the
// build. Zero extracted chunks yields a failure result without mutating the
// index. The returned error is non-nil only for structural failures
// (dimension mismatch, persistence).
func (s *KnowledgeStore) BuildKnowledgeBase(ctx context.Context, filePaths []string, clearExisting bool) (*models.BuildResult, error) {
	s.logger.Info("building knowledge base",
		zap.Int("files", len(filePaths)),
		zap.Bool("clear_existing", clearExisting),
	)
	s.mu.Lock()
	defer s.mu.Unlock()

	if clearExisting {
		if err := s.clearLocked(); err != nil {
			return nil, err
		}
	}

	chunks := s.parseFiles(filePaths)
	if len(chunks) == 0 {
		s.logger.Warn("no chunks extracted from files", zap.Int("files", len(filePaths)))
		return &models.BuildResult{
			Success: false,
			Message: "No content extracted from files",
			Stats:   s.statsLocked(),
		}, nil
	}

	added, err := s.addChunksLocked(ctx, chunks)
	if err != nil {
		return nil, err
	}

	result := &models.BuildResult{
		Success:        true,
		Message:        "Knowledge base built successfully",
		FilesProcessed: len(filePaths),
		ChunksCreated:  len(chunks),
		DocumentsAdded: added,
		Stats:          s.statsLocked(),
	}
	s.logger.Info("knowledge base built",
		zap.Int("files_processed", result.FilesProcessed),
		zap.Int("chunks_created", result.ChunksCreated),
		zap.Int("documents_added", result.DocumentsAdded),
	)
	return result, nil
}

// parseFiles extracts and chunks each file, collecting the union of all
// chunks. Extraction failures are logged and skipped so a partial document
// set still produces a usable index.
func (s *KnowledgeStore) parseFiles(filePaths []string) []models.Chunk {
	var all []models.Chunk
	for _, path := range filePaths {
		text, err := s.extractor.Extract(path)
		if err != nil {
			s.logger.Error("failed to parse file, skipping",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		src := models.DocumentSource{
			SourceDocument: filepath.Base(path),
			FileType:       strings.ToLower(filepath.Ext(path)),
			FilePath:       path,
		}
		chunks := s.chunker.Chunk(text, src)
		s.logger.Debug("file chunked",
			zap.String("file", src.SourceDocument),
			zap.Int("chunks", len(chunks)),
		)
		all = append(all, chunks...)
	}
	return all
}

// IngestFile extracts and chunks a single file and appends its chunks to the
// store. This is the incremental path used by the intake watcher; unlike a
// build it fails when the file yields no content, since a single-file ingest
// with nothing to add is always a caller-visible problem.
func (s *KnowledgeStore) IngestFile(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := s.parseFiles([]string{path})
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no content extracted from %s", path)
	}
	return s.addChunksLocked(ctx, chunks)
}

// AddChunks embeds the chunk texts in batches, appends vectors and metadata
// to the store, and persists it. Returns the number of records added; an
// empty input returns 0 without error.
func (s *KnowledgeStore) AddChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChunksLocked(ctx, chunks)
}

func (s *KnowledgeStore) addChunksLocked(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		s.logger.Warn("no chunks provided")
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors := s.embedTexts(ctx, texts)
	for _, v := range vectors {
		vector.Normalize(v)
	}
	if err := s.index.Add(vectors); err != nil {
		return 0, err
	}
	s.metadata = append(s.metadata, chunks...)

	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	s.logger.Info("documents added to knowledge store",
		zap.Int("added", len(chunks)),
		zap.Int("index_size", s.index.Size()),
	)
	return len(chunks), nil
}

// embedTexts embeds texts in fixed-size batches. A batch failure falls back
// to per-text embedding; a text that still fails is recorded as a failed
// outcome and collapsed to a zero vector, so record count parity with the
// metadata sequence is preserved at the cost of that chunk being
// unsearchable by content.
func (s *KnowledgeStore) embedTexts(ctx context.Context, texts []string) [][]float32 {
	outcomes := make([]embedOutcome, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		s.logger.Debug("embedding batch",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)),
		)
		embedded, err := s.provider.EmbedBatch(ctx, batch, embedding.ModeDocument)
		if err == nil {
			for i, v := range embedded {
				outcomes[start+i] = embedOutcome{vector: v}
			}
			continue
		}
		// Retry each text individually so one bad text does not take the
		// whole batch down with it.
		for i, text := range batch {
			v, textErr := s.provider.Embed(ctx, text, embedding.ModeDocument)
			if textErr != nil {
				outcomes[start+i] = embedOutcome{err: textErr}
				continue
			}
			outcomes[start+i] = embedOutcome{vector: v}
		}
	}

	vectors := make([][]float32, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			s.logger.Warn("embedding failed, storing zero vector",
				zap.Int("chunk", i),
				zap.Error(o.err),
			)
			vectors[i] = make([]float32, s.dimension)
			continue
		}
		vectors[i] = o.vector
	}
	return vectors
}

// embedOutcome is the per-text embedding result, kept tagged until the
// index-append boundary so failures are observable before being absorbed as
// zero vectors.
type embedOutcome struct {
	vector []float32
	err    error
}

// Search embeds query in query mode, normalizes it, and returns the topK
// nearest chunks with distance and similarity. An empty index returns an
// empty slice, not an error.
func (s *KnowledgeStore) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index.Size() == 0 {
		s.logger.Warn("search against empty knowledge store")
		return []models.SearchResult{}, nil
	}

	q, err := s.provider.Embed(ctx, query, embedding.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vector.Normalize(q)

	matches, err := s.index.Search(q, topK)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = models.SearchResult{
			Chunk:      s.metadata[m.ID],
			Distance:   m.Distance,
			Similarity: vector.Similarity(m.Distance),
		}
	}
	s.logger.Debug("search completed",
		zap.Int("results", len(results)),
		zap.Int("top_k", topK),
	)
	return results, nil
}

// Clear discards the index and metadata and persists the empty state
// immediately, so a crash right after Clear cannot resurrect old data.
func (s *KnowledgeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *KnowledgeStore) clearLocked() error {
	s.logger.Warn("clearing knowledge store", zap.String("collection", s.collection))
	s.index.Reset()
	s.metadata = nil
	return s.persistLocked()
}

// Stats returns a snapshot of the store state.
func (s *KnowledgeStore) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *KnowledgeStore) statsLocked() models.StoreStats {
	return models.StoreStats{
		CollectionName:     s.collection,
		NumDocuments:       len(s.metadata),
		IndexSize:          s.index.Size(),
		EmbeddingDimension: s.dimension,
		StorePath:          s.path,
	}
}

// Close releases the embedding provider.
func (s *KnowledgeStore) Close() error {
	return s.provider.Close()
}
