package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/models"
	"github.com/kioku/kioku/internal/vector"
)

// ErrPersistence wraps failures while writing the store artifacts to disk.
var ErrPersistence = errors.New("store persistence failed")

// storeConfig is the third persisted artifact: enough collection-level
// metadata to sanity check a reload against the live configuration.
type storeConfig struct {
	CollectionName     string `json:"collection_name"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	NumDocuments       int    `json:"num_documents"`
}

func (s *KnowledgeStore) indexPath() string {
	return filepath.Join(s.path, s.collection+"_index.bin")
}

func (s *KnowledgeStore) metadataPath() string {
	return filepath.Join(s.path, s.collection+"_metadata.json")
}

func (s *KnowledgeStore) configPath() string {
	return filepath.Join(s.path, s.collection+"_config.json")
}

// loadOrCreate restores a persisted store when all three artifacts are
// present and consistent, and otherwise starts empty. A corrupt or
// inconsistent store is discarded with an error log unless strict loading is
// enabled, in which case it fails instead of silently dropping data.
func (s *KnowledgeStore) loadOrCreate() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		return s.createEmpty()
	}

	if err := s.load(); err != nil {
		if s.strictLoad {
			return fmt.Errorf("load persisted store: %w", err)
		}
		s.logger.Error("persisted store is corrupt, starting empty (data loss)",
			zap.String("store_path", s.path),
			zap.String("collection", s.collection),
			zap.Error(err),
		)
		return s.createEmpty()
	}
	return nil
}

func (s *KnowledgeStore) createEmpty() error {
	idx, err := vector.NewFlatIndex(s.dimension)
	if err != nil {
		return err
	}
	s.index = idx
	s.metadata = nil
	return nil
}

func (s *KnowledgeStore) load() error {
	idx, err := vector.LoadFlatIndex(s.indexPath())
	if err != nil {
		return err
	}
	if idx.Dimension() != s.dimension {
		return fmt.Errorf("persisted index dimension %d does not match configured dimension %d",
			idx.Dimension(), s.dimension)
	}

	raw, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var metadata []models.Chunk
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if len(metadata) != idx.Size() {
		return fmt.Errorf("metadata count %d does not match index size %d",
			len(metadata), idx.Size())
	}

	rawCfg, err := os.ReadFile(s.configPath())
	if err != nil {
		return fmt.Errorf("read store config: %w", err)
	}
	var cfg storeConfig
	if err := json.Unmarshal(rawCfg, &cfg); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	if cfg.EmbeddingDimension != s.dimension {
		return fmt.Errorf("persisted config dimension %d does not match configured dimension %d",
			cfg.EmbeddingDimension, s.dimension)
	}

	s.index = idx
	s.metadata = metadata
	s.logger.Info("knowledge store loaded from disk",
		zap.String("collection", s.collection),
		zap.Int("documents", len(metadata)),
	)
	return nil
}

// persistLocked writes all three artifacts. Must be called with the write
// lock held.
func (s *KnowledgeStore) persistLocked() error {
	if err := s.index.Save(s.indexPath()); err != nil {
		return fmt.Errorf("%w: save index: %v", ErrPersistence, err)
	}

	metadata := s.metadata
	if metadata == nil {
		metadata = []models.Chunk{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrPersistence, err)
	}
	if err := os.WriteFile(s.metadataPath(), raw, 0o644); err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrPersistence, err)
	}

	cfg := storeConfig{
		CollectionName:     s.collection,
		EmbeddingDimension: s.dimension,
		NumDocuments:       len(s.metadata),
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: encode store config: %v", ErrPersistence, err)
	}
	if err := os.WriteFile(s.configPath(), rawCfg, 0o644); err != nil {
		return fmt.Errorf("%w: write store config: %v", ErrPersistence, err)
	}
	return nil
}
