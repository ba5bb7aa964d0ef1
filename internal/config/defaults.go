package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./vector_store"
	}
	if cfg.Store.CollectionName == "" {
		cfg.Store.CollectionName = "knowledge"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 10
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 20
	}
	if cfg.Intake.Directory == "" {
		cfg.Intake.Directory = "./uploads"
	}
	if cfg.Intake.Extensions == nil {
		cfg.Intake.Extensions = []string{".md", ".txt", ".json", ".pdf", ".html", ".docx", ".xlsx"}
	}
	if cfg.Intake.MaxUploadSizeMB == 0 {
		cfg.Intake.MaxUploadSizeMB = 50
	}
	if cfg.Intake.RegistryPath == "" {
		cfg.Intake.RegistryPath = "./vector_store/registry.db"
	}
}
