package models

// SearchResult is a single retrieval hit: the stored chunk metadata plus the
// raw distance and its similarity transform (1 / (1 + distance)).
type SearchResult struct {
	Chunk
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// StoreStats is a snapshot of the knowledge store state.
// NumDocuments == IndexSize holds after every mutating operation.
type StoreStats struct {
	CollectionName     string `json:"collection_name"`
	NumDocuments       int    `json:"num_documents"`
	IndexSize          int    `json:"index_size"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	StorePath          string `json:"store_path"`
}

// BuildResult reports the outcome of a knowledge-base build.
type BuildResult struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	FilesProcessed int        `json:"files_processed"`
	ChunksCreated  int        `json:"chunks_created"`
	DocumentsAdded int        `json:"documents_added"`
	Stats          StoreStats `json:"stats"`
}

// BuildRequest is the request body for a knowledge-base build. A nil FilePaths
// means "all files in the intake directory".
type BuildRequest struct {
	FilePaths     []string `json:"file_paths,omitempty"`
	ClearExisting bool     `json:"clear_existing"`
}

// SearchRequest is the request body for a similarity search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchResponse is the response for a search request. An empty index is not
// an error: Success is true with empty Results and an informational Message.
type SearchResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message,omitempty"`
	Results     []SearchResult `json:"results"`
	QueryTimeMs int64          `json:"query_time_ms"`
}
