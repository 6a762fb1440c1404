package domain

// BoundingBox locates a chunk on its source page. Coordinates are in the
// layout extractor's native units.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Chunk is the smallest retrievable unit of document text. Chunks are
// produced by the external ingestion pipeline and are read-only here.
type Chunk struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	DocumentTitle string            `json:"document_title"`
	Content       string            `json:"content"`
	ChunkIndex    int               `json:"chunk_index"`
	ElementType   string            `json:"element_type,omitempty"`
	PageNumber    int               `json:"page_number,omitempty"`
	BBox          *BoundingBox      `json:"bbox,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SearchResult is a chunk scored by a single retrieval channel.
type SearchResult struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// HybridSearchResult carries the per-channel scores alongside the fused
// score. HybridScore is the basis for final ordering after every stage;
// reranking recomputes it as a blend rather than replacing it.
type HybridSearchResult struct {
	Chunk
	VectorScore float64  `json:"vector_score"`
	TextScore   float64  `json:"text_score"`
	HybridScore float64  `json:"hybrid_score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// SearchFilter restricts retrieval to a subset of the caller's corpus.
type SearchFilter struct {
	DocumentIDs  []string `json:"document_ids,omitempty"`
	ElementTypes []string `json:"element_types,omitempty"`
	PageNumbers  []int    `json:"page_numbers,omitempty"`
}

// SearchResponse is created once per request and never mutated after return.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Total      int            `json:"total"`
	TokensUsed int            `json:"tokens_used"`
	TookMS     float64        `json:"took_ms"`
	CacheHit   bool           `json:"cache_hit"`
	Expansions []string       `json:"expansions,omitempty"`
}

type HybridSearchResponse struct {
	Results         []HybridSearchResult `json:"results"`
	Total           int                  `json:"total"`
	TokensUsed      int                  `json:"tokens_used"`
	TookMS          float64              `json:"took_ms"`
	CacheHit        bool                 `json:"cache_hit"`
	Expansions      []string             `json:"expansions,omitempty"`
	FusionAlgorithm string               `json:"fusion_algorithm"`
	RerankApplied   bool                 `json:"rerank_applied"`
	RerankMS        float64              `json:"rerank_ms,omitempty"`
	Steps           int                  `json:"steps,omitempty"`
}

// DocumentInput is the already-chunked payload handed to indexing. The
// chunking pipeline that produced it is an external collaborator.
type DocumentInput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Chunks     []Chunk `json:"chunks"`
}

// IndexRequest asks the async worker to (re)index or remove a
// document. The chunked payload travels inline so the worker needs no
// access to the upstream chunking pipeline.
type IndexRequest struct {
	DocumentID string  `json:"document_id"`
	UserID     string  `json:"user_id"`
	Title      string  `json:"title,omitempty"`
	Chunks     []Chunk `json:"chunks,omitempty"`
	// Delete marks a removal instead of an index run.
	Delete bool `json:"delete,omitempty"`
}

// IndexReport describes a possibly partial indexing outcome. Per-chunk
// failures never abort the batch; Success is true only when every chunk
// made it in.
type IndexReport struct {
	Success       bool     `json:"success"`
	ChunksIndexed int      `json:"chunks_indexed"`
	ErrorCount    int      `json:"error_count"`
	Errors        []string `json:"errors,omitempty"`
}

// ProviderStatus is a health probe result. Probes never fail hard.
type ProviderStatus struct {
	Provider  string   `json:"provider"`
	IsHealthy bool     `json:"is_healthy"`
	Details   []string `json:"details,omitempty"`
}

// ValidationReport is the outcome of a configuration check. Warnings do
// not make the configuration invalid.
type ValidationReport struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
