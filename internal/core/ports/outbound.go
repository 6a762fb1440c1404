package ports

import (
	"context"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// Embedder builds dense vectors for chunk and query text. Returns the
// vectors and the token count the service billed for the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, int, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, int, error)
}

// RerankScore is one cross-encoder judgement, addressed by the index of
// the candidate in the submitted document list.
type RerankScore struct {
	Index     int     `json:"index"`
	Relevance float64 `json:"relevance_score"`
}

// Reranker is the external cross-encoder service. Results come back
// sorted descending by relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankScore, error)
}

// SearchCache is a TTL key-value store. Entries expire through the
// backing store's native TTL; there is no LRU eviction. Failures are
// treated as misses by callers, never as errors on the search path.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// ChunkIndex is the backend a search engine retrieves from. The lexical
// query receives an already-optimized boolean query string; an index
// whose engine rejects the structured form must degrade to a plain
// query mode instead of failing.
type ChunkIndex interface {
	Name() string
	VectorQuery(ctx context.Context, userID string, vector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
	LexicalQuery(ctx context.Context, userID, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
	UpsertChunk(ctx context.Context, userID string, chunk domain.Chunk, vector []float32) error
	DeleteDocument(ctx context.Context, userID, documentID string) error
	Ping(ctx context.Context) error
}

// IndexQueue publishes/consumes async index and delete events.
type IndexQueue interface {
	PublishIndexRequested(ctx context.Context, req domain.IndexRequest) error
	SubscribeIndexRequested(ctx context.Context, handler func(context.Context, domain.IndexRequest) error) error
}
