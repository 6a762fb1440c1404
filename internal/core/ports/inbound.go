package ports

import (
	"context"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// SearchProvider is the inbound capability contract exposed to callers
// such as an answer-generation layer. Both backend variants satisfy it
// through the shared search engine.
type SearchProvider interface {
	VectorSearch(ctx context.Context, query, userID string, opts domain.VectorSearchOptions) (*domain.SearchResponse, error)
	HybridSearch(ctx context.Context, query, userID string, opts domain.HybridSearchOptions) (*domain.HybridSearchResponse, error)
	ContextAwareSearch(ctx context.Context, query, userID string, history []string, opts domain.ContextSearchOptions) (*domain.HybridSearchResponse, error)
	MultiStepSearch(ctx context.Context, query, userID string, opts domain.MultiStepSearchOptions) (*domain.HybridSearchResponse, error)

	IndexDocument(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error)
	UpdateDocumentIndex(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error)
	DeleteDocumentIndex(ctx context.Context, userID, documentID string) (bool, error)

	Status(ctx context.Context) domain.ProviderStatus
	ValidateConfiguration(ctx context.Context) domain.ValidationReport
}
