package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// IndexDocument embeds and upserts every chunk of an already-chunked
// document. Per-chunk failures are collected, never aborting the rest
// of the batch; Success requires a clean run.
func (e *Engine) IndexDocument(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error) {
	return e.indexChunks(ctx, userID, doc)
}

// UpdateDocumentIndex removes the stale chunks for the document and
// re-indexes the new set.
func (e *Engine) UpdateDocumentIndex(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error) {
	if err := e.index.DeleteDocument(ctx, userID, doc.DocumentID); err != nil {
		// Stale rows are tolerable; upserts below overwrite matching ids.
		slog.Warn("stale_index_cleanup_failed", "document_id", doc.DocumentID, "error", err)
	}
	return e.indexChunks(ctx, userID, doc)
}

func (e *Engine) indexChunks(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error) {
	report := &domain.IndexReport{}

	// Chunks are processed sequentially; the embedding client applies
	// its own rate limiting.
	for i, chunk := range doc.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if chunk.DocumentID == "" {
			chunk.DocumentID = doc.DocumentID
		}
		if chunk.DocumentTitle == "" {
			chunk.DocumentTitle = doc.Title
		}
		if chunk.ChunkIndex == 0 && i > 0 {
			chunk.ChunkIndex = i
		}

		if err := e.indexChunk(ctx, userID, chunk); err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, fmt.Sprintf("chunk %d: %v", i, err))
			continue
		}
		report.ChunksIndexed++
	}

	report.Success = report.ErrorCount == 0

	if err := e.ClearCache(ctx, userID); err != nil {
		slog.Warn("cache_invalidation_failed", "user_id", userID, "error", err)
	}
	return report, nil
}

func (e *Engine) indexChunk(ctx context.Context, userID string, chunk domain.Chunk) error {
	vectors, _, err := e.embedder.Embed(ctx, []string{chunk.Content})
	if err != nil {
		return domain.WrapError(domain.ErrEmbedding, "embed chunk", err)
	}
	if len(vectors) == 0 {
		return domain.WrapError(domain.ErrEmbedding, "embed chunk", fmt.Errorf("empty embedding result"))
	}
	if err := e.index.UpsertChunk(ctx, userID, chunk, vectors[0]); err != nil {
		return domain.WrapError(domain.ErrRetrieval, "upsert chunk", err)
	}
	return nil
}

// DeleteDocumentIndex removes a document's index entries. The backend
// deletes embeddings before chunks to respect referential ordering.
func (e *Engine) DeleteDocumentIndex(ctx context.Context, userID, documentID string) (bool, error) {
	if err := e.index.DeleteDocument(ctx, userID, documentID); err != nil {
		return false, domain.WrapError(domain.ErrRetrieval, "delete document index", err)
	}
	if err := e.ClearCache(ctx, userID); err != nil {
		slog.Warn("cache_invalidation_failed", "user_id", userID, "error", err)
	}
	return true, nil
}

// Status probes the backend and cache. It never fails; problems land in
// the details list.
func (e *Engine) Status(ctx context.Context) domain.ProviderStatus {
	status := domain.ProviderStatus{Provider: e.cfg.ProviderName, IsHealthy: true}

	if err := e.index.Ping(ctx); err != nil {
		status.IsHealthy = false
		status.Details = append(status.Details, fmt.Sprintf("index unreachable: %v", err))
	}
	if e.cache != nil {
		if err := e.cache.Ping(ctx); err != nil {
			// Cache is an optimization; an unreachable cache degrades
			// performance, not health.
			status.Details = append(status.Details, fmt.Sprintf("cache unreachable: %v", err))
		}
	}
	return status
}

// ValidateConfiguration checks the wiring the engine was built with. A
// dimensionality mismatch against the embedding service is a warning,
// not an error.
func (e *Engine) ValidateConfiguration(ctx context.Context) domain.ValidationReport {
	report := domain.ValidationReport{IsValid: true}

	if e.index == nil {
		report.IsValid = false
		report.Errors = append(report.Errors, "no chunk index configured")
	}
	if e.embedder == nil {
		report.IsValid = false
		report.Errors = append(report.Errors, "no embedding service configured")
	}
	if e.reranker == nil {
		report.Warnings = append(report.Warnings, "no rerank service configured; rerank requests fall back to fused ordering")
	}
	if e.cache == nil {
		report.Warnings = append(report.Warnings, "no cache configured; every search hits the backend")
	}

	if e.cfg.Dimensions > 0 && e.embedder != nil {
		vector, _, err := e.embedder.EmbedQuery(ctx, "dimension probe")
		switch {
		case err != nil:
			report.Warnings = append(report.Warnings, fmt.Sprintf("embedding service unavailable for dimension check: %v", err))
		case len(vector) != e.cfg.Dimensions:
			report.Warnings = append(report.Warnings, fmt.Sprintf("configured dimensions %d do not match embedding output %d", e.cfg.Dimensions, len(vector)))
		}
	}

	return report
}
