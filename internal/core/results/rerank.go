package results

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
)

const rerankCandidateCap = 20

// Rerank sends the fused shortlist to the cross-encoder and recomputes
// HybridScore as blend*rerank + (1-blend)*hybrid. Rerank failures fail
// open: the pre-rerank top-K ordering is returned untouched.
func Rerank(
	ctx context.Context,
	reranker ports.Reranker,
	query string,
	fused []domain.HybridSearchResult,
	topK int,
	blend float64,
) ([]domain.HybridSearchResult, time.Duration, bool) {
	if reranker == nil || len(fused) == 0 {
		return truncate(fused, topK), 0, false
	}
	if topK <= 0 {
		topK = len(fused)
	}
	if blend <= 0 || blend > 1 {
		blend = domain.DefaultRerankBlend
	}

	candidateCount := min(2*topK, rerankCandidateCap)
	if candidateCount > len(fused) {
		candidateCount = len(fused)
	}

	documents := make([]string, candidateCount)
	for i := 0; i < candidateCount; i++ {
		// Title prefix gives the cross-encoder document context.
		if fused[i].DocumentTitle != "" {
			documents[i] = fused[i].DocumentTitle + "\n\n" + fused[i].Content
			continue
		}
		documents[i] = fused[i].Content
	}

	start := time.Now()
	scores, err := reranker.Rerank(ctx, query, documents, topK)
	took := time.Since(start)
	if err != nil {
		slog.Warn("rerank_failed_open", "error", err, "candidates", candidateCount)
		return truncate(fused, topK), took, false
	}

	head := make([]domain.HybridSearchResult, candidateCount)
	copy(head, fused[:candidateCount])
	for _, score := range scores {
		if score.Index < 0 || score.Index >= candidateCount {
			continue
		}
		relevance := score.Relevance
		head[score.Index].RerankScore = &relevance
		head[score.Index].HybridScore = blend*relevance + (1-blend)*head[score.Index].HybridScore
	}

	sort.SliceStable(head, func(i, j int) bool {
		return head[i].HybridScore > head[j].HybridScore
	})

	return truncate(head, topK), took, true
}

func truncate(results []domain.HybridSearchResult, limit int) []domain.HybridSearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}
