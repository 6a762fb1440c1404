package results

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
)

type fakeReranker struct {
	scores []ports.RerankScore
	err    error

	gotQuery     string
	gotDocuments []string
}

func (f *fakeReranker) Rerank(_ context.Context, query string, documents []string, _ int) ([]ports.RerankScore, error) {
	f.gotQuery = query
	f.gotDocuments = documents
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func fusedFixture(n int) []domain.HybridSearchResult {
	out := make([]domain.HybridSearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.HybridSearchResult{
			Chunk: domain.Chunk{
				ID:            string(rune('a' + i)),
				DocumentID:    "doc",
				DocumentTitle: "Manual",
				ChunkIndex:    i,
				Content:       "chunk content",
			},
			HybridScore: 1.0 - float64(i)*0.1,
		})
	}
	return out
}

func TestRerankBlendsScores(t *testing.T) {
	reranker := &fakeReranker{scores: []ports.RerankScore{
		{Index: 2, Relevance: 1.0},
		{Index: 0, Relevance: 0.1},
	}}

	out, _, applied := Rerank(context.Background(), reranker, "q", fusedFixture(3), 3, 0.8)
	if !applied {
		t.Fatalf("expected rerank to apply")
	}
	if out[0].ID != "c" {
		t.Fatalf("highest cross-encoder relevance should rank first, got %s", out[0].ID)
	}
	if out[0].RerankScore == nil || *out[0].RerankScore != 1.0 {
		t.Fatalf("rerank score not recorded")
	}
	// blend*1.0 + (1-blend)*0.8 with blend 0.8.
	want := 0.8*1.0 + 0.2*0.8
	if diff := out[0].HybridScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("blended score = %f, want %f", out[0].HybridScore, want)
	}
}

func TestRerankFailsOpen(t *testing.T) {
	reranker := &fakeReranker{err: errors.New("service down")}
	fused := fusedFixture(5)

	out, _, applied := Rerank(context.Background(), reranker, "q", fused, 3, 0.8)
	if applied {
		t.Fatalf("failed rerank must not report as applied")
	}
	if len(out) != 3 {
		t.Fatalf("expected pre-rerank top-3, got %d results", len(out))
	}
	for i, r := range out {
		if r.ID != fused[i].ID {
			t.Fatalf("pre-rerank ordering must be preserved on failure")
		}
	}
}

func TestRerankCandidateCap(t *testing.T) {
	reranker := &fakeReranker{}
	Rerank(context.Background(), reranker, "q", fusedFixture(26), 15, 0.8)
	if len(reranker.gotDocuments) != 20 {
		t.Fatalf("candidates must cap at 20, sent %d", len(reranker.gotDocuments))
	}
}

func TestRerankPrefixesDocumentTitle(t *testing.T) {
	reranker := &fakeReranker{}
	Rerank(context.Background(), reranker, "q", fusedFixture(2), 2, 0.8)
	if len(reranker.gotDocuments) == 0 {
		t.Fatalf("no documents sent")
	}
	if reranker.gotDocuments[0] != "Manual\n\nchunk content" {
		t.Fatalf("document should be title-prefixed, got %q", reranker.gotDocuments[0])
	}
}

func TestRerankNilRerankerTruncates(t *testing.T) {
	out, _, applied := Rerank(context.Background(), nil, "q", fusedFixture(5), 2, 0.8)
	if applied {
		t.Fatalf("nil reranker cannot apply")
	}
	if len(out) != 2 {
		t.Fatalf("expected truncation to top-2, got %d", len(out))
	}
}
