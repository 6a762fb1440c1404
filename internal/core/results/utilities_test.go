package results

import (
	"testing"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

func TestFilterByConfidenceDropsOutliers(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: chunk("a", "d1", 0), HybridScore: 0.9},
		{Chunk: chunk("b", "d1", 1), HybridScore: 0.85},
		{Chunk: chunk("c", "d1", 2), HybridScore: 0.88},
		{Chunk: chunk("d", "d2", 0), HybridScore: 0.05},
	}

	filtered := FilterByConfidence(results)
	for _, r := range filtered {
		if r.ID == "d" {
			t.Fatalf("low-confidence outlier survived the filter")
		}
	}
	if len(filtered) != 3 {
		t.Fatalf("expected 3 results, got %d", len(filtered))
	}
}

func TestNormalizeScoresMinMax(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: chunk("a", "d1", 0), HybridScore: 2.0},
		{Chunk: chunk("b", "d1", 1), HybridScore: 1.0},
		{Chunk: chunk("c", "d1", 2), HybridScore: 0.0},
	}

	normalized := NormalizeScores(results)
	if normalized[0].HybridScore != 1 || normalized[2].HybridScore != 0 {
		t.Fatalf("min-max endpoints wrong: %f..%f", normalized[2].HybridScore, normalized[0].HybridScore)
	}
	if normalized[1].HybridScore != 0.5 {
		t.Fatalf("midpoint = %f, want 0.5", normalized[1].HybridScore)
	}
	// Input must stay untouched.
	if results[0].HybridScore != 2.0 {
		t.Fatalf("normalization mutated its input")
	}
}

func TestDiversifyResultsBound(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: domain.Chunk{ID: "a", Content: "chuck alignment calibration steps"}},
		{Chunk: domain.Chunk{ID: "b", Content: "chuck alignment calibration steps"}},
		{Chunk: domain.Chunk{ID: "c", Content: "communication troubleshooting guide"}},
		{Chunk: domain.Chunk{ID: "d", Content: "vacuum pump maintenance schedule"}},
	}

	diversified := DiversifyResults(results, 3, 0.8)
	if len(diversified) > 3 {
		t.Fatalf("diversification exceeded maxResults: %d", len(diversified))
	}
	for _, r := range diversified {
		if r.ID == "b" {
			t.Fatalf("near-duplicate of an already selected result survived")
		}
	}
}

func TestApplyMetadataBoosts(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: domain.Chunk{ID: "a", ElementType: "paragraph"}, HybridScore: 0.5},
		{Chunk: domain.Chunk{ID: "b", ElementType: "title"}, HybridScore: 0.45},
	}

	boosted := ApplyMetadataBoosts(results, BoostConfig{
		ElementTypes: map[string]float64{"title": 1.5},
	})
	if boosted[0].ID != "b" {
		t.Fatalf("boosted title should outrank, got %s first", boosted[0].ID)
	}
	if boosted[0].HybridScore != 0.45*1.5 {
		t.Fatalf("boost not multiplicative: %f", boosted[0].HybridScore)
	}
}

func TestMergeOverlappingResults(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: domain.Chunk{ID: "a", DocumentID: "d1", ChunkIndex: 0, Content: "first"}, HybridScore: 0.5},
		{Chunk: domain.Chunk{ID: "b", DocumentID: "d1", ChunkIndex: 2, Content: "second"}, HybridScore: 0.9},
		{Chunk: domain.Chunk{ID: "c", DocumentID: "d1", ChunkIndex: 9, Content: "far away"}, HybridScore: 0.4},
		{Chunk: domain.Chunk{ID: "e", DocumentID: "d2", ChunkIndex: 0, Content: "other doc"}, HybridScore: 0.3},
	}

	merged := MergeOverlappingResults(results)
	if len(merged) != 3 {
		t.Fatalf("expected 3 results after merge, got %d", len(merged))
	}
	if merged[0].Content != "first\nsecond" {
		t.Fatalf("adjacent chunks not concatenated: %q", merged[0].Content)
	}
	if merged[0].HybridScore != 0.9 {
		t.Fatalf("merged result must keep the max score, got %f", merged[0].HybridScore)
	}
}

func TestCalculateQualityScore(t *testing.T) {
	short := domain.HybridSearchResult{
		Chunk:       domain.Chunk{Content: "tiny", ElementType: "footer"},
		HybridScore: 1.0,
	}
	if got := CalculateQualityScore(short); got != 0.8*0.8 {
		t.Fatalf("short footer quality = %f, want %f", got, 0.8*0.8)
	}

	title := domain.HybridSearchResult{
		Chunk:       domain.Chunk{Content: string(make([]byte, 250)), ElementType: "title"},
		HybridScore: 1.0,
	}
	if got := CalculateQualityScore(title); got != 1.1*1.2 {
		t.Fatalf("long title quality = %f, want %f", got, 1.1*1.2)
	}
}

func TestMaintainContextCoherence(t *testing.T) {
	results := []domain.HybridSearchResult{
		{Chunk: domain.Chunk{ID: "a", DocumentID: "d1"}},
		{Chunk: domain.Chunk{ID: "b", DocumentID: "d2"}},
		{Chunk: domain.Chunk{ID: "c", DocumentID: "d1"}},
		{Chunk: domain.Chunk{ID: "d", DocumentID: "d3"}},
	}

	coherent := MaintainContextCoherence(results, 2)
	if len(coherent) != 3 {
		t.Fatalf("expected truncation after 2 document switches, got %d results", len(coherent))
	}
}
