package results

import (
	"math"
	"testing"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

func chunk(id, docID string, index int) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: docID, ChunkIndex: index, Content: "content " + id}
}

func TestWeightedFusionBoundsWithDefaultWeights(t *testing.T) {
	vector := []domain.SearchResult{
		{Chunk: chunk("a", "d1", 0), Similarity: 0.9},
		{Chunk: chunk("b", "d1", 1), Similarity: 0.8},
		{Chunk: chunk("c", "d2", 0), Similarity: 0.7},
	}
	text := []domain.SearchResult{
		{Chunk: chunk("b", "d1", 1), Similarity: 0.5},
		{Chunk: chunk("d", "d3", 0), Similarity: 0.4},
	}

	fused := Fuse("query", vector, text, domain.HybridSearchOptions{Fusion: domain.FusionWeighted})
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused results, got %d", len(fused))
	}
	for _, r := range fused {
		if r.HybridScore < 0 || r.HybridScore > 1 {
			t.Fatalf("hybrid score %f out of [0,1] for %s", r.HybridScore, r.ID)
		}
	}
	if fused[0].ID != "b" {
		t.Fatalf("chunk present in both channels at good ranks should win, got %s", fused[0].ID)
	}
}

func TestWeightedFusionSingleChannelContribution(t *testing.T) {
	vector := []domain.SearchResult{{Chunk: chunk("a", "d1", 0), Similarity: 0.9}}

	fused := Fuse("query", vector, nil, domain.HybridSearchOptions{Fusion: domain.FusionWeighted})
	if len(fused) != 1 {
		t.Fatalf("expected 1 result, got %d", len(fused))
	}
	// Rank 0 of 1 normalizes to 1.0; text channel contributes 0.
	if math.Abs(fused[0].HybridScore-domain.DefaultVectorWeight) > 1e-9 {
		t.Fatalf("expected hybrid score %f, got %f", domain.DefaultVectorWeight, fused[0].HybridScore)
	}
	if fused[0].TextScore != 0 {
		t.Fatalf("missing channel must default to score 0")
	}
}

func TestRRFSymmetry(t *testing.T) {
	k := 60
	both := []domain.SearchResult{
		{Chunk: chunk("x", "d1", 0), Similarity: 0.9},
		{Chunk: chunk("shared", "d2", 0), Similarity: 0.8},
	}
	onlyVector := []domain.SearchResult{
		{Chunk: chunk("y", "d3", 0), Similarity: 0.9},
		{Chunk: chunk("shared", "d2", 0), Similarity: 0.8},
	}

	fused := Fuse("query", both, onlyVector, domain.HybridSearchOptions{Fusion: domain.FusionRRF, RRFK: k})

	var sharedScore, soloScore float64
	for _, r := range fused {
		switch r.ID {
		case "shared":
			sharedScore = r.HybridScore
		case "x":
			soloScore = r.HybridScore
		}
	}

	// Rank 1 in both channels: 2/(k+2); rank 0 in one channel: 1/(k+1).
	if math.Abs(sharedScore-2.0/float64(k+2)) > 1e-9 {
		t.Fatalf("shared chunk score = %f, want %f", sharedScore, 2.0/float64(k+2))
	}
	if math.Abs(soloScore-1.0/float64(k+1)) > 1e-9 {
		t.Fatalf("single-channel score = %f, want %f", soloScore, 1.0/float64(k+1))
	}
}

func TestRRFScoresNonNegative(t *testing.T) {
	vector := []domain.SearchResult{{Chunk: chunk("a", "d1", 0)}, {Chunk: chunk("b", "d1", 1)}}
	fused := Fuse("q", vector, vector, domain.HybridSearchOptions{Fusion: domain.FusionRRF})
	for _, r := range fused {
		if r.HybridScore <= 0 {
			t.Fatalf("rrf score must be positive, got %f", r.HybridScore)
		}
	}
}

func TestAdaptiveWeightsProblemQuery(t *testing.T) {
	vw, tw := adaptiveWeights("error E301 on startup", nil, nil)
	if vw != 0.5 || tw != 0.5 {
		t.Fatalf("problem query should weight channels evenly, got %f/%f", vw, tw)
	}
}

func TestAdaptiveWeightsLongQuery(t *testing.T) {
	long := "how do I perform a complete chuck alignment calibration procedure on this tool"
	vw, tw := adaptiveWeights(long, nil, nil)
	if vw != 0.8 || math.Abs(tw-0.2) > 1e-9 {
		t.Fatalf("long query should favor the vector channel, got %f/%f", vw, tw)
	}
}

func TestAdaptiveWeightsChannelDominance(t *testing.T) {
	strongVector := []domain.SearchResult{{Chunk: chunk("a", "d1", 0), Similarity: 0.9}}
	weakText := []domain.SearchResult{{Chunk: chunk("b", "d2", 0), Similarity: 0.3}}

	vw, tw := adaptiveWeights("alignment", strongVector, weakText)
	if math.Abs(vw-0.8) > 1e-9 || math.Abs(tw-0.2) > 1e-9 {
		t.Fatalf("dominant vector channel should get +0.1, got %f/%f", vw, tw)
	}
}

func TestAdaptiveWeightCap(t *testing.T) {
	long := "how do I perform a complete chuck alignment calibration procedure on this tool"
	strongVector := []domain.SearchResult{{Chunk: chunk("a", "d1", 0), Similarity: 0.9}}
	weakText := []domain.SearchResult{{Chunk: chunk("b", "d2", 0), Similarity: 0.1}}

	vw, _ := adaptiveWeights(long, strongVector, weakText)
	if vw > 0.9 {
		t.Fatalf("vector weight must be capped at 0.9, got %f", vw)
	}
}

func TestFusionTieBreakDeterministic(t *testing.T) {
	vector := []domain.SearchResult{{Chunk: chunk("a", "doc-b", 0)}}
	text := []domain.SearchResult{{Chunk: chunk("b", "doc-a", 0)}}

	fused := Fuse("q", vector, text, domain.HybridSearchOptions{Fusion: domain.FusionRRF, RRFK: 1000})
	if fused[0].DocumentID != "doc-a" {
		t.Fatalf("equal scores must tie-break by document id, got %s first", fused[0].DocumentID)
	}
}
