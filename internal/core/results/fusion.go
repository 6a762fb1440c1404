package results

import (
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

type fusedCandidate struct {
	result domain.HybridSearchResult
	order  int
}

// Fuse combines the vector and lexical channels into a single ranked
// list using the algorithm selected in opts. Output is sorted
// descending by HybridScore with deterministic tie-breaks.
func Fuse(query string, vector, text []domain.SearchResult, opts domain.HybridSearchOptions) []domain.HybridSearchResult {
	opts = opts.Normalized()

	switch opts.Fusion {
	case domain.FusionRRF:
		return fuseRRF(vector, text, opts.RRFK)
	case domain.FusionAdaptive:
		vw, tw := adaptiveWeights(query, vector, text)
		return fuseWeighted(vector, text, vw, tw)
	default:
		return fuseWeighted(vector, text, opts.VectorWeight, opts.TextWeight)
	}
}

// fuseWeighted rank-normalizes each channel (best rank scores 1,
// decaying linearly) and combines the normalized scores. A chunk absent
// from a channel contributes 0 for it.
func fuseWeighted(vector, text []domain.SearchResult, vectorWeight, textWeight float64) []domain.HybridSearchResult {
	acc := make(map[string]fusedCandidate, len(vector)+len(text))
	order := 0

	for rank, r := range vector {
		norm := 1.0 - float64(rank)/float64(len(vector))
		candidate, ok := acc[r.ID]
		if !ok {
			candidate = fusedCandidate{result: domain.HybridSearchResult{Chunk: r.Chunk}, order: order}
			order++
		}
		candidate.result.VectorScore = r.Similarity
		candidate.result.HybridScore += vectorWeight * norm
		acc[r.ID] = candidate
	}
	for rank, r := range text {
		norm := 1.0 - float64(rank)/float64(len(text))
		candidate, ok := acc[r.ID]
		if !ok {
			candidate = fusedCandidate{result: domain.HybridSearchResult{Chunk: r.Chunk}, order: order}
			order++
		}
		candidate.result.TextScore = r.Similarity
		candidate.result.HybridScore += textWeight * norm
		acc[r.ID] = candidate
	}

	return sortCandidates(acc)
}

// fuseRRF scores each chunk by summed reciprocal ranks across the
// channels it appears in: 1/(k + rank + 1).
func fuseRRF(vector, text []domain.SearchResult, k int) []domain.HybridSearchResult {
	if k <= 0 {
		k = domain.DefaultRRFK
	}

	acc := make(map[string]fusedCandidate, len(vector)+len(text))
	order := 0
	addChannel := func(channel []domain.SearchResult, assign func(*domain.HybridSearchResult, float64)) {
		for rank, r := range channel {
			candidate, ok := acc[r.ID]
			if !ok {
				candidate = fusedCandidate{result: domain.HybridSearchResult{Chunk: r.Chunk}, order: order}
				order++
			}
			assign(&candidate.result, r.Similarity)
			candidate.result.HybridScore += 1.0 / float64(k+rank+1)
			acc[r.ID] = candidate
		}
	}

	addChannel(vector, func(r *domain.HybridSearchResult, s float64) { r.VectorScore = s })
	addChannel(text, func(r *domain.HybridSearchResult, s float64) { r.TextScore = s })

	return sortCandidates(acc)
}

// adaptiveWeights derives fusion weights from query signals, then
// nudges toward whichever channel's mean score dominates. A simple
// tunable heuristic, not a provably optimal policy.
func adaptiveWeights(query string, vector, text []domain.SearchResult) (float64, float64) {
	vectorWeight := 0.7

	lower := strings.ToLower(query)
	problemQuery := strings.ContainsAny(query, "0123456789")
	for _, term := range []string{"error", "issue", "problem", "fix", "solve"} {
		if strings.Contains(lower, term) {
			problemQuery = true
			break
		}
	}
	if problemQuery {
		vectorWeight = 0.5
	}
	if len(query) > 50 || len(strings.Fields(query)) > 10 {
		vectorWeight = 0.8
	}

	vectorMean := meanSimilarity(vector)
	textMean := meanSimilarity(text)
	switch {
	case vectorMean > 1.5*textMean && textMean > 0:
		vectorWeight = min(vectorWeight+0.1, 0.9)
	case textMean > 1.5*vectorMean && vectorMean > 0:
		textWeight := min(1.0-vectorWeight+0.1, 0.9)
		vectorWeight = 1.0 - textWeight
	}

	return vectorWeight, 1.0 - vectorWeight
}

func meanSimilarity(channel []domain.SearchResult) float64 {
	if len(channel) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range channel {
		sum += r.Similarity
	}
	return sum / float64(len(channel))
}

func sortCandidates(acc map[string]fusedCandidate) []domain.HybridSearchResult {
	out := make([]domain.HybridSearchResult, 0, len(acc))
	orders := make(map[string]int, len(acc))
	for id, c := range acc {
		orders[id] = c.order
		out = append(out, c.result)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return orders[out[i].ID] < orders[out[j].ID]
	})

	return out
}
