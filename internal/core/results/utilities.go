package results

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// FilterByConfidence drops results scoring more than one standard
// deviation below the mean. The threshold adapts to the score
// distribution of each result set.
func FilterByConfidence(results []domain.HybridSearchResult) []domain.HybridSearchResult {
	if len(results) < 2 {
		return results
	}

	mean := 0.0
	for _, r := range results {
		mean += r.HybridScore
	}
	mean /= float64(len(results))

	variance := 0.0
	for _, r := range results {
		d := r.HybridScore - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(results)))

	threshold := mean - stddev
	out := make([]domain.HybridSearchResult, 0, len(results))
	for _, r := range results {
		if r.HybridScore >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeScores min-max scales HybridScore into [0,1]. A flat
// distribution maps every score to 1.
func NormalizeScores(results []domain.HybridSearchResult) []domain.HybridSearchResult {
	if len(results) == 0 {
		return results
	}

	minScore, maxScore := results[0].HybridScore, results[0].HybridScore
	for _, r := range results[1:] {
		if r.HybridScore < minScore {
			minScore = r.HybridScore
		}
		if r.HybridScore > maxScore {
			maxScore = r.HybridScore
		}
	}

	out := make([]domain.HybridSearchResult, len(results))
	copy(out, results)
	span := maxScore - minScore
	for i := range out {
		if span <= 0 {
			out[i].HybridScore = 1
			continue
		}
		out[i].HybridScore = (out[i].HybridScore - minScore) / span
	}
	return out
}

// DiversifyResults greedily selects results, rejecting candidates whose
// word-set Jaccard similarity to any already-selected result exceeds
// the threshold.
func DiversifyResults(results []domain.HybridSearchResult, maxResults int, similarityThreshold float64) []domain.HybridSearchResult {
	if maxResults <= 0 {
		maxResults = len(results)
	}
	if similarityThreshold <= 0 {
		similarityThreshold = 0.8
	}

	selected := make([]domain.HybridSearchResult, 0, maxResults)
	selectedSets := make([]map[string]struct{}, 0, maxResults)

	for _, candidate := range results {
		if len(selected) >= maxResults {
			break
		}
		candidateSet := wordSet(candidate.Content)
		tooSimilar := false
		for _, prior := range selectedSets {
			if jaccard(candidateSet, prior) > similarityThreshold {
				tooSimilar = true
				break
			}
		}
		if tooSimilar {
			continue
		}
		selected = append(selected, candidate)
		selectedSets = append(selectedSets, candidateSet)
	}
	return selected
}

// BoostConfig configures multiplicative metadata boosts. A recency
// proxy is read from chunk metadata under RecencyMetadataKey.
type BoostConfig struct {
	ElementTypes       map[string]float64
	Documents          map[string]float64
	Pages              map[int]float64
	RecencyMetadataKey string
	RecencyBoost       float64
}

// ApplyMetadataBoosts multiplies HybridScore by the configured factors
// and re-sorts.
func ApplyMetadataBoosts(results []domain.HybridSearchResult, cfg BoostConfig) []domain.HybridSearchResult {
	out := make([]domain.HybridSearchResult, len(results))
	copy(out, results)

	for i := range out {
		boost := 1.0
		if factor, ok := cfg.ElementTypes[out[i].ElementType]; ok {
			boost *= factor
		}
		if factor, ok := cfg.Documents[out[i].DocumentID]; ok {
			boost *= factor
		}
		if factor, ok := cfg.Pages[out[i].PageNumber]; ok {
			boost *= factor
		}
		if cfg.RecencyMetadataKey != "" && cfg.RecencyBoost > 0 {
			if _, ok := out[i].Metadata[cfg.RecencyMetadataKey]; ok {
				boost *= cfg.RecencyBoost
			}
		}
		out[i].HybridScore *= boost
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HybridScore > out[j].HybridScore
	})
	return out
}

// MergeOverlappingResults merges same-document results whose chunk
// indices lie within 2 of each other into one concatenated result,
// keeping the maximum score across the merged set.
func MergeOverlappingResults(results []domain.HybridSearchResult) []domain.HybridSearchResult {
	if len(results) < 2 {
		return results
	}

	byDocument := make(map[string][]domain.HybridSearchResult)
	docOrder := make([]string, 0)
	for _, r := range results {
		if _, ok := byDocument[r.DocumentID]; !ok {
			docOrder = append(docOrder, r.DocumentID)
		}
		byDocument[r.DocumentID] = append(byDocument[r.DocumentID], r)
	}

	out := make([]domain.HybridSearchResult, 0, len(results))
	for _, docID := range docOrder {
		group := byDocument[docID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].ChunkIndex < group[j].ChunkIndex
		})

		merged := group[0]
		for _, next := range group[1:] {
			if next.ChunkIndex-merged.ChunkIndex <= 2 {
				merged.Content = merged.Content + "\n" + next.Content
				if next.HybridScore > merged.HybridScore {
					merged.HybridScore = next.HybridScore
				}
				if next.VectorScore > merged.VectorScore {
					merged.VectorScore = next.VectorScore
				}
				if next.TextScore > merged.TextScore {
					merged.TextScore = next.TextScore
				}
				merged.ChunkIndex = next.ChunkIndex
				continue
			}
			out = append(out, merged)
			merged = next
		}
		out = append(out, merged)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HybridScore > out[j].HybridScore
	})
	return out
}

// CalculateQualityScore applies length and element-type multiplicative
// adjustments to a single result's score.
func CalculateQualityScore(r domain.HybridSearchResult) float64 {
	score := r.HybridScore

	switch {
	case len(r.Content) < 50:
		score *= 0.8
	case len(r.Content) >= 200:
		score *= 1.1
	}

	switch r.ElementType {
	case "title", "header":
		score *= 1.2
	case "table":
		score *= 1.1
	case "footer", "page_number":
		score *= 0.8
	}

	return score
}

// MaintainContextCoherence truncates the list once the number of
// document switches exceeds the cap, so downstream context does not
// fragment across too many sources.
func MaintainContextCoherence(results []domain.HybridSearchResult, maxDocumentSwitches int) []domain.HybridSearchResult {
	if maxDocumentSwitches <= 0 || len(results) == 0 {
		return results
	}

	switches := 0
	current := results[0].DocumentID
	for i := 1; i < len(results); i++ {
		if results[i].DocumentID != current {
			switches++
			current = results[i].DocumentID
			if switches > maxDocumentSwitches {
				return results[:i]
			}
		}
	}
	return results
}

func wordSet(content string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(content))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[strings.Trim(f, ".,;:!?()[]\"'")] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
