package search

import (
	"context"
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/query"
)

// ContextAwareSearch folds recent conversation turns into the query and
// boosts results that mention the derived context terms. Query
// expansion is disabled for the underlying hybrid search because the
// context already plays that role.
func (e *Engine) ContextAwareSearch(
	ctx context.Context,
	queryText, userID string,
	history []string,
	opts domain.ContextSearchOptions,
) (*domain.HybridSearchResponse, error) {
	opts = opts.Normalized()

	terms := e.queries.ExtractContextTerms(history, query.ContextTermOptions{})
	enhanced := e.queries.BuildContextEnhancedQuery(queryText, terms, 0.3)

	hybridOpts := opts.Hybrid
	hybridOpts.UseQueryExpansion = false

	response, err := e.HybridSearch(ctx, enhanced, userID, hybridOpts)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 || len(response.Results) == 0 {
		return response, nil
	}

	for i := range response.Results {
		content := strings.ToLower(response.Results[i].Content)
		matching := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matching++
			}
		}
		if matching > 0 {
			response.Results[i].HybridScore += float64(matching) / float64(len(terms)) * opts.ContextWeight
		}
	}

	sort.SliceStable(response.Results, func(i, j int) bool {
		return response.Results[i].HybridScore > response.Results[j].HybridScore
	})
	return response, nil
}

// MultiStepSearch iteratively lowers the fused threshold and refines
// the query from each step's new results. Each step depends on the
// prior step's output, so steps run sequentially. Only the first step
// reads or writes the cache.
func (e *Engine) MultiStepSearch(
	ctx context.Context,
	queryText, userID string,
	opts domain.MultiStepSearchOptions,
) (*domain.HybridSearchResponse, error) {
	opts = opts.Normalized()

	var (
		accumulated []domain.HybridSearchResult
		seen        = make(map[string]struct{})
		tokens      int
		currentText = queryText
		steps       int
	)

	for step := 0; step < opts.MaxSteps; step++ {
		stepOpts := opts.Hybrid
		stepOpts.Threshold = 0.4 - 0.1*float64(step)

		response, err := e.hybridSearch(ctx, currentText, userID, stepOpts, step == 0)
		if err != nil {
			return nil, err
		}
		steps++
		tokens += response.TokensUsed

		fresh := make([]domain.HybridSearchResult, 0, len(response.Results))
		for _, r := range response.Results {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			fresh = append(fresh, r)
		}
		if len(fresh) == 0 {
			break
		}
		accumulated = append(accumulated, fresh...)
		if len(accumulated) >= opts.MinResultsPerStep*opts.MaxSteps {
			break
		}

		contents := make([]string, 0, len(fresh))
		for _, r := range fresh {
			contents = append(contents, r.Content)
		}
		currentText = e.queries.RefineQueryFromResults(currentText, contents, query.RefineOptions{
			ExcludeOriginalTerms: true,
		})
	}

	sort.SliceStable(accumulated, func(i, j int) bool {
		return accumulated[i].HybridScore > accumulated[j].HybridScore
	})
	if len(accumulated) > domain.MultiStepResultCap {
		accumulated = accumulated[:domain.MultiStepResultCap]
	}

	return &domain.HybridSearchResponse{
		Results:         accumulated,
		Total:           len(accumulated),
		TokensUsed:      tokens,
		FusionAlgorithm: string(opts.Hybrid.Normalized().Fusion),
		Steps:           steps,
	}, nil
}
