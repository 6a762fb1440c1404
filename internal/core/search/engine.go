package search

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
	"github.com/kirillkom/hybrid-search/internal/core/query"
	"github.com/kirillkom/hybrid-search/internal/core/results"
)

// Config carries the engine-level knobs shared by both backend kinds.
type Config struct {
	ProviderName string
	Dimensions   int
	CacheTTL     time.Duration
}

func (c Config) normalized() Config {
	if c.ProviderName == "" {
		c.ProviderName = "unknown"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

// Engine implements ports.SearchProvider on top of a ChunkIndex. The
// two backend variants share this orchestration and differ only in the
// index they plug in.
type Engine struct {
	cfg      Config
	index    ports.ChunkIndex
	embedder ports.Embedder
	reranker ports.Reranker
	cache    ports.SearchCache
	queries  *query.Processor
}

func NewEngine(
	cfg Config,
	index ports.ChunkIndex,
	embedder ports.Embedder,
	reranker ports.Reranker,
	cache ports.SearchCache,
	queries *query.Processor,
) *Engine {
	if queries == nil {
		queries = query.NewProcessor()
	}
	return &Engine{
		cfg:      cfg.normalized(),
		index:    index,
		embedder: embedder,
		reranker: reranker,
		cache:    cache,
		queries:  queries,
	}
}

// adaptiveThreshold scales the base similarity cutoff by query and
// result-set characteristics, clamped to [0.1, 1.0]. Query length is
// counted in runes so multibyte text is judged by the same bands.
func adaptiveThreshold(base float64, searchText string, rawCount int) float64 {
	threshold := base
	length := utf8.RuneCountInString(searchText)
	if length > 50 {
		threshold *= 0.9
	}
	if length < 20 {
		threshold *= 1.1
	}
	if rawCount < 5 {
		threshold *= 0.95
	}

	if threshold < 0.1 {
		return 0.1
	}
	if threshold > 1.0 {
		return 1.0
	}
	return threshold
}

func (e *Engine) VectorSearch(ctx context.Context, queryText, userID string, opts domain.VectorSearchOptions) (*domain.SearchResponse, error) {
	opts = opts.Normalized()
	start := time.Now()

	key := cacheKey("vector", queryText, userID, opts)
	if cached, ok := cacheGet[domain.SearchResponse](ctx, e, key); ok {
		cached.CacheHit = true
		cached.TookMS = msSince(start)
		return cached, nil
	}

	searchText := queryText
	var expansions []string
	if opts.UseQueryExpansion {
		expansion := e.queries.ExpandQuery(queryText, opts.ExpansionTerms, false)
		searchText = expansion.ExpandedQuery
		expansions = expansion.Expansions
	}

	filtered, tokens, err := e.vectorChannel(ctx, searchText, userID, opts.Limit, opts.Threshold, opts.Filter)
	if err != nil {
		return nil, err
	}

	response := &domain.SearchResponse{
		Results:    filtered,
		Total:      len(filtered),
		TokensUsed: tokens,
		TookMS:     msSince(start),
		Expansions: expansions,
	}
	cacheSet(ctx, e, key, response, e.cfg.CacheTTL)
	return response, nil
}

// vectorChannel embeds the search text, queries the index and applies
// the adaptive threshold. Used by both the public vector search and the
// vector side of hybrid search (which passes a looser base threshold).
func (e *Engine) vectorChannel(
	ctx context.Context,
	searchText, userID string,
	limit int,
	baseThreshold float64,
	filter domain.SearchFilter,
) ([]domain.SearchResult, int, error) {
	vector, tokens, err := e.embedder.EmbedQuery(ctx, searchText)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}

	raw, err := e.index.VectorQuery(ctx, userID, vector, limit, filter)
	if err != nil {
		return nil, tokens, domain.WrapError(domain.ErrRetrieval, "vector query", err)
	}

	threshold := adaptiveThreshold(baseThreshold, searchText, len(raw))
	filtered := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.Similarity >= threshold {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})
	return filtered, tokens, nil
}

func (e *Engine) HybridSearch(ctx context.Context, queryText, userID string, opts domain.HybridSearchOptions) (*domain.HybridSearchResponse, error) {
	return e.hybridSearch(ctx, queryText, userID, opts, true)
}

func (e *Engine) hybridSearch(
	ctx context.Context,
	queryText, userID string,
	opts domain.HybridSearchOptions,
	useCache bool,
) (*domain.HybridSearchResponse, error) {
	opts = opts.Normalized()
	start := time.Now()

	key := cacheKey("hybrid", queryText, userID, opts)
	if useCache {
		if cached, ok := cacheGet[domain.HybridSearchResponse](ctx, e, key); ok {
			cached.CacheHit = true
			cached.TookMS = msSince(start)
			return cached, nil
		}
	}

	searchText := queryText
	var expansions []string
	if opts.UseQueryExpansion {
		expansion := e.queries.ExpandQuery(queryText, domain.DefaultExpansionTerms, false)
		searchText = expansion.ExpandedQuery
		expansions = expansion.Expansions
	}

	// The vector channel retrieves a wider candidate pool when a rerank
	// pass will narrow it back down.
	channelLimit := opts.Limit
	if opts.UseRerank {
		channelLimit = opts.RerankTopK
	}

	var (
		vectorResults  []domain.SearchResult
		lexicalResults []domain.SearchResult
		tokens         int
	)

	// No ordering dependency between the channels.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorResults, tokens, err = e.vectorChannel(gctx, searchText, userID, channelLimit, 0.1, opts.Filter)
		return err
	})
	g.Go(func() error {
		optimized := e.queries.OptimizeQueryForFullText(searchText)
		if optimized == "" {
			return nil
		}
		var err error
		lexicalResults, err = e.index.LexicalQuery(gctx, userID, optimized, channelLimit, opts.Filter)
		if err != nil {
			return domain.WrapError(domain.ErrRetrieval, "lexical query", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := results.Fuse(searchText, vectorResults, lexicalResults, opts)

	kept := make([]domain.HybridSearchResult, 0, len(fused))
	for _, r := range fused {
		if r.HybridScore >= opts.Threshold {
			kept = append(kept, r)
		}
	}

	var (
		rerankTook    time.Duration
		rerankApplied bool
	)
	if opts.UseRerank {
		kept, rerankTook, rerankApplied = results.Rerank(ctx, e.reranker, queryText, kept, opts.Limit, opts.RerankBlend)
	} else if len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}

	response := &domain.HybridSearchResponse{
		Results:         kept,
		Total:           len(kept),
		TokensUsed:      tokens,
		TookMS:          msSince(start),
		Expansions:      expansions,
		FusionAlgorithm: string(opts.Fusion),
		RerankApplied:   rerankApplied,
		RerankMS:        float64(rerankTook.Microseconds()) / 1000.0,
	}
	if useCache {
		cacheSet(ctx, e, key, response, e.cfg.CacheTTL)
	}
	return response, nil
}

// ClearCache drops every cached response for a user. Used after index
// mutations; callers may also invoke it directly.
func (e *Engine) ClearCache(ctx context.Context, userID string) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.DeleteByPrefix(ctx, userCachePrefix(userID)); err != nil {
		return domain.WrapError(domain.ErrCache, "clear cache", err)
	}
	return nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
