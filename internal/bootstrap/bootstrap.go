package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/hybrid-search/internal/config"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
	"github.com/kirillkom/hybrid-search/internal/core/query"
	"github.com/kirillkom/hybrid-search/internal/core/search"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/cache/memory"
	rediscache "github.com/kirillkom/hybrid-search/internal/infrastructure/cache/redis"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/rerank/httprerank"
	"github.com/kirillkom/hybrid-search/internal/provider"
)

// App wires infrastructure into the provider stack. Provider is always
// a ResilientFacade; when no fallback backend is configured the facade
// still supplies retries and failure metrics for the primary alone.
type App struct {
	Config   config.Config
	Provider ports.SearchProvider
	Facade   *search.ResilientFacade
	Queue    *nats.Queue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	var cache ports.SearchCache
	var closeCache func()
	if cfg.RedisAddr != "" {
		redisCache := rediscache.New(rediscache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		cache = redisCache
		closeCache = func() { _ = redisCache.Close() }
	} else {
		cache = memory.New()
	}

	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		RequestsPerSecond: cfg.EmbedRateLimit,
		Burst:             cfg.EmbedRateBurst,
	})

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = httprerank.New(cfg.RerankURL, httprerank.Options{
			APIKey: cfg.RerankAPIKey,
			Model:  cfg.RerankModel,
		})
	}

	factory := provider.NewFactory(provider.Deps{
		Embedder:     embedder,
		Reranker:     reranker,
		Cache:        cache,
		Queries:      query.NewProcessor(),
		CacheTTL:     cfg.CacheTTL(),
		EnsureSchema: cfg.EnsureSchema,
	})

	primary, err := factory.Build(ctx, cfg.ProviderConfig(cfg.ProviderKind))
	if err != nil {
		return nil, fmt.Errorf("build primary provider: %w", err)
	}

	var fallback ports.SearchProvider
	if cfg.FallbackKind != "" && cfg.FallbackKind != cfg.ProviderKind {
		fallback, err = factory.Build(ctx, cfg.ProviderConfig(cfg.FallbackKind))
		if err != nil {
			return nil, fmt.Errorf("build fallback provider: %w", err)
		}
	}

	facade := search.NewResilientFacade(primary, fallback, search.FacadeConfig{
		RetryAttempts:     cfg.FacadeRetryAttempts,
		RetryDelay:        time.Duration(cfg.FacadeRetryDelayMS) * time.Millisecond,
		FallbackThreshold: cfg.FacadeFallbackThreshold,
	})

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		if closeCache != nil {
			closeCache()
		}
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &App{
		Config:   cfg,
		Provider: facade,
		Facade:   facade,
		Queue:    queue,

		closeFn: func() {
			queue.Close()
			if closeCache != nil {
				closeCache()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
