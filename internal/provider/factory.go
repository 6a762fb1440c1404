package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
	"github.com/kirillkom/hybrid-search/internal/core/query"
	"github.com/kirillkom/hybrid-search/internal/core/search"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/index/hosted"
	"github.com/kirillkom/hybrid-search/internal/infrastructure/index/postgres"
)

// Factory constructs search providers from tagged configurations and
// memoizes them by a deterministic id, so two configs pointing at the
// same store share one provider (and one connection pool).
type Factory struct {
	deps Deps

	mu        sync.Mutex
	providers map[string]ports.SearchProvider
}

// Deps are the collaborators shared by every constructed provider.
type Deps struct {
	Embedder ports.Embedder
	Reranker ports.Reranker
	Cache    ports.SearchCache
	Queries  *query.Processor
	CacheTTL time.Duration

	// EnsureSchema runs the relational DDL bootstrap on first build of
	// a relational provider.
	EnsureSchema bool
}

func NewFactory(deps Deps) *Factory {
	return &Factory{
		deps:      deps,
		providers: make(map[string]ports.SearchProvider),
	}
}

// Build validates the configuration and returns the provider for it,
// constructing on first use. Unknown kinds and missing required fields
// fail here, not on first search.
func (f *Factory) Build(ctx context.Context, cfg domain.ProviderConfig) (ports.SearchProvider, error) {
	if report := cfg.Validate(); !report.IsValid {
		return nil, domain.WrapError(domain.ErrConfiguration, "build provider",
			fmt.Errorf("%s", strings.Join(report.Errors, "; ")))
	}

	id := ProviderID(cfg)

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[id]; ok {
		return p, nil
	}

	p, err := f.construct(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.providers[id] = p
	return p, nil
}

func (f *Factory) construct(ctx context.Context, cfg domain.ProviderConfig) (ports.SearchProvider, error) {
	var index ports.ChunkIndex

	switch cfg.Kind {
	case domain.ProviderRelational:
		db, err := postgres.OpenDB(cfg.Relational.DSN)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "open relational store", err)
		}
		pg := postgres.NewIndex(db, cfg.Dimensions)
		if f.deps.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, domain.WrapError(domain.ErrConfiguration, "ensure relational schema", err)
			}
		}
		index = pg

	case domain.ProviderHosted:
		index = hosted.New(cfg.Hosted.BaseURL, cfg.Hosted.APIKey, cfg.Hosted.IndexName)

	default:
		// Validate catches this; kept for future kinds added to the
		// union without a constructor arm.
		return nil, domain.WrapError(domain.ErrConfiguration, "build provider",
			fmt.Errorf("unknown provider kind %q", cfg.Kind))
	}

	engine := search.NewEngine(search.Config{
		ProviderName: index.Name(),
		Dimensions:   cfg.Dimensions,
		CacheTTL:     f.deps.CacheTTL,
	}, index, f.deps.Embedder, f.deps.Reranker, f.deps.Cache, f.deps.Queries)
	return engine, nil
}

// ProviderID derives the memoization key from the fields that identify
// the backing store, not from tuning knobs.
func ProviderID(cfg domain.ProviderConfig) string {
	h := sha256.New()
	h.Write([]byte(cfg.Kind))
	h.Write([]byte{0})

	switch cfg.Kind {
	case domain.ProviderRelational:
		if cfg.Relational != nil {
			h.Write([]byte(cfg.Relational.DSN))
		}
	case domain.ProviderHosted:
		if cfg.Hosted != nil {
			h.Write([]byte(cfg.Hosted.BaseURL))
			h.Write([]byte{0})
			h.Write([]byte(cfg.Hosted.IndexName))
		}
	}

	return string(cfg.Kind) + "-" + hex.EncodeToString(h.Sum(nil))[:16]
}
