package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
)

// circuitFloor is the minimum request count before the failure-rate
// circuit may skip the primary provider.
const circuitFloor = 10

// FacadeConfig tunes retry and circuit behavior. Retries use linear
// backoff (RetryDelay * attempt) applied independently to primary and
// fallback.
type FacadeConfig struct {
	RetryAttempts     int
	RetryDelay        time.Duration
	FallbackThreshold float64
	ErrorHistorySize  int
}

func (c FacadeConfig) normalized() FacadeConfig {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.FallbackThreshold <= 0 || c.FallbackThreshold > 1 {
		c.FallbackThreshold = 0.3
	}
	if c.ErrorHistorySize <= 0 {
		c.ErrorHistorySize = 100
	}
	return c
}

// FacadeMetrics is a point-in-time snapshot of facade behavior.
type FacadeMetrics struct {
	TotalRequests    int64    `json:"total_requests"`
	PrimarySuccesses int64    `json:"primary_successes"`
	FallbackUsed     int64    `json:"fallback_used"`
	Failures         int64    `json:"failures"`
	AvgResponseMS    float64  `json:"avg_response_ms"`
	LastErrors       []string `json:"last_errors,omitempty"`
}

// ResilientFacade wraps a primary and optional fallback provider with
// retries, a failure-rate circuit and rolling metrics. Once total
// requests reach the circuit floor and the failure rate crosses the
// threshold, calls skip the primary until metrics are reset or the
// providers are swapped.
type ResilientFacade struct {
	cfg FacadeConfig

	mu       sync.Mutex
	primary  ports.SearchProvider
	fallback ports.SearchProvider
	metrics  FacadeMetrics
}

func NewResilientFacade(primary, fallback ports.SearchProvider, cfg FacadeConfig) *ResilientFacade {
	return &ResilientFacade{
		cfg:      cfg.normalized(),
		primary:  primary,
		fallback: fallback,
	}
}

// Metrics returns a copy of the current counters.
func (f *ResilientFacade) Metrics() FacadeMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.metrics
	snapshot.LastErrors = append([]string(nil), f.metrics.LastErrors...)
	return snapshot
}

// ResetMetrics clears the counters, which also closes the circuit.
func (f *ResilientFacade) ResetMetrics() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = FacadeMetrics{}
}

// SetProviders swaps the providers and resets the circuit state.
func (f *ResilientFacade) SetProviders(primary, fallback ports.SearchProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primary = primary
	f.fallback = fallback
	f.metrics = FacadeMetrics{}
}

func (f *ResilientFacade) shouldSkipPrimary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.metrics.TotalRequests < circuitFloor {
		return false
	}
	rate := float64(f.metrics.Failures) / float64(f.metrics.TotalRequests)
	return rate >= f.cfg.FallbackThreshold
}

func (f *ResilientFacade) providers() (ports.SearchProvider, ports.SearchProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary, f.fallback
}

func (f *ResilientFacade) recordOutcome(start time.Time, usedFallback bool, callErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.metrics.TotalRequests++
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	n := float64(f.metrics.TotalRequests)
	f.metrics.AvgResponseMS = (f.metrics.AvgResponseMS*(n-1) + elapsed) / n

	switch {
	case callErr != nil:
		f.metrics.Failures++
		f.metrics.LastErrors = append(f.metrics.LastErrors, callErr.Error())
		if len(f.metrics.LastErrors) > f.cfg.ErrorHistorySize {
			f.metrics.LastErrors = f.metrics.LastErrors[len(f.metrics.LastErrors)-f.cfg.ErrorHistorySize:]
		}
	case usedFallback:
		f.metrics.FallbackUsed++
	default:
		f.metrics.PrimarySuccesses++
	}
}

// executeWithFallback drives one logical call through the retry and
// fallback policy.
func executeWithFallback[T any](
	ctx context.Context,
	f *ResilientFacade,
	operation string,
	call func(context.Context, ports.SearchProvider) (T, error),
) (T, error) {
	var zero T
	start := time.Now()
	primary, fallback := f.providers()

	var primaryErr error
	if primary != nil && !f.shouldSkipPrimary() {
		value, err := retryCall(ctx, f.cfg, operation, primary, call)
		if err == nil {
			f.recordOutcome(start, false, nil)
			return value, nil
		}
		primaryErr = err
		slog.Warn("primary_provider_failed", "operation", operation, "error", err)
	}

	if fallback != nil {
		value, err := retryCall(ctx, f.cfg, operation, fallback, call)
		if err == nil {
			f.recordOutcome(start, true, nil)
			return value, nil
		}
		primaryErr = err
	}

	failure := domain.WrapError(domain.ErrAllProvidersFailed, operation, primaryErr)
	if primaryErr == nil {
		failure = domain.WrapError(domain.ErrAllProvidersFailed, operation, domain.ErrRetrieval)
	}
	f.recordOutcome(start, false, failure)
	return zero, failure
}

// retryCall retries with linear backoff; the waits are cancellable so
// caller timeouts bound tail latency.
func retryCall[T any](
	ctx context.Context,
	cfg FacadeConfig,
	operation string,
	provider ports.SearchProvider,
	call func(context.Context, ports.SearchProvider) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := call(ctx, provider)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == cfg.RetryAttempts {
			break
		}
		slog.Warn("retry_attempt", "operation", operation, "attempt", attempt, "error", err)

		timer := time.NewTimer(cfg.RetryDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (f *ResilientFacade) VectorSearch(ctx context.Context, queryText, userID string, opts domain.VectorSearchOptions) (*domain.SearchResponse, error) {
	return executeWithFallback(ctx, f, "vector_search", func(ctx context.Context, p ports.SearchProvider) (*domain.SearchResponse, error) {
		return p.VectorSearch(ctx, queryText, userID, opts)
	})
}

func (f *ResilientFacade) HybridSearch(ctx context.Context, queryText, userID string, opts domain.HybridSearchOptions) (*domain.HybridSearchResponse, error) {
	return executeWithFallback(ctx, f, "hybrid_search", func(ctx context.Context, p ports.SearchProvider) (*domain.HybridSearchResponse, error) {
		return p.HybridSearch(ctx, queryText, userID, opts)
	})
}

func (f *ResilientFacade) ContextAwareSearch(ctx context.Context, queryText, userID string, history []string, opts domain.ContextSearchOptions) (*domain.HybridSearchResponse, error) {
	return executeWithFallback(ctx, f, "context_aware_search", func(ctx context.Context, p ports.SearchProvider) (*domain.HybridSearchResponse, error) {
		return p.ContextAwareSearch(ctx, queryText, userID, history, opts)
	})
}

func (f *ResilientFacade) MultiStepSearch(ctx context.Context, queryText, userID string, opts domain.MultiStepSearchOptions) (*domain.HybridSearchResponse, error) {
	return executeWithFallback(ctx, f, "multi_step_search", func(ctx context.Context, p ports.SearchProvider) (*domain.HybridSearchResponse, error) {
		return p.MultiStepSearch(ctx, queryText, userID, opts)
	})
}

func (f *ResilientFacade) IndexDocument(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error) {
	return executeWithFallback(ctx, f, "index_document", func(ctx context.Context, p ports.SearchProvider) (*domain.IndexReport, error) {
		return p.IndexDocument(ctx, userID, doc)
	})
}

func (f *ResilientFacade) UpdateDocumentIndex(ctx context.Context, userID string, doc domain.DocumentInput) (*domain.IndexReport, error) {
	return executeWithFallback(ctx, f, "update_document_index", func(ctx context.Context, p ports.SearchProvider) (*domain.IndexReport, error) {
		return p.UpdateDocumentIndex(ctx, userID, doc)
	})
}

func (f *ResilientFacade) DeleteDocumentIndex(ctx context.Context, userID, documentID string) (bool, error) {
	return executeWithFallback(ctx, f, "delete_document_index", func(ctx context.Context, p ports.SearchProvider) (bool, error) {
		return p.DeleteDocumentIndex(ctx, userID, documentID)
	})
}

// Status reports the active provider's health: the primary's unless the
// circuit currently routes traffic to the fallback.
func (f *ResilientFacade) Status(ctx context.Context) domain.ProviderStatus {
	primary, fallback := f.providers()
	if f.shouldSkipPrimary() && fallback != nil {
		return fallback.Status(ctx)
	}
	if primary == nil {
		return domain.ProviderStatus{Provider: "facade", IsHealthy: false, Details: []string{"no primary provider configured"}}
	}
	return primary.Status(ctx)
}

func (f *ResilientFacade) ValidateConfiguration(ctx context.Context) domain.ValidationReport {
	primary, _ := f.providers()
	if primary == nil {
		return domain.ValidationReport{IsValid: false, Errors: []string{"no primary provider configured"}}
	}
	return primary.ValidateConfiguration(ctx)
}
