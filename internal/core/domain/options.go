package domain

// FusionAlgorithm selects how the two retrieval channels are combined.
type FusionAlgorithm string

const (
	FusionWeighted FusionAlgorithm = "weighted"
	FusionRRF      FusionAlgorithm = "rrf"
	FusionAdaptive FusionAlgorithm = "adaptive"
)

const (
	DefaultVectorLimit     = 10
	DefaultVectorThreshold = 0.3
	DefaultHybridThreshold = 0.2
	DefaultVectorWeight    = 0.7
	DefaultTextWeight      = 0.3
	DefaultRRFK            = 60
	DefaultRerankTopK      = 20
	DefaultRerankBlend     = 0.8
	DefaultExpansionTerms  = 3
	DefaultContextWeight   = 0.2
	DefaultMaxSteps        = 3
	DefaultMinResultsStep  = 3
	MultiStepResultCap     = 15
)

// VectorSearchOptions controls a single dense-similarity search.
type VectorSearchOptions struct {
	Limit             int          `json:"limit,omitempty"`
	Threshold         float64      `json:"threshold,omitempty"`
	UseQueryExpansion bool         `json:"use_query_expansion,omitempty"`
	ExpansionTerms    int          `json:"expansion_terms,omitempty"`
	Filter            SearchFilter `json:"filter,omitempty"`
}

// Normalized fills zero values with documented defaults.
func (o VectorSearchOptions) Normalized() VectorSearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultVectorLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultVectorThreshold
	}
	if o.ExpansionTerms <= 0 {
		o.ExpansionTerms = DefaultExpansionTerms
	}
	return o
}

// HybridSearchOptions controls dual-channel retrieval and fusion.
type HybridSearchOptions struct {
	Limit             int             `json:"limit,omitempty"`
	Threshold         float64         `json:"threshold,omitempty"`
	VectorWeight      float64         `json:"vector_weight,omitempty"`
	TextWeight        float64         `json:"text_weight,omitempty"`
	Fusion            FusionAlgorithm `json:"fusion,omitempty"`
	RRFK              int             `json:"rrf_k,omitempty"`
	UseQueryExpansion bool            `json:"use_query_expansion,omitempty"`
	UseRerank         bool            `json:"use_rerank,omitempty"`
	RerankTopK        int             `json:"rerank_top_k,omitempty"`
	RerankBlend       float64         `json:"rerank_blend,omitempty"`
	Filter            SearchFilter    `json:"filter,omitempty"`
}

func (o HybridSearchOptions) Normalized() HybridSearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultVectorLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultHybridThreshold
	}
	if o.VectorWeight <= 0 {
		o.VectorWeight = DefaultVectorWeight
	}
	if o.TextWeight <= 0 {
		o.TextWeight = DefaultTextWeight
	}
	switch o.Fusion {
	case FusionWeighted, FusionRRF, FusionAdaptive:
	default:
		o.Fusion = FusionWeighted
	}
	if o.RRFK <= 0 {
		o.RRFK = DefaultRRFK
	}
	if o.RerankTopK <= 0 {
		o.RerankTopK = DefaultRerankTopK
	}
	if o.RerankBlend <= 0 || o.RerankBlend > 1 {
		o.RerankBlend = DefaultRerankBlend
	}
	return o
}

// ContextSearchOptions adds conversation-derived boosting on top of a
// hybrid search.
type ContextSearchOptions struct {
	Hybrid        HybridSearchOptions `json:"hybrid,omitempty"`
	ContextWeight float64             `json:"context_weight,omitempty"`
}

func (o ContextSearchOptions) Normalized() ContextSearchOptions {
	o.Hybrid = o.Hybrid.Normalized()
	if o.ContextWeight <= 0 {
		o.ContextWeight = DefaultContextWeight
	}
	return o
}

// MultiStepSearchOptions controls iterative retrieval with query
// refinement between steps.
type MultiStepSearchOptions struct {
	Hybrid            HybridSearchOptions `json:"hybrid,omitempty"`
	MaxSteps          int                 `json:"max_steps,omitempty"`
	MinResultsPerStep int                 `json:"min_results_per_step,omitempty"`
}

func (o MultiStepSearchOptions) Normalized() MultiStepSearchOptions {
	o.Hybrid = o.Hybrid.Normalized()
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.MinResultsPerStep <= 0 {
		o.MinResultsPerStep = DefaultMinResultsStep
	}
	return o
}
