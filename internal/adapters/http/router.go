package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
	"github.com/kirillkom/hybrid-search/internal/core/ports"
	"github.com/kirillkom/hybrid-search/internal/core/search"
	"github.com/kirillkom/hybrid-search/internal/observability/metrics"
)

// Router exposes the retrieval API. The provider is usually a
// ResilientFacade, but any SearchProvider works; the facade accessor is
// optional and only feeds the /v1/status payload. The queue backs the
// async mode of the document endpoints and may be nil.
type Router struct {
	provider ports.SearchProvider
	facade   *search.ResilientFacade
	queue    ports.IndexQueue
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(provider ports.SearchProvider, facade *search.ResilientFacade, queue ports.IndexQueue, m *metrics.HTTPServerMetrics, service string) *Router {
	if service == "" {
		service = "api"
	}
	return &Router{
		provider: provider,
		facade:   facade,
		queue:    queue,
		metrics:  m,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search/vector", rt.vectorSearch)
	mux.HandleFunc("/v1/search/hybrid", rt.hybridSearch)
	mux.HandleFunc("/v1/search/context", rt.contextSearch)
	mux.HandleFunc("/v1/search/multistep", rt.multiStepSearch)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/status", rt.status)
	mux.HandleFunc("/v1/validate", rt.validate)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query   string   `json:"query"`
	UserID  string   `json:"user_id"`
	History []string `json:"history,omitempty"`

	Vector    *domain.VectorSearchOptions    `json:"vector,omitempty"`
	Hybrid    *domain.HybridSearchOptions    `json:"hybrid,omitempty"`
	Context   *domain.ContextSearchOptions   `json:"context,omitempty"`
	MultiStep *domain.MultiStepSearchOptions `json:"multi_step,omitempty"`
}

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return req, false
	}
	return req, true
}

func (rt *Router) vectorSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	var opts domain.VectorSearchOptions
	if req.Vector != nil {
		opts = *req.Vector
	}

	start := time.Now()
	resp, err := rt.provider.VectorSearch(r.Context(), req.Query, req.UserID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.observeSearch(metrics.SearchObservation{
		Mode:        "vector",
		ResultCount: resp.Total,
		TokensUsed:  resp.TokensUsed,
		CacheHit:    resp.CacheHit,
		Duration:    time.Since(start),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	var opts domain.HybridSearchOptions
	if req.Hybrid != nil {
		opts = *req.Hybrid
	}

	start := time.Now()
	resp, err := rt.provider.HybridSearch(r.Context(), req.Query, req.UserID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.observeHybrid("hybrid", opts.UseRerank, resp, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) contextSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	var opts domain.ContextSearchOptions
	if req.Context != nil {
		opts = *req.Context
	}

	start := time.Now()
	resp, err := rt.provider.ContextAwareSearch(r.Context(), req.Query, req.UserID, req.History, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.observeHybrid("context", opts.Hybrid.UseRerank, resp, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) multiStepSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	var opts domain.MultiStepSearchOptions
	if req.MultiStep != nil {
		opts = *req.MultiStep
	}

	start := time.Now()
	resp, err := rt.provider.MultiStepSearch(r.Context(), req.Query, req.UserID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.observeHybrid("multistep", opts.Hybrid.UseRerank, resp, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

// documentByID routes /v1/documents/{id}/index (POST, PUT) and
// /v1/documents/{id} (DELETE).
func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	documentID, action, _ := strings.Cut(rest, "/")
	if documentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case action == "index" && (r.Method == http.MethodPost || r.Method == http.MethodPut):
		rt.indexDocument(w, r, documentID, r.Method == http.MethodPut)
	case action == "" && r.Method == http.MethodDelete:
		rt.deleteDocument(w, r, documentID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

type indexRequest struct {
	UserID string         `json:"user_id"`
	Title  string         `json:"title"`
	Chunks []domain.Chunk `json:"chunks"`
}

func (rt *Router) indexDocument(w http.ResponseWriter, r *http.Request, documentID string, update bool) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	if asyncRequested(r) {
		rt.enqueueIndexRequest(w, r, domain.IndexRequest{
			DocumentID: documentID,
			UserID:     req.UserID,
			Title:      req.Title,
			Chunks:     req.Chunks,
		})
		return
	}

	doc := domain.DocumentInput{
		DocumentID: documentID,
		Title:      req.Title,
		Chunks:     req.Chunks,
	}

	var (
		report *domain.IndexReport
		err    error
	)
	if update {
		report, err = rt.provider.UpdateDocumentIndex(r.Context(), req.UserID, doc)
	} else {
		report, err = rt.provider.IndexDocument(r.Context(), req.UserID, doc)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !report.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	if asyncRequested(r) {
		rt.enqueueIndexRequest(w, r, domain.IndexRequest{
			DocumentID: documentID,
			UserID:     userID,
			Delete:     true,
		})
		return
	}

	deleted, err := rt.provider.DeleteDocumentIndex(r.Context(), userID, documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// asyncRequested reads the async query flag; any parse failure means
// synchronous.
func asyncRequested(r *http.Request) bool {
	async, err := strconv.ParseBool(r.URL.Query().Get("async"))
	return err == nil && async
}

func (rt *Router) enqueueIndexRequest(w http.ResponseWriter, r *http.Request, req domain.IndexRequest) {
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async indexing is not configured"})
		return
	}
	if err := rt.queue.PublishIndexRequested(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":      true,
		"document_id": req.DocumentID,
		"delete":      req.Delete,
	})
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	payload := map[string]any{
		"provider": rt.provider.Status(r.Context()),
	}
	if rt.facade != nil {
		payload["facade"] = rt.facade.Metrics()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.provider.ValidateConfiguration(r.Context()))
}

func (rt *Router) observeSearch(obs metrics.SearchObservation) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearch(rt.service, obs)
}

func (rt *Router) observeHybrid(mode string, rerankRequested bool, resp *domain.HybridSearchResponse, took time.Duration) {
	rt.observeSearch(metrics.SearchObservation{
		Mode:            mode,
		ResultCount:     resp.Total,
		TokensUsed:      resp.TokensUsed,
		CacheHit:        resp.CacheHit,
		FusionAlgorithm: resp.FusionAlgorithm,
		RerankRequested: rerankRequested,
		RerankApplied:   resp.RerankApplied,
		Steps:           resp.Steps,
		Duration:        took,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
