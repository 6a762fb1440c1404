package httprerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-search/internal/infrastructure/resilience"
)

func fastResilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,
		BreakerEnabled:      false,
	}
}

func TestRerankMapsScores(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.93},{"index":0,"relevance_score":0.41}]}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{APIKey: "key", Model: "rerank-v2", Resilience: fastResilience()})
	scores, err := client.Rerank(context.Background(), "chuck alignment", []string{"doc a", "doc b"}, 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].Index != 1 || scores[0].Relevance != 0.93 {
		t.Fatalf("unexpected first score %+v", scores[0])
	}
	if gotBody["top_n"].(float64) != 2 || gotBody["model"] != "rerank-v2" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
}

func TestRerankRetriesOnBackpressure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.8}]}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{Resilience: fastResilience()})
	scores, err := client.Rerank(context.Background(), "q", []string{"doc"}, 1)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if calls.Load() != 2 || len(scores) != 1 {
		t.Fatalf("calls = %d, scores = %v", calls.Load(), scores)
	}
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.8}]}`))
	}))
	defer server.Close()

	client := New(server.URL, Options{Resilience: fastResilience()})
	if _, err := client.Rerank(context.Background(), "q", []string{"doc"}, 1); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestRerankEmptyDocumentsSkipsRequest(t *testing.T) {
	client := New("http://unreachable.invalid", Options{Resilience: fastResilience()})
	scores, err := client.Rerank(context.Background(), "q", nil, 3)
	if err != nil || scores != nil {
		t.Fatalf("empty documents should short-circuit, got %v %v", scores, err)
	}
}
