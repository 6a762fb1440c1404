package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

func TestVectorQueryMapsPoints(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":    "c1",
					"score": 0.92,
					"payload": map[string]any{
						"document_id":    "d1",
						"document_title": "Manual",
						"content":        "chuck alignment",
						"chunk_index":    2,
						"element_type":   "text",
						"page_number":    5,
						"meta_rev":       "3",
					},
				},
			},
		})
	}))
	defer srv.Close()

	index := New(srv.URL, "secret", "chunks")
	results, err := index.VectorQuery(context.Background(), "u1", []float32{1, 0}, 10, domain.SearchFilter{
		DocumentIDs: []string{"d1"},
	})
	if err != nil {
		t.Fatalf("VectorQuery() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.ID != "c1" || r.DocumentID != "d1" || r.ChunkIndex != 2 || r.PageNumber != 5 {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Similarity != 0.92 {
		t.Fatalf("similarity = %v", r.Similarity)
	}
	if r.Metadata["rev"] != "3" {
		t.Fatalf("metadata prefix not stripped: %+v", r.Metadata)
	}

	filter, _ := gotBody["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("filter must clauses = %d, want user and document match", len(must))
	}
}

func TestLexicalQueryPrefersStructuredResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if prompt := body["prompt"]; prompt != "chuck alignment" {
			t.Errorf("tsquery syntax must be stripped from the prompt, got %q", prompt)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "c1", "score": 0.7, "payload": map[string]any{"document_id": "d1", "content": "chuck"}},
			},
			"answer": "ignored when structured results exist [doc:other#0]",
		})
	}))
	defer srv.Close()

	index := New(srv.URL, "", "chunks")
	results, err := index.LexicalQuery(context.Background(), "u1", "chuck:* & alignment", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("LexicalQuery() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "c1" {
		t.Fatalf("structured results should win, got %+v", results)
	}
}

func TestLexicalQueryParsesCitationsFromAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer": "Align the chuck before calibrating [doc:manual-42#3]. " +
				"Vacuum pressure limits are listed in the appendix [doc:manual-42#7]. " +
				"See also the setup guide [source: setup-guide].",
		})
	}))
	defer srv.Close()

	index := New(srv.URL, "", "chunks")
	results, err := index.LexicalQuery(context.Background(), "u1", "chuck", 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("LexicalQuery() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d citations, want 3", len(results))
	}
	if results[0].DocumentID != "manual-42" || results[0].ChunkIndex != 3 {
		t.Fatalf("unexpected first citation %+v", results[0])
	}
	if results[0].Content != "Align the chuck before calibrating" {
		t.Fatalf("citation content = %q", results[0].Content)
	}
	if results[2].DocumentID != "setup-guide" || results[2].ChunkIndex != 0 {
		t.Fatalf("unexpected third citation %+v", results[2])
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity >= results[i-1].Similarity {
			t.Fatalf("citation scores must decay by order: %+v", results)
		}
	}
}

func TestParseCitationsDeduplicatesAndCaps(t *testing.T) {
	answer := "a [doc:d#1] b [doc:d#1] c [doc:d#2] d [doc:d#3]"
	results := parseCitations(answer, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want cap of 2", len(results))
	}
	if results[0].ID != "d#1" || results[1].ID != "d#2" {
		t.Fatalf("unexpected ids %+v", results)
	}
}

func TestUpsertChunkSendsPoint(t *testing.T) {
	var gotBody struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	index := New(srv.URL, "", "chunks")
	err := index.UpsertChunk(context.Background(), "u1", domain.Chunk{
		ID:         "c1",
		DocumentID: "d1",
		Content:    "chuck alignment",
		Metadata:   map[string]string{"rev": "3"},
	}, []float32{1, 0})
	if err != nil {
		t.Fatalf("UpsertChunk() error = %v", err)
	}
	if len(gotBody.Points) != 1 || gotBody.Points[0].ID != "c1" {
		t.Fatalf("unexpected points %+v", gotBody.Points)
	}
	payload := gotBody.Points[0].Payload
	if payload["user_id"] != "u1" || payload["meta_rev"] != "3" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDeleteDocumentStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	index := New(srv.URL, "", "chunks")
	if err := index.DeleteDocument(context.Background(), "u1", "d1"); err == nil {
		t.Fatalf("expected error on 500")
	}
}
