package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

// Index talks to a managed vector-store service. The vector channel is
// a structured point search; the lexical channel goes through the
// service's retrieval-prompt endpoint, whose free-text answers are
// parsed for citations when the service returns no structured matches.
// That parse is best effort and lower fidelity than the relational
// index.
type Index struct {
	baseURL    string
	apiKey     string
	indexName  string
	httpClient *http.Client
}

func New(baseURL, apiKey, indexName string) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		indexName:  indexName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (x *Index) Name() string { return "hosted" }

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (x *Index) VectorQuery(ctx context.Context, userID string, vector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildFilter(userID, filter),
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", x.indexName)
	if err := x.post(ctx, path, reqBody, &searchResp); err != nil {
		return nil, fmt.Errorf("hosted vector search: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(searchResp.Result))
	for _, p := range searchResp.Result {
		out = append(out, resultFromPoint(p))
	}
	return out, nil
}

// LexicalQuery sends the de-annotated query text as a retrieval prompt.
// Structured results are used when the service returns them; otherwise
// the answer text is scanned for citation markers and the cited chunks
// get rank-decayed synthetic scores.
func (x *Index) LexicalQuery(ctx context.Context, userID, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	prompt := strings.NewReplacer(":*", "", " & ", " ", " | ", " ").Replace(query)

	reqBody := map[string]any{
		"prompt": prompt,
		"limit":  limit,
		"filter": buildFilter(userID, filter),
	}

	var queryResp struct {
		Result []scoredPoint `json:"result"`
		Answer string        `json:"answer"`
	}
	path := fmt.Sprintf("/collections/%s/query", x.indexName)
	if err := x.post(ctx, path, reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("hosted lexical query: %w", err)
	}

	if len(queryResp.Result) > 0 {
		out := make([]domain.SearchResult, 0, len(queryResp.Result))
		for _, p := range queryResp.Result {
			out = append(out, resultFromPoint(p))
		}
		return out, nil
	}
	return parseCitations(queryResp.Answer, limit), nil
}

func (x *Index) UpsertChunk(ctx context.Context, userID string, chunk domain.Chunk, vector []float32) error {
	payload := map[string]any{
		"user_id":        userID,
		"document_id":    chunk.DocumentID,
		"document_title": chunk.DocumentTitle,
		"content":        chunk.Content,
		"chunk_index":    chunk.ChunkIndex,
		"element_type":   chunk.ElementType,
	}
	if chunk.PageNumber > 0 {
		payload["page_number"] = chunk.PageNumber
	}
	if chunk.BBox != nil {
		payload["bbox"] = chunk.BBox
	}
	for k, v := range chunk.Metadata {
		payload["meta_"+k] = v
	}

	reqBody := map[string]any{
		"points": []point{{ID: chunk.ID, Vector: vector, Payload: payload}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", x.indexName)
	if err := x.put(ctx, path, reqBody); err != nil {
		return fmt.Errorf("hosted upsert: %w", err)
	}
	return nil
}

func (x *Index) DeleteDocument(ctx context.Context, userID, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				matchClause("user_id", userID),
				matchClause("document_id", documentID),
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", x.indexName)
	if err := x.post(ctx, path, reqBody, nil); err != nil {
		return fmt.Errorf("hosted delete: %w", err)
	}
	return nil
}

func (x *Index) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/collections/"+x.indexName, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	x.authorize(req)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hosted ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hosted ping status: %s", resp.Status)
	}
	return nil
}

func (x *Index) post(ctx context.Context, path string, body any, out any) error {
	return x.send(ctx, http.MethodPost, path, body, out)
}

func (x *Index) put(ctx context.Context, path string, body any) error {
	return x.send(ctx, http.MethodPut, path, body, nil)
}

func (x *Index) send(ctx context.Context, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	x.authorize(req)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (x *Index) authorize(req *http.Request) {
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
}

func buildFilter(userID string, filter domain.SearchFilter) map[string]any {
	must := []map[string]any{matchClause("user_id", userID)}

	if len(filter.DocumentIDs) > 0 {
		must = append(must, matchAnyClause("document_id", filter.DocumentIDs))
	}
	if len(filter.ElementTypes) > 0 {
		must = append(must, matchAnyClause("element_type", filter.ElementTypes))
	}
	if len(filter.PageNumbers) > 0 {
		pages := make([]any, 0, len(filter.PageNumbers))
		for _, p := range filter.PageNumbers {
			pages = append(pages, p)
		}
		must = append(must, map[string]any{"key": "page_number", "match": map[string]any{"any": pages}})
	}

	return map[string]any{"must": must}
}

func matchClause(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func matchAnyClause(key string, values []string) map[string]any {
	candidates := make([]any, 0, len(values))
	for _, v := range values {
		candidates = append(candidates, v)
	}
	return map[string]any{"key": key, "match": map[string]any{"any": candidates}}
}

func resultFromPoint(p scoredPoint) domain.SearchResult {
	payload := p.Payload
	r := domain.SearchResult{Similarity: p.Score}
	r.ID = p.ID
	r.DocumentID = payloadString(payload, "document_id")
	r.DocumentTitle = payloadString(payload, "document_title")
	r.Content = payloadString(payload, "content")
	r.ElementType = payloadString(payload, "element_type")
	r.ChunkIndex = payloadInt(payload, "chunk_index")
	r.PageNumber = payloadInt(payload, "page_number")

	for k, v := range payload {
		name, ok := strings.CutPrefix(k, "meta_")
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			if r.Metadata == nil {
				r.Metadata = make(map[string]string)
			}
			r.Metadata[name] = s
		}
	}
	return r
}

func payloadString(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadInt(payload map[string]any, key string) int {
	if f, ok := payload[key].(float64); ok {
		return int(f)
	}
	return 0
}

// citationPattern matches markers like [doc:manual-42#3] or
// [source: manual-42] in assistant answers.
var citationPattern = regexp.MustCompile(`\[(?:doc|source):\s*([A-Za-z0-9._-]+)(?:#(\d+))?\]`)

// parseCitations extracts cited chunks from a free-text answer. Scores
// decay by citation order; content carries the sentence preceding each
// marker so downstream fusion has text to work with.
func parseCitations(answer string, limit int) []domain.SearchResult {
	if answer == "" {
		return nil
	}

	matches := citationPattern.FindAllStringSubmatchIndex(answer, -1)
	seen := make(map[string]struct{})
	out := make([]domain.SearchResult, 0, len(matches))

	for _, m := range matches {
		if len(out) >= limit {
			break
		}
		documentID := answer[m[2]:m[3]]
		chunkIndex := 0
		if m[4] >= 0 {
			chunkIndex, _ = strconv.Atoi(answer[m[4]:m[5]])
		}

		id := fmt.Sprintf("%s#%d", documentID, chunkIndex)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		out = append(out, domain.SearchResult{
			Chunk: domain.Chunk{
				ID:         id,
				DocumentID: documentID,
				ChunkIndex: chunkIndex,
				Content:    precedingSentence(answer, m[0]),
			},
			Similarity: 0.5 - 0.05*float64(len(out)),
		})
	}
	return out
}

func precedingSentence(answer string, markerStart int) string {
	text := strings.TrimSpace(answer[:markerStart])
	if idx := strings.LastIndexAny(text, ".!?\n"); idx >= 0 && idx+1 < len(text) {
		text = strings.TrimSpace(text[idx+1:])
	}
	return text
}
