package httpadapter

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchModeFromPath(t *testing.T) {
	cases := map[string]string{
		"/v1/search/vector":    "vector",
		"/v1/search/hybrid":    "hybrid",
		"/v1/search/multistep": "multistep",
		"/v1/documents/doc-1":  "",
		"/healthz":             "",
	}
	for path, want := range cases {
		if got := searchModeFromPath(path); got != want {
			t.Fatalf("searchModeFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAccessLogTagsSearchModeAndSkipsHealthChecks(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(previous)

	handler := accessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no access log for health check, got %s", buf.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search/hybrid", nil))
	line := buf.String()
	if !strings.Contains(line, `"search_mode":"hybrid"`) {
		t.Fatalf("expected search_mode attribute in access log, got %s", line)
	}
	if !strings.Contains(line, `"api_request"`) {
		t.Fatalf("expected api_request event in access log, got %s", line)
	}
}
