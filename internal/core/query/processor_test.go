package query

import (
	"strings"
	"testing"
)

func TestExtractContextTermsKeepsFirstOccurrenceOrder(t *testing.T) {
	p := NewProcessor()
	history := []string{
		"the chuck error persists after restart",
		"tried recalibrating the alignment sensors",
		"error code E301 shows on the controller display",
	}

	terms := p.ExtractContextTerms(history, ContextTermOptions{})
	if len(terms) == 0 {
		t.Fatalf("expected context terms, got none")
	}
	if len(terms) > 5 {
		t.Fatalf("expected at most 5 terms, got %d", len(terms))
	}
	if terms[0] != "error" {
		t.Fatalf("expected first-occurrence order starting with 'error', got %v", terms)
	}
	for i, term := range terms {
		for j := i + 1; j < len(terms); j++ {
			if term == terms[j] {
				t.Fatalf("duplicate term %q in %v", term, terms)
			}
		}
	}
}

func TestExtractContextTermsUsesOnlyRecentMessages(t *testing.T) {
	p := NewProcessor()
	history := make([]string, 0, 8)
	history = append(history, "calibration drift on the oldest message")
	for i := 0; i < 7; i++ {
		history = append(history, "nothing here")
	}

	terms := p.ExtractContextTerms(history, ContextTermOptions{MaxMessages: 6})
	for _, term := range terms {
		if term == "calibration" {
			t.Fatalf("term from a message outside the window leaked in: %v", terms)
		}
	}
}

func TestBuildContextEnhancedQueryAnnotatesWeights(t *testing.T) {
	p := NewProcessor()
	got := p.BuildContextEnhancedQuery("chuck alignment", []string{"calibration", "e301"}, 0.3)
	want := "chuck alignment calibration^0.3 e301^0.3"
	if got != want {
		t.Fatalf("enhanced query = %q, want %q", got, want)
	}

	if p.BuildContextEnhancedQuery("chuck", nil, 0.3) != "chuck" {
		t.Fatalf("no terms should leave the query unchanged")
	}
}

func TestOptimizeQueryForFullText(t *testing.T) {
	p := NewProcessor()
	got := p.OptimizeQueryForFullText("Chuck alignment! (calibration)")
	want := "chuck:* & alignment:* & calibration:*"
	if got != want {
		t.Fatalf("optimized query = %q, want %q", got, want)
	}

	if got := p.OptimizeQueryForFullText("fix arm"); got != "fix & arm" {
		t.Fatalf("short tokens must not get prefix markers, got %q", got)
	}
	if got := p.OptimizeQueryForFullText("!!!"); got != "" {
		t.Fatalf("symbol-only input should optimize to empty, got %q", got)
	}
}

func TestOptimizeQueryStripsWeightAnnotations(t *testing.T) {
	p := NewProcessor()
	got := p.OptimizeQueryForFullText("alignment calibration^0.3")
	if strings.Contains(got, "0") {
		t.Fatalf("weight annotation leaked into full-text query: %q", got)
	}
}

func TestExpandQueryAddsSynonyms(t *testing.T) {
	p := NewProcessor()
	result := p.ExpandQuery("calibration error", 3, false)
	if len(result.Expansions) == 0 {
		t.Fatalf("expected expansions for known vocabulary")
	}
	if len(result.Expansions) > 3 {
		t.Fatalf("expected at most 3 expansions, got %v", result.Expansions)
	}
	if !strings.HasPrefix(result.ExpandedQuery, "calibration error ") {
		t.Fatalf("expanded query must start with the original, got %q", result.ExpandedQuery)
	}
}

func TestExpandQueryIdempotent(t *testing.T) {
	p := NewProcessor()
	first := p.ExpandQuery("calibration error", 3, false)
	second := p.ExpandQuery(first.ExpandedQuery, 3, false)

	for _, added := range second.Expansions {
		for _, prior := range first.Expansions {
			if added == prior {
				t.Fatalf("re-expansion duplicated term %q", added)
			}
		}
	}
}

func TestExpandQueryUnknownVocabulary(t *testing.T) {
	p := NewProcessor()
	result := p.ExpandQuery("zzz qqq", 3, false)
	if len(result.Expansions) != 0 {
		t.Fatalf("expected no expansions, got %v", result.Expansions)
	}
	if result.ExpandedQuery != "zzz qqq" {
		t.Fatalf("query must be unchanged, got %q", result.ExpandedQuery)
	}
}

func TestRefineQueryFromResultsFrequencyThenFirstSeen(t *testing.T) {
	p := NewProcessor()
	contents := []string{
		"vacuum pressure vacuum leak detected",
		"pressure reading unstable near the seal",
		"vacuum pump seal inspection",
	}

	refined := p.RefineQueryFromResults("chuck error", contents, RefineOptions{
		MaxRefinementTerms:   2,
		TopResultsCount:      3,
		ExcludeOriginalTerms: true,
	})
	if refined != "chuck error vacuum pressure" {
		t.Fatalf("refined query = %q, want %q", refined, "chuck error vacuum pressure")
	}
}

func TestRefineQueryExcludesOriginalTerms(t *testing.T) {
	p := NewProcessor()
	refined := p.RefineQueryFromResults("vacuum", []string{"vacuum vacuum vacuum"}, RefineOptions{
		ExcludeOriginalTerms: true,
	})
	if refined != "vacuum" {
		t.Fatalf("original terms must not be re-appended, got %q", refined)
	}
}

func TestExtractTechnicalConcepts(t *testing.T) {
	concepts := ExtractTechnicalConcepts("Error E301 on the XR-2000 chuck, check PLC wiring")

	want := map[string]bool{"E301": false, "XR-2000": false, "PLC": false, "chuck": false}
	for _, c := range concepts {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for concept, found := range want {
		if !found {
			t.Fatalf("expected concept %q in %v", concept, concepts)
		}
	}
}
