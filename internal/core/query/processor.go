package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Processor performs pure text transformations on query strings. It
// does no I/O and is safe for concurrent use once constructed.
type Processor struct {
	synonyms map[string][]string
}

func NewProcessor() *Processor {
	return &Processor{synonyms: defaultSynonyms}
}

func NewProcessorWithSynonyms(synonyms map[string][]string) *Processor {
	if synonyms == nil {
		synonyms = defaultSynonyms
	}
	return &Processor{synonyms: synonyms}
}

// ContextTermOptions bounds conversation-derived term extraction.
type ContextTermOptions struct {
	MaxMessages   int
	MinTermLength int
	MaxTerms      int
}

func (o ContextTermOptions) normalized() ContextTermOptions {
	if o.MaxMessages <= 0 {
		o.MaxMessages = 6
	}
	if o.MinTermLength <= 0 {
		o.MinTermLength = 4
	}
	if o.MaxTerms <= 0 {
		o.MaxTerms = 5
	}
	return o
}

var technicalPrefix = regexp.MustCompile(`^(error|config|setup|install|calibrat|connect)`)

func isTechnicalTerm(token string) bool {
	if technicalPrefix.MatchString(token) {
		return true
	}
	if containsDigit(token) {
		return true
	}
	return len(token) > 6
}

// ExtractContextTerms pulls technical-looking terms from the tail of a
// conversation. Terms keep first-occurrence order before truncation.
func (p *Processor) ExtractContextTerms(history []string, opts ContextTermOptions) []string {
	opts = opts.normalized()

	if len(history) > opts.MaxMessages {
		history = history[len(history)-opts.MaxMessages:]
	}

	seen := make(map[string]struct{})
	terms := make([]string, 0, opts.MaxTerms)
	for _, message := range history {
		for _, token := range tokenizeAlphaNumLower(message) {
			if len(token) < opts.MinTermLength || isStopWord(token) {
				continue
			}
			if !isTechnicalTerm(token) {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			terms = append(terms, token)
		}
	}

	if len(terms) > opts.MaxTerms {
		terms = terms[:opts.MaxTerms]
	}
	return terms
}

// BuildContextEnhancedQuery appends context terms annotated with a
// weight suffix (`term^weight`), a lexical boost hint for downstream
// engines that understand term-weight syntax. Backends without that
// syntax strip the suffix.
func (p *Processor) BuildContextEnhancedQuery(query string, terms []string, weight float64) string {
	if len(terms) == 0 {
		return query
	}
	if weight <= 0 {
		weight = 0.3
	}

	var b strings.Builder
	b.WriteString(query)
	for _, term := range terms {
		b.WriteString(fmt.Sprintf(" %s^%.1f", term, weight))
	}
	return b.String()
}

// StripWeightAnnotations removes `^weight` suffixes from an enhanced
// query for engines without term-weight syntax.
func StripWeightAnnotations(query string) string {
	return weightSuffix.ReplaceAllString(query, "")
}

var weightSuffix = regexp.MustCompile(`\^[0-9]*\.?[0-9]+`)

// OptimizeQueryForFullText converts free text into a boolean full-text
// query: non-word characters stripped, whitespace collapsed, tokens
// longer than 3 characters get a prefix-match marker, all tokens joined
// with an explicit AND. The output targets the Postgres tsquery syntax
// (`token:* & token:*`).
func (p *Processor) OptimizeQueryForFullText(query string) string {
	tokens := tokenizeAlphaNumLower(StripWeightAnnotations(query))
	if len(tokens) == 0 {
		return ""
	}

	parts := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 3 {
			parts = append(parts, token+":*")
			continue
		}
		parts = append(parts, token)
	}
	return strings.Join(parts, " & ")
}

// Expansion reports the expanded query alongside the terms added.
type Expansion struct {
	ExpandedQuery string
	Expansions    []string
}

// ExpandQuery appends up to maxTerms unique related terms from the
// synonym map. Expansions already present in the running query are
// skipped, so expanding an already-expanded query adds nothing new.
func (p *Processor) ExpandQuery(query string, maxTerms int, technicalOnly bool) Expansion {
	if maxTerms <= 0 {
		maxTerms = 3
	}

	present := toTokenSet(query)
	expansions := make([]string, 0, maxTerms)

	for _, token := range tokenizeAlphaNumLower(query) {
		if technicalOnly && !isTechnicalTerm(token) {
			continue
		}
		for _, candidate := range p.synonyms[token] {
			if len(expansions) >= maxTerms {
				break
			}
			if _, ok := present[candidate]; ok {
				continue
			}
			present[candidate] = struct{}{}
			expansions = append(expansions, candidate)
		}
		if len(expansions) >= maxTerms {
			break
		}
	}

	expanded := query
	if len(expansions) > 0 {
		expanded = query + " " + strings.Join(expansions, " ")
	}
	return Expansion{ExpandedQuery: expanded, Expansions: expansions}
}

// RefineOptions bounds refinement-term extraction from prior results.
type RefineOptions struct {
	MaxRefinementTerms   int
	TopResultsCount      int
	ExcludeOriginalTerms bool
}

func (o RefineOptions) normalized() RefineOptions {
	if o.MaxRefinementTerms <= 0 {
		o.MaxRefinementTerms = 2
	}
	if o.TopResultsCount <= 0 {
		o.TopResultsCount = 3
	}
	return o
}

// RefineQueryFromResults appends the most frequent content words from
// the top results to the original query. Ties break by first-encountered
// order, which keeps refinement deterministic.
func (p *Processor) RefineQueryFromResults(originalQuery string, contents []string, opts RefineOptions) string {
	opts = opts.normalized()

	if len(contents) > opts.TopResultsCount {
		contents = contents[:opts.TopResultsCount]
	}

	queryTokens := toTokenSet(originalQuery)
	freq := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, content := range contents {
		for _, token := range tokenizeAlphaNumLower(content) {
			if len(token) < 4 || isStopWord(token) {
				continue
			}
			if opts.ExcludeOriginalTerms {
				if _, ok := queryTokens[token]; ok {
					continue
				}
			}
			if _, ok := freq[token]; !ok {
				firstSeen[token] = order
				order++
			}
			freq[token]++
		}
	}

	if len(freq) == 0 {
		return originalQuery
	}

	candidates := make([]string, 0, len(freq))
	for token := range freq {
		candidates = append(candidates, token)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if freq[candidates[i]] != freq[candidates[j]] {
			return freq[candidates[i]] > freq[candidates[j]]
		}
		return firstSeen[candidates[i]] < firstSeen[candidates[j]]
	})

	if len(candidates) > opts.MaxRefinementTerms {
		candidates = candidates[:opts.MaxRefinementTerms]
	}
	return originalQuery + " " + strings.Join(candidates, " ")
}
