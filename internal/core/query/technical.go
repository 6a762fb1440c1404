package query

import (
	"regexp"
	"strings"
)

var (
	errorCodePattern   = regexp.MustCompile(`\b(?:E|ERR|ERROR)[-_]?\d+\b`)
	modelNumberPattern = regexp.MustCompile(`\b[A-Za-z]{1,4}-?\d{2,}[A-Za-z0-9-]*\b`)
	acronymPattern     = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
)

// componentNouns are domain component names recognized as technical
// concepts regardless of shape.
var componentNouns = []string{
	"chuck", "wafer", "stage", "chamber", "sensor", "actuator",
	"spindle", "controller", "firmware", "motor", "valve", "pump",
	"robot", "aligner", "gripper", "encoder",
}

// ExtractTechnicalConcepts pulls error-code-like tokens, model numbers,
// acronyms and known component nouns out of free text. Exact regex
// matching, no fuzziness.
func ExtractTechnicalConcepts(text string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	add := func(concept string) {
		key := strings.ToLower(concept)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, concept)
	}

	for _, match := range errorCodePattern.FindAllString(text, -1) {
		add(match)
	}
	for _, match := range modelNumberPattern.FindAllString(text, -1) {
		add(match)
	}
	for _, match := range acronymPattern.FindAllString(text, -1) {
		add(match)
	}

	lower := strings.ToLower(text)
	for _, noun := range componentNouns {
		if strings.Contains(lower, noun) {
			add(noun)
		}
	}

	return out
}
