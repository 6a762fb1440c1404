package query

var stopWords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "cannot": {}, "could": {}, "does": {},
	"doing": {}, "down": {}, "during": {}, "each": {}, "from": {},
	"further": {}, "have": {}, "having": {}, "here": {}, "into": {},
	"itself": {}, "just": {}, "more": {}, "most": {}, "once": {},
	"only": {}, "other": {}, "over": {}, "same": {}, "should": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "under": {}, "until": {},
	"very": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "will": {}, "with": {}, "would": {}, "your": {},
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
