package answer

import "regexp"

// Known-intent patterns. A matched intent selects a templated answer that
// blends a fixed preamble with an excerpt of the best retrieved chunk.
type intent struct {
	name     string
	pattern  *regexp.Regexp
	preamble string
}

var intents = []intent{
	{
		name:     "definition",
		pattern:  regexp.MustCompile(`(?i)\b(what\s+is|what's|what\s+are|define|definition\s+of|meaning\s+of)\b`),
		preamble: "Here's what the article says:",
	},
	{
		name:     "safety",
		pattern:  regexp.MustCompile(`(?i)\b(safe|safety|toxic|toxicity|toxicology|hazard|harmful|danger|dangerous)\b`),
		preamble: "On safety and toxicity, the article notes:",
	},
	{
		name:     "regulatory",
		pattern:  regexp.MustCompile(`(?i)\b(fda|gras|regulation|regulations|regulatory|regulated|approved|approval|legal|compliance)\b`),
		preamble: "On the regulatory status:",
	},
}

// matchIntent returns the first intent whose pattern matches the query.
func matchIntent(query string) (intent, bool) {
	for _, in := range intents {
		if in.pattern.MatchString(query) {
			return in, true
		}
	}
	return intent{}, false
}
