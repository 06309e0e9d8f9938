package topic

import "strings"

// Keyword evidence for the local message classifier. Substring
// matching keeps multi-word phrases ("how are you") workable.
var (
	codingKeywords = []string{
		"code", "function", "algorithm", "debug", "error", "syntax", "program",
		"javascript", "python", "typescript", "react", "html", "css", "sql",
		"api", "class", "object", "variable", "loop", "array", "compile",
		"runtime", "stack", "recursion", "git", "docker",
	}
	scienceKeywords = []string{
		"biology", "chemistry", "physics", "math", "equation", "formula",
		"molecule", "atom", "cell", "dna", "protein", "force", "energy",
		"reaction", "theorem", "integral", "derivative", "calculus",
		"statistics", "hypothesis", "experiment",
	}
	casualKeywords = []string{
		"recipe", "food", "travel", "movie", "music", "sport", "weather",
		"fun", "joke", "how are you", "what do you think", "opinion",
		"feeling", "love", "friend", "family",
	}
)

func keywordScore(msg string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			n++
		}
	}
	return n
}

// classifierRule pairs a predicate with the category it yields.
// Rules are evaluated in priority order; the first hit wins.
type classifierRule struct {
	matches  func(coding, science, casual int) bool
	category Category
}

var classifierRules = []classifierRule{
	{func(c, s, ca int) bool { return c >= 2 || (c >= 1 && c > s && c > ca) }, Coding},
	{func(c, s, ca int) bool { return s >= 2 || (s >= 1 && s > c && s > ca) }, Science},
	{func(c, s, ca int) bool { return ca >= 1 && ca >= c && ca >= s }, Casual},
}

// ClassifyMessage classifies one user message with fixed keyword
// lists. Deterministic, synchronous and side-effect-free: it runs on
// every outgoing chat message, so no network is allowed here. Always
// returns one of the four categories; no signal means General.
func ClassifyMessage(message string) Category {
	m := strings.ToLower(message)
	coding := keywordScore(m, codingKeywords)
	science := keywordScore(m, scienceKeywords)
	casual := keywordScore(m, casualKeywords)

	for _, r := range classifierRules {
		if r.matches(coding, science, casual) {
			return r.category
		}
	}
	return General
}
