package rag

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// queryTerms normalises a query into a deduplicated term set:
// lower-cased, stripped of punctuation, tokens longer than 2 chars.
func queryTerms(query string) map[string]struct{} {
	cleaned := nonAlnum.ReplaceAllString(strings.ToLower(query), " ")
	terms := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 2 {
			terms[w] = struct{}{}
		}
	}
	return terms
}

// Score rates a chunk against a query by keyword overlap plus a
// positional bonus favouring the start of the document. Chunk tokens
// are matched as-is against the lower-cased term set; the score is not
// normalised by chunk length, so dense-match chunks win.
func Score(c Chunk, query string) float64 {
	return scoreTerms(c, queryTerms(query))
}

func scoreTerms(c Chunk, terms map[string]struct{}) float64 {
	var hits float64
	for _, w := range strings.Fields(c.Text) {
		if _, ok := terms[w]; ok {
			hits++
		}
	}
	return hits + positionBonus(c.WordStart)
}

// positionBonus decays linearly from +2 at the document start to 0 at
// word offset 5000; intro and summary material tends to live early.
func positionBonus(wordStart int) float64 {
	b := 1 - float64(wordStart)/5000
	if b < 0 {
		b = 0
	}
	return b * 2
}
