package rag

import (
	"sort"
	"strings"
)

// Retrieve selects up to topK chunks for the query and returns them in
// reading order. The first two chunks by id are always included so the
// model keeps baseline intro/overview context even for vague
// follow-ups; the remainder are filled by descending keyword score
// (ties broken by earlier position, making retrieval deterministic).
func Retrieve(idx Index, query string, topK int) []Chunk {
	if len(idx.Chunks) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = TopK
	}

	selected := make(map[int]struct{})
	var result []Chunk

	for _, c := range idx.Chunks {
		if len(result) >= 2 {
			break
		}
		selected[c.ID] = struct{}{}
		result = append(result, c)
	}

	terms := queryTerms(query)
	rest := make([]Chunk, 0, len(idx.Chunks))
	for _, c := range idx.Chunks {
		if _, ok := selected[c.ID]; !ok {
			rest = append(rest, c)
		}
	}
	scores := make(map[int]float64, len(rest))
	for _, c := range rest {
		scores[c.ID] = scoreTerms(c, terms)
	}
	// stable over the id-ordered slice: equal scores keep reading order
	sort.SliceStable(rest, func(i, j int) bool { return scores[rest[i].ID] > scores[rest[j].ID] })

	for _, c := range rest {
		if len(result) >= topK {
			break
		}
		if _, ok := selected[c.ID]; ok {
			continue
		}
		selected[c.ID] = struct{}{}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].WordStart < result[j].WordStart })
	return result
}

// RetrieveText is the caller-facing form: retrieved chunk texts joined
// with a visible separator, empty string for an empty index.
func RetrieveText(idx Index, query string, topK int) string {
	chunks := Retrieve(idx, query, topK)
	if len(chunks) == 0 {
		return ""
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, Separator)
}

// HeadText returns the first topK chunks in id order, used when no
// query is available to rank against.
func HeadText(idx Index, topK int) string {
	if topK <= 0 {
		topK = TopK
	}
	n := topK
	if n > len(idx.Chunks) {
		n = len(idx.Chunks)
	}
	texts := make([]string, 0, n)
	for _, c := range idx.Chunks[:n] {
		texts = append(texts, c.Text)
	}
	return strings.Join(texts, Separator)
}
