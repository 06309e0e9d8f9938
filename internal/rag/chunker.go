package rag

import "strings"

// BuildIndex splits docContent into overlapping word chunks using the
// package defaults (400-word windows, 80-word overlap).
func BuildIndex(docContent, subject string) Index {
	return BuildIndexSized(docContent, subject, ChunkSize, ChunkOverlap)
}

// BuildIndexSized is BuildIndex with explicit window geometry. overlap
// must be smaller than size so the window always advances.
func BuildIndexSized(docContent, subject string, size, overlap int) Index {
	words := strings.Fields(docContent)
	step := size - overlap

	var chunks []Chunk
	id := 0
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			ID:        id,
			Text:      strings.Join(words[i:end], " "),
			WordStart: i,
		})
		id++
	}
	return Index{Chunks: chunks, Subject: subject, TotalWords: len(words)}
}
