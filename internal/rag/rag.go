// Package rag implements the retrieval layer that lets arbitrarily
// large documents act as chat context: documents are split into
// overlapping word chunks, chunks are scored against a query by
// keyword overlap, and the top-K chunks are re-assembled in reading
// order for prompt injection.
package rag

// Chunker defaults. step = ChunkSize - ChunkOverlap must stay positive.
const (
	ChunkSize    = 400 // words per chunk
	ChunkOverlap = 80  // words shared between adjacent chunks
	TopK         = 8   // chunks injected into the prompt
)

// Separator joins retrieved chunk texts in prompt output.
const Separator = "\n\n---\n\n"

// Chunk is an immutable word-window slice of a document.
type Chunk struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	WordStart int    `json:"word_start"`
}

// Index is the in-memory RAG index for one document. It is never
// persisted; a reload requires re-uploading the source file.
type Index struct {
	Chunks     []Chunk `json:"chunks"`
	Subject    string  `json:"subject"`
	TotalWords int     `json:"total_words"`
}
