package server

import (
	"sync"
	"time"

	"github.com/blevesearch/bleve"
)

// docEntry is what gets indexed per document for the admin search.
type docEntry struct {
	Filename  string    `json:"filename"`
	Subject   string    `json:"subject"`
	Category  string    `json:"category"`
	UserEmail string    `json:"user_email"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DocSearch is an in-memory full-text index over uploaded documents.
// It is rebuilt from Postgres on startup and updated on every upload;
// losing it costs nothing but a restart's worth of reindexing.
type DocSearch struct {
	idx  bleve.Index
	meta map[string]docEntry
	mu   sync.RWMutex
}

func NewDocSearch() (*DocSearch, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &DocSearch{idx: idx, meta: make(map[string]docEntry)}, nil
}

func (s *DocSearch) Index(docID string, entry docEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[docID] = entry
	return s.idx.Index(docID, entry)
}

func (s *DocSearch) Delete(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, docID)
	return s.idx.Delete(docID)
}

// Search runs a query-string search and returns up to k hits.
func (s *DocSearch) Search(q string, k int) ([]SearchHit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		entry := s.meta[hit.ID]
		out = append(out, SearchHit{
			DocumentID: hit.ID,
			Filename:   entry.Filename,
			Subject:    entry.Subject,
			UserEmail:  entry.UserEmail,
			Score:      hit.Score,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out, nil
}
