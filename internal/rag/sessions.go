package rag

import "sync"

// Sessions associates at most one live RAG index with each chat
// session. Indexes are memory-only: a process restart or session
// reload loses them and the caller must rebuild from the source file.
//
// Uploads can race: a slow classification+build for an old file must
// not overwrite the index of a newer upload. Begin hands out a
// monotonically increasing generation per session and Commit discards
// results whose generation is stale.
type Sessions struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	index     *Index
	nextGen   uint64
	committed uint64
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]*sessionEntry)}
}

// Begin allocates a build generation for the session.
func (s *Sessions) Begin(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sessionID)
	e.nextGen++
	return e.nextGen
}

// Commit installs the index built under gen. It reports false, without
// touching state, when a newer build has already committed.
func (s *Sessions) Commit(sessionID string, gen uint64, idx *Index) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sessionID)
	if gen <= e.committed {
		return false
	}
	e.committed = gen
	e.index = idx
	return true
}

// Get returns the live index for the session, if any.
func (s *Sessions) Get(sessionID string) (*Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || e.index == nil {
		return nil, false
	}
	return e.index, true
}

// Clear drops the session's index and generation state.
func (s *Sessions) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

func (s *Sessions) entry(sessionID string) *sessionEntry {
	e, ok := s.entries[sessionID]
	if !ok {
		e = &sessionEntry{}
		s.entries[sessionID] = e
	}
	return e
}
