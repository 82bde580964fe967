package search

import (
	"context"
	"sort"
	"sync"
)

// MemorySearcher keeps the index in process. Used for local runs and tests.
type MemorySearcher struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{docs: make(map[string]Document)}
}

func (m *MemorySearcher) Upsert(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemorySearcher) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemorySearcher) Search(_ context.Context, query string, limit int) ([]Hit, error) {
	m.mu.RLock()
	hits := make([]Hit, 0)
	for id, doc := range m.docs {
		if s := score(query, doc); s > 0 {
			hits = append(hits, Hit{ID: id, Score: s})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemorySearcher) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]Document)
	return nil
}

func (m *MemorySearcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
