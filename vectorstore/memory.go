package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryCollection is an in-process Collection using brute-force cosine similarity.
type MemoryCollection struct {
	mu    sync.RWMutex
	docs  map[string]Document
	order []string // insertion order, for deterministic Get
}

func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{docs: make(map[string]Document)}
}

func (m *MemoryCollection) Add(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if _, exists := m.docs[d.ID]; !exists {
			m.order = append(m.order, d.ID)
		}
		m.docs[d.ID] = d
	}
	return nil
}

func (m *MemoryCollection) Query(ctx context.Context, embedding []float32, n int, where Filter) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, id := range m.order {
		d := m.docs[id]
		if !where.matches(d.Metadata) {
			continue
		}
		matches = append(matches, Match{Document: d, Distance: 1 - cosineSimilarity(embedding, d.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (m *MemoryCollection) Get(ctx context.Context, where Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range m.order {
		if d := m.docs[id]; where.matches(d.Metadata) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryCollection) Delete(ctx context.Context, where Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		if where.matches(m.docs[id].Metadata) {
			delete(m.docs, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

func (m *MemoryCollection) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
