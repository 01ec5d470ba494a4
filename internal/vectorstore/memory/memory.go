package memory

import (
	"errors"
	"fmt"
	"sync"

	"rag/internal/domain"
	"rag/internal/ranker"
)

// snapshot is an immutable view of the cache; writers build a new one and swap it in.
type snapshot struct {
	entries map[string]domain.VectorEntry
	order   []string
}

// Storage is an in-memory vector cache using brute-force cosine ranking.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	snap      *snapshot
}

func NewStorage() *Storage {
	return &Storage{snap: emptySnapshot()}
}

func emptySnapshot() *snapshot {
	return &snapshot{entries: make(map[string]domain.VectorEntry)}
}

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.snap = emptySnapshot()
	return nil
}

func (s *Storage) Replace(entries []domain.VectorEntry) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	next := &snapshot{
		entries: make(map[string]domain.VectorEntry, len(entries)),
		order:   make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		if err := checkDimension(e, dim); err != nil {
			return err
		}
		if _, dup := next.entries[e.ID]; !dup {
			next.order = append(next.order, e.ID)
		}
		next.entries[e.ID] = e
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
	return nil
}

func (s *Storage) Upsert(entry domain.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkDimension(entry, s.dimension); err != nil {
		return err
	}
	cur := s.snap
	next := &snapshot{
		entries: make(map[string]domain.VectorEntry, len(cur.entries)+1),
		order:   cur.order,
	}
	for id, e := range cur.entries {
		next.entries[id] = e
	}
	if _, exists := cur.entries[entry.ID]; !exists {
		next.order = append(append([]string(nil), cur.order...), entry.ID)
	}
	next.entries[entry.ID] = entry
	s.snap = next
	return nil
}

// Search ranks all cached entries against vector. Ties keep insertion order.
func (s *Storage) Search(vector []float64, topK int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	candidates := make([]ranker.Candidate, len(snap.order))
	for i, id := range snap.order {
		candidates[i] = ranker.Candidate{ID: id, Vector: snap.entries[id].Vector}
	}
	scored, err := ranker.FindSimilar(vector, candidates, topK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, len(scored))
	for i, sc := range scored {
		e := snap.entries[sc.ID]
		results[i] = domain.RetrievalResult{ID: e.ID, Content: e.Content, Metadata: e.Metadata, Score: sc.Score}
	}
	return results, nil
}

func (s *Storage) Get(id string) (domain.VectorEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.snap.entries[id]
	return e, ok
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.order)
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = emptySnapshot()
	return nil
}

func checkDimension(e domain.VectorEntry, dimension int) error {
	if len(e.Vector) != dimension {
		return fmt.Errorf("entry %s: %w: got %d, want %d", e.ID, domain.ErrDimensionMismatch, len(e.Vector), dimension)
	}
	return nil
}
