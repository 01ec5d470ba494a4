package vectorstore

import "rag/internal/domain"

// Storage caches document vectors and ranks them against a query vector.
type Storage interface {
	Init(dimension int) error
	// Replace discards every cached entry and installs entries in one step.
	Replace(entries []domain.VectorEntry) error
	Upsert(entry domain.VectorEntry) error
	Search(vector []float64, topK int) ([]domain.RetrievalResult, error)
	Get(id string) (domain.VectorEntry, bool)
	Len() int
	Clear() error
}
