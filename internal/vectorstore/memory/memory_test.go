package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/domain"
	"rag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

func entry(id string, vec ...float64) domain.VectorEntry {
	return domain.VectorEntry{ID: id, Content: "content " + id, Metadata: map[string]any{"id": id}, Vector: vec}
}

func TestStorage_Init(t *testing.T) {
	s := NewStorage()
	assert.Error(t, s.Init(0))
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(entry("a", 1, 0)))

	require.NoError(t, s.Init(2))

	assert.Equal(t, 0, s.Len())
}

func TestStorage_UpsertAndGet(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))

	require.NoError(t, s.Upsert(entry("a", 1, 0)))
	require.NoError(t, s.Upsert(entry("b", 0, 1)))
	require.NoError(t, s.Upsert(entry("a", 0.6, 0.8)))

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float64{0.6, 0.8}, got.Vector)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStorage_RejectsWrongDimension(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(3))

	err := s.Upsert(entry("a", 1, 0))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = s.Replace([]domain.VectorEntry{entry("a", 1, 0, 0), entry("b", 1)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, s.Len(), "failed replace must not install a partial cache")
}

func TestStorage_Search(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Replace([]domain.VectorEntry{
		entry("x", 0, 1),
		entry("a", 1, 0),
		entry("b", 1, 0),
	}))

	results, err := s.Search([]float64{1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-12)
	assert.Equal(t, "content a", results[0].Content)
	assert.Equal(t, "a", results[0].Metadata["id"])
}

func TestStorage_SearchDimensionMismatch(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(entry("a", 1, 0)))

	_, err := s.Search([]float64{1, 0, 0}, 1)

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStorage_ReplaceDiscardsPrevious(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(entry("old", 1, 0)))

	require.NoError(t, s.Replace([]domain.VectorEntry{entry("new", 0, 1)}))

	_, ok := s.Get("old")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStorage_Clear(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(entry("a", 1, 0)))

	require.NoError(t, s.Clear())

	assert.Equal(t, 0, s.Len())
	results, err := s.Search([]float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStorage_ConcurrentReplaceNeverTorn(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(1))

	gen := func(prefix string) []domain.VectorEntry {
		out := make([]domain.VectorEntry, 10)
		for i := range out {
			out[i] = entry(prefix+string(rune('0'+i)), 1)
		}
		return out
	}
	oldSet, newSet := gen("old-"), gen("new-")
	require.NoError(t, s.Replace(oldSet))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				_ = s.Replace(newSet)
			} else {
				_ = s.Replace(oldSet)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		results, err := s.Search([]float64{1}, 0)
		require.NoError(t, err)
		require.Len(t, results, 10)
		prefix := results[0].ID[:4]
		for _, r := range results {
			assert.Equal(t, prefix, r.ID[:4])
		}
	}
	wg.Wait()
}
