package ordmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSearchDelete(t *testing.T) {
	m := New[string]()
	require.NoError(t, m.Insert(5, "five"))
	require.NoError(t, m.Insert(1, "one"))
	require.NoError(t, m.Insert(9, "nine"))

	v, ok := m.Search(5)
	require.True(t, ok)
	assert.Equal(t, "five", v)

	err := m.Insert(5, "dup")
	require.Error(t, err)

	v, ok = m.Delete(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)
	_, ok = m.Search(1)
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestForEachOrdered(t *testing.T) {
	m := New[int]()
	keys := []int64{50, 10, 90, 30, 70}
	for _, k := range keys {
		require.NoError(t, m.Insert(k, int(k)))
	}
	var seen []int64
	m.ForEach(func(key int64, val int) bool {
		seen = append(seen, key)
		return true
	})
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestStableValuePointersAcrossDeletes(t *testing.T) {
	type box struct{ n int }
	m := New[*box]()
	ptrs := make(map[int64]*box)
	for i := int64(0); i < 50; i++ {
		b := &box{n: int(i)}
		ptrs[i] = b
		require.NoError(t, m.Insert(i, b))
	}
	rng := rand.New(rand.NewSource(1))
	order := rng.Perm(50)
	for _, i := range order[:25] {
		v, ok := m.Delete(int64(i))
		require.True(t, ok)
		assert.Same(t, ptrs[int64(i)], v)
	}
	for _, i := range order[25:] {
		v, ok := m.Search(int64(i))
		require.True(t, ok)
		assert.Same(t, ptrs[int64(i)], v)
	}
}
