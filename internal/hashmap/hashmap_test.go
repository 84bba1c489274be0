package hashmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	m := New[string]()

	ok := m.Insert("a", "1")
	require.True(t, ok)
	assert.Equal(t, 1, m.Len())

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	// inserting an existing key fails and leaves the table untouched
	ok = m.Insert("a", "2")
	assert.False(t, ok)
	v, _ = m.Get("a")
	assert.Equal(t, "1", v)

	removed, ok := m.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "1", removed)
	assert.Equal(t, 0, m.Len())

	_, ok = m.Get("a")
	assert.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	m := New[int]()
	m.Set("k", 1)
	m.Set("k", 2)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, m.Len())
}

func TestResizeKeepsAllEntries(t *testing.T) {
	m := New[int]()
	const n = 5000
	for i := 0; i < n; i++ {
		ok := m.Insert(keyFor(i), i)
		require.True(t, ok)
	}
	assert.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Get(keyFor(i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestAllVisitsEveryEntry(t *testing.T) {
	m := New[int]()
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Insert(k, v)
	}
	got := map[string]int{}
	for k, v := range m.All() {
		got[k] = v
	}
	assert.Equal(t, want, got)
}

func TestClearResetsTable(t *testing.T) {
	m := New[int]()
	m.Insert("a", 1)
	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, ok := m.Get("a")
	assert.False(t, ok)
}

func keyFor(i int) string {
	// deterministic distinct keys, no fmt dependency needed in the hot loop
	b := make([]byte, 0, 8)
	for i > 0 || len(b) == 0 {
		b = append(b, byte('a'+i%26))
		i /= 26
	}
	return string(b)
}
