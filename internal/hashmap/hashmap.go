// Package hashmap implements the open-chained, power-of-two hash table that
// backs every keyspace in liteDB: the primary map, each HASHMAP field table,
// and the name->score index inside a sorted set.
//
// The table is generic over its value type (see rogpeppe's anyhash.Map for
// the worked example this is patterned on: a stateless hash function plus a
// bucket-chained table), but unlike anyhash.Map it is keyed on plain strings
// and caches the hash on each node rather than rehashing on every probe —
// that cache is load-bearing, not an optimization for its own sake: Get and
// Remove both short-circuit a chain walk on a hash mismatch before ever
// touching the string compare.
package hashmap

import "iter"

const (
	initialCapacityPow2 = 10 // 2^10 buckets at construction, per spec
	maxLoadFactor        = 0.75
)

// node is one entry in a bucket chain.
type node[V any] struct {
	key  string
	val  V
	hash uint32
	next *node[V]
}

// Map is a bucket-chained hash table with a capacity that is always a power
// of two, resized by doubling whenever the load factor is exceeded or the
// table is saturated. It is not safe for concurrent use — every Map in
// liteDB is owned by the single-threaded engine goroutine.
type Map[V any] struct {
	buckets []*node[V]
	size    int
}

// New returns an empty Map with an initial capacity of 2^10 buckets,
// matching the original hash table's starting size.
func New[V any]() *Map[V] {
	return &Map[V]{buckets: make([]*node[V], 1<<initialCapacityPow2)}
}

// Len reports the number of entries currently stored.
func (m *Map[V]) Len() int { return m.size }

// hashKey computes the original's djb2 hash: h = 31*h + c over every byte
// of the key, matching the cached-hash field the original hash table
// carries on each node.
func hashKey(key string) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = 31*h + uint32(key[i])
	}
	return h
}

func (m *Map[V]) index(hash uint32) int {
	return int(hash) & (len(m.buckets) - 1)
}

// Get returns the value stored under key, if any.
func (m *Map[V]) Get(key string) (V, bool) {
	hash := hashKey(key)
	for n := m.buckets[m.index(hash)]; n != nil; n = n.next {
		if n.hash == hash && n.key == key {
			return n.val, true
		}
	}
	var zero V
	return zero, false
}

// Insert adds key->val and reports true, or reports false without modifying
// the table if key is already present. Updating an existing key is the
// caller's job: remove then insert.
func (m *Map[V]) Insert(key string, val V) bool {
	if _, ok := m.Get(key); ok {
		return false
	}
	if m.size >= len(m.buckets) || m.loadFactor() > maxLoadFactor {
		m.resize()
	}
	hash := hashKey(key)
	idx := m.index(hash)
	m.buckets[idx] = &node[V]{key: key, val: val, hash: hash, next: m.buckets[idx]}
	m.size++
	return true
}

// Set inserts key->val, overwriting any existing value for key. Unlike
// Insert, Set never fails; it is the update-semantics convenience callers
// like HSET build their overwrite behavior on (remove-then-insert).
func (m *Map[V]) Set(key string, val V) {
	m.Remove(key)
	m.Insert(key, val)
}

// Remove deletes key from the table and reports whether it was present.
func (m *Map[V]) Remove(key string) (V, bool) {
	hash := hashKey(key)
	idx := m.index(hash)
	var prev *node[V]
	for n := m.buckets[idx]; n != nil; n = n.next {
		if n.hash == hash && n.key == key {
			if prev == nil {
				m.buckets[idx] = n.next
			} else {
				prev.next = n.next
			}
			m.size--
			return n.val, true
		}
		prev = n
	}
	var zero V
	return zero, false
}

func (m *Map[V]) loadFactor() float64 {
	return float64(m.size) / float64(len(m.buckets))
}

// resize doubles the bucket array and relinks every node. Capacity must
// remain a power of two at all times; this is the only place capacity
// changes.
func (m *Map[V]) resize() {
	newBuckets := make([]*node[V], len(m.buckets)*2)
	mask := len(newBuckets) - 1
	for _, head := range m.buckets {
		for n := head; n != nil; {
			next := n.next
			idx := int(n.hash) & mask
			n.next = newBuckets[idx]
			newBuckets[idx] = n
			n = next
		}
	}
	m.buckets = newBuckets
}

// All iterates every (key, value) pair in unspecified order. Mutating the
// map while iterating is as unsafe as it is for a builtin map.
func (m *Map[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, head := range m.buckets {
			for n := head; n != nil; n = n.next {
				if !yield(n.key, n.val) {
					return
				}
			}
		}
	}
}

// Clear empties the table and resets it to the initial capacity, releasing
// every node for garbage collection. Used by FLUSHALL to tear down the
// entire keyspace in one call.
func (m *Map[V]) Clear() {
	m.buckets = make([]*node[V], 1<<initialCapacityPow2)
	m.size = 0
}
