// Package zset implements liteDB's sorted set: a name->score hash index
// fronting an avltree secondary index ordered by (score, name), exactly the
// two-structure design in original_source/ZSet/ZSet.c. ZADD/ZREM/ZSCORE go
// through the hash index; ZQUERY walks the tree.
package zset

import (
	"github.com/dreamware/litedb/internal/avltree"
	"github.com/dreamware/litedb/internal/hashmap"
)

// Node is a sorted-set member as seen through the secondary index: its
// exported Score and Name fields are read by ZQUERY's range scan.
type Node = avltree.Node

type entry struct {
	score float64
	node  *Node
}

// Set is a sorted set: unique member names, each carrying a float64 score,
// rank-queryable in score order.
type Set struct {
	byName *hashmap.Map[entry]
	tree   *avltree.Tree
}

// New returns an empty sorted set.
func New() *Set {
	return &Set{byName: hashmap.New[entry](), tree: avltree.New()}
}

// Len reports the number of members.
func (s *Set) Len() int { return s.byName.Len() }

// Add inserts name with score if it is not already a member, or updates its
// score if it is. Per the original's zset_add, an update is a delete of the
// old tree node followed by a fresh insert — the tree has no in-place
// re-key operation because a node's position is a function of its key.
// Reports true iff name was not already a member.
func (s *Set) Add(name string, score float64) bool {
	if e, ok := s.byName.Get(name); ok {
		if e.score == score {
			return false
		}
		s.tree.Delete(s.tree.SearchExact(e.score, name))
		newNode := s.tree.Insert(score, name)
		s.byName.Set(name, entry{score: score, node: newNode})
		return false
	}
	newNode := s.tree.Insert(score, name)
	s.byName.Insert(name, entry{score: score, node: newNode})
	return true
}

// Remove deletes name from the set, reporting whether it was present. The
// tree node is deleted first (per zset_remove, it needs the key before the
// hash entry that owns it is freed), then the hash entry.
func (s *Set) Remove(name string) bool {
	e, ok := s.byName.Get(name)
	if !ok {
		return false
	}
	s.tree.Delete(s.tree.SearchExact(e.score, name))
	s.byName.Remove(name)
	return true
}

// Score returns name's score, if it is a member.
func (s *Set) Score(name string) (float64, bool) {
	e, ok := s.byName.Get(name)
	if !ok {
		return 0, false
	}
	return e.score, true
}

// Min returns the member with the smallest (score, name) pair, or nil if
// the set is empty. The rank-mode ZQUERY walk starts here.
func (s *Set) Min() *Node { return s.tree.Min() }

// SearchGE returns the member with the smallest (score, name) pair that is
// >= the given pair, or nil if none qualifies. The score-mode ZQUERY walk
// starts here.
func (s *Set) SearchGE(score float64, name string) *Node { return s.tree.SearchGE(score, name) }

// SearchExact returns the member with exactly the given (score, name) pair.
// The pair-mode ZQUERY walk starts here.
func (s *Set) SearchExact(score float64, name string) *Node { return s.tree.SearchExact(score, name) }

// Offset walks offset positions through score order starting at n. A
// single ZQUERY response is produced by repeatedly calling Offset(cur, 1)
// to advance one member at a time, matching avl_iterate_response.
func Offset(n *Node, offset int) *Node { return avltree.Offset(n, offset) }
