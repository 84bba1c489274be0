// Package value defines the tagged value stored in liteDB's keyspace.
//
// The original C implementation this server is modeled on carries a value as
// a raw void pointer plus an enum tag, so nothing at compile time prevents a
// STRING handler from reaching into a LIST's bytes. Go lets us do better: Kind
// is still carried explicitly (handlers switch on it, same as the original),
// but the four possible shapes live behind a closed struct so a client-facing
// command can never observe a value of the wrong Go type, only the wrong Kind.
package value

import (
	"github.com/dreamware/litedb/internal/hashmap"
	"github.com/dreamware/litedb/internal/list"
	"github.com/dreamware/litedb/internal/zset"
)

// stringMap is hashmap's generic table instantiated for HASH field storage,
// aliased so the rest of this package doesn't repeat the instantiation.
type stringMap = hashmap.Map[string]

func newStringMap() *stringMap { return hashmap.New[string]() }

// Kind discriminates the shape of a Value. Only KindString, KindHash,
// KindList, and KindSortedSet are reachable from client commands;
// KindInteger and KindFloat have no constructor here and never appear as a
// top-level keyspace value (list nodes tag their payloads with list.Kind,
// and sorted-set scores are plain float64 values).
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindHash
	KindList
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSortedSet:
		return "sorted_set"
	default:
		return "unknown"
	}
}

// Value is the tagged union stored under every key in the primary keyspace.
// Exactly one of the typed fields is meaningful, selected by Kind; the rest
// are left at their zero value. Callers should use the New* constructors
// rather than building a Value by hand, so Kind and the populated field can
// never drift apart.
type Value struct {
	Kind Kind

	str  string
	hash *Hash
	list *list.List
	zset *zset.Set
}

// Hash is the value behind HSET/HGET/HDEL/HGETALL/HEXISTS: a field->string
// map. It is a thin wrapper so the keyspace package doesn't need to know
// hashmap's generic instantiation.
type Hash struct {
	fields *stringMap
}

// Get returns the value stored at field, if any.
func (h *Hash) Get(field string) (string, bool) { return h.fields.Get(field) }

// Set stores value under field, overwriting any previous value.
func (h *Hash) Set(field, val string) { h.fields.Set(field, val) }

// Del removes field, reporting whether it was present.
func (h *Hash) Del(field string) bool {
	_, ok := h.fields.Remove(field)
	return ok
}

// Exists reports whether field is present.
func (h *Hash) Exists(field string) bool {
	_, ok := h.fields.Get(field)
	return ok
}

// Len reports the number of fields.
func (h *Hash) Len() int { return h.fields.Len() }

// All iterates every (field, value) pair, for HGETALL.
func (h *Hash) All() func(yield func(string, string) bool) { return h.fields.All() }

func newHash() *Hash { return &Hash{fields: newStringMap()} }

func NewString(s string) Value { return Value{Kind: KindString, str: s} }

func NewHash() Value { return Value{Kind: KindHash, hash: newHash()} }

func NewList() Value { return Value{Kind: KindList, list: list.New()} }

func NewSortedSet() Value { return Value{Kind: KindSortedSet, zset: zset.New()} }

// Str returns the STRING payload. Panics if Kind != KindString; callers
// must type-guard via Kind before calling, exactly as the command engine
// does.
func (v Value) Str() string {
	mustBe(v, KindString)
	return v.str
}

func (v Value) HashVal() *Hash {
	mustBe(v, KindHash)
	return v.hash
}

func (v Value) ListVal() *list.List {
	mustBe(v, KindList)
	return v.list
}

func (v Value) SortedSetVal() *zset.Set {
	mustBe(v, KindSortedSet)
	return v.zset
}

func mustBe(v Value, k Kind) {
	if v.Kind != k {
		panic("value: wrong kind accessed: have " + v.Kind.String() + " want " + k.String())
	}
}
