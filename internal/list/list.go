// Package list implements the doubly linked list backing liteDB's LIST
// values (LPUSH/RPUSH/LPOP/RPOP/LRANGE/LTRIM/LSET/LEXISTS).
//
// Nodes carry a tagged Item rather than a bare string: the original C list is
// reused internally for both string and float payloads (a ZSET's
// predecessor representation, before the dedicated AVL index existed), and
// this implementation preserves that polymorphism even though only STRING
// payloads are ever client-observable through the wire protocol.
package list

const floatEpsilon = 1e-6

// Kind discriminates the payload carried by a list node.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInteger
)

// Item is the tagged payload stored in a single list node.
type Item struct {
	Kind  Kind
	Str   string
	Float float32
	Int   int32
}

func StringItem(s string) Item { return Item{Kind: KindString, Str: s} }

// Equal compares two items for the purposes of Contains/RemoveMatching*.
// Floats use an epsilon compare; strings and integers use exact compare.
// Items of differing Kind are never equal.
func (a Item) Equal(b Item) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindFloat:
		d := a.Float - b.Float
		if d < 0 {
			d = -d
		}
		return d < floatEpsilon
	case KindInteger:
		return a.Int == b.Int
	default:
		return false
	}
}

// Node is one element of the list.
type Node struct {
	prev, next *Node
	Item       Item
}

// List is a doubly linked sequence of Items with O(1) end mutation and O(n)
// indexed access. Invariants: head.prev == tail.next == nil, size == 0 iff
// head == tail == nil, and a forward walk from head visits exactly size
// nodes ending at tail.
type List struct {
	head, tail *Node
	size       int
}

// New returns an empty list.
func New() *List { return &List{} }

// Len reports the number of elements.
func (l *List) Len() int { return l.size }

// PushFront inserts item as the new head.
func (l *List) PushFront(item Item) {
	n := &Node{Item: item}
	if l.head == nil {
		l.head, l.tail = n, n
	} else {
		n.next = l.head
		l.head.prev = n
		l.head = n
	}
	l.size++
}

// PushBack inserts item as the new tail.
func (l *List) PushBack(item Item) {
	n := &Node{Item: item}
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	l.size++
}

// PopFront removes and returns the head item, or false if the list is empty.
func (l *List) PopFront() (Item, bool) {
	if l.head == nil {
		return Item{}, false
	}
	n := l.head
	if l.head.next != nil {
		l.head.next.prev = nil
		l.head = l.head.next
	} else {
		l.head, l.tail = nil, nil
	}
	l.size--
	return n.Item, true
}

// PopBack removes and returns the tail item, or false if the list is empty.
func (l *List) PopBack() (Item, bool) {
	if l.tail == nil {
		return Item{}, false
	}
	n := l.tail
	if l.tail.prev != nil {
		l.tail.prev.next = nil
		l.tail = l.tail.prev
	} else {
		l.head, l.tail = nil, nil
	}
	l.size--
	return n.Item, true
}

// nodeAt walks forward from head to the i-th node (0-based). Returns nil if
// i is out of [0, size).
func (l *List) nodeAt(i int) *Node {
	if i < 0 || i >= l.size {
		return nil
	}
	n := l.head
	for ; i > 0; i-- {
		n = n.next
	}
	return n
}

// Get returns the item at index i.
func (l *List) Get(i int) (Item, bool) {
	n := l.nodeAt(i)
	if n == nil {
		return Item{}, false
	}
	return n.Item, true
}

// Set overwrites the item at index i. Reports false if i is out of bounds.
func (l *List) Set(i int, item Item) bool {
	n := l.nodeAt(i)
	if n == nil {
		return false
	}
	n.Item = item
	return true
}

// Contains reports whether any element equals item.
func (l *List) Contains(item Item) bool {
	for n := l.head; n != nil; n = n.next {
		if n.Item.Equal(item) {
			return true
		}
	}
	return false
}

// Trim keeps only indices [start, end] inclusive, discarding the rest.
// Returns false if start or end is out of [0, size).
func (l *List) Trim(start, end int) bool {
	if start < 0 || end < 0 || start >= l.size || end >= l.size {
		return false
	}
	for i := 0; i < start; i++ {
		l.PopFront()
	}
	// size has shrunk by `start`; the remaining tail to drop is
	// (original size - 1 - end), counted from the new tail.
	toDropFromTail := (l.size + start) - 1 - end
	for i := 0; i < toDropFromTail; i++ {
		l.PopBack()
	}
	return true
}

// removeMatching walks from the head (fromHead) or from the tail, unlinking
// up to count (0 meaning "all") nodes whose Item equals item, and returns
// how many it removed.
func (l *List) removeMatching(item Item, count int, fromHead bool) int {
	amount := count
	if amount == 0 {
		amount = l.size
	}
	removed := 0

	var cur *Node
	if fromHead {
		cur = l.head
	} else {
		cur = l.tail
	}

	for cur != nil && removed < amount {
		var next *Node
		if fromHead {
			next = cur.next
		} else {
			next = cur.prev
		}

		if cur.Item.Equal(item) {
			if cur.prev != nil {
				cur.prev.next = cur.next
			} else {
				l.head = cur.next
			}
			if cur.next != nil {
				cur.next.prev = cur.prev
			} else {
				l.tail = cur.prev
			}
			l.size--
			removed++
		}
		cur = next
	}
	return removed
}

// RemoveMatchingFromHead removes up to count nodes equal to item, walking
// from the head. count == 0 means "remove all matches."
func (l *List) RemoveMatchingFromHead(item Item, count int) int {
	return l.removeMatching(item, count, true)
}

// RemoveMatchingFromTail removes up to count nodes equal to item, walking
// from the tail. count == 0 means "remove all matches."
func (l *List) RemoveMatchingFromTail(item Item, count int) int {
	return l.removeMatching(item, count, false)
}
