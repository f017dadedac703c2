package sparse

import "sort"

// maxKeys is the B-tree order: nodes hold up to maxKeys separator
// segments and maxKeys+1 children.
const maxKeys = 15

type btreeNode[T any] struct {
	keys     []*Segment[T]
	children []*btreeNode[T]
}

func (n *btreeNode[T]) leaf() bool { return len(n.children) == 0 }

func (n *btreeNode[T]) full() bool { return len(n.keys) == maxKeys }

// upper returns the number of keys whose Left is <= index.
func (n *btreeNode[T]) upper(index uint32) int {
	return sort.Search(len(n.keys), func(i int) bool { return n.keys[i].Left > index })
}

// BTree indexes a chain's segments by Left. Keys are segment pointers and
// Left is read live, so a segment's position in the tree stays valid as
// long as the relative order of segments does not change.
type BTree[T any] struct {
	root  *btreeNode[T]
	count int
}

// NewBTree returns an empty tree.
func NewBTree[T any]() *BTree[T] {
	return &BTree[T]{root: &btreeNode[T]{}}
}

// Len returns the number of indexed segments.
func (t *BTree[T]) Len() int { return t.count }

// floor returns the segment with the greatest Left <= index.
func (t *BTree[T]) floor(index uint32) *Segment[T] {
	var best *Segment[T]
	n := t.root
	for n != nil {
		i := n.upper(index)
		if i > 0 {
			best = n.keys[i-1]
			if best.Left == index {
				return best
			}
		}
		if n.leaf() {
			break
		}
		n = n.children[i]
	}
	return best
}

// first returns the segment with the smallest Left.
func (t *BTree[T]) first() *Segment[T] {
	n := t.root
	for !n.leaf() {
		n = n.children[0]
	}
	if len(n.keys) == 0 {
		return nil
	}
	return n.keys[0]
}

// Find locates index. When a segment covers index it is returned as
// matchOrNext with its predecessor as prev. Otherwise prev is the closest
// segment before index and matchOrNext the closest one after it; no
// segment between them covers index.
func (t *BTree[T]) Find(index uint32) (prev, matchOrNext *Segment[T]) {
	f := t.floor(index)
	if f == nil {
		return nil, t.first()
	}
	if f.Covers(index) {
		if f.Left == 0 {
			return nil, f
		}
		return t.floor(f.Left - 1), f
	}
	return f, f.Next
}

// Add inserts seg. A full root is split before descending so the insert
// always lands in a non-full node.
func (t *BTree[T]) Add(seg *Segment[T]) {
	if t.root.full() {
		old := t.root
		t.root = &btreeNode[T]{children: []*btreeNode[T]{old}}
		t.splitChild(t.root, 0)
	}
	t.insertNonFull(t.root, seg)
	t.count++
}

func (t *BTree[T]) insertNonFull(n *btreeNode[T], seg *Segment[T]) {
	for {
		i := n.upper(seg.Left)
		if n.leaf() {
			n.keys = append(n.keys, nil)
			copy(n.keys[i+1:], n.keys[i:])
			n.keys[i] = seg
			return
		}
		if n.children[i].full() {
			t.splitChild(n, i)
			if seg.Left >= n.keys[i].Left {
				i++
			}
		}
		n = n.children[i]
	}
}

// splitChild splits the full child at position i, promoting its median
// key into parent.
func (t *BTree[T]) splitChild(parent *btreeNode[T], i int) {
	child := parent.children[i]
	mid := maxKeys / 2
	median := child.keys[mid]

	right := &btreeNode[T]{keys: append([]*Segment[T](nil), child.keys[mid+1:]...)}
	if !child.leaf() {
		right.children = append([]*btreeNode[T](nil), child.children[mid+1:]...)
		child.children = child.children[:mid+1]
	}
	child.keys = child.keys[:mid]

	parent.keys = append(parent.keys, nil)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = median

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right
}

// SwapSegment replaces old with seg in place. Both must share the same
// Left. Reports whether old was found.
func (t *BTree[T]) SwapSegment(old, seg *Segment[T]) bool {
	n := t.root
	for n != nil {
		i := n.upper(old.Left)
		if i > 0 && n.keys[i-1] == old {
			n.keys[i-1] = seg
			return true
		}
		if n.leaf() {
			return false
		}
		n = n.children[i]
	}
	return false
}

// Walk visits segments in key order until fn returns false.
func (t *BTree[T]) Walk(fn func(*Segment[T]) bool) {
	t.walk(t.root, fn)
}

func (t *BTree[T]) walk(n *btreeNode[T], fn func(*Segment[T]) bool) bool {
	for i, k := range n.keys {
		if !n.leaf() && !t.walk(n.children[i], fn) {
			return false
		}
		if !fn(k) {
			return false
		}
	}
	if !n.leaf() {
		return t.walk(n.children[len(n.keys)], fn)
	}
	return true
}

// Depth returns the height of the tree (1 for a single leaf).
func (t *BTree[T]) Depth() int {
	d := 1
	for n := t.root; !n.leaf(); n = n.children[0] {
		d++
	}
	return d
}
