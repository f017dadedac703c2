package sparse

import (
	"fmt"
)

// locator finds segments for a chain. Exactly one variant is active: the
// last-used cache for short chains, or a B-tree once the chain is long.
type locator[T any] interface {
	locatorKind() string
}

type lastUsed[T any] struct {
	seg *Segment[T]
}

func (*lastUsed[T]) locatorKind() string { return "last-used" }

type treeIndex[T any] struct {
	tree *BTree[T]
}

func (*treeIndex[T]) locatorKind() string { return "btree" }

// Chain owns a linked list of segments.
type Chain[T any] struct {
	traits Traits[T]
	cfg    Config
	head   *Segment[T]
	count  int
	loc    locator[T]
}

// NewChain creates a chain with an empty head segment at 0.
func NewChain[T any](tr Traits[T], cfg Config, capacityHint uint32) (*Chain[T], error) {
	head, err := AllocateSegment(cfg, tr, 0, 0, capacityHint, nil)
	if err != nil {
		return nil, err
	}
	return &Chain[T]{traits: tr, cfg: cfg, head: head, count: 1, loc: &lastUsed[T]{seg: head}}, nil
}

// NewChainFrom creates a chain whose head holds vals at [0, len(vals)).
func NewChainFrom[T any](tr Traits[T], cfg Config, vals []T) (*Chain[T], error) {
	c, err := NewChain(tr, cfg, uint32(len(vals)))
	if err != nil {
		return nil, err
	}
	copy(c.head.Elements, vals)
	c.head.Length = uint32(len(vals))
	return c, nil
}

// Traits returns the element traits.
func (c *Chain[T]) Traits() Traits[T] { return c.traits }

// Config returns the chain configuration.
func (c *Chain[T]) Config() Config { return c.cfg }

// Head returns the first segment.
func (c *Chain[T]) Head() *Segment[T] { return c.head }

// Count returns the number of segments.
func (c *Chain[T]) Count() int { return c.count }

// Indexed reports whether the B-tree locator is active.
func (c *Chain[T]) Indexed() bool {
	_, ok := c.loc.(*treeIndex[T])
	return ok
}

// LocatorKind names the active locator.
func (c *Chain[T]) LocatorKind() string { return c.loc.locatorKind() }

// DumpIndex drops the B-tree and returns to the last-used cache.
func (c *Chain[T]) DumpIndex() {
	c.loc = &lastUsed[T]{seg: c.head}
}

func (c *Chain[T]) ensureIndex() {
	if _, ok := c.loc.(*treeIndex[T]); ok {
		return
	}
	if !c.cfg.wantsTree(c.count) {
		return
	}
	tree := NewBTree[T]()
	for s := c.head; s != nil; s = s.Next {
		tree.Add(s)
	}
	c.loc = &treeIndex[T]{tree: tree}
}

// Find locates index with BTree.Find semantics: (pred, covering segment)
// when index is stored, else (closest before, closest after).
func (c *Chain[T]) Find(index uint32) (prev, matchOrNext *Segment[T]) {
	c.ensureIndex()
	switch loc := c.loc.(type) {
	case *treeIndex[T]:
		return loc.tree.Find(index)
	case *lastUsed[T]:
		var p *Segment[T]
		for s := c.head; s != nil; s = s.Next {
			if s.Covers(index) {
				loc.seg = s
				return p, s
			}
			if s.Left > index {
				return p, s
			}
			p = s
		}
		return p, nil
	}
	panic("sparse: unknown locator")
}

// Lookup returns the segment covering index, using the last-used cache
// when it hits.
func (c *Chain[T]) Lookup(index uint32) *Segment[T] {
	if lu, ok := c.loc.(*lastUsed[T]); ok && lu.seg != nil && lu.seg.Covers(index) {
		return lu.seg
	}
	_, s := c.Find(index)
	if s != nil && s.Covers(index) {
		return s
	}
	return nil
}

// floor returns the segment with the greatest Left <= index and its
// predecessor.
func (c *Chain[T]) floor(index uint32) (prev, seg *Segment[T]) {
	p, m := c.Find(index)
	if m != nil && m.Covers(index) {
		return p, m
	}
	if p == nil {
		return nil, nil
	}
	if p.Left == 0 {
		return nil, p
	}
	return c.floorOnly(p.Left - 1), p
}

func (c *Chain[T]) floorOnly(index uint32) *Segment[T] {
	p, m := c.Find(index)
	if m != nil && m.Covers(index) {
		return m
	}
	return p
}

// Get returns the element at index and whether it is present.
func (c *Chain[T]) Get(index uint32) (T, bool) {
	s := c.Lookup(index)
	if s == nil {
		return c.traits.Missing, false
	}
	v := s.At(index)
	if c.traits.IsMissing(v) {
		return c.traits.Missing, false
	}
	return v, true
}

// Has reports whether index holds a non-missing element.
func (c *Chain[T]) Has(index uint32) bool {
	_, ok := c.Get(index)
	return ok
}

// Set stores v at index, growing a segment or inserting a new one. On
// error the chain is unchanged.
func (c *Chain[T]) Set(index uint32, v T) error {
	if uint64(index) >= MaxLength {
		return fmt.Errorf("sparse: index %d out of range", index)
	}
	if s := c.Lookup(index); s != nil {
		s.Elements[index-s.Left] = v
		return nil
	}
	prev, f := c.floor(index)
	if f == nil {
		// index precedes the head.
		seg, err := AllocateSegment(c.cfg, c.traits, index, 1, 1, c.head)
		if err != nil {
			return err
		}
		seg.Elements[0] = v
		c.InsertSegment(nil, seg)
		return nil
	}
	if uint64(index) < f.Limit() {
		f.Put(index, v)
		return nil
	}
	newLength := uint64(index) - uint64(f.Left) + 1
	room := maxRoom(f.Left, f.Next)
	if newLength <= room && newLength <= 2*uint64(f.Size())+16 {
		grown, err := GrowByMinMax(c.cfg, c.traits, f, newLength, max(newLength, uint64(f.Size())*3/2))
		if err != nil {
			return err
		}
		grown.Put(index, v)
		c.Replace(prev, f, grown)
		return nil
	}
	seg, err := AllocateSegment(c.cfg, c.traits, index, 1, 1, f.Next)
	if err != nil {
		return err
	}
	seg.Elements[0] = v
	c.InsertSegment(f, seg)
	return nil
}

// Delete turns index into a hole. Segment lengths are kept.
func (c *Chain[T]) Delete(index uint32) {
	if s := c.Lookup(index); s != nil {
		s.Elements[index-s.Left] = c.traits.Missing
	}
}

// InsertSegment links seg after prev, or as the new head when prev is nil.
// seg.Next must already point at the successor.
func (c *Chain[T]) InsertSegment(prev, seg *Segment[T]) {
	if prev == nil {
		seg.Next = c.head
		c.head = seg
	} else {
		seg.Next = prev.Next
		prev.Next = seg
	}
	c.count++
	switch loc := c.loc.(type) {
	case *treeIndex[T]:
		loc.tree.Add(seg)
	case *lastUsed[T]:
		loc.seg = seg
	}
}

// Replace swaps old for seg (same Left) after prev.
func (c *Chain[T]) Replace(prev, old, seg *Segment[T]) {
	seg.Next = old.Next
	if prev == nil {
		c.head = seg
	} else {
		prev.Next = seg
	}
	switch loc := c.loc.(type) {
	case *treeIndex[T]:
		if !loc.tree.SwapSegment(old, seg) {
			c.DumpIndex()
		}
	case *lastUsed[T]:
		loc.seg = seg
	}
}

// Truncate drops everything at and after newLength. When newLength falls
// inside the last segment only that segment shrinks and the index is kept.
func (c *Chain[T]) Truncate(newLength uint32) {
	if newLength > 0 {
		if last := c.floorOnly(newLength - 1); last != nil && last.Next == nil {
			last.Truncate(c.traits, newLength)
			return
		}
	}
	var prev *Segment[T]
	for s := c.head; s != nil; s = s.Next {
		if s.Left >= newLength {
			if prev == nil {
				c.head = &Segment[T]{}
				c.count = 1
			} else {
				prev.Next = nil
			}
			break
		}
		s.Truncate(c.traits, newLength)
		prev = s
	}
	c.recount()
	c.DumpIndex()
}

func (c *Chain[T]) recount() {
	n := 0
	for s := c.head; s != nil; s = s.Next {
		n++
	}
	c.count = n
}

// ShiftFrom adds delta to Left of seg and every segment after it. The
// caller guarantees the result keeps segments ordered and in range.
func (c *Chain[T]) ShiftFrom(seg *Segment[T], delta int64) {
	for s := seg; s != nil; s = s.Next {
		s.Left = uint32(int64(s.Left) + delta)
	}
	c.DumpIndex()
}

// EnsureHeadAtZero restores head.Left == 0 by prepending an empty head.
func (c *Chain[T]) EnsureHeadAtZero() {
	if c.head.Left == 0 {
		return
	}
	c.InsertSegment(nil, &Segment[T]{Left: 0, Next: c.head})
}

// Each visits segments in order until fn returns false.
func (c *Chain[T]) Each(fn func(*Segment[T]) bool) {
	for s := c.head; s != nil; s = s.Next {
		if !fn(s) {
			return
		}
	}
}

// Last returns the final segment.
func (c *Chain[T]) Last() *Segment[T] {
	s := c.head
	for s.Next != nil {
		s = s.Next
	}
	return s
}

// End returns the exclusive end of the highest stored slot.
func (c *Chain[T]) End() uint64 {
	return c.Last().End()
}

// IsDense reports whether the chain is one head segment starting at 0.
func (c *Chain[T]) IsDense() bool {
	return c.head.Next == nil && c.head.Left == 0
}

// HasNoHolesBelow reports whether every index in [0, n) holds an element.
func (c *Chain[T]) HasNoHolesBelow(n uint32) bool {
	if n == 0 {
		return true
	}
	h := c.head
	if h.Left != 0 || h.Length < n {
		return false
	}
	for _, v := range h.Elements[:n] {
		if c.traits.IsMissing(v) {
			return false
		}
	}
	return true
}

// Values copies [0, n) into a slice, with Missing for holes.
func (c *Chain[T]) Values(n uint32) []T {
	out := make([]T, n)
	fill(out, c.traits.Missing)
	for s := c.head; s != nil && s.Left < n; s = s.Next {
		end := uint32(min(s.End(), uint64(n)))
		copy(out[s.Left:end], s.Elements[:end-s.Left])
	}
	return out
}

// Reset replaces the contents with vals at [0, len(vals)). The new head is
// allocated before anything is released.
func (c *Chain[T]) Reset(vals []T) error {
	head, err := AllocateSegment(c.cfg, c.traits, 0, uint32(len(vals)), uint32(len(vals)), nil)
	if err != nil {
		return err
	}
	copy(head.Elements, vals)
	c.head = head
	c.count = 1
	c.DumpIndex()
	return nil
}

// Clone deep-copies the chain.
func (c *Chain[T]) Clone() *Chain[T] {
	out := &Chain[T]{traits: c.traits, cfg: c.cfg, count: c.count}
	var tail *Segment[T]
	for s := c.head; s != nil; s = s.Next {
		cp := &Segment[T]{Left: s.Left, Length: s.Length, Elements: append([]T(nil), s.Elements...)}
		if tail == nil {
			out.head = cp
		} else {
			tail.Next = cp
		}
		tail = cp
	}
	out.DumpIndex()
	return out
}

// Convert re-encodes every segment with a new representation. Holes stay
// holes; conv is only applied to present elements.
func Convert[T, U any](c *Chain[T], tr Traits[U], conv func(T) U) *Chain[U] {
	out := &Chain[U]{traits: tr, cfg: c.cfg, count: c.count}
	var tail *Segment[U]
	for s := c.head; s != nil; s = s.Next {
		cp := &Segment[U]{Left: s.Left, Length: s.Length, Elements: make([]U, len(s.Elements))}
		for i, v := range s.Elements {
			if c.traits.IsMissing(v) {
				cp.Elements[i] = tr.Missing
			} else {
				cp.Elements[i] = conv(v)
			}
		}
		if tail == nil {
			out.head = cp
		} else {
			tail.Next = cp
		}
		tail = cp
	}
	out.DumpIndex()
	return out
}

// Slice copies [start, end) into a new chain rebased at 0. Holes and
// sparse gaps are preserved.
func (c *Chain[T]) Slice(start, end uint32) (*Chain[T], error) {
	out, err := NewChain(c.traits, c.cfg, 0)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return out, nil
	}
	var tail *Segment[T]
	for s := c.head; s != nil && s.Left < end; s = s.Next {
		from := max(uint64(s.Left), uint64(start))
		to := min(s.End(), uint64(end))
		if from >= to {
			continue
		}
		n := uint32(to - from)
		seg, err := AllocateSegment(c.cfg, c.traits, uint32(from)-start, n, n, nil)
		if err != nil {
			return nil, err
		}
		copy(seg.Elements, s.Elements[uint32(from)-s.Left:uint32(to)-s.Left])
		if tail == nil {
			if seg.Left == 0 {
				out.head = seg
				out.count = 1
				tail = seg
				continue
			}
			tail = out.head
		}
		tail.Next = seg
		clampCapacity(tail)
		tail = seg
		out.count++
	}
	out.DumpIndex()
	return out, nil
}

// splitAt makes index a segment boundary: a segment straddling index is
// cut into [Left, index) and [index, End). The new tail segment is
// allocated before the original is truncated.
func (c *Chain[T]) splitAt(index uint32) error {
	for s := c.head; s != nil; s = s.Next {
		if s.Left >= index {
			return nil
		}
		if uint64(index) >= s.End() {
			continue
		}
		n := uint32(s.End() - uint64(index))
		tail, err := AllocateSegment(c.cfg, c.traits, index, n, n, s.Next)
		if err != nil {
			return err
		}
		copy(tail.Elements, s.Elements[index-s.Left:s.Length])
		// Spare capacity past index now belongs to tail.
		s.Truncate(c.traits, index)
		s.Elements = s.Elements[:index-s.Left]
		tail.Next = s.Next
		s.Next = tail
		c.count++
		c.DumpIndex()
		return nil
	}
	return nil
}

// Splice removes [start, start+deleteCount) and inserts items at start,
// shifting later segments by len(items)-deleteCount. The caller ensures
// shifted indices stay below MaxLength.
//
// When one segment owns the whole edited range it is edited in place.
// Otherwise the chain is split at both ends of the range, the middle
// unlinked, the tail shifted and a new segment linked in for items. If an
// allocation fails partway the chain is still valid but may be partially
// edited.
func (c *Chain[T]) Splice(start, deleteCount uint32, items []T) error {
	end := uint64(start) + uint64(deleteCount)
	delta := int64(len(items)) - int64(deleteCount)

	if ok, err := c.spliceInPlace(start, end, items, delta); ok || err != nil {
		return err
	}

	if err := c.splitAt(start); err != nil {
		return err
	}
	if end < MaxLength {
		if err := c.splitAt(uint32(end)); err != nil {
			return err
		}
	}

	var before, after *Segment[T]
	for s := c.head; s != nil; s = s.Next {
		if s.Left < start {
			before = s
			continue
		}
		if uint64(s.Left) >= end {
			after = s
			break
		}
	}
	if before == nil {
		c.head = after
	} else {
		before.Next = after
	}
	if after != nil && delta != 0 {
		c.ShiftFrom(after, delta)
	}
	c.recount()
	c.DumpIndex()

	if len(items) > 0 {
		n := uint32(len(items))
		seg, err := AllocateSegment(c.cfg, c.traits, start, n, n, after)
		if err != nil {
			c.restoreHead()
			return err
		}
		copy(seg.Elements, items)
		if before == nil {
			c.head = seg
		} else {
			before.Next = seg
		}
		c.recount()
	}
	c.restoreHead()
	return c.Compact()
}

// restoreHead re-establishes a non-nil head at 0 and the capacity bound
// of every segment after surgery.
func (c *Chain[T]) restoreHead() {
	if c.head == nil {
		c.head = &Segment[T]{}
		c.count = 1
	}
	for s := c.head; s != nil; s = s.Next {
		clampCapacity(s)
	}
	c.DumpIndex()
	c.EnsureHeadAtZero()
}

func (c *Chain[T]) spliceInPlace(start uint32, end uint64, items []T, delta int64) (bool, error) {
	prev, s := c.floor(start)
	if s == nil || uint64(start) > s.End() {
		return false, nil
	}
	if s.Next != nil && uint64(s.Next.Left) < end {
		return false, nil
	}

	ni := uint32(len(items))
	rs := start - s.Left
	re := uint32(min(end, s.End()) - uint64(s.Left))
	tailLen := s.Length - re
	newLength := uint64(rs) + uint64(ni) + uint64(tailLen)

	room := uint64(MaxLength) - uint64(s.Left)
	if s.Next != nil {
		room = uint64(int64(s.Next.Left)+delta) - uint64(s.Left)
	}
	if newLength > room {
		return false, nil
	}
	if newLength > uint64(s.Size()) {
		size := uint64(AllocSize(uint32(min(max(newLength, uint64(s.Size())*3/2), MaxLength))))
		size = min(max(size, newLength), room)
		if c.cfg.MaxElements > 0 && size > uint64(c.cfg.MaxElements) {
			if newLength > uint64(c.cfg.MaxElements) {
				return true, ErrAllocation
			}
			size = uint64(c.cfg.MaxElements)
		}
		grown := &Segment[T]{Left: s.Left, Length: s.Length, Next: s.Next, Elements: make([]T, size)}
		copy(grown.Elements, s.Elements[:s.Length])
		fill(grown.Elements[s.Length:], c.traits.Missing)
		c.Replace(prev, s, grown)
		s = grown
	}

	MoveElements(s, re, rs+ni, tailLen)
	copy(s.Elements[rs:rs+ni], items)
	if uint32(newLength) < s.Length {
		fill(s.Elements[newLength:s.Length], c.traits.Missing)
	}
	s.Length = uint32(newLength)
	if s.Next != nil && delta != 0 {
		c.ShiftFrom(s.Next, delta)
		clampCapacity(s)
	}
	if s.Length == 0 && s.Next != nil && s.Next.Left == s.Left {
		// s emptied and its successor slid onto its Left.
		next := s.Next
		if prev == nil {
			c.head = next
		} else {
			prev.Next = next
		}
		c.recount()
		c.DumpIndex()
		s = next
	}
	if lu, ok := c.loc.(*lastUsed[T]); ok {
		lu.seg = s
	}
	return true, nil
}

// Compact merges adjacent segments whose ranges touch. A failed merge
// allocation leaves the remaining segments unmerged.
func (c *Chain[T]) Compact() error {
	merged := false
	var prev *Segment[T]
	s := c.head
	for s != nil && s.Next != nil {
		n := s.Next
		if s.End() != uint64(n.Left) {
			prev = s
			s = n
			continue
		}
		total := s.Length + n.Length
		seg, err := AllocateSegment(c.cfg, c.traits, s.Left, total, total, n.Next)
		if err != nil {
			if merged {
				c.recount()
				c.DumpIndex()
			}
			return err
		}
		copy(seg.Elements, s.Elements[:s.Length])
		copy(seg.Elements[s.Length:], n.Elements[:n.Length])
		seg.Next = n.Next
		if prev == nil {
			c.head = seg
		} else {
			prev.Next = seg
		}
		s = seg
		merged = true
	}
	if merged {
		c.recount()
		c.DumpIndex()
	}
	return nil
}

// Reverse mirrors [0, length) so index i moves to length-1-i. A new set of
// segments is built before the chain is swapped.
func (c *Chain[T]) Reverse(length uint32) error {
	var segs []*Segment[T]
	for s := c.head; s != nil && s.Left < length; s = s.Next {
		end := uint32(min(s.End(), uint64(length)))
		n := end - s.Left
		if n == 0 {
			continue
		}
		left := length - end
		seg, err := AllocateSegment(c.cfg, c.traits, left, n, n, nil)
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			seg.Elements[i] = s.Elements[n-1-i]
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil
	}
	for i := len(segs) - 1; i > 0; i-- {
		segs[i].Next = segs[i-1]
		clampCapacity(segs[i])
	}
	segs[0].Next = nil
	c.head = segs[len(segs)-1]
	c.recount()
	c.DumpIndex()
	c.EnsureHeadAtZero()
	return nil
}

func clampCapacity[T any](s *Segment[T]) {
	room := maxRoom(s.Left, s.Next)
	if uint64(len(s.Elements)) > room {
		s.Elements = s.Elements[:room]
	}
}
