package sparse

import "fmt"

// Validate checks the chain's structural invariants. requireHeadAtZero
// additionally demands the normalized form (head.Left == 0).
func (c *Chain[T]) Validate(requireHeadAtZero bool) error {
	if c.head == nil {
		return fmt.Errorf("chain has no head segment")
	}
	if requireHeadAtZero && c.head.Left != 0 {
		return fmt.Errorf("head segment starts at %d, want 0", c.head.Left)
	}

	n := 0
	var prev *Segment[T]
	for s := c.head; s != nil; s = s.Next {
		n++
		if s.Length > s.Size() {
			return fmt.Errorf("segment at %d: length %d exceeds size %d", s.Left, s.Length, s.Size())
		}
		if s.Limit() > MaxLength {
			return fmt.Errorf("segment at %d: capacity runs past max length", s.Left)
		}
		for i := s.Length; i < s.Size(); i++ {
			if !c.traits.IsMissing(s.Elements[i]) {
				return fmt.Errorf("segment at %d: slot %d past length is not missing", s.Left, i)
			}
		}
		if prev != nil {
			if s.Left <= prev.Left {
				return fmt.Errorf("segment at %d follows segment at %d", s.Left, prev.Left)
			}
			if prev.Limit() > uint64(s.Left) {
				return fmt.Errorf("segment at %d (size %d) overlaps segment at %d", prev.Left, prev.Size(), s.Left)
			}
		}
		prev = s
	}
	if n != c.count {
		return fmt.Errorf("segment count %d, chain reports %d", n, c.count)
	}

	switch loc := c.loc.(type) {
	case *lastUsed[T]:
		if loc.seg != nil && !c.contains(loc.seg) {
			return fmt.Errorf("last-used segment at %d is not linked", loc.seg.Left)
		}
	case *treeIndex[T]:
		if loc.tree.Len() != n {
			return fmt.Errorf("btree holds %d segments, chain has %d", loc.tree.Len(), n)
		}
		s := c.head
		var err error
		loc.tree.Walk(func(k *Segment[T]) bool {
			if k != s {
				err = fmt.Errorf("btree order diverges from chain at segment %d", k.Left)
				return false
			}
			s = s.Next
			return true
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("chain has no locator")
	}
	return nil
}

func (c *Chain[T]) contains(seg *Segment[T]) bool {
	for s := c.head; s != nil; s = s.Next {
		if s == seg {
			return true
		}
	}
	return false
}
