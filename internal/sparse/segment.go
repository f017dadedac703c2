// Package sparse implements segmented sparse storage for array elements.
//
// An array's logical index space [0, 2^32-1) is covered by a singly linked
// chain of segments. Each segment owns a contiguous run [Left, Left+Length)
// plus spare capacity up to Size. Holes inside a segment are marked with a
// per-representation sentinel (Traits.Missing), so no presence bitmap is
// needed. Once a chain grows past a threshold, a B-tree over segment Left
// keys replaces the last-used cache for lookups.
//
// Key invariants:
//   - Segments are ordered by strictly increasing Left and never overlap:
//     Left+Size <= Next.Left.
//   - Size >= Length, and slots [Length, Size) hold Missing.
//   - Growth is copy-then-swap: a failed allocation leaves the old segment
//     untouched.
package sparse

import (
	"errors"
	"fmt"
)

// MaxLength is the largest logical length an array can have.
const MaxLength = 1<<32 - 1

// ErrAllocation is returned when a segment allocation exceeds the
// configured element limit.
var ErrAllocation = errors.New("sparse: allocation limit exceeded")

// Traits describes the hole sentinel of an element representation.
type Traits[T any] struct {
	Name      string
	Missing   T
	IsMissing func(T) bool
}

// Segment is one physically contiguous run of the logical index space.
type Segment[T any] struct {
	Left     uint32
	Length   uint32
	Next     *Segment[T]
	Elements []T
}

// Size returns the allocated capacity.
func (s *Segment[T]) Size() uint32 { return uint32(len(s.Elements)) }

// End returns Left+Length as a uint64 so it cannot wrap.
func (s *Segment[T]) End() uint64 { return uint64(s.Left) + uint64(s.Length) }

// Limit returns Left+Size as a uint64.
func (s *Segment[T]) Limit() uint64 { return uint64(s.Left) + uint64(len(s.Elements)) }

// Covers reports whether index lies inside [Left, Left+Length).
func (s *Segment[T]) Covers(index uint32) bool {
	return index >= s.Left && uint64(index) < s.End()
}

// At returns the element at absolute index. The caller checks Covers.
func (s *Segment[T]) At(index uint32) T {
	return s.Elements[index-s.Left]
}

// Put stores v at absolute index, extending Length if needed. The index
// must lie inside [Left, Left+Size).
func (s *Segment[T]) Put(index uint32, v T) {
	rel := index - s.Left
	s.Elements[rel] = v
	if rel >= s.Length {
		s.Length = rel + 1
	}
}

// Truncate drops every slot at and after absolute index at. Dropped slots
// are overwritten with Missing so a later length extension exposes holes.
func (s *Segment[T]) Truncate(tr Traits[T], at uint32) {
	if at <= s.Left {
		fill(s.Elements[:s.Length], tr.Missing)
		s.Length = 0
		return
	}
	rel := at - s.Left
	if rel >= s.Length {
		return
	}
	fill(s.Elements[rel:s.Length], tr.Missing)
	s.Length = rel
}

// ClearFrom marks [from, Length) missing without shrinking Length.
func (s *Segment[T]) ClearFrom(tr Traits[T], from uint32) {
	if from >= s.Length {
		return
	}
	fill(s.Elements[from:s.Length], tr.Missing)
}

// CountPresent returns the number of non-missing elements.
func (s *Segment[T]) CountPresent(tr Traits[T]) int {
	n := 0
	for _, v := range s.Elements[:s.Length] {
		if !tr.IsMissing(v) {
			n++
		}
	}
	return n
}

// AllocSize rounds a requested capacity up to an allocation bucket:
// 3, 5 or 8 elements for small arrays, then multiples of 8.
func AllocSize(n uint32) uint32 {
	switch {
	case n == 0:
		return 0
	case n <= 3:
		return 3
	case n <= 5:
		return 5
	case n <= 8:
		return 8
	}
	rounded := (uint64(n) + 7) &^ 7
	if rounded > MaxLength {
		return MaxLength
	}
	return uint32(rounded)
}

// AllocateSegment allocates a segment for [left, left+length) with room for
// at least capacityHint elements. Capacity is bucketed, then clamped so it
// never reaches into next's range. Trailing slots hold Missing.
func AllocateSegment[T any](cfg Config, tr Traits[T], left, length, capacityHint uint32, next *Segment[T]) (*Segment[T], error) {
	want := max(length, capacityHint)
	size := uint64(AllocSize(want))
	if room := maxRoom(left, next); size > room {
		size = room
	}
	if size < uint64(length) {
		return nil, fmt.Errorf("segment at %d: length %d overlaps next segment", left, length)
	}
	if cfg.MaxElements > 0 && size > uint64(cfg.MaxElements) {
		if uint64(length) > uint64(cfg.MaxElements) {
			return nil, ErrAllocation
		}
		size = uint64(cfg.MaxElements)
	}
	seg := &Segment[T]{
		Left:     left,
		Length:   length,
		Next:     next,
		Elements: make([]T, size),
	}
	fill(seg.Elements[length:], tr.Missing)
	return seg, nil
}

// Grow returns a copy of s with capacity for at least by more elements.
func Grow[T any](cfg Config, tr Traits[T], s *Segment[T], by uint32) (*Segment[T], error) {
	minSize := uint64(s.Size()) + uint64(by)
	return GrowByMinMax(cfg, tr, s, minSize, max(minSize, uint64(s.Size())*3/2))
}

// GrowByMinMax returns a copy of s whose capacity is at least minSize and
// at most maxSize, bounded by the distance to s.Next. s itself is left
// unchanged; the caller swaps the new segment into the chain.
func GrowByMinMax[T any](cfg Config, tr Traits[T], s *Segment[T], minSize, maxSize uint64) (*Segment[T], error) {
	room := maxRoom(s.Left, s.Next)
	if minSize > room {
		return nil, fmt.Errorf("segment at %d: cannot grow to %d, next segment at %d", s.Left, minSize, s.Left+uint32(room))
	}
	size := uint64(AllocSize(uint32(min(maxSize, MaxLength))))
	if size < minSize {
		size = minSize
	}
	if size > room {
		size = room
	}
	if cfg.MaxElements > 0 && size > uint64(cfg.MaxElements) {
		if minSize > uint64(cfg.MaxElements) {
			return nil, ErrAllocation
		}
		size = uint64(cfg.MaxElements)
	}
	grown := &Segment[T]{
		Left:     s.Left,
		Length:   s.Length,
		Next:     s.Next,
		Elements: make([]T, size),
	}
	copy(grown.Elements, s.Elements[:s.Length])
	fill(grown.Elements[s.Length:], tr.Missing)
	return grown, nil
}

// CopySegment copies n elements from src (starting at absolute index
// srcIndex) into dst (starting at absolute dstIndex), extending dst.Length.
// Overlapping ranges within one segment behave like memmove.
func CopySegment[T any](dst *Segment[T], dstIndex uint32, src *Segment[T], srcIndex uint32, n uint32) {
	if n == 0 {
		return
	}
	d := dstIndex - dst.Left
	s := srcIndex - src.Left
	copy(dst.Elements[d:d+n], src.Elements[s:s+n])
	if d+n > dst.Length {
		dst.Length = d + n
	}
}

// MoveElements moves n elements inside s from relative offset from to
// relative offset to. Vacated slots are not cleared.
func MoveElements[T any](s *Segment[T], from, to, n uint32) {
	if n == 0 || from == to {
		return
	}
	copy(s.Elements[to:to+n], s.Elements[from:from+n])
}

func maxRoom[T any](left uint32, next *Segment[T]) uint64 {
	if next != nil {
		return uint64(next.Left) - uint64(left)
	}
	return MaxLength - uint64(left)
}

func fill[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}
