package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentsAt(lefts ...uint32) []*Segment[int32] {
	segs := make([]*Segment[int32], len(lefts))
	for i, l := range lefts {
		segs[i] = &Segment[int32]{Left: l, Length: 2, Elements: []int32{0, 0}}
		if i > 0 {
			segs[i-1].Next = segs[i]
		}
	}
	return segs
}

func TestBTree_AddKeepsOrderAcrossSplits(t *testing.T) {
	var lefts []uint32
	for i := uint32(0); i < 200; i++ {
		lefts = append(lefts, i*10)
	}
	segs := segmentsAt(lefts...)

	tree := NewBTree[int32]()
	// Insert out of order to exercise splits on both sides.
	for i := len(segs) - 1; i >= 0; i -= 2 {
		tree.Add(segs[i])
	}
	for i := 0; i < len(segs); i += 2 {
		tree.Add(segs[i])
	}
	require.Equal(t, 200, tree.Len())
	assert.Greater(t, tree.Depth(), 1)

	var walked []uint32
	tree.Walk(func(s *Segment[int32]) bool {
		walked = append(walked, s.Left)
		return true
	})
	assert.Equal(t, lefts, walked)
}

func TestBTree_Find(t *testing.T) {
	segs := segmentsAt(0, 10, 20)
	tree := NewBTree[int32]()
	for _, s := range segs {
		tree.Add(s)
	}

	prev, m := tree.Find(11)
	assert.Same(t, segs[0], prev)
	assert.Same(t, segs[1], m, "covering segment")

	prev, m = tree.Find(15)
	assert.Same(t, segs[1], prev)
	assert.Same(t, segs[2], m, "gap yields neighbours")

	prev, m = tree.Find(1)
	assert.Nil(t, prev)
	assert.Same(t, segs[0], m)

	prev, m = tree.Find(100)
	assert.Same(t, segs[2], prev)
	assert.Nil(t, m)
}

func TestBTree_SwapSegment(t *testing.T) {
	segs := segmentsAt(0, 10, 20, 30)
	tree := NewBTree[int32]()
	for _, s := range segs {
		tree.Add(s)
	}
	replacement := &Segment[int32]{Left: 20, Length: 4, Elements: make([]int32, 8), Next: segs[3]}
	segs[1].Next = replacement

	require.True(t, tree.SwapSegment(segs[2], replacement))
	_, m := tree.Find(23)
	assert.Same(t, replacement, m)
	assert.False(t, tree.SwapSegment(segs[2], replacement), "old pointer is gone")
}
