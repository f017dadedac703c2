package array

import "github.com/roach88/rewind/internal/sparse"

// DefaultSortInsertionThreshold is the element count below which sort
// uses insertion sort instead of partitioning.
const DefaultSortInsertionThreshold = 16

// Config tunes array storage and algorithms for one context.
type Config struct {
	// BTreeThreshold is the segment count past which lookups use a B-tree.
	BTreeThreshold int
	// ForceBTree and DisableBTree override the threshold for diagnostics.
	ForceBTree   bool
	DisableBTree bool
	// SortInsertionThreshold selects insertion sort for small inputs.
	SortInsertionThreshold int
	// MaxElements caps a single segment allocation. Zero means unlimited.
	MaxElements uint32
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		BTreeThreshold:         sparse.DefaultBTreeThreshold,
		SortInsertionThreshold: DefaultSortInsertionThreshold,
	}
}

func (c Config) sparse() sparse.Config {
	return sparse.Config{
		BTreeThreshold: c.BTreeThreshold,
		ForceBTree:     c.ForceBTree,
		DisableBTree:   c.DisableBTree,
		MaxElements:    c.MaxElements,
	}
}

func (c Config) insertionThreshold() int {
	if c.SortInsertionThreshold <= 0 {
		return DefaultSortInsertionThreshold
	}
	return c.SortInsertionThreshold
}
