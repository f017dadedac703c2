package sparse

// DefaultBTreeThreshold is the segment count above which a chain indexes
// its segments with a B-tree.
const DefaultBTreeThreshold = 16

// Config tunes segment allocation and indexing.
type Config struct {
	// BTreeThreshold is the segment count past which the B-tree is built.
	BTreeThreshold int

	// ForceBTree builds the tree regardless of segment count.
	ForceBTree bool

	// DisableBTree never builds the tree. Wins over ForceBTree.
	DisableBTree bool

	// MaxElements caps the capacity of a single segment allocation.
	// Zero means unlimited.
	MaxElements uint32
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{BTreeThreshold: DefaultBTreeThreshold}
}

func (c Config) wantsTree(segments int) bool {
	if c.DisableBTree {
		return false
	}
	if c.ForceBTree {
		return true
	}
	threshold := c.BTreeThreshold
	if threshold <= 0 {
		threshold = DefaultBTreeThreshold
	}
	return segments > threshold
}
