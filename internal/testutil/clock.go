package testutil

import "sync"

// DeterministicClock supplies host clock readings for tests. Each reading
// is Step milliseconds after the previous one, starting at Start.
//
// Safe for concurrent use.
type DeterministicClock struct {
	mu    sync.Mutex
	Start float64
	Step  float64
	ticks int64
}

// NewDeterministicClock returns a clock whose first reading is start.
func NewDeterministicClock(start, step float64) *DeterministicClock {
	return &DeterministicClock{Start: start, Step: step}
}

// Now returns the next reading. It has the shape host.Builtin.Now expects.
func (c *DeterministicClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.Start + float64(c.ticks)*c.Step
	c.ticks++
	return v
}

// Readings returns how many readings have been taken.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset makes the next reading Start again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
