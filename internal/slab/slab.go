// Package slab is an arena allocator for log entry payloads.
//
// Allocations are carved from fixed-budget blocks and are never freed one by
// one. Each allocation holds a reference on its block; Unlink drops the
// reference and a block with no live references is released as a whole.
// A Slab is not safe for concurrent use.
package slab

import (
	"fmt"
	"reflect"
	"unsafe"
)

// DefaultBlockBytes is the block budget used when New is given zero.
const DefaultBlockBytes = 64 << 10

const minChunk = 64

// Ref identifies the block an allocation came from. The zero Ref owns
// nothing and unlinking it is a no-op.
type Ref struct {
	block uint32
	valid bool
}

// IsZero reports whether r refers to no allocation.
func (r Ref) IsZero() bool { return !r.valid }

// Stats summarises a slab's current footprint.
type Stats struct {
	Blocks int
	Live   int
	Bytes  int
}

type chunk struct {
	buf  any // []T
	used int
}

type block struct {
	id     uint32
	used   int
	live   int
	chunks map[reflect.Type]*chunk
	bytes  []byte
}

// Slab hands out typed slices from a sequence of blocks.
type Slab struct {
	blockBytes int
	blocks     map[uint32]*block
	current    *block
	nextID     uint32
}

// New returns a slab whose blocks hold about blockBytes of payload.
func New(blockBytes int) *Slab {
	if blockBytes <= 0 {
		blockBytes = DefaultBlockBytes
	}
	return &Slab{blockBytes: blockBytes, blocks: make(map[uint32]*block)}
}

// reserve returns the block that should receive an allocation of size bytes,
// rolling over to a fresh block when the current one is over budget.
func (s *Slab) reserve(size int) *block {
	if s.current != nil && s.current.used > 0 && s.current.used+size > s.blockBytes {
		old := s.current
		s.current = nil
		if old.live == 0 {
			s.release(old)
		}
	}
	if s.current == nil {
		s.nextID++
		s.current = &block{id: s.nextID, chunks: make(map[reflect.Type]*chunk)}
		s.blocks[s.current.id] = s.current
	}
	b := s.current
	b.used += size
	b.live++
	return b
}

func (s *Slab) release(b *block) {
	b.chunks = nil
	b.bytes = nil
	delete(s.blocks, b.id)
}

// Alloc returns a zeroed slice of n elements of T and the reference that
// keeps its block alive. Alloc(s, 0) returns nil and the zero Ref.
func Alloc[T any](s *Slab, n int) ([]T, Ref) {
	if n <= 0 {
		return nil, Ref{}
	}
	var zero T
	b := s.reserve(n * int(unsafe.Sizeof(zero)))
	typ := reflect.TypeFor[T]()
	c := b.chunks[typ]
	if c == nil || len(c.buf.([]T))-c.used < n {
		c = &chunk{buf: make([]T, max(n, minChunk))}
		b.chunks[typ] = c
	}
	buf := c.buf.([]T)
	out := buf[c.used : c.used+n : c.used+n]
	c.used += n
	return out, Ref{block: b.id, valid: true}
}

// AllocString copies str into the current block.
func (s *Slab) AllocString(str string) (string, Ref) {
	if str == "" {
		return "", Ref{}
	}
	b := s.reserve(len(str))
	if cap(b.bytes)-len(b.bytes) < len(str) {
		b.bytes = make([]byte, 0, max(len(str), s.blockBytes/4))
	}
	start := len(b.bytes)
	b.bytes = append(b.bytes, str...)
	return unsafe.String(&b.bytes[start], len(str)), Ref{block: b.id, valid: true}
}

// Unlink drops one reference on r's block. Releasing a block more times
// than it was allocated from is a bug and panics.
func (s *Slab) Unlink(r Ref) {
	if !r.valid {
		return
	}
	b, ok := s.blocks[r.block]
	if !ok {
		panic(fmt.Sprintf("slab: unlink of released block %d", r.block))
	}
	if b.live == 0 {
		panic(fmt.Sprintf("slab: live count underflow in block %d", r.block))
	}
	b.live--
	if b.live == 0 && b != s.current {
		s.release(b)
	}
}

// UnlinkAll releases every block at once.
func (s *Slab) UnlinkAll() {
	for _, b := range s.blocks {
		s.release(b)
	}
	s.current = nil
}

// Stats reports the blocks still held, their live allocations and the bytes
// accounted to them.
func (s *Slab) Stats() Stats {
	var st Stats
	for _, b := range s.blocks {
		st.Blocks++
		st.Live += b.live
		st.Bytes += b.used
	}
	return st
}
