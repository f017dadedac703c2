package array

import (
	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/sparse"
)

// store is element storage for one representation. All three kinds share
// the single generic implementation typedStore; only the codec differs.
type store interface {
	kind() Kind
	get(i uint32) (runtime.Value, bool)
	// set reports fits=false, storing nothing, when v needs a wider kind.
	set(i uint32, v runtime.Value) (fits bool, err error)
	has(i uint32) bool
	remove(i uint32)
	truncate(n uint32)
	// splice reports fits=false when some item needs a wider kind.
	splice(start, deleteCount uint32, items []runtime.Value) (fits bool, err error)
	slice(start, end uint32) (store, error)
	reverse(length uint32) error
	// values returns [0, n) boxed, with runtime.Missing for holes.
	values(n uint32) []runtime.Value
	reset(vals []runtime.Value) error
	each(fn func(i uint32, v runtime.Value) bool)
	noHolesBelow(n uint32) bool
	widen(to Kind) store
	segments() int
	indexed() bool
	validate() error
	clone() store
}

type typedStore[T any] struct {
	codec *codec[T]
	chain *sparse.Chain[T]
}

func newStore(k Kind, cfg sparse.Config, capacity uint32) (store, error) {
	switch k {
	case KindInt:
		return newTypedStore(intCodec, cfg, capacity)
	case KindFloat:
		return newTypedStore(floatCodec, cfg, capacity)
	default:
		return newTypedStore(varCodec, cfg, capacity)
	}
}

func newTypedStore[T any](c *codec[T], cfg sparse.Config, capacity uint32) (*typedStore[T], error) {
	chain, err := sparse.NewChain(c.traits, cfg, capacity)
	if err != nil {
		return nil, err
	}
	return &typedStore[T]{codec: c, chain: chain}, nil
}

func (s *typedStore[T]) kind() Kind { return s.codec.kind }

func (s *typedStore[T]) get(i uint32) (runtime.Value, bool) {
	v, ok := s.chain.Get(i)
	if !ok {
		return nil, false
	}
	return s.codec.box(v), true
}

func (s *typedStore[T]) set(i uint32, v runtime.Value) (bool, error) {
	u, fits := s.codec.unbox(v)
	if !fits {
		return false, nil
	}
	return true, s.chain.Set(i, u)
}

func (s *typedStore[T]) has(i uint32) bool { return s.chain.Has(i) }

func (s *typedStore[T]) remove(i uint32) { s.chain.Delete(i) }

func (s *typedStore[T]) truncate(n uint32) { s.chain.Truncate(n) }

func (s *typedStore[T]) splice(start, deleteCount uint32, items []runtime.Value) (bool, error) {
	typed := make([]T, len(items))
	for i, v := range items {
		u, fits := s.codec.unbox(v)
		if !fits {
			return false, nil
		}
		typed[i] = u
	}
	return true, s.chain.Splice(start, deleteCount, typed)
}

func (s *typedStore[T]) slice(start, end uint32) (store, error) {
	chain, err := s.chain.Slice(start, end)
	if err != nil {
		return nil, err
	}
	return &typedStore[T]{codec: s.codec, chain: chain}, nil
}

func (s *typedStore[T]) reverse(length uint32) error { return s.chain.Reverse(length) }

func (s *typedStore[T]) values(n uint32) []runtime.Value {
	raw := s.chain.Values(n)
	out := make([]runtime.Value, n)
	for i, v := range raw {
		if s.codec.traits.IsMissing(v) {
			out[i] = runtime.Missing
		} else {
			out[i] = s.codec.box(v)
		}
	}
	return out
}

func (s *typedStore[T]) reset(vals []runtime.Value) error {
	typed := make([]T, len(vals))
	for i, v := range vals {
		u, fits := s.codec.unbox(v)
		if !fits {
			panic("array: reset value does not fit representation " + s.codec.kind.String())
		}
		typed[i] = u
	}
	return s.chain.Reset(typed)
}

func (s *typedStore[T]) each(fn func(i uint32, v runtime.Value) bool) {
	tr := s.codec.traits
	s.chain.Each(func(seg *sparse.Segment[T]) bool {
		for j := uint32(0); j < seg.Length; j++ {
			v := seg.Elements[j]
			if tr.IsMissing(v) {
				continue
			}
			if !fn(seg.Left+j, s.codec.box(v)) {
				return false
			}
		}
		return true
	})
}

func (s *typedStore[T]) noHolesBelow(n uint32) bool { return s.chain.HasNoHolesBelow(n) }

func (s *typedStore[T]) widen(to Kind) store {
	if to <= s.codec.kind {
		return s
	}
	switch to {
	case KindFloat:
		return convertStore(s, floatCodec)
	default:
		return convertStore(s, varCodec)
	}
}

func (s *typedStore[T]) segments() int { return s.chain.Count() }

func (s *typedStore[T]) indexed() bool { return s.chain.Indexed() }

func (s *typedStore[T]) validate() error { return s.chain.Validate(true) }

func (s *typedStore[T]) clone() store {
	return &typedStore[T]{codec: s.codec, chain: s.chain.Clone()}
}

// convertStore re-encodes s into codec c, preserving holes. Widening
// always fits, so unbox never fails here.
func convertStore[T, U any](s *typedStore[T], c *codec[U]) *typedStore[U] {
	conv := func(v T) U {
		u, fits := c.unbox(s.codec.box(v))
		if !fits {
			panic("array: widening conversion lost a value")
		}
		return u
	}
	return &typedStore[U]{codec: c, chain: sparse.Convert(s.chain, c.traits, conv)}
}
