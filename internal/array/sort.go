package array

import (
	"math"

	"github.com/roach88/rewind/internal/runtime"
)

type sortItem struct {
	v   runtime.Value
	key string
	idx int
}

type sorter struct {
	ctx       *runtime.Context
	cmp       runtime.Value
	threshold int
}

// compare orders two items; ties fall back to original position so the
// partition sort is stable.
func (s *sorter) compare(x, y sortItem) (int, error) {
	var c int
	if s.cmp != nil {
		r, err := runtime.Call(s.ctx, s.cmp, runtime.Undefined, []runtime.Value{x.v, y.v})
		if err != nil {
			return 0, err
		}
		f, err := runtime.ToNumber(s.ctx, r)
		if err != nil {
			return 0, err
		}
		switch {
		case f < 0:
			c = -1
		case f > 0:
			c = 1
		}
	} else {
		c = runtime.CompareStrings(x.key, y.key)
	}
	if c == 0 {
		return x.idx - y.idx, nil
	}
	return c, nil
}

func (s *sorter) sort(items []sortItem) error {
	for len(items) > s.threshold {
		p, err := s.partition(items)
		if err != nil {
			return err
		}
		// Recurse into the smaller side to bound stack depth.
		if p < len(items)-p-1 {
			if err := s.sort(items[:p]); err != nil {
				return err
			}
			items = items[p+1:]
		} else {
			if err := s.sort(items[p+1:]); err != nil {
				return err
			}
			items = items[:p]
		}
	}
	return s.insertion(items)
}

func (s *sorter) insertion(items []sortItem) error {
	for i := 1; i < len(items); i++ {
		cur := items[i]
		j := i
		for ; j > 0; j-- {
			c, err := s.compare(items[j-1], cur)
			if err != nil {
				return err
			}
			if c <= 0 {
				break
			}
			items[j] = items[j-1]
		}
		items[j] = cur
	}
	return nil
}

// partition is Lomuto's scheme with the middle element as pivot.
func (s *sorter) partition(items []sortItem) (int, error) {
	last := len(items) - 1
	mid := last / 2
	items[mid], items[last] = items[last], items[mid]
	pivot := items[last]
	store := 0
	for i := 0; i < last; i++ {
		c, err := s.compare(items[i], pivot)
		if err != nil {
			return 0, err
		}
		if c < 0 {
			items[i], items[store] = items[store], items[i]
			store++
		}
	}
	items[store], items[last] = items[last], items[store]
	return store, nil
}

// protoSort sorts a private copy and writes it back only when every
// comparison succeeded. Undefined values go last, holes after them.
func protoSort(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	cmp := runtime.Arg(args, 0)
	if !runtime.IsUndefined(cmp) && !runtime.IsCallable(cmp) {
		return nil, ctx.NewTypeError("The comparison function must be either a function or undefined")
	}
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}

	var items []sortItem
	undefined := 0
	collect := func(v runtime.Value) {
		if runtime.IsUndefined(v) {
			undefined++
			return
		}
		items = append(items, sortItem{v: v, idx: len(items)})
	}
	if a, ok := fastArray(o); ok {
		a.store.each(func(i uint32, v runtime.Value) bool {
			if int64(i) >= n {
				return false
			}
			collect(v)
			return true
		})
	} else {
		for k := int64(0); k < n; k++ {
			if !hasAt(o, k) {
				continue
			}
			v, err := getAt(ctx, o, k)
			if err != nil {
				return nil, err
			}
			collect(v)
		}
	}

	s := &sorter{ctx: ctx, threshold: realmFor(ctx).cfg.insertionThreshold()}
	if runtime.IsUndefined(cmp) {
		for i := range items {
			if items[i].key, err = runtime.ToString(ctx, items[i].v); err != nil {
				return nil, err
			}
		}
	} else {
		s.cmp = cmp
	}
	if err := s.sort(items); err != nil {
		return nil, err
	}

	sorted := make([]runtime.Value, 0, len(items)+undefined)
	for _, it := range items {
		sorted = append(sorted, it.v)
	}
	for range undefined {
		sorted = append(sorted, runtime.Undefined)
	}

	// The comparator may have changed the array, so the fast-path check
	// is repeated before writing back.
	if a, ok := fastArray(o); ok && o.Extensible() && int64(a.length) == n {
		a.widenForAll(sorted)
		if err := a.store.reset(sorted); err != nil {
			return nil, outOfMemory(ctx, err)
		}
		a.refreshNoMissing()
		return o, nil
	}
	for i, v := range sorted {
		if err := setAt(ctx, o, int64(i), v); err != nil {
			return nil, err
		}
	}
	for k := int64(len(sorted)); k < n; k++ {
		if err := deleteAt(ctx, o, k); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// SortNumeric sorts a in ascending numeric order, NaN last.
func (a *Array) SortNumeric() error {
	ctx := a.realm.ctx
	cmp := runtime.NewFunction(ctx, "compareNumbers", 2, func(ctx *runtime.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		x, err := runtime.ToNumber(ctx, runtime.Arg(args, 0))
		if err != nil {
			return nil, err
		}
		y, err := runtime.ToNumber(ctx, runtime.Arg(args, 1))
		if err != nil {
			return nil, err
		}
		return runtime.Number(float64(compareNumbers(x, y))), nil
	})
	_, err := protoSort(ctx, a.obj, []runtime.Value{cmp})
	return err
}

func compareNumbers(x, y float64) int {
	switch {
	case math.IsNaN(x) && math.IsNaN(y):
		return 0
	case math.IsNaN(x):
		return 1
	case math.IsNaN(y):
		return -1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
