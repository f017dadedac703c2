package array

import (
	"math"

	"github.com/roach88/rewind/internal/runtime"
)

func protoPush(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := push(ctx, o, args)
	if err != nil {
		return nil, err
	}
	return num(n), nil
}

// push appends items. On the dense path each element is stored before the
// length moves past it.
func push(ctx *runtime.Context, o *runtime.Object, items []runtime.Value) (int64, error) {
	if a, ok := fastArray(o); ok && a.canAppendDirect() && uint64(a.length)+uint64(len(items)) <= runtime.MaxArrayLength {
		a.widenForAll(items)
		for _, v := range items {
			if err := a.setIndex(a.length, v); err != nil {
				return int64(a.length), err
			}
		}
		return int64(a.length), nil
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return 0, err
	}
	if n+int64(len(items)) > runtime.MaxSafeInteger {
		return 0, ctx.NewTypeError("Pushing %d elements on an array-like of length %d is disallowed", len(items), n)
	}
	for i, v := range items {
		if err := setAt(ctx, o, n+int64(i), v); err != nil {
			return 0, err
		}
	}
	n += int64(len(items))
	if err := setLengthProp(ctx, o, n); err != nil {
		return 0, err
	}
	return n, nil
}

func protoPop(ctx *runtime.Context, this runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	return pop(ctx, o)
}

func pop(ctx *runtime.Context, o *runtime.Object) (runtime.Value, error) {
	if a, ok := fastArray(o); ok && !a.lengthReadOnly {
		if a.length == 0 {
			return runtime.Undefined, nil
		}
		last := a.length - 1
		v, present := a.store.get(last)
		if !present {
			v = runtime.Undefined
		}
		a.store.truncate(last)
		a.length = last
		return v, nil
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return runtime.Undefined, setLengthProp(ctx, o, 0)
	}
	v, err := getAt(ctx, o, n-1)
	if err != nil {
		return nil, err
	}
	if err := deleteAt(ctx, o, n-1); err != nil {
		return nil, err
	}
	return v, setLengthProp(ctx, o, n-1)
}

func protoShift(ctx *runtime.Context, this runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok && !a.lengthReadOnly {
		if a.length == 0 {
			return runtime.Undefined, nil
		}
		first, present := a.store.get(0)
		if !present {
			first = runtime.Undefined
		}
		if _, err := a.store.splice(0, 1, nil); err != nil {
			return nil, outOfMemory(ctx, err)
		}
		a.length--
		return first, nil
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return runtime.Undefined, setLengthProp(ctx, o, 0)
	}
	first, err := getAt(ctx, o, 0)
	if err != nil {
		return nil, err
	}
	if err := moveElements(ctx, o, 1, 0, n-1); err != nil {
		return nil, err
	}
	if err := deleteAt(ctx, o, n-1); err != nil {
		return nil, err
	}
	return first, setLengthProp(ctx, o, n-1)
}

func protoUnshift(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	count := int64(len(args))
	if a, ok := fastArray(o); ok && a.canAppendDirect() && int64(a.length)+count <= runtime.MaxArrayLength {
		if count > 0 {
			a.widenForAll(args)
			if err := a.spliceStore(0, 0, args); err != nil {
				return nil, err
			}
			a.length += uint32(count)
		}
		return num(int64(a.length)), nil
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		if n+count > runtime.MaxSafeInteger {
			return nil, ctx.NewTypeError("Unshift on an array-like of length %d is disallowed", n)
		}
		if err := moveElements(ctx, o, 0, count, n); err != nil {
			return nil, err
		}
		for i, v := range args {
			if err := setAt(ctx, o, int64(i), v); err != nil {
				return nil, err
			}
		}
	}
	if err := setLengthProp(ctx, o, n+count); err != nil {
		return nil, err
	}
	return num(n + count), nil
}

// moveElements copies count elements from index from to index to through
// the property interface, deleting targets whose source is a hole. The
// copy direction avoids clobbering overlapping sources.
func moveElements(ctx *runtime.Context, o *runtime.Object, from, to, count int64) error {
	step := func(k int64) error {
		src, dst := from+k, to+k
		if !hasAt(o, src) {
			return deleteAt(ctx, o, dst)
		}
		v, err := getAt(ctx, o, src)
		if err != nil {
			return err
		}
		return setAt(ctx, o, dst, v)
	}
	if from < to {
		for k := count - 1; k >= 0; k-- {
			if err := step(k); err != nil {
				return err
			}
		}
		return nil
	}
	for k := int64(0); k < count; k++ {
		if err := step(k); err != nil {
			return err
		}
	}
	return nil
}

// spliceStore runs a structural splice on the segment chain. Items must
// already fit the representation.
func (a *Array) spliceStore(start, deleteCount uint32, items []runtime.Value) error {
	fits, err := a.store.splice(start, deleteCount, items)
	if err != nil {
		return outOfMemory(a.realm.ctx, err)
	}
	if !fits {
		panic("array: splice items do not fit widened representation")
	}
	return nil
}

func protoSplice(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	start, err := indexArg(ctx, args, 0, n, 0)
	if err != nil {
		return nil, err
	}
	var deleteCount int64
	var items []runtime.Value
	switch len(args) {
	case 0:
	case 1:
		deleteCount = n - start
	default:
		dc, err := runtime.ToIntegerOrInfinity(ctx, args[1])
		if err != nil {
			return nil, err
		}
		deleteCount = int64(math.Min(math.Max(dc, 0), float64(n-start)))
		items = args[2:]
	}
	itemCount := int64(len(items))
	newLen := n - deleteCount + itemCount
	if newLen > runtime.MaxSafeInteger {
		return nil, ctx.NewTypeError("Splice on an array-like of length %d is disallowed", n)
	}

	result, plain, err := speciesCreate(ctx, o, deleteCount)
	if err != nil {
		return nil, err
	}

	if a, ok := fastArray(o); ok && plain && a.canAppendDirect() && newLen <= runtime.MaxArrayLength {
		ra := result.Exotic().(*Array)
		removed, err := a.store.slice(uint32(start), uint32(start+deleteCount))
		if err != nil {
			return nil, outOfMemory(ctx, err)
		}
		ra.adopt(removed, uint32(deleteCount))

		a.widenForAll(items)
		if err := a.spliceStore(uint32(start), uint32(deleteCount), items); err != nil {
			return nil, err
		}
		a.length = uint32(newLen)
		a.refreshNoMissing()
		return result, nil
	}

	for k := int64(0); k < deleteCount; k++ {
		from := start + k
		if !hasAt(o, from) {
			continue
		}
		v, err := getAt(ctx, o, from)
		if err != nil {
			return nil, err
		}
		if err := createDataProperty(ctx, result, k, v); err != nil {
			return nil, err
		}
	}
	if err := setLengthProp(ctx, result, deleteCount); err != nil {
		return nil, err
	}

	switch {
	case itemCount < deleteCount:
		if err := moveElements(ctx, o, start+deleteCount, start+itemCount, n-start-deleteCount); err != nil {
			return nil, err
		}
		for k := n; k > newLen; k-- {
			if err := deleteAt(ctx, o, k-1); err != nil {
				return nil, err
			}
		}
	case itemCount > deleteCount:
		if err := moveElements(ctx, o, start+deleteCount, start+itemCount, n-start-deleteCount); err != nil {
			return nil, err
		}
	}
	for i, v := range items {
		if err := setAt(ctx, o, start+int64(i), v); err != nil {
			return nil, err
		}
	}
	if err := setLengthProp(ctx, o, newLen); err != nil {
		return nil, err
	}
	return result, nil
}

// adopt replaces the storage of a freshly created result array.
func (a *Array) adopt(st store, length uint32) {
	a.store = st
	a.length = length
	a.refreshNoMissing()
}

func protoFill(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	v := runtime.Arg(args, 0)
	k, err := indexArg(ctx, args, 1, n, 0)
	if err != nil {
		return nil, err
	}
	final, err := indexArg(ctx, args, 2, n, n)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok && o.Extensible() && !a.lengthReadOnly {
		a.widenTo(max(a.store.kind(), kindFor(v)))
		for ; k < final; k++ {
			if err := a.setIndex(uint32(k), v); err != nil {
				return nil, err
			}
		}
		a.refreshNoMissing()
		return o, nil
	}
	for ; k < final; k++ {
		if err := setAt(ctx, o, k, v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func protoCopyWithin(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	to, err := indexArg(ctx, args, 0, n, 0)
	if err != nil {
		return nil, err
	}
	from, err := indexArg(ctx, args, 1, n, 0)
	if err != nil {
		return nil, err
	}
	final, err := indexArg(ctx, args, 2, n, n)
	if err != nil {
		return nil, err
	}
	count := min(final-from, n-to)
	if count <= 0 {
		return o, nil
	}
	if a, ok := fastArray(o); ok && o.Extensible() {
		src := a.store.values(uint32(from + count))[from:]
		for i, v := range src {
			dst := uint32(to + int64(i))
			if runtime.IsMissing(v) {
				a.store.remove(dst)
				a.noMissing = false
				continue
			}
			if err := a.setIndex(dst, v); err != nil {
				return nil, err
			}
		}
		return o, nil
	}
	return o, moveElements(ctx, o, from, to, count)
}

func protoReverse(ctx *runtime.Context, this runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok && o.Extensible() {
		if err := a.store.reverse(a.length); err != nil {
			return nil, outOfMemory(ctx, err)
		}
		return o, nil
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	for lower := int64(0); lower < n/2; lower++ {
		upper := n - 1 - lower
		lowerExists, upperExists := hasAt(o, lower), hasAt(o, upper)
		var lowerV, upperV runtime.Value
		if lowerExists {
			if lowerV, err = getAt(ctx, o, lower); err != nil {
				return nil, err
			}
		}
		if upperExists {
			if upperV, err = getAt(ctx, o, upper); err != nil {
				return nil, err
			}
		}
		switch {
		case lowerExists && upperExists:
			if err := setAt(ctx, o, lower, upperV); err != nil {
				return nil, err
			}
			err = setAt(ctx, o, upper, lowerV)
		case upperExists:
			if err := setAt(ctx, o, lower, upperV); err != nil {
				return nil, err
			}
			err = deleteAt(ctx, o, upper)
		case lowerExists:
			if err := deleteAt(ctx, o, lower); err != nil {
				return nil, err
			}
			err = setAt(ctx, o, upper, lowerV)
		}
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}
