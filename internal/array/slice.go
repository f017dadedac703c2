package array

import (
	"github.com/roach88/rewind/internal/runtime"
)

func protoSlice(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(ctx, o)
	if err != nil {
		return nil, err
	}
	k, err := indexArg(ctx, args, 0, n, 0)
	if err != nil {
		return nil, err
	}
	final, err := indexArg(ctx, args, 1, n, n)
	if err != nil {
		return nil, err
	}
	count := max(final-k, 0)

	result, plain, err := speciesCreate(ctx, o, count)
	if err != nil {
		return nil, err
	}
	if a, ok := fastArray(o); ok && plain {
		st, err := a.store.slice(uint32(k), uint32(k+count))
		if err != nil {
			return nil, outOfMemory(ctx, err)
		}
		result.Exotic().(*Array).adopt(st, uint32(count))
		return result, nil
	}
	for i := int64(0); k < final; k, i = k+1, i+1 {
		if !hasAt(o, k) {
			continue
		}
		v, err := getAt(ctx, o, k)
		if err != nil {
			return nil, err
		}
		if err := createDataProperty(ctx, result, i, v); err != nil {
			return nil, err
		}
	}
	if err := setLengthProp(ctx, result, count); err != nil {
		return nil, err
	}
	return result, nil
}

func protoConcat(ctx *runtime.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	o, err := thisObject(ctx, this)
	if err != nil {
		return nil, err
	}
	result, plain, err := speciesCreate(ctx, o, 0)
	if err != nil {
		return nil, err
	}
	var ra *Array
	if plain {
		ra = result.Exotic().(*Array)
	}

	n := int64(0)
	items := append([]runtime.Value{o}, args...)
	for _, e := range items {
		spreadable, err := IsConcatSpreadable(ctx, e)
		if err != nil {
			return nil, err
		}
		if !spreadable {
			if n >= runtime.MaxSafeInteger {
				return nil, ctx.NewTypeError("Invalid array length")
			}
			if err := createDataProperty(ctx, result, n, e); err != nil {
				return nil, err
			}
			n++
			continue
		}
		eo := e.(*runtime.Object)
		length, err := lengthOf(ctx, eo)
		if err != nil {
			return nil, err
		}
		if n+length > runtime.MaxSafeInteger {
			return nil, ctx.NewTypeError("Invalid array length")
		}
		if ea, ok := fastArray(eo); ok && ra != nil && ra.dense() && n+length <= runtime.MaxArrayLength {
			if err := ra.appendStore(ea, uint32(n)); err != nil {
				return nil, err
			}
			n += length
			continue
		}
		for k := int64(0); k < length; k, n = k+1, n+1 {
			if !hasAt(eo, k) {
				continue
			}
			v, err := getAt(ctx, eo, k)
			if err != nil {
				return nil, err
			}
			if err := createDataProperty(ctx, result, n, v); err != nil {
				return nil, err
			}
		}
	}
	if err := setLengthProp(ctx, result, n); err != nil {
		return nil, err
	}
	return result, nil
}

// appendStore copies every present element of src into a at offset.
func (a *Array) appendStore(src *Array, offset uint32) error {
	a.widenTo(max(a.store.kind(), src.store.kind()))
	var err error
	src.store.each(func(i uint32, v runtime.Value) bool {
		if i >= src.length {
			return false
		}
		err = a.setIndex(offset+i, v)
		return err == nil
	})
	return err
}
