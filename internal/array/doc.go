// Package array implements script arrays on top of segmented sparse
// storage.
//
// An Array is the exotic behind an array object. Its elements live in a
// sparse.Chain of one representation Kind (int32, float64 or boxed
// values), widened one way as content requires. Arrays whose elements are
// given non-default attributes fall back to ordinary property storage.
//
// Every Array.prototype built-in has two paths: a segmented fast path for
// dense arrays whose prototypes hold no indexed properties, and a generic
// property path for everything else. Iteration re-checks which path applies
// after each callback, since callbacks can reshape the array.
package array
