package shardroute

import (
	"cmp"
	"fmt"
)

// BoundType tells whether an endpoint belongs to the interval.
type BoundType int

const (
	// BoundOpen excludes the endpoint itself.
	BoundOpen BoundType = iota
	// BoundClosed includes the endpoint itself.
	BoundClosed
)

func (b BoundType) String() string {
	if b == BoundClosed {
		return "closed"
	}
	return "open"
}

type cutKind int

const (
	belowAll cutKind = iota
	belowValue
	aboveValue
	aboveAll
)

// cut is a point between values: just below v, just above v, or past either end.
type cut[T any] struct {
	kind  cutKind
	value T
}

// Range is an interval over T ordered by the comparison function it was
// built with. The lower cut never lies above the upper cut.
type Range[T any] struct {
	lower   cut[T]
	upper   cut[T]
	compare func(a, b T) int
}

// LessThan returns (-inf, v).
func LessThan[T any](v T, compare func(a, b T) int) Range[T] {
	return Range[T]{lower: cut[T]{kind: belowAll}, upper: cut[T]{kind: belowValue, value: v}, compare: compare}
}

// AtMost returns (-inf, v].
func AtMost[T any](v T, compare func(a, b T) int) Range[T] {
	return Range[T]{lower: cut[T]{kind: belowAll}, upper: cut[T]{kind: aboveValue, value: v}, compare: compare}
}

// GreaterThan returns (v, +inf).
func GreaterThan[T any](v T, compare func(a, b T) int) Range[T] {
	return Range[T]{lower: cut[T]{kind: aboveValue, value: v}, upper: cut[T]{kind: aboveAll}, compare: compare}
}

// AtLeast returns [v, +inf).
func AtLeast[T any](v T, compare func(a, b T) int) Range[T] {
	return Range[T]{lower: cut[T]{kind: belowValue, value: v}, upper: cut[T]{kind: aboveAll}, compare: compare}
}

// ClosedRange returns [lower, upper]. ok is false when lower > upper.
func ClosedRange[T any](lower, upper T, compare func(a, b T) int) (Range[T], bool) {
	return newRange(cut[T]{kind: belowValue, value: lower}, cut[T]{kind: aboveValue, value: upper}, compare)
}

// OpenRange returns (lower, upper). ok is false when the interval holds no value.
func OpenRange[T any](lower, upper T, compare func(a, b T) int) (Range[T], bool) {
	return newRange(cut[T]{kind: aboveValue, value: lower}, cut[T]{kind: belowValue, value: upper}, compare)
}

// ClosedOpenRange returns [lower, upper).
func ClosedOpenRange[T any](lower, upper T, compare func(a, b T) int) (Range[T], bool) {
	return newRange(cut[T]{kind: belowValue, value: lower}, cut[T]{kind: belowValue, value: upper}, compare)
}

// OpenClosedRange returns (lower, upper].
func OpenClosedRange[T any](lower, upper T, compare func(a, b T) int) (Range[T], bool) {
	return newRange(cut[T]{kind: aboveValue, value: lower}, cut[T]{kind: aboveValue, value: upper}, compare)
}

// AllValues returns (-inf, +inf).
func AllValues[T any](compare func(a, b T) int) Range[T] {
	return Range[T]{lower: cut[T]{kind: belowAll}, upper: cut[T]{kind: aboveAll}, compare: compare}
}

func newRange[T any](lower, upper cut[T], compare func(a, b T) int) (Range[T], bool) {
	r := Range[T]{lower: lower, upper: upper, compare: compare}
	if r.compareCuts(lower, upper) >= 0 {
		return Range[T]{}, false
	}
	return r, true
}

func (r Range[T]) compareCuts(a, b cut[T]) int {
	switch {
	case a.kind == b.kind && (a.kind == belowAll || a.kind == aboveAll):
		return 0
	case a.kind == belowAll || b.kind == aboveAll:
		return -1
	case a.kind == aboveAll || b.kind == belowAll:
		return 1
	}
	if c := r.compare(a.value, b.value); c != 0 {
		return c
	}
	return cmp.Compare(a.kind, b.kind)
}

// cutBelow reports whether the cut lies below v.
func (r Range[T]) cutBelow(c cut[T], v T) bool {
	switch c.kind {
	case belowAll:
		return true
	case aboveAll:
		return false
	case belowValue:
		return r.compare(c.value, v) <= 0
	default:
		return r.compare(c.value, v) < 0
	}
}

func (r Range[T]) HasLowerBound() bool {
	return r.lower.kind != belowAll
}

func (r Range[T]) HasUpperBound() bool {
	return r.upper.kind != aboveAll
}

// LowerEndpoint returns the lower endpoint; ok is false when unbounded below.
func (r Range[T]) LowerEndpoint() (v T, ok bool) {
	return r.lower.value, r.HasLowerBound()
}

// UpperEndpoint returns the upper endpoint; ok is false when unbounded above.
func (r Range[T]) UpperEndpoint() (v T, ok bool) {
	return r.upper.value, r.HasUpperBound()
}

// LowerBoundType is only meaningful when HasLowerBound is true.
func (r Range[T]) LowerBoundType() BoundType {
	if r.lower.kind == belowValue {
		return BoundClosed
	}
	return BoundOpen
}

// UpperBoundType is only meaningful when HasUpperBound is true.
func (r Range[T]) UpperBoundType() BoundType {
	if r.upper.kind == aboveValue {
		return BoundClosed
	}
	return BoundOpen
}

// Contains reports whether v lies inside the interval.
func (r Range[T]) Contains(v T) bool {
	return r.cutBelow(r.lower, v) && !r.cutBelow(r.upper, v)
}

// Encloses reports whether every value of other also lies in r.
func (r Range[T]) Encloses(other Range[T]) bool {
	return r.compareCuts(r.lower, other.lower) <= 0 && r.compareCuts(r.upper, other.upper) >= 0
}

// IsConnected reports whether the union of r and other is itself an interval.
func (r Range[T]) IsConnected(other Range[T]) bool {
	return r.compareCuts(r.lower, other.upper) <= 0 && r.compareCuts(other.lower, r.upper) <= 0
}

// IsEmpty reports whether the interval holds no value, like [1, 1).
func (r Range[T]) IsEmpty() bool {
	return r.compareCuts(r.lower, r.upper) == 0
}

// Intersection returns the largest interval enclosed by both r and other.
// ok is false when they share no value.
func (r Range[T]) Intersection(other Range[T]) (Range[T], bool) {
	lower, upper := r.lower, r.upper
	if r.compareCuts(other.lower, lower) > 0 {
		lower = other.lower
	}
	if r.compareCuts(other.upper, upper) < 0 {
		upper = other.upper
	}
	return newRange(lower, upper, r.compare)
}

// Equal reports whether both intervals have the same bounds.
func (r Range[T]) Equal(other Range[T]) bool {
	return r.compareCuts(r.lower, other.lower) == 0 && r.compareCuts(r.upper, other.upper) == 0
}

func (r Range[T]) String() string {
	var lower, upper string
	switch r.lower.kind {
	case belowAll:
		lower = "(-∞"
	case belowValue:
		lower = fmt.Sprintf("[%v", r.lower.value)
	default:
		lower = fmt.Sprintf("(%v", r.lower.value)
	}
	switch r.upper.kind {
	case aboveAll:
		upper = "+∞)"
	case aboveValue:
		upper = fmt.Sprintf("%v]", r.upper.value)
	default:
		upper = fmt.Sprintf("%v)", r.upper.value)
	}
	return lower + ".." + upper
}
