// Package shardroute resolves SQL predicates into route values that a sharding
// algorithm consumes to decide which partitions a query has to reach.
package shardroute

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Column identifies the left-hand side of a predicate.
type Column struct {
	Name      string
	TableName string
}

// NewColumn creates a column owned by the given table or alias.
func NewColumn(name, tableName string) Column {
	return Column{Name: name, TableName: tableName}
}

func (c Column) String() string {
	if c.TableName == "" {
		return c.Name
	}
	return c.TableName + "." + c.Name
}

// RouteValue is the resolved form of one predicate. It is either a
// ListRouteValue or a RangeRouteValue and always belongs to exactly one column.
type RouteValue interface {
	fmt.Stringer

	// Column returns the column the value was resolved for.
	Column() Column

	// Intersect narrows the receiver by another route value of the same column
	// and value type. ok is false when no value satisfies both.
	Intersect(other RouteValue) (value RouteValue, ok bool, err error)

	isRouteValue()
}

// ListRouteValue is satisfied by membership in a non-empty set of values.
type ListRouteValue[T comparable] struct {
	column Column
	values []T
}

// NewListRouteValue builds a list route value. Duplicates are dropped and the
// first-seen order is kept.
func NewListRouteValue[T comparable](column Column, values ...T) (ListRouteValue[T], error) {
	if len(values) == 0 {
		return ListRouteValue[T]{}, errors.Wrapf(ErrEmptyRouteValues, "column %s", column)
	}
	return ListRouteValue[T]{column: column, values: lo.Uniq(values)}, nil
}

func (v ListRouteValue[T]) Column() Column {
	return v.column
}

// Values returns a copy of the set.
func (v ListRouteValue[T]) Values() []T {
	out := make([]T, len(v.values))
	copy(out, v.values)
	return out
}

// Contains reports whether value is a member of the set.
func (v ListRouteValue[T]) Contains(value T) bool {
	return lo.Contains(v.values, value)
}

func (v ListRouteValue[T]) Len() int {
	return len(v.values)
}

func (v ListRouteValue[T]) Intersect(other RouteValue) (RouteValue, bool, error) {
	if other.Column() != v.column {
		return nil, false, errors.Newf("cannot intersect %s with %s", v.column, other.Column())
	}
	var kept []T
	switch o := other.(type) {
	case ListRouteValue[T]:
		kept = lo.Intersect(v.values, o.values)
	case RangeRouteValue[T]:
		kept = lo.Filter(v.values, func(item T, _ int) bool {
			return o.valueRange.Contains(item)
		})
	default:
		return nil, false, errors.Wrapf(ErrTypeMismatch, "%s: %T and %T", v.column, v, other)
	}
	if len(kept) == 0 {
		return nil, false, nil
	}
	return ListRouteValue[T]{column: v.column, values: kept}, true, nil
}

func (v ListRouteValue[T]) String() string {
	parts := lo.Map(v.values, func(item T, _ int) string {
		return fmt.Sprintf("%v", item)
	})
	return fmt.Sprintf("%s in (%s)", v.column, strings.Join(parts, ", "))
}

func (ListRouteValue[T]) isRouteValue() {}

func (ListRouteValue[T]) isListRouteValue() {}

// listRouteValue matches any ListRouteValue instantiation.
type listRouteValue interface {
	RouteValue
	isListRouteValue()
}

// RangeRouteValue is satisfied by every value inside an interval that has at
// least one bound.
type RangeRouteValue[T any] struct {
	column     Column
	valueRange Range[T]
}

// NewRangeRouteValue builds a range route value. A range without any bound
// cannot prune anything and is rejected.
func NewRangeRouteValue[T any](column Column, r Range[T]) (RangeRouteValue[T], error) {
	if !r.HasLowerBound() && !r.HasUpperBound() {
		return RangeRouteValue[T]{}, errors.Wrapf(ErrUnboundedRange, "column %s", column)
	}
	return RangeRouteValue[T]{column: column, valueRange: r}, nil
}

func (v RangeRouteValue[T]) Column() Column {
	return v.column
}

// ValueRange returns the interval of the route value.
func (v RangeRouteValue[T]) ValueRange() Range[T] {
	return v.valueRange
}

// Equal reports whether both values cover the same interval of the same column.
func (v RangeRouteValue[T]) Equal(other RangeRouteValue[T]) bool {
	return v.column == other.column && v.valueRange.Equal(other.valueRange)
}

func (v RangeRouteValue[T]) Intersect(other RouteValue) (RouteValue, bool, error) {
	switch o := other.(type) {
	case listRouteValue:
		return o.Intersect(v)
	case RangeRouteValue[T]:
		if o.column != v.column {
			return nil, false, errors.Newf("cannot intersect %s with %s", v.column, o.column)
		}
		r, ok := v.valueRange.Intersection(o.valueRange)
		if !ok {
			return nil, false, nil
		}
		return RangeRouteValue[T]{column: v.column, valueRange: r}, true, nil
	}
	return nil, false, errors.Wrapf(ErrTypeMismatch, "%s: %T and %T", v.column, v, other)
}

func (v RangeRouteValue[T]) String() string {
	return fmt.Sprintf("%s in %s", v.column, v.valueRange)
}

func (RangeRouteValue[T]) isRouteValue() {}
