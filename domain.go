package shardroute

import (
	"cmp"
	"database/sql/driver"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// domain builds route values for one value type. Every supported type is an
// instantiation of ordering, so the operator semantics live in one place.
type domain interface {
	list(column Column, values []any) (RouteValue, error)
	compare(column Column, operator string, value any) (RouteValue, error)
	closed(column Column, lower, upper any) (RouteValue, bool, error)
}

type ordering[T comparable] struct {
	order func(a, b T) int
}

var (
	int64Domain   domain = ordering[int64]{order: cmp.Compare[int64]}
	uint64Domain  domain = ordering[uint64]{order: cmp.Compare[uint64]}
	float64Domain domain = ordering[float64]{order: cmp.Compare[float64]}
	stringDomain  domain = ordering[string]{order: cmp.Compare[string]}
	timeDomain    domain = ordering[time.Time]{order: time.Time.Compare}
)

func (o ordering[T]) cast(value any) (T, error) {
	v, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrTypeMismatch, "expected %T, got %T", zero, value)
	}
	return v, nil
}

func (o ordering[T]) list(column Column, values []any) (RouteValue, error) {
	typed := make([]T, 0, len(values))
	for _, value := range values {
		v, err := o.cast(value)
		if err != nil {
			return nil, err
		}
		typed = append(typed, v)
	}
	return NewListRouteValue(column, typed...)
}

func (o ordering[T]) compare(column Column, operator string, value any) (RouteValue, error) {
	v, err := o.cast(value)
	if err != nil {
		return nil, err
	}
	var r Range[T]
	switch operator {
	case "=":
		return NewListRouteValue(column, v)
	case "<":
		r = LessThan(v, o.order)
	case ">":
		r = GreaterThan(v, o.order)
	case "<=":
		r = AtMost(v, o.order)
	case ">=":
		r = AtLeast(v, o.order)
	default:
		return nil, errors.Newf("unsupported operator %q", operator)
	}
	return NewRangeRouteValue(column, r)
}

func (o ordering[T]) closed(column Column, lower, upper any) (RouteValue, bool, error) {
	from, err := o.cast(lower)
	if err != nil {
		return nil, false, err
	}
	to, err := o.cast(upper)
	if err != nil {
		return nil, false, err
	}
	r, ok := ClosedRange(from, to, o.order)
	if !ok {
		return nil, false, nil
	}
	value, err := NewRangeRouteValue(column, r)
	return value, err == nil, err
}

func domainOf(value any) (domain, error) {
	switch value.(type) {
	case int64:
		return int64Domain, nil
	case uint64:
		return uint64Domain, nil
	case float64:
		return float64Domain, nil
	case string:
		return stringDomain, nil
	case time.Time:
		return timeDomain, nil
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "unsupported value type %T", value)
}

// normalize maps a literal or bound parameter onto one of the supported value
// types (int64, uint64, float64, string, time.Time).
func normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errors.Wrap(ErrTypeMismatch, "null value")
	case time.Time:
		return canonicalTime(v), nil
	case *time.Time:
		if v == nil {
			return nil, errors.Wrap(ErrTypeMismatch, "null value")
		}
		return canonicalTime(*v), nil
	case string:
		return v, nil
	case []byte:
		return cast.ToStringE(v)
	case *big.Int:
		return normalizeBigInt(v)
	case Numeric:
		return normalizeBigInt(v.I)
	case UInt256:
		return normalizeBigInt(v.I)
	case driver.Valuer:
		inner, err := v.Value()
		if err != nil {
			return nil, errors.Wrapf(ErrTypeMismatch, "valuer %T: %v", value, err)
		}
		return normalize(inner)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, errors.Wrap(ErrTypeMismatch, "null value")
		}
		return normalize(rv.Elem().Interface())
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "unsupported value type %T", value)
}

// unify brings normalized values onto a single type. Mixed numbers widen to
// float64 when any member is fractional and to int64 otherwise; strings next
// to timestamps are parsed as timestamps.
func unify(values []any) ([]any, error) {
	kinds := lo.Uniq(lo.Map(values, func(v any, _ int) reflect.Type {
		return reflect.TypeOf(v)
	}))
	if len(kinds) <= 1 {
		return values, nil
	}

	has := func(sample any) bool {
		return lo.Contains(kinds, reflect.TypeOf(sample))
	}
	out := make([]any, len(values))
	switch {
	case has(""), has(time.Time{}):
		if len(kinds) != 2 || !has("") || !has(time.Time{}) {
			return nil, errors.Wrapf(ErrTypeMismatch, "cannot unify %v", kinds)
		}
		for i, v := range values {
			t, err := cast.ToTimeE(v)
			if err != nil {
				return nil, errors.Wrapf(ErrTypeMismatch, "%v is not a timestamp", v)
			}
			out[i] = canonicalTime(t)
		}
	case has(float64(0)):
		for i, v := range values {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, errors.Wrap(ErrTypeMismatch, err.Error())
			}
			out[i] = f
		}
	default:
		for i, v := range values {
			if u, ok := v.(uint64); ok && u > math.MaxInt64 {
				return nil, errors.Wrapf(ErrTypeMismatch, "%d overflows int64", u)
			}
			n, err := cast.ToInt64E(v)
			if err != nil {
				return nil, errors.Wrap(ErrTypeMismatch, err.Error())
			}
			out[i] = n
		}
	}
	return out, nil
}

// resolveDomain normalizes and unifies raw values and picks their domain.
func resolveDomain(raw ...any) (domain, []any, error) {
	values := make([]any, 0, len(raw))
	for _, v := range raw {
		n, err := normalize(v)
		if err != nil {
			return nil, nil, err
		}
		values = append(values, n)
	}
	values, err := unify(values)
	if err != nil {
		return nil, nil, err
	}
	d, err := domainOf(values[0])
	if err != nil {
		return nil, nil, err
	}
	return d, values, nil
}

// canonicalTime drops the zone and the monotonic reading so that equal
// instants are equal under ==.
func canonicalTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// equality is the domain of comparable values without a known order, such as
// booleans or fixed-size UUIDs. Only membership can be expressed over it.
type equality struct{}

var equalityDomain domain = equality{}

func (equality) list(column Column, values []any) (value RouteValue, err error) {
	// a comparable struct can still hold an incomparable value in an interface field
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, errors.Wrapf(ErrTypeMismatch, "%v", r)
		}
	}()
	return NewListRouteValue(column, values...)
}

func (e equality) compare(column Column, operator string, value any) (RouteValue, error) {
	if operator != "=" {
		return nil, errors.Wrapf(ErrTypeMismatch, "%T has no order for %q", value, operator)
	}
	return e.list(column, []any{value})
}

func (equality) closed(column Column, lower, upper any) (RouteValue, bool, error) {
	return nil, false, errors.Wrapf(ErrTypeMismatch, "%T has no order", lower)
}

// resolveEqualityDomain is resolveDomain for = and IN. Values outside the
// ordered domains still resolve when they all share one comparable type.
func resolveEqualityDomain(raw ...any) (domain, []any, error) {
	d, values, err := resolveDomain(raw...)
	if err == nil || !errors.Is(err, ErrTypeMismatch) {
		return d, values, err
	}
	plain := make([]any, 0, len(raw))
	for _, v := range raw {
		if valuer, ok := v.(driver.Valuer); ok {
			inner, valueErr := valuer.Value()
			if valueErr != nil {
				return nil, nil, err
			}
			v = inner
		}
		plain = append(plain, v)
	}
	if !sameComparableType(plain) {
		return nil, nil, err
	}
	return equalityDomain, plain, nil
}

// sameComparableType reports whether every value has one dynamic type whose
// values compare with ==. Nulls and pointers never qualify.
func sameComparableType(values []any) bool {
	if len(values) == 0 || values[0] == nil {
		return false
	}
	typ := reflect.TypeOf(values[0])
	if !typ.Comparable() || typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Interface {
		return false
	}
	return lo.EveryBy(values, func(v any) bool {
		return reflect.TypeOf(v) == typ
	})
}
