package shardroute

import "github.com/cockroachdb/errors"

// Generator turns one predicate shape into a route value. ok is false when
// the predicate cannot be used for pruning; that is an expected outcome and
// never an error.
type Generator[V RightValue] interface {
	Generate(rightValue V, column Column, parameters []any) (value RouteValue, ok bool)
}

// CompareOperatorGenerator handles =, <, >, <= and >=.
type CompareOperatorGenerator struct {
	Clock Clock
}

var supportedCompareOperators = map[string]struct{}{
	"=":  {},
	"<":  {},
	">":  {},
	"<=": {},
	">=": {},
}

func (g CompareOperatorGenerator) Generate(rightValue CompareRightValue, column Column, parameters []any) (RouteValue, bool) {
	operator := rightValue.Operator
	if _, ok := supportedCompareOperators[operator]; !ok {
		return nil, false
	}
	if value, ok := expressionValue(rightValue.Expression, parameters); ok {
		resolve := resolveDomain
		if operator == "=" {
			resolve = resolveEqualityDomain
		}
		d, values, err := resolve(value)
		if err != nil {
			return abstain(column, err)
		}
		routeValue, err := d.compare(column, operator, values[0])
		if err != nil {
			return abstain(column, err)
		}
		return routeValue, true
	}
	// now() is only evaluated for equality; ranges over an opaque expression abstain.
	if operator == "=" && isNowExpression(rightValue.Expression) {
		routeValue, err := NewListRouteValue(column, canonicalTime(clockOf(g.Clock).Now()))
		if err != nil {
			return abstain(column, err)
		}
		return routeValue, true
	}
	return nil, false
}

// InOperatorGenerator handles IN lists. Every member has to evaluate.
type InOperatorGenerator struct {
	Clock Clock
}

func (g InOperatorGenerator) Generate(rightValue InRightValue, column Column, parameters []any) (RouteValue, bool) {
	if len(rightValue.Expressions) == 0 {
		return nil, false
	}
	raw := make([]any, 0, len(rightValue.Expressions))
	for _, expr := range rightValue.Expressions {
		value, ok := evaluate(expr, parameters, g.Clock)
		if !ok {
			return nil, false
		}
		raw = append(raw, value)
	}
	d, values, err := resolveEqualityDomain(raw...)
	if err != nil {
		return abstain(column, err)
	}
	routeValue, err := d.list(column, values)
	if err != nil {
		return abstain(column, err)
	}
	return routeValue, true
}

// BetweenAndOperatorGenerator handles BETWEEN ... AND ... as a closed range.
type BetweenAndOperatorGenerator struct {
	Clock Clock
}

func (g BetweenAndOperatorGenerator) Generate(rightValue BetweenRightValue, column Column, parameters []any) (RouteValue, bool) {
	between, ok := evaluate(rightValue.Between, parameters, g.Clock)
	if !ok {
		return nil, false
	}
	and, ok := evaluate(rightValue.And, parameters, g.Clock)
	if !ok {
		return nil, false
	}
	d, values, err := resolveDomain(between, and)
	if err != nil {
		return abstain(column, err)
	}
	routeValue, ok, err := d.closed(column, values[0], values[1])
	if err != nil {
		return abstain(column, err)
	}
	if !ok {
		traceLog("between bounds of %s are inverted: %v > %v", column, values[0], values[1])
		return nil, false
	}
	return routeValue, true
}

// evaluate returns the value of a literal, a bound parameter or now().
func evaluate(expr Expression, parameters []any, clock Clock) (any, bool) {
	if value, ok := expressionValue(expr, parameters); ok {
		return value, true
	}
	if isNowExpression(expr) {
		return clockOf(clock).Now(), true
	}
	return nil, false
}

func clockOf(clock Clock) Clock {
	if clock == nil {
		return SystemClock{}
	}
	return clock
}

func abstain(column Column, err error) (RouteValue, bool) {
	if errors.Is(err, ErrTypeMismatch) {
		debugLog("cannot resolve route value for %s: %v", column, err)
	} else {
		errorLog("cannot resolve route value for %s: %v", column, err)
	}
	return nil, false
}
