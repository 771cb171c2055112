package shardroute

// Resolver selects the generator for a predicate shape. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	compare CompareOperatorGenerator
	in      InOperatorGenerator
	between BetweenAndOperatorGenerator
}

// NewResolver creates a resolver whose now() evaluations read clock. A nil
// clock means the system clock.
func NewResolver(clock Clock) *Resolver {
	clock = clockOf(clock)
	return &Resolver{
		compare: CompareOperatorGenerator{Clock: clock},
		in:      InOperatorGenerator{Clock: clock},
		between: BetweenAndOperatorGenerator{Clock: clock},
	}
}

// Generate resolves rightValue for column. Unknown shapes yield ok=false.
func (r *Resolver) Generate(rightValue RightValue, column Column, parameters []any) (RouteValue, bool) {
	switch v := rightValue.(type) {
	case CompareRightValue:
		return r.compare.Generate(v, column, parameters)
	case *CompareRightValue:
		if v != nil {
			return r.compare.Generate(*v, column, parameters)
		}
	case InRightValue:
		return r.in.Generate(v, column, parameters)
	case *InRightValue:
		if v != nil {
			return r.in.Generate(*v, column, parameters)
		}
	case BetweenRightValue:
		return r.between.Generate(v, column, parameters)
	case *BetweenRightValue:
		if v != nil {
			return r.between.Generate(*v, column, parameters)
		}
	}
	return nil, false
}

// GeneratePredicate resolves a predicate against its own column.
func (r *Resolver) GeneratePredicate(predicate Predicate, parameters []any) (RouteValue, bool) {
	return r.Generate(predicate.RightValue, predicate.Column, parameters)
}
