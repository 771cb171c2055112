package shardroute

import "github.com/cockroachdb/errors"

var (
	// ErrSyntax is returned by the parse boundary for malformed SQL text.
	ErrSyntax = errors.New("sql syntax error")

	// ErrTypeMismatch marks a literal whose runtime type cannot take part in the
	// attempted comparison. Generators never return it; they log it and abstain.
	ErrTypeMismatch = errors.New("route value type mismatch")

	// ErrEmptyRouteValues is returned when a list route value would carry no values.
	// An empty result is represented by the absence of a route value instead.
	ErrEmptyRouteValues = errors.New("list route value requires at least one value")

	// ErrUnboundedRange is returned when a range route value would match every value.
	ErrUnboundedRange = errors.New("range route value requires at least one bound")

	// ErrUnsupportedStatement is returned when a statement kind has no WHERE clause to inspect.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrUnsupportedEngine is returned for database engines without a parser.
	ErrUnsupportedEngine = errors.New("unsupported database engine")
)
