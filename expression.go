package shardroute

import "strings"

// Expression is the right-hand side of a predicate as the parser saw it.
// Start and stop positions are byte offsets into the SQL text and are only
// used for diagnostics.
type Expression interface {
	StartIndex() int
	StopIndex() int
}

// LiteralExpression carries a value known at parse time.
type LiteralExpression struct {
	Start int
	Stop  int
	Value any
}

func NewLiteralExpression(start, stop int, value any) LiteralExpression {
	return LiteralExpression{Start: start, Stop: stop, Value: value}
}

func (e LiteralExpression) StartIndex() int { return e.Start }
func (e LiteralExpression) StopIndex() int  { return e.Stop }

// ComplexExpression carries the raw text of an expression whose value is not
// statically known, such as a function call.
type ComplexExpression struct {
	Start int
	Stop  int
	Text  string
}

func NewComplexExpression(start, stop int, text string) ComplexExpression {
	return ComplexExpression{Start: start, Stop: stop, Text: text}
}

func (e ComplexExpression) StartIndex() int { return e.Start }
func (e ComplexExpression) StopIndex() int  { return e.Stop }

// ParameterMarkerExpression refers to a bound parameter by its zero-based
// position in the parameter list.
type ParameterMarkerExpression struct {
	Start          int
	Stop           int
	ParameterIndex int
}

func NewParameterMarkerExpression(start, stop, index int) ParameterMarkerExpression {
	return ParameterMarkerExpression{Start: start, Stop: stop, ParameterIndex: index}
}

func (e ParameterMarkerExpression) StartIndex() int { return e.Start }
func (e ParameterMarkerExpression) StopIndex() int  { return e.Stop }

// isNowExpression matches now() regardless of case. Whitespace is allowed
// around the token and inside the parentheses, never within the name.
func isNowExpression(expr Expression) bool {
	complexExpr, ok := expr.(ComplexExpression)
	if !ok {
		return false
	}
	text := strings.TrimSpace(complexExpr.Text)
	if len(text) < 3 || !strings.EqualFold(text[:3], "now") {
		return false
	}
	args, ok := strings.CutPrefix(strings.TrimSpace(text[3:]), "(")
	if !ok {
		return false
	}
	return strings.TrimSpace(args) == ")"
}

// expressionValue returns the statically known value of a literal or a bound
// parameter. Any other expression has no value.
func expressionValue(expr Expression, parameters []any) (any, bool) {
	switch e := expr.(type) {
	case LiteralExpression:
		return e.Value, true
	case ParameterMarkerExpression:
		if e.ParameterIndex < 0 || e.ParameterIndex >= len(parameters) {
			return nil, false
		}
		return parameters[e.ParameterIndex], true
	}
	return nil, false
}
