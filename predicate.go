package shardroute

// RightValue describes what a column is compared against. The set of shapes
// is closed: CompareRightValue, InRightValue and BetweenRightValue.
type RightValue interface {
	isRightValue()
}

// CompareRightValue is `column <operator> expression`.
type CompareRightValue struct {
	Operator   string
	Expression Expression
}

// InRightValue is `column IN (expressions...)`.
type InRightValue struct {
	Expressions []Expression
}

// BetweenRightValue is `column BETWEEN between AND and`.
type BetweenRightValue struct {
	Between Expression
	And     Expression
}

func (CompareRightValue) isRightValue() {}
func (InRightValue) isRightValue()      {}
func (BetweenRightValue) isRightValue() {}

// Predicate binds a right value to the column it constrains.
type Predicate struct {
	Column     Column
	RightValue RightValue
}
