package query

// Expr is a node of a parsed predicate.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the compiler.
//
// Expr types:
//   - Comparison: operand <op> operand
//   - And: both sides must match
//   - Or: either side must match
//   - Not: negation
//   - Const: TRUEPREDICATE / FALSEPREDICATE
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Operand is one side of a Comparison.
//
// This is a sealed interface - only types in this package implement it.
//
// Operand types:
//   - Property: a property of the queried type, e.g. age
//   - Literal: an inline constant, e.g. 11, 'Tim', true, null
//   - Param: a positional argument, e.g. $0
type Operand interface {
	operandNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEqual      Op = "=="
	OpNotEqual   Op = "!="
	OpLess       Op = "<"
	OpLessEq     Op = "<="
	OpGreater    Op = ">"
	OpGreaterEq  Op = ">="
	OpBeginsWith Op = "BEGINSWITH"
	OpEndsWith   Op = "ENDSWITH"
	OpContains   Op = "CONTAINS"
)

// ordering reports whether op requires an ordered property type.
func (op Op) ordering() bool {
	switch op {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// stringOp reports whether op only applies to strings.
func (op Op) stringOp() bool {
	switch op {
	case OpBeginsWith, OpEndsWith, OpContains:
		return true
	}
	return false
}

// flip returns the operator with its operands swapped, so that
// 10 < age becomes age > 10. String operators do not flip.
func (op Op) flip() (Op, bool) {
	switch op {
	case OpEqual, OpNotEqual:
		return op, true
	case OpLess:
		return OpGreater, true
	case OpLessEq:
		return OpGreaterEq, true
	case OpGreater:
		return OpLess, true
	case OpGreaterEq:
		return OpLessEq, true
	}
	return op, false
}

// Comparison compares two operands.
//
// Example:
//
//	age >= $0
//	name BEGINSWITH[c] 'ti'
//
// At least one side must be a Property. CaseInsensitive is set by the [c]
// modifier and only applies to string comparisons.
type Comparison struct {
	Left            Operand
	Op              Op
	Right           Operand
	CaseInsensitive bool
	Pos             int
}

func (Comparison) exprNode() {}

// And matches when both sides match.
type And struct {
	Left, Right Expr
}

func (And) exprNode() {}

// Or matches when either side matches.
type Or struct {
	Left, Right Expr
}

func (Or) exprNode() {}

// Not inverts its operand.
type Not struct {
	Inner Expr
}

func (Not) exprNode() {}

// Const is TRUEPREDICATE or FALSEPREDICATE.
type Const bool

func (Const) exprNode() {}

// Property references a property of the queried type by name.
type Property struct {
	Name string
	Pos  int
}

func (Property) operandNode() {}

// Literal is an inline constant: nil, bool, int64, float64 or string.
type Literal struct {
	Value any
	Pos   int
}

func (Literal) operandNode() {}

// Param is a positional argument reference ($0, $1, ...).
type Param struct {
	Index int
	Pos   int
}

func (Param) operandNode() {}
