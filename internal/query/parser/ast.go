package parser

import (
	"strings"

	"github.com/tessera-db/tessera/pkg/types"
)

// Expression is a node in a filter expression tree.
type Expression interface {
	String() string
	exprNode()
}

// ColumnRef references a column by name.
type ColumnRef struct {
	Name string
}

func (c *ColumnRef) exprNode() {}

func (c *ColumnRef) String() string {
	return c.Name
}

// Literal is a typed constant.
type Literal struct {
	Value types.Value
}

func (l *Literal) exprNode() {}

func (l *Literal) String() string {
	return l.Value.String()
}

// LogicalOp is a boolean connective.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpAnd {
		return "AND"
	}
	return "OR"
}

// LogicalExpr is an n-ary AND or OR. Nested expressions with the same
// connective are flattened during parsing.
type LogicalExpr struct {
	Op   LogicalOp
	Args []Expression
}

func (e *LogicalExpr) exprNode() {}

func (e *LogicalExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, arg := range e.Args {
		parts[i] = arg.String()
	}
	return "(" + strings.Join(parts, " "+e.Op.String()+" ") + ")"
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (op CompareOp) String() string {
	switch op {
	case CmpEq:
		return "="
	case CmpNe:
		return "<>"
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	default:
		return "?"
	}
}

// ComparisonExpr compares two operands.
type ComparisonExpr struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func (e *ComparisonExpr) exprNode() {}

func (e *ComparisonExpr) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

// InExpr tests membership in a literal list.
type InExpr struct {
	Expr   Expression
	Values []Expression
	Not    bool
}

func (e *InExpr) exprNode() {}

func (e *InExpr) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = v.String()
	}
	op := " IN ("
	if e.Not {
		op = " NOT IN ("
	}
	return e.Expr.String() + op + strings.Join(parts, ", ") + ")"
}

// NotExpr negates its operand.
type NotExpr struct {
	Operand Expression
}

func (e *NotExpr) exprNode() {}

func (e *NotExpr) String() string {
	return "NOT " + e.Operand.String()
}

// IsNullExpr tests for NULL.
type IsNullExpr struct {
	Expr Expression
	Not  bool
}

func (e *IsNullExpr) exprNode() {}

func (e *IsNullExpr) String() string {
	if e.Not {
		return e.Expr.String() + " IS NOT NULL"
	}
	return e.Expr.String() + " IS NULL"
}

// SplitConjuncts splits a filter into its top-level AND members. A
// non-AND expression yields a single conjunct.
func SplitConjuncts(expr Expression) []Expression {
	if le, ok := expr.(*LogicalExpr); ok && le.Op == OpAnd {
		var out []Expression
		for _, arg := range le.Args {
			out = append(out, SplitConjuncts(arg)...)
		}
		return out
	}
	return []Expression{expr}
}
