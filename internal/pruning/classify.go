// Package pruning computes, for a distributed table and a set of filter
// predicates, the minimal sound superset of shards that could contain
// matching rows. Predicates are normalized into an OR of ANDs, each AND
// branch is folded into a constraint instance, and shard intervals are
// searched per instance.
package pruning

import (
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/query/parser"
	"github.com/tessera-db/tessera/pkg/types"
)

// CompareClass classifies a comparison against the partition column.
type CompareClass int

const (
	ClassUnknown CompareClass = iota
	ClassLess
	ClassLessEqual
	ClassEqual
	ClassGreaterEqual
	ClassGreater
	ClassNotEqual
)

func (c CompareClass) String() string {
	switch c {
	case ClassLess:
		return "<"
	case ClassLessEqual:
		return "<="
	case ClassEqual:
		return "="
	case ClassGreaterEqual:
		return ">="
	case ClassGreater:
		return ">"
	case ClassNotEqual:
		return "<>"
	default:
		return "?"
	}
}

// condition is one slot in a prune node: either a classified restriction
// on the partition column, or an opaque marker for a predicate the
// classifier could not interpret. Opaque markers carry no bound but
// still matter for soundness bookkeeping.
type condition struct {
	opaque  bool
	class   CompareClass
	hashed  bool
	value   types.Value
	members []types.Value
}

var opaqueCondition = condition{opaque: true}

// classifyContext carries the per-call classification inputs.
type classifyContext struct {
	column string
	method metadata.PartitionMethod
}

// classify decides whether a leaf predicate is a usable restriction on
// the partition column and assigns its comparison class. Anything the
// classifier cannot interpret becomes an opaque marker, never an error.
func classify(expr parser.Expression, ctx *classifyContext) *condition {
	switch e := expr.(type) {
	case *parser.ComparisonExpr:
		return classifyComparison(e, ctx)
	case *parser.InExpr:
		return classifyMembership(e, ctx)
	default:
		// NOT, IS NULL, bare literals and columns are never interpreted.
		op := opaqueCondition
		return &op
	}
}

// classifyComparison handles binary comparisons. Usable only when
// exactly one side is a constant and the other is the partition column
// (or the reserved pre-hashed column). NULL constants are rejected.
func classifyComparison(e *parser.ComparisonExpr, ctx *classifyContext) *condition {
	var col *parser.ColumnRef
	var lit *parser.Literal
	class := compareClass(e.Op)

	if c, ok := e.Left.(*parser.ColumnRef); ok {
		if l, ok := e.Right.(*parser.Literal); ok {
			col, lit = c, l
		}
	} else if c, ok := e.Right.(*parser.ColumnRef); ok {
		if l, ok := e.Left.(*parser.Literal); ok {
			// Constant on the left mirrors the operator.
			col, lit = c, l
			class = mirrorClass(class)
		}
	}

	if col == nil || lit == nil || lit.Value.IsNull() {
		op := opaqueCondition
		return &op
	}

	if col.Name == metadata.ReservedHashedColumn {
		// Pre-computed hash tokens only make sense for hash tables and
		// only as integer equality.
		if ctx.method == metadata.MethodHash && class == ClassEqual && lit.Value.Kind == types.KindInt {
			return &condition{class: ClassEqual, hashed: true, value: lit.Value}
		}
		op := opaqueCondition
		return &op
	}

	if col.Name != ctx.column {
		op := opaqueCondition
		return &op
	}

	return &condition{class: class, value: lit.Value}
}

// classifyMembership handles IN lists. Usable only for positive
// membership on the partition column with all-constant elements; NULL
// elements are skipped and an all-NULL (or empty) list is unusable.
func classifyMembership(e *parser.InExpr, ctx *classifyContext) *condition {
	op := opaqueCondition
	if e.Not {
		return &op
	}
	col, ok := e.Expr.(*parser.ColumnRef)
	if !ok || col.Name != ctx.column {
		return &op
	}

	var members []types.Value
	for _, v := range e.Values {
		lit, ok := v.(*parser.Literal)
		if !ok {
			return &op
		}
		if lit.Value.IsNull() {
			continue
		}
		members = append(members, lit.Value)
	}
	if len(members) == 0 {
		return &op
	}

	return &condition{class: ClassEqual, members: members}
}

// compareClass maps a parser operator to its comparison class.
func compareClass(op parser.CompareOp) CompareClass {
	switch op {
	case parser.CmpEq:
		return ClassEqual
	case parser.CmpNe:
		return ClassNotEqual
	case parser.CmpLt:
		return ClassLess
	case parser.CmpLe:
		return ClassLessEqual
	case parser.CmpGt:
		return ClassGreater
	case parser.CmpGe:
		return ClassGreaterEqual
	default:
		return ClassUnknown
	}
}

// mirrorClass flips a comparison class for a constant-on-the-left
// comparison (5 < col means col > 5).
func mirrorClass(c CompareClass) CompareClass {
	switch c {
	case ClassLess:
		return ClassGreater
	case ClassLessEqual:
		return ClassGreaterEqual
	case ClassGreater:
		return ClassLess
	case ClassGreaterEqual:
		return ClassLessEqual
	default:
		return c
	}
}
