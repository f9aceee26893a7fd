package pruning

import (
	"github.com/tessera-db/tessera/internal/query/parser"
)

// boolOp tags a prune node as a conjunction or disjunction.
type boolOp int

const (
	opAnd boolOp = iota
	opOr
)

func (op boolOp) String() string {
	if op == opAnd {
		return "AND"
	}
	return "OR"
}

// pruneNode is one node of the normalized boolean tree. It holds child
// nodes and condition slots. After the OR-flattening pass an OR node
// never carries condition slots directly. Each rewrite pass builds a
// fresh tree; nodes are never spliced between parents.
type pruneNode struct {
	op         boolOp
	children   []*pruneNode
	conditions []*condition
}

// contentCount returns the number of children plus conditions.
func (n *pruneNode) contentCount() int {
	return len(n.children) + len(n.conditions)
}

// buildTree constructs the initial AND/OR tree from the implicitly
// ANDed predicate list. Runs of the same boolean operator flatten into
// one node; every operator change starts a child node; leaves classify
// into conditions or opaque markers.
func buildTree(filters []parser.Expression, ctx *classifyContext) *pruneNode {
	root := &pruneNode{op: opAnd}
	for _, f := range filters {
		addExpression(root, f, ctx)
	}
	return root
}

// addExpression merges one predicate into node, flattening same-operator
// runs and descending into new child nodes on operator changes.
func addExpression(node *pruneNode, expr parser.Expression, ctx *classifyContext) {
	le, ok := expr.(*parser.LogicalExpr)
	if !ok {
		node.conditions = append(node.conditions, classify(expr, ctx))
		return
	}

	op := opAnd
	if le.Op == parser.OpOr {
		op = opOr
	}

	if op == node.op {
		for _, arg := range le.Args {
			addExpression(node, arg, ctx)
		}
		return
	}

	child := &pruneNode{op: op}
	for _, arg := range le.Args {
		addExpression(child, arg, ctx)
	}
	node.children = append(node.children, child)
}

// pullUp removes redundant nodes: any node with fewer than two total
// children+conditions is replaced by its single content, bottom-up.
// Empty nodes vanish. The returned tree shares no nodes with the input.
func pullUp(node *pruneNode) *pruneNode {
	out := &pruneNode{op: node.op}
	out.conditions = append(out.conditions, node.conditions...)

	for _, child := range node.children {
		c := pullUp(child)
		if c == nil {
			continue
		}
		switch {
		case c.contentCount() == 0:
			// nothing to keep
		case len(c.children) == 1 && len(c.conditions) == 0:
			out.children = append(out.children, c.children[0])
		case len(c.children) == 0 && len(c.conditions) == 1:
			out.conditions = append(out.conditions, c.conditions[0])
		default:
			out.children = append(out.children, c)
		}
	}

	if out.contentCount() == 0 {
		return nil
	}
	if len(out.children) == 1 && len(out.conditions) == 0 {
		return out.children[0]
	}
	return out
}

// flattenOrConditions enforces the canonical-form invariant: an OR node
// carries no direct condition slots. Each slot is wrapped into its own
// singleton AND child.
func flattenOrConditions(node *pruneNode) *pruneNode {
	if node == nil {
		return nil
	}

	out := &pruneNode{op: node.op}
	for _, child := range node.children {
		out.children = append(out.children, flattenOrConditions(child))
	}

	if node.op == opOr {
		for _, cond := range node.conditions {
			out.children = append(out.children, &pruneNode{
				op:         opAnd,
				conditions: []*condition{cond},
			})
		}
	} else {
		out.conditions = append(out.conditions, node.conditions...)
	}
	return out
}

// branch is one conjunctive clause of the OR-of-ANDs form.
type branch []*condition

// distribute converts the canonical tree into a flat OR of ANDs. An OR
// node concatenates its children's branches. An AND node combines its
// direct conditions with its OR children's alternatives: one OR child
// yields one branch per alternative; two or more OR children yield one
// branch per cross-child pair of alternatives, taken exactly once. The
// pairwise rule does not fully distribute three or more OR children;
// the dropped constraints only widen branches, which keeps the result a
// sound superset.
func distribute(node *pruneNode) []branch {
	if node == nil {
		return nil
	}

	if node.op == opOr {
		var out []branch
		for _, child := range node.children {
			out = append(out, distribute(child)...)
		}
		return out
	}

	base := append(branch(nil), node.conditions...)

	var childSets [][]branch
	for _, child := range node.children {
		set := distribute(child)
		if len(set) > 0 {
			childSets = append(childSets, set)
		}
	}

	switch len(childSets) {
	case 0:
		if len(base) == 0 {
			return nil
		}
		return []branch{base}
	case 1:
		var out []branch
		for _, alt := range childSets[0] {
			out = append(out, combineBranches(base, alt, nil))
		}
		return out
	default:
		var out []branch
		for i := 0; i < len(childSets); i++ {
			for j := i + 1; j < len(childSets); j++ {
				for _, a := range childSets[i] {
					for _, b := range childSets[j] {
						out = append(out, combineBranches(base, a, b))
					}
				}
			}
		}
		return out
	}
}

// combineBranches concatenates condition lists into a fresh branch.
func combineBranches(parts ...branch) branch {
	var out branch
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// normalize runs the full pipeline: build, pull-up, OR-flatten,
// distribute. The result is the list of AND-branches to accumulate.
func normalize(filters []parser.Expression, ctx *classifyContext) []branch {
	tree := buildTree(filters, ctx)
	tree = pullUp(tree)
	tree = flattenOrConditions(tree)
	branches := distribute(tree)
	tracef("normalized %d filters into %d branches", len(filters), len(branches))
	return branches
}
