package pruning

import (
	"testing"

	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/query/parser"
)

func parseFilters(t *testing.T, input string) []parser.Expression {
	t.Helper()
	expr, err := parser.ParseFilter(input)
	if err != nil {
		t.Fatalf("ParseFilter(%q) returned error: %v", input, err)
	}
	return parser.SplitConjuncts(expr)
}

func rangeCtx() *classifyContext {
	return &classifyContext{column: "a", method: metadata.MethodRange}
}

// countClassified returns how many conditions in the branch carry a
// usable bound.
func countClassified(b branch) int {
	n := 0
	for _, c := range b {
		if !c.opaque {
			n++
		}
	}
	return n
}

func TestNormalizeSingleComparison(t *testing.T) {
	branches := normalize(parseFilters(t, "a = 5"), rangeCtx())

	if len(branches) != 1 {
		t.Fatalf("got %d branches, want 1", len(branches))
	}
	if len(branches[0]) != 1 || branches[0][0].class != ClassEqual {
		t.Errorf("branch = %+v, want single equality condition", branches[0])
	}
}

func TestNormalizeConjunction(t *testing.T) {
	branches := normalize(parseFilters(t, "a > 10 AND a < 100"), rangeCtx())

	if len(branches) != 1 {
		t.Fatalf("got %d branches, want 1", len(branches))
	}
	if len(branches[0]) != 2 {
		t.Errorf("branch has %d conditions, want 2", len(branches[0]))
	}
}

func TestNormalizeDisjunction(t *testing.T) {
	branches := normalize(parseFilters(t, "a = 1 OR a = 2 OR a = 3"), rangeCtx())

	if len(branches) != 3 {
		t.Fatalf("got %d branches, want 3", len(branches))
	}
	for i, b := range branches {
		if len(b) != 1 || b[0].class != ClassEqual {
			t.Errorf("branch %d = %+v, want single equality", i, b)
		}
	}
}

func TestNormalizeDistributesAndOverOr(t *testing.T) {
	branches := normalize(parseFilters(t, "a > 10 AND (a = 20 OR a = 30)"), rangeCtx())

	if len(branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(branches))
	}
	for i, b := range branches {
		if len(b) != 2 {
			t.Errorf("branch %d has %d conditions, want range bound plus equality", i, len(b))
		}
	}
}

func TestNormalizeTwoOrChildren(t *testing.T) {
	// (a=1 OR a=2) AND (a=3 OR a=4) combines each cross-child pair of
	// alternatives exactly once.
	branches := normalize(parseFilters(t, "(a = 1 OR a = 2) AND (a = 3 OR a = 4)"), rangeCtx())

	if len(branches) != 4 {
		t.Fatalf("got %d branches, want 4", len(branches))
	}
	for i, b := range branches {
		if countClassified(b) != 2 {
			t.Errorf("branch %d has %d classified conditions, want 2", i, countClassified(b))
		}
	}
}

func TestNormalizeNestedOrFlattens(t *testing.T) {
	// Nested ORs flatten into one disjunction during the build pass.
	branches := normalize(parseFilters(t, "a = 1 OR (a = 2 OR a = 3)"), rangeCtx())

	if len(branches) != 3 {
		t.Fatalf("got %d branches, want 3", len(branches))
	}
}

func TestNormalizeOpaquePredicates(t *testing.T) {
	// A restriction on a different column is opaque but still occupies
	// a branch slot.
	branches := normalize(parseFilters(t, "b = 5"), rangeCtx())
	if len(branches) != 1 {
		t.Fatalf("got %d branches, want 1", len(branches))
	}
	if !branches[0][0].opaque {
		t.Error("expected opaque condition for non-partition column")
	}

	// NOT is never interpreted.
	branches = normalize(parseFilters(t, "NOT a = 5"), rangeCtx())
	if len(branches) != 1 || !branches[0][0].opaque {
		t.Error("expected NOT expression to become an opaque marker")
	}

	// NULL comparisons are unusable.
	branches = normalize(parseFilters(t, "a = NULL"), rangeCtx())
	if len(branches) != 1 || !branches[0][0].opaque {
		t.Error("expected NULL comparison to become an opaque marker")
	}
}

func TestNormalizeOpaqueInsideOr(t *testing.T) {
	// An uninterpretable disjunct becomes its own opaque-only branch.
	branches := normalize(parseFilters(t, "a = 1 OR b = 2"), rangeCtx())

	if len(branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(branches))
	}
	opaqueBranches := 0
	for _, b := range branches {
		if countClassified(b) == 0 {
			opaqueBranches++
		}
	}
	if opaqueBranches != 1 {
		t.Errorf("got %d opaque-only branches, want 1", opaqueBranches)
	}
}

func TestClassifyMirroredComparison(t *testing.T) {
	branches := normalize(parseFilters(t, "10 < a"), rangeCtx())

	if len(branches) != 1 || len(branches[0]) != 1 {
		t.Fatalf("unexpected branches %+v", branches)
	}
	if branches[0][0].class != ClassGreater {
		t.Errorf("class = %v, want > after mirroring", branches[0][0].class)
	}
}

func TestClassifyMembership(t *testing.T) {
	branches := normalize(parseFilters(t, "a IN (1, 2, 3)"), rangeCtx())

	if len(branches) != 1 || len(branches[0]) != 1 {
		t.Fatalf("unexpected branches %+v", branches)
	}
	cond := branches[0][0]
	if cond.opaque || len(cond.members) != 3 {
		t.Errorf("condition = %+v, want membership with 3 values", cond)
	}

	// NULL elements are skipped; an all-NULL list is unusable.
	branches = normalize(parseFilters(t, "a IN (1, NULL)"), rangeCtx())
	if branches[0][0].opaque || len(branches[0][0].members) != 1 {
		t.Errorf("expected NULL element skipped, got %+v", branches[0][0])
	}

	branches = normalize(parseFilters(t, "a IN (NULL)"), rangeCtx())
	if !branches[0][0].opaque {
		t.Error("expected all-NULL membership list to be opaque")
	}

	branches = normalize(parseFilters(t, "a NOT IN (1)"), rangeCtx())
	if !branches[0][0].opaque {
		t.Error("expected NOT IN to be opaque")
	}
}

func TestClassifyHashedColumn(t *testing.T) {
	hashCtx := &classifyContext{column: "a", method: metadata.MethodHash}

	branches := normalize(parseFilters(t, "$hashed = 42"), hashCtx)
	if len(branches) != 1 || len(branches[0]) != 1 {
		t.Fatalf("unexpected branches %+v", branches)
	}
	if !branches[0][0].hashed {
		t.Error("expected pre-hashed equality condition")
	}

	// Pre-hashed restrictions are meaningless on range tables.
	branches = normalize(parseFilters(t, "$hashed = 42"), rangeCtx())
	if !branches[0][0].opaque {
		t.Error("expected $hashed on a range table to be opaque")
	}

	// Only integer equality is a valid token restriction.
	branches = normalize(parseFilters(t, "$hashed > 42"), hashCtx)
	if !branches[0][0].opaque {
		t.Error("expected non-equality $hashed restriction to be opaque")
	}
}

func TestPullUpRemovesRedundantNodes(t *testing.T) {
	// A single-condition OR collapses into its parent.
	ctx := rangeCtx()
	tree := buildTree(parseFilters(t, "a = 1 AND (a = 2)"), ctx)
	tree = pullUp(tree)

	if tree == nil {
		t.Fatal("tree vanished")
	}
	if len(tree.children) != 0 {
		t.Errorf("expected no child nodes after pull-up, got %d", len(tree.children))
	}
	if len(tree.conditions) != 2 {
		t.Errorf("expected 2 conditions after pull-up, got %d", len(tree.conditions))
	}
}
