package pruning

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/query/parser"
	"github.com/tessera-db/tessera/pkg/types"
)

// traceEnabled toggles verbose pruning trace output. It has no effect
// on results.
var traceEnabled atomic.Bool

// SetTraceLogging enables or disables verbose tracing of normalization
// and pruning decisions.
func SetTraceLogging(enabled bool) {
	traceEnabled.Store(enabled)
}

func tracef(format string, args ...interface{}) {
	if traceEnabled.Load() {
		log.Printf("[PRUNE] "+format, args...)
	}
}

// PruneShards computes the shards of desc that could contain rows
// matching the implicitly ANDed filter list. The result is an owned,
// deep-copied, deduplicated list of shard intervals: a sound superset
// of the shards holding matching rows. The second return value is the
// single equality value the predicates pin the partition column to,
// when exactly one such value exists across every surviving branch; it
// is nil otherwise and lets the caller route single-shard queries.
func PruneShards(desc *metadata.TableDescriptor, filters []parser.Expression) ([]*metadata.ShardInterval, *types.Value, error) {
	if desc.ShardCount() == 0 {
		return nil, nil, nil
	}
	if ContainsFalseClause(filters) {
		tracef("table %s: literal false conjunct, no shards", desc.TableName)
		return nil, nil, nil
	}
	if desc.Method == metadata.MethodNone {
		// Reference tables have a single shard holding everything.
		return copyIntervals(desc.AllIntervals()), nil, nil
	}
	if desc.ValueCompare == nil || desc.IntervalCompare == nil {
		return nil, nil, errors.New(errors.ErrCategoryMetadata, errors.CodeMissingComparator,
			fmt.Sprintf("table %s: partition descriptor is missing comparator functions", desc.TableName))
	}

	ctx := &classifyContext{column: desc.PartitionColumn, method: desc.Method}
	branches := normalize(filters, ctx)
	if len(branches) == 0 {
		// No constraint was found anywhere in the predicate tree.
		return copyIntervals(desc.AllIntervals()), nil, nil
	}

	selected := make(map[int64]bool)
	var ordered []*metadata.ShardInterval

	singleValue, singleValid := (*types.Value)(nil), true

	for _, b := range branches {
		inst, err := buildInstance(b, desc)
		if err != nil {
			return nil, nil, err
		}
		if inst.IsPartial {
			continue
		}

		unconstrained := !inst.HasValidConstraint
		if desc.Method == metadata.MethodHash && !inst.hasEqualityClass() {
			// Range bounds are meaningless once values are hashed.
			unconstrained = true
		}
		if unconstrained {
			tracef("table %s: unconstrained branch, selecting all shards", desc.TableName)
			return copyIntervals(desc.AllIntervals()), nil, nil
		}

		if singleValid {
			singleValue, singleValid = trackSingleValue(inst, singleValue)
		}

		if inst.EvaluatesToFalse {
			tracef("table %s: always-false branch", desc.TableName)
			continue
		}

		shards, err := searchShards(inst, desc)
		if err != nil {
			return nil, nil, err
		}
		for _, si := range shards {
			if !selected[si.ID] {
				selected[si.ID] = true
				ordered = append(ordered, si)
			}
		}
	}

	tracef("table %s: %d of %d shards survive", desc.TableName, len(ordered), desc.ShardCount())

	if !singleValid {
		singleValue = nil
	}
	return copyIntervals(ordered), singleValue, nil
}

// trackSingleValue folds one branch's equality values into the running
// single-value candidate. Returns the candidate and whether a single
// value is still possible.
func trackSingleValue(inst *PruningInstance, current *types.Value) (*types.Value, bool) {
	candidates := make([]types.Value, 0, 1+len(inst.MemberValues))
	if inst.Equal != nil {
		candidates = append(candidates, *inst.Equal)
	}
	candidates = append(candidates, inst.MemberValues...)

	if len(candidates) == 0 {
		// A branch with no literal equality cannot pin the column.
		return nil, false
	}

	branchValue := candidates[0]
	for _, v := range candidates[1:] {
		if !v.Equal(branchValue) {
			return nil, false
		}
	}

	if current == nil {
		return &branchValue, true
	}
	if !current.Equal(branchValue) {
		return nil, false
	}
	return current, true
}

// ContainsFalseClause reports whether the predicate list carries a
// literal boolean false conjunct at the top level.
func ContainsFalseClause(filters []parser.Expression) bool {
	for _, f := range filters {
		if lit, ok := f.(*parser.Literal); ok {
			if lit.Value.Kind == types.KindBool && !lit.Value.Bool {
				return true
			}
		}
	}
	return false
}

// copyIntervals deep-copies shard intervals so the result outlives the
// caller's metadata snapshot.
func copyIntervals(intervals []*metadata.ShardInterval) []*metadata.ShardInterval {
	if len(intervals) == 0 {
		return nil
	}
	out := make([]*metadata.ShardInterval, len(intervals))
	for i, si := range intervals {
		out[i] = si.Copy()
	}
	return out
}
