package pruning

import (
	"fmt"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/partition"
	"github.com/tessera-db/tessera/pkg/types"
)

// searchShards returns the shard intervals one instance cannot exclude.
// Strategy selection, cheapest first: hash direct lookup, equality and
// membership binary lookup, range binary search, exhaustive scan.
// Layouts with overlapping or uninitialized intervals always take the
// exhaustive path since binary search cannot be trusted there.
func searchShards(inst *PruningInstance, desc *metadata.TableDescriptor) ([]*metadata.ShardInterval, error) {
	canBinarySearch := !desc.HasOverlappingIntervals && len(desc.UninitializedIntervals) == 0

	switch {
	case !canBinarySearch:
		tracef("table %s: exhaustive scan (overlap or uninitialized intervals)", desc.TableName)
		return exhaustiveScan(inst, desc)
	case inst.HashedEqual != nil:
		tracef("table %s: hash direct lookup", desc.TableName)
		return hashLookup(inst, desc)
	case inst.hasEqualityClass():
		tracef("table %s: equality lookup", desc.TableName)
		return equalityLookup(inst, desc)
	case inst.hasRangeBounds() && desc.Method != metadata.MethodHash:
		tracef("table %s: range binary search", desc.TableName)
		return rangeSearch(inst, desc)
	default:
		tracef("table %s: exhaustive scan (no applicable strategy)", desc.TableName)
		return exhaustiveScan(inst, desc)
	}
}

// hashLookup resolves a pre-hashed equality token to its single shard.
// When an ordinary equality bound is also present the two derivations
// must agree on the shard, otherwise the branch selects nothing.
func hashLookup(inst *PruningInstance, desc *metadata.TableDescriptor) ([]*metadata.ShardInterval, error) {
	idx, err := desc.FindShardIntervalIndex(*inst.HashedEqual)
	if err != nil {
		return nil, err
	}
	if idx == metadata.InvalidShardIndex {
		return nil, nil
	}

	if inst.Equal != nil {
		key, err := hashKey(*inst.Equal, desc)
		if err != nil {
			return nil, err
		}
		eqIdx, err := desc.FindShardIntervalIndex(key)
		if err != nil {
			return nil, err
		}
		if eqIdx != idx {
			return nil, nil
		}
	}

	return []*metadata.ShardInterval{desc.SortedIntervals[idx]}, nil
}

// equalityLookup binary-searches per equality and membership value and
// unions the hits. A missed membership value contributes nothing; only
// when every value misses is the branch empty. A single non-hash
// candidate is re-checked against any remaining range bounds.
func equalityLookup(inst *PruningInstance, desc *metadata.TableDescriptor) ([]*metadata.ShardInterval, error) {
	candidates := make([]types.Value, 0, 1+len(inst.MemberValues))
	if inst.Equal != nil {
		candidates = append(candidates, *inst.Equal)
	}
	candidates = append(candidates, inst.MemberValues...)

	seen := make(map[int]bool)
	var indexes []int
	for _, v := range candidates {
		key := v
		if desc.Method == metadata.MethodHash {
			hashed, err := hashKey(v, desc)
			if err != nil {
				return nil, err
			}
			key = hashed
		}
		idx, err := desc.FindShardIntervalIndex(key)
		if err != nil {
			return nil, err
		}
		if idx == metadata.InvalidShardIndex || seen[idx] {
			continue
		}
		seen[idx] = true
		indexes = append(indexes, idx)
	}

	var result []*metadata.ShardInterval
	for _, idx := range indexes {
		result = append(result, desc.SortedIntervals[idx])
	}

	// One candidate shard from an equality lookup may still be excluded
	// by range bounds the lookup ignored, e.g. an equality and a range
	// filter on shard boundaries co-occurring in subquery pushdown.
	if len(result) == 1 && desc.Method != metadata.MethodHash && inst.hasRangeBounds() {
		matches, err := shardMatches(inst, result[0], desc)
		if err != nil {
			return nil, err
		}
		if !matches {
			return nil, nil
		}
	}

	return result, nil
}

// effectiveBound is one side of the combined range constraint.
type effectiveBound struct {
	value     types.Value
	inclusive bool
}

// combineLowerBounds merges > and >= bounds into the tighter effective
// lower bound.
func combineLowerBounds(inst *PruningInstance, cmp types.CompareFunc) (*effectiveBound, error) {
	switch {
	case inst.GreaterThan != nil && inst.GreaterEqual != nil:
		c, err := cmp(*inst.GreaterThan, *inst.GreaterEqual)
		if err != nil {
			return nil, err
		}
		if c >= 0 {
			return &effectiveBound{value: *inst.GreaterThan, inclusive: false}, nil
		}
		return &effectiveBound{value: *inst.GreaterEqual, inclusive: true}, nil
	case inst.GreaterThan != nil:
		return &effectiveBound{value: *inst.GreaterThan, inclusive: false}, nil
	case inst.GreaterEqual != nil:
		return &effectiveBound{value: *inst.GreaterEqual, inclusive: true}, nil
	default:
		return nil, nil
	}
}

// combineUpperBounds merges < and <= bounds into the tighter effective
// upper bound.
func combineUpperBounds(inst *PruningInstance, cmp types.CompareFunc) (*effectiveBound, error) {
	switch {
	case inst.LessThan != nil && inst.LessEqual != nil:
		c, err := cmp(*inst.LessThan, *inst.LessEqual)
		if err != nil {
			return nil, err
		}
		if c <= 0 {
			return &effectiveBound{value: *inst.LessThan, inclusive: false}, nil
		}
		return &effectiveBound{value: *inst.LessEqual, inclusive: true}, nil
	case inst.LessThan != nil:
		return &effectiveBound{value: *inst.LessThan, inclusive: false}, nil
	case inst.LessEqual != nil:
		return &effectiveBound{value: *inst.LessEqual, inclusive: true}, nil
	default:
		return nil, nil
	}
}

// rangeSearch binary-searches the sorted interval array for the first
// interval that can satisfy the effective lower bound and the last that
// can satisfy the effective upper bound, and returns the slice between.
func rangeSearch(inst *PruningInstance, desc *metadata.TableDescriptor) ([]*metadata.ShardInterval, error) {
	lower, err := combineLowerBounds(inst, desc.ValueCompare)
	if err != nil {
		return nil, comparatorError(desc, err)
	}
	upper, err := combineUpperBounds(inst, desc.ValueCompare)
	if err != nil {
		return nil, comparatorError(desc, err)
	}

	intervals := desc.SortedIntervals
	lowerIdx := 0
	upperIdx := len(intervals) - 1

	if lower != nil {
		lowerIdx, err = lowerShardBoundary(lower.value, lower.inclusive, intervals, desc.IntervalCompare)
		if err != nil {
			return nil, comparatorError(desc, err)
		}
		if lowerIdx == metadata.InvalidShardIndex {
			return nil, nil
		}
	}
	if upper != nil {
		upperIdx, err = upperShardBoundary(upper.value, upper.inclusive, intervals, desc.IntervalCompare)
		if err != nil {
			return nil, comparatorError(desc, err)
		}
		if upperIdx == metadata.InvalidShardIndex {
			return nil, nil
		}
	}

	if lowerIdx > upperIdx {
		return nil, nil
	}

	result := make([]*metadata.ShardInterval, 0, upperIdx-lowerIdx+1)
	for i := lowerIdx; i <= upperIdx; i++ {
		result = append(result, intervals[i])
	}
	return result, nil
}

// lowerShardBoundary finds the first interval whose maximum admits a
// value satisfying the lower bound: max > bound, or max >= bound when
// the bound is inclusive. Returns InvalidShardIndex when the bound lies
// above every interval.
func lowerShardBoundary(bound types.Value, inclusive bool, intervals []*metadata.ShardInterval, cmp types.CompareFunc) (int, error) {
	result := metadata.InvalidShardIndex
	lo, hi := 0, len(intervals)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c, err := cmp(intervals[mid].MaxValue, bound)
		if err != nil {
			return metadata.InvalidShardIndex, err
		}
		if c > 0 || (inclusive && c == 0) {
			result = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return result, nil
}

// upperShardBoundary finds the last interval whose minimum admits a
// value satisfying the upper bound: min < bound, or min <= bound when
// the bound is inclusive. Returns InvalidShardIndex when the bound lies
// below every interval.
func upperShardBoundary(bound types.Value, inclusive bool, intervals []*metadata.ShardInterval, cmp types.CompareFunc) (int, error) {
	result := metadata.InvalidShardIndex
	lo, hi := 0, len(intervals)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c, err := cmp(intervals[mid].MinValue, bound)
		if err != nil {
			return metadata.InvalidShardIndex, err
		}
		if c < 0 || (inclusive && c == 0) {
			result = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return result, nil
}

// exhaustiveScan tests every shard interval against every bound in the
// instance. A shard is excluded only when some bound proves no overlap
// is possible; intervals with unknown boundaries are always kept.
func exhaustiveScan(inst *PruningInstance, desc *metadata.TableDescriptor) ([]*metadata.ShardInterval, error) {
	var result []*metadata.ShardInterval
	for _, si := range desc.AllIntervals() {
		matches, err := shardMatches(inst, si, desc)
		if err != nil {
			return nil, err
		}
		if matches {
			result = append(result, si)
		}
	}
	return result, nil
}

// shardMatches reports whether an interval could contain a row that
// satisfies the instance's bounds.
func shardMatches(inst *PruningInstance, si *metadata.ShardInterval, desc *metadata.TableDescriptor) (bool, error) {
	if !si.HasValidBounds() {
		return true, nil
	}

	cmp := desc.IntervalCompare

	if inst.HashedEqual != nil {
		inside, err := valueInInterval(*inst.HashedEqual, si, cmp)
		if err != nil {
			return false, comparatorError(desc, err)
		}
		if !inside {
			return false, nil
		}
	}

	if inst.Equal != nil {
		key := *inst.Equal
		if desc.Method == metadata.MethodHash {
			hashed, err := hashKey(key, desc)
			if err != nil {
				return false, err
			}
			key = hashed
		}
		inside, err := valueInInterval(key, si, cmp)
		if err != nil {
			return false, comparatorError(desc, err)
		}
		if !inside {
			return false, nil
		}
	}

	// A membership list excludes a shard only when every member value
	// falls outside the interval.
	if len(inst.MemberValues) > 0 {
		anyInside := false
		for _, v := range inst.MemberValues {
			key := v
			if desc.Method == metadata.MethodHash {
				hashed, err := hashKey(v, desc)
				if err != nil {
					return false, err
				}
				key = hashed
			}
			inside, err := valueInInterval(key, si, cmp)
			if err != nil {
				return false, comparatorError(desc, err)
			}
			if inside {
				anyInside = true
				break
			}
		}
		if !anyInside {
			return false, nil
		}
	}

	// Range bounds only apply to the raw value domain; for hash tables
	// they cannot exclude anything.
	if desc.Method != metadata.MethodHash {
		if inst.GreaterEqual != nil {
			c, err := cmp(si.MaxValue, *inst.GreaterEqual)
			if err != nil {
				return false, comparatorError(desc, err)
			}
			if c < 0 {
				return false, nil
			}
		}
		if inst.GreaterThan != nil {
			c, err := cmp(si.MaxValue, *inst.GreaterThan)
			if err != nil {
				return false, comparatorError(desc, err)
			}
			if c <= 0 {
				return false, nil
			}
		}
		if inst.LessEqual != nil {
			c, err := cmp(si.MinValue, *inst.LessEqual)
			if err != nil {
				return false, comparatorError(desc, err)
			}
			if c > 0 {
				return false, nil
			}
		}
		if inst.LessThan != nil {
			c, err := cmp(si.MinValue, *inst.LessThan)
			if err != nil {
				return false, comparatorError(desc, err)
			}
			if c >= 0 {
				return false, nil
			}
		}
	}

	return true, nil
}

// valueInInterval reports min <= v <= max.
func valueInInterval(v types.Value, si *metadata.ShardInterval, cmp types.CompareFunc) (bool, error) {
	c, err := cmp(v, si.MinValue)
	if err != nil {
		return false, err
	}
	if c < 0 {
		return false, nil
	}
	c, err = cmp(v, si.MaxValue)
	if err != nil {
		return false, err
	}
	return c <= 0, nil
}

// hashKey maps a raw partition value into the hash token domain.
func hashKey(v types.Value, desc *metadata.TableDescriptor) (types.Value, error) {
	token, err := partition.HashValue(v)
	if err != nil {
		return types.Value{}, errors.Wrap(errors.ErrCategoryPruning, errors.CodeUnexpected,
			fmt.Sprintf("table %s: hashing partition value", desc.TableName), err)
	}
	return types.IntValue(int64(token)), nil
}
