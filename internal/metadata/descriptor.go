// Package metadata holds the shard layout for distributed tables: shard
// intervals, partition methods, and the sorted descriptors the pruning
// engine searches against.
package metadata

import (
	"fmt"
	"math"
	"sort"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/partition"
	"github.com/tessera-db/tessera/pkg/types"
)

// PartitionMethod determines how rows map to shards.
type PartitionMethod string

const (
	// MethodNone marks single-shard tables with no partition column.
	MethodNone PartitionMethod = "none"
	// MethodHash partitions by murmur3 hash of the partition column.
	MethodHash PartitionMethod = "hash"
	// MethodRange partitions by value ranges of the partition column.
	MethodRange PartitionMethod = "range"
	// MethodAppend partitions by load order; intervals may overlap.
	MethodAppend PartitionMethod = "append"
)

// InvalidShardIndex is returned by shard searches that find no match.
const InvalidShardIndex = -1

// ReservedHashedColumn is the synthetic column name that carries
// pre-computed hash tokens in filter expressions. An equality constraint
// on it bypasses value hashing during pruning.
const ReservedHashedColumn = "$hashed"

// ShardInterval is one shard's value range. For hash tables the bounds
// are int32 hash tokens; for range and append tables they are values in
// the partition column's domain. Uninitialized shards have NULL bounds.
type ShardInterval struct {
	ID       int64
	MinValue types.Value
	MaxValue types.Value
}

// HasValidBounds reports whether both bounds are set.
func (si *ShardInterval) HasValidBounds() bool {
	return !si.MinValue.IsNull() && !si.MaxValue.IsNull()
}

// Copy returns an independent copy of the interval.
func (si *ShardInterval) Copy() *ShardInterval {
	cp := *si
	return &cp
}

// TableDescriptor is the pruning engine's view of one distributed table:
// its partition scheme, its shard intervals sorted by minimum bound, and
// the comparators for the partition column's domain.
type TableDescriptor struct {
	TableName       string
	PartitionColumn string
	Method          PartitionMethod

	// SortedIntervals holds intervals with valid bounds ordered by
	// MinValue. Uninitialized intervals are kept separately.
	SortedIntervals []*ShardInterval

	// UninitializedIntervals holds shards with NULL bounds. Their
	// presence disables binary search shortcuts.
	UninitializedIntervals []*ShardInterval

	// HasOverlappingIntervals is set when any two sorted intervals
	// overlap. Overlap forces exhaustive interval scans.
	HasOverlappingIntervals bool

	// HasUniformHashRanges is set for hash tables whose intervals tile
	// the int32 token space evenly, enabling direct index computation.
	HasUniformHashRanges bool

	// IntervalCompare orders shard interval bounds. For hash tables it
	// compares int32 tokens; otherwise it is the column comparator.
	IntervalCompare types.CompareFunc

	// ValueCompare orders values in the partition column's domain and
	// is used when folding predicate constants against each other.
	ValueCompare types.CompareFunc
}

// AllIntervals returns every shard interval, sorted first.
func (d *TableDescriptor) AllIntervals() []*ShardInterval {
	out := make([]*ShardInterval, 0, len(d.SortedIntervals)+len(d.UninitializedIntervals))
	out = append(out, d.SortedIntervals...)
	out = append(out, d.UninitializedIntervals...)
	return out
}

// ShardCount returns the total number of shards.
func (d *TableDescriptor) ShardCount() int {
	return len(d.SortedIntervals) + len(d.UninitializedIntervals)
}

// BuildDescriptor assembles a TableDescriptor from raw shard intervals.
// Intervals are sorted by minimum bound, overlap is detected, and hash
// tables are checked for uniform token tiling. Comparators default to
// the standard value comparator when nil; hash tables always compare
// intervals by token.
func BuildDescriptor(tableName, partitionColumn string, method PartitionMethod, intervals []*ShardInterval, valueCompare types.CompareFunc) (*TableDescriptor, error) {
	if valueCompare == nil {
		valueCompare = types.CompareValues
	}

	d := &TableDescriptor{
		TableName:       tableName,
		PartitionColumn: partitionColumn,
		Method:          method,
		ValueCompare:    valueCompare,
	}
	if method == MethodHash {
		d.IntervalCompare = partition.CompareTokens
	} else {
		d.IntervalCompare = valueCompare
	}

	for _, si := range intervals {
		if si.HasValidBounds() {
			d.SortedIntervals = append(d.SortedIntervals, si.Copy())
		} else {
			d.UninitializedIntervals = append(d.UninitializedIntervals, si.Copy())
		}
	}

	var sortErr error
	sort.SliceStable(d.SortedIntervals, func(i, j int) bool {
		c, err := d.IntervalCompare(d.SortedIntervals[i].MinValue, d.SortedIntervals[j].MinValue)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, errors.Wrap(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
			fmt.Sprintf("sorting shard intervals for table %s", tableName), sortErr)
	}

	for i := 1; i < len(d.SortedIntervals); i++ {
		c, err := d.IntervalCompare(d.SortedIntervals[i].MinValue, d.SortedIntervals[i-1].MaxValue)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
				fmt.Sprintf("checking interval overlap for table %s", tableName), err)
		}
		if c <= 0 {
			d.HasOverlappingIntervals = true
			break
		}
	}

	if method == MethodHash && len(d.UninitializedIntervals) == 0 {
		d.HasUniformHashRanges = hasUniformHashRanges(d.SortedIntervals)
	}

	return d, nil
}

// hasUniformHashRanges reports whether the intervals exactly match the
// even tiling produced by partition.CreateHashRanges.
func hasUniformHashRanges(intervals []*ShardInterval) bool {
	if len(intervals) == 0 {
		return false
	}
	expected, err := partition.CreateHashRanges(len(intervals))
	if err != nil {
		return false
	}
	for i, si := range intervals {
		if si.MinValue.Kind != types.KindInt || si.MaxValue.Kind != types.KindInt {
			return false
		}
		if int32(si.MinValue.Int) != expected[i].Min || int32(si.MaxValue.Int) != expected[i].Max {
			return false
		}
	}
	return true
}

// FindShardIntervalIndex locates the sorted interval containing value,
// or InvalidShardIndex if no interval contains it. For uniformly tiled
// hash tables the index is computed directly from the token; otherwise
// a binary search over the sorted intervals is used. Not valid for
// tables with overlapping intervals.
func (d *TableDescriptor) FindShardIntervalIndex(value types.Value) (int, error) {
	n := len(d.SortedIntervals)
	if n == 0 {
		return InvalidShardIndex, nil
	}

	if d.HasUniformHashRanges {
		if value.Kind != types.KindInt {
			return InvalidShardIndex, errors.New(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
				fmt.Sprintf("hash token must be an integer, got %s", value.Kind))
		}
		token := int32(value.Int)
		increment := (uint64(1) << 32) / uint64(n)
		idx := int(uint64(int64(token)-math.MinInt32) / increment)
		if idx >= n {
			idx = n - 1
		}
		return idx, nil
	}

	lo, hi := 0, n-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		si := d.SortedIntervals[mid]

		c, err := d.IntervalCompare(value, si.MinValue)
		if err != nil {
			return InvalidShardIndex, errors.Wrap(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
				"comparing value with shard minimum", err)
		}
		if c < 0 {
			hi = mid - 1
			continue
		}

		c, err = d.IntervalCompare(value, si.MaxValue)
		if err != nil {
			return InvalidShardIndex, errors.Wrap(errors.ErrCategoryMetadata, errors.CodeComparatorFailed,
				"comparing value with shard maximum", err)
		}
		if c > 0 {
			lo = mid + 1
			continue
		}

		return mid, nil
	}
	return InvalidShardIndex, nil
}

// FindShardInterval returns the interval containing value, or nil when
// no interval contains it.
func (d *TableDescriptor) FindShardInterval(value types.Value) (*ShardInterval, error) {
	idx, err := d.FindShardIntervalIndex(value)
	if err != nil || idx == InvalidShardIndex {
		return nil, err
	}
	return d.SortedIntervals[idx], nil
}
