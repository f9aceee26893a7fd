package metadata

import (
	"math"
	"testing"

	"github.com/tessera-db/tessera/internal/partition"
	"github.com/tessera-db/tessera/pkg/types"
)

// rangeIntervals builds contiguous range intervals [1,1000], [1001,2000], ...
func rangeIntervals(count int) []*ShardInterval {
	out := make([]*ShardInterval, count)
	for i := 0; i < count; i++ {
		out[i] = &ShardInterval{
			ID:       int64(100 + i),
			MinValue: types.IntValue(int64(i*1000 + 1)),
			MaxValue: types.IntValue(int64((i + 1) * 1000)),
		}
	}
	return out
}

func hashIntervals(t *testing.T, count int) []*ShardInterval {
	t.Helper()
	ranges, err := partition.CreateHashRanges(count)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]*ShardInterval, count)
	for i, r := range ranges {
		out[i] = &ShardInterval{
			ID:       int64(200 + i),
			MinValue: types.IntValue(int64(r.Min)),
			MaxValue: types.IntValue(int64(r.Max)),
		}
	}
	return out
}

func TestBuildDescriptor_SortsIntervals(t *testing.T) {
	intervals := rangeIntervals(4)
	// shuffle
	shuffled := []*ShardInterval{intervals[2], intervals[0], intervals[3], intervals[1]}

	d, err := BuildDescriptor("events", "id", MethodRange, shuffled, nil)
	if err != nil {
		t.Fatalf("BuildDescriptor returned error: %v", err)
	}
	for i := 1; i < len(d.SortedIntervals); i++ {
		if d.SortedIntervals[i].MinValue.Int <= d.SortedIntervals[i-1].MinValue.Int {
			t.Fatalf("intervals not sorted at %d: %v then %v", i,
				d.SortedIntervals[i-1].MinValue, d.SortedIntervals[i].MinValue)
		}
	}
	if d.HasOverlappingIntervals {
		t.Error("contiguous intervals incorrectly flagged as overlapping")
	}
}

func TestBuildDescriptor_DetectsOverlap(t *testing.T) {
	intervals := []*ShardInterval{
		{ID: 1, MinValue: types.IntValue(1), MaxValue: types.IntValue(100)},
		{ID: 2, MinValue: types.IntValue(50), MaxValue: types.IntValue(150)},
	}
	d, err := BuildDescriptor("logs", "ts", MethodAppend, intervals, nil)
	if err != nil {
		t.Fatalf("BuildDescriptor returned error: %v", err)
	}
	if !d.HasOverlappingIntervals {
		t.Error("overlapping intervals not detected")
	}
}

func TestBuildDescriptor_SeparatesUninitialized(t *testing.T) {
	intervals := []*ShardInterval{
		{ID: 1, MinValue: types.IntValue(1), MaxValue: types.IntValue(100)},
		{ID: 2, MinValue: types.NullValue(), MaxValue: types.NullValue()},
	}
	d, err := BuildDescriptor("logs", "ts", MethodAppend, intervals, nil)
	if err != nil {
		t.Fatalf("BuildDescriptor returned error: %v", err)
	}
	if len(d.SortedIntervals) != 1 || len(d.UninitializedIntervals) != 1 {
		t.Fatalf("expected 1 sorted and 1 uninitialized, got %d and %d",
			len(d.SortedIntervals), len(d.UninitializedIntervals))
	}
	if d.ShardCount() != 2 {
		t.Errorf("ShardCount = %d, want 2", d.ShardCount())
	}
}

func TestBuildDescriptor_UniformHashDetection(t *testing.T) {
	d, err := BuildDescriptor("users", "id", MethodHash, hashIntervals(t, 8), nil)
	if err != nil {
		t.Fatalf("BuildDescriptor returned error: %v", err)
	}
	if !d.HasUniformHashRanges {
		t.Error("uniform hash tiling not detected")
	}

	// Perturb one boundary and the detection must fail.
	intervals := hashIntervals(t, 8)
	intervals[3].MinValue = types.IntValue(intervals[3].MinValue.Int + 1)
	d, err = BuildDescriptor("users", "id", MethodHash, intervals, nil)
	if err != nil {
		t.Fatalf("BuildDescriptor returned error: %v", err)
	}
	if d.HasUniformHashRanges {
		t.Error("non-uniform tiling incorrectly detected as uniform")
	}
}

func TestFindShardIntervalIndex_Range(t *testing.T) {
	d, err := BuildDescriptor("events", "id", MethodRange, rangeIntervals(4), nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value int64
		want  int
	}{
		{1, 0},
		{1000, 0},
		{1001, 1},
		{2500, 2},
		{4000, 3},
		{4001, InvalidShardIndex},
		{0, InvalidShardIndex},
	}
	for _, tt := range tests {
		got, err := d.FindShardIntervalIndex(types.IntValue(tt.value))
		if err != nil {
			t.Fatalf("FindShardIntervalIndex(%d) returned error: %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("FindShardIntervalIndex(%d) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestFindShardIntervalIndex_UniformHash(t *testing.T) {
	const count = 4
	d, err := BuildDescriptor("users", "id", MethodHash, hashIntervals(t, count), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Direct computation must agree with the interval bounds for tokens
	// across the whole space.
	tokens := []int32{math.MinInt32, -1, 0, 1, math.MaxInt32, 1 << 30, -(1 << 30)}
	for _, token := range tokens {
		idx, err := d.FindShardIntervalIndex(types.IntValue(int64(token)))
		if err != nil {
			t.Fatalf("FindShardIntervalIndex(%d) returned error: %v", token, err)
		}
		if idx == InvalidShardIndex {
			t.Fatalf("token %d mapped to no shard", token)
		}
		si := d.SortedIntervals[idx]
		if int64(token) < si.MinValue.Int || int64(token) > si.MaxValue.Int {
			t.Errorf("token %d mapped to shard %d with bounds [%d,%d]",
				token, idx, si.MinValue.Int, si.MaxValue.Int)
		}
	}
}

func TestFindShardInterval_ReturnsInterval(t *testing.T) {
	d, err := BuildDescriptor("events", "id", MethodRange, rangeIntervals(2), nil)
	if err != nil {
		t.Fatal(err)
	}
	si, err := d.FindShardInterval(types.IntValue(1500))
	if err != nil {
		t.Fatal(err)
	}
	if si == nil || si.ID != 101 {
		t.Errorf("expected shard 101, got %+v", si)
	}

	si, err = d.FindShardInterval(types.IntValue(9999))
	if err != nil {
		t.Fatal(err)
	}
	if si != nil {
		t.Errorf("expected nil for out-of-range value, got %+v", si)
	}
}
