package partition

import (
	"math"
	"testing"

	"github.com/tessera-db/tessera/pkg/types"
)

func TestCreateHashRanges_CoversTokenSpace(t *testing.T) {
	for _, count := range []int{1, 2, 3, 4, 7, 16, 32} {
		ranges, err := CreateHashRanges(count)
		if err != nil {
			t.Fatalf("CreateHashRanges(%d) returned error: %v", count, err)
		}
		if len(ranges) != count {
			t.Fatalf("expected %d ranges, got %d", count, len(ranges))
		}
		if ranges[0].Min != math.MinInt32 {
			t.Errorf("count=%d: first range starts at %d, want %d", count, ranges[0].Min, math.MinInt32)
		}
		if ranges[count-1].Max != math.MaxInt32 {
			t.Errorf("count=%d: last range ends at %d, want %d", count, ranges[count-1].Max, math.MaxInt32)
		}
		for i := 1; i < count; i++ {
			if int64(ranges[i].Min) != int64(ranges[i-1].Max)+1 {
				t.Errorf("count=%d: gap between range %d and %d: %d..%d", count, i-1, i, ranges[i-1].Max, ranges[i].Min)
			}
		}
	}
}

func TestCreateHashRanges_InvalidCount(t *testing.T) {
	if _, err := CreateHashRanges(0); err == nil {
		t.Error("expected error for zero shard count")
	}
	if _, err := CreateHashRanges(-5); err == nil {
		t.Error("expected error for negative shard count")
	}
}

func TestHashValue_Deterministic(t *testing.T) {
	v := types.IntValue(12345)
	h1, err := HashValue(v)
	if err != nil {
		t.Fatalf("HashValue returned error: %v", err)
	}
	h2, err := HashValue(v)
	if err != nil {
		t.Fatalf("HashValue returned error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %d != %d", h1, h2)
	}
}

func TestHashValue_KindsDoNotCollide(t *testing.T) {
	hi, err := HashValue(types.IntValue(1))
	if err != nil {
		t.Fatal(err)
	}
	hb, err := HashValue(types.BoolValue(true))
	if err != nil {
		t.Fatal(err)
	}
	if hi == hb {
		t.Error("int 1 and bool true hashed to the same token")
	}
}

func TestHashValue_Null(t *testing.T) {
	if _, err := HashValue(types.NullValue()); err == nil {
		t.Error("expected error hashing NULL")
	}
}

func TestCompareTokens(t *testing.T) {
	got, err := CompareTokens(types.IntValue(-5), types.IntValue(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1 {
		t.Errorf("expected -5 < 10, got %d", got)
	}

	if _, err := CompareTokens(types.StringValue("x"), types.IntValue(1)); err == nil {
		t.Error("expected error for non-integer token")
	}
}
