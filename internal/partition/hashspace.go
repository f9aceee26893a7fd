// Package partition implements hash partitioning for distributed tables.
// The int32 hash token space is tiled evenly across shards, and values are
// mapped into it with murmur3.
package partition

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/tessera-db/tessera/pkg/types"
)

// hashTokenCount is the size of the hash token space (2^32 tokens,
// spanning the full int32 range).
const hashTokenCount = uint64(1) << 32

// HashRange is a contiguous slice of the hash token space assigned to
// one shard. Both ends are inclusive.
type HashRange struct {
	Min int32
	Max int32
}

// CreateHashRanges tiles the int32 token space evenly across shardCount
// shards. The last shard absorbs any remainder so the ranges cover the
// space exactly.
func CreateHashRanges(shardCount int) ([]HashRange, error) {
	if shardCount <= 0 {
		return nil, fmt.Errorf("partition: shard count must be positive, got %d", shardCount)
	}

	increment := hashTokenCount / uint64(shardCount)
	if increment == 0 {
		return nil, fmt.Errorf("partition: shard count %d exceeds token space", shardCount)
	}

	ranges := make([]HashRange, shardCount)
	for i := 0; i < shardCount; i++ {
		min := int64(math.MinInt32) + int64(uint64(i)*increment)
		max := min + int64(increment) - 1
		if i == shardCount-1 {
			max = math.MaxInt32
		}
		ranges[i] = HashRange{Min: int32(min), Max: int32(max)}
	}
	return ranges, nil
}

// HashValue maps a value into the int32 hash token space. Values of
// different kinds never collide by construction since the kind is mixed
// into the hashed bytes.
func HashValue(v types.Value) (int32, error) {
	if v.IsNull() {
		return 0, fmt.Errorf("partition: cannot hash NULL value")
	}

	buf := make([]byte, 1, 16)
	buf[0] = byte(v.Kind)
	switch v.Kind {
	case types.KindInt:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case types.KindFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case types.KindString:
		buf = append(buf, v.Str...)
	case types.KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	default:
		return 0, fmt.Errorf("partition: cannot hash value of kind %s", v.Kind)
	}

	return int32(murmur3.Sum32(buf)), nil
}

// CompareTokens orders two int32 hash token values. It never fails and is
// the interval comparator for hash-partitioned tables.
func CompareTokens(a, b types.Value) (int, error) {
	if a.Kind != types.KindInt || b.Kind != types.KindInt {
		return 0, fmt.Errorf("partition: hash tokens must be integers, got %s and %s", a.Kind, b.Kind)
	}
	at, bt := int32(a.Int), int32(b.Int)
	switch {
	case at < bt:
		return -1, nil
	case at > bt:
		return 1, nil
	default:
		return 0, nil
	}
}
