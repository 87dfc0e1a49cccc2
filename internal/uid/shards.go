package uid

import (
	"math/bits"
	"runtime"
)

// Shard count bounds for the interning store
const (
	MinShards = 4
	MaxShards = 256

	// shardsPerWorker spreads concurrent callers over several shards each
	shardsPerWorker = 4

	DefaultInitialCapacity = 64
)

// ShardCount picks a power-of-two shard count for the expected number of
// concurrent callers. Zero or negative concurrency means GOMAXPROCS.
// Low concurrency gets few, larger shards; high concurrency gets many
// smaller ones.
func ShardCount(concurrency int) int {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return clampShards(nextPowerOfTwo(concurrency * shardsPerWorker))
}

// IsPowerOfTwo reports whether n is a positive power of two
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func clampShards(n int) int {
	if n < MinShards {
		return MinShards
	}
	if n > MaxShards {
		return MaxShards
	}
	return n
}
