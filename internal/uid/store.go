package uid

import (
	"math"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/RoaringBitmap/roaring/v2"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
)

// minSweepInterval keeps small shards from sweeping on every insert
const minSweepInterval = 64

// StoreConfig defines interning store options
type StoreConfig struct {
	// Shards must be a power of two; 0 derives it from Concurrency
	Shards int
	// Concurrency is the expected number of concurrent callers; 0 = GOMAXPROCS
	Concurrency int
	// InitialCapacity is the per-shard bucket table size after creation and dispose
	InitialCapacity int
	// Partition maps keys to partitions; nil = DefaultPartition
	Partition PartitionFunc
}

// DefaultStoreConfig returns default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		InitialCapacity: DefaultInitialCapacity,
		Partition:       DefaultPartition,
	}
}

// StoreStats is a snapshot of store counters
type StoreStats struct {
	Shards   int
	Resident int
	Interned int64
	Hits     int64
	Cleared  int64
	Swept    int64
}

// shard is one lock-independent slice of the store. Entries are weak so the
// shard never keeps a handle alive on its own.
type shard struct {
	mu         sync.Mutex
	buckets    map[uint64][]weak.Pointer[UID]
	entries    int // includes collected entries not yet swept
	sinceSweep int
	partitions *roaring.Bitmap
	// wide is set once a partition outside the bitmap range is interned
	wide bool
}

// Store is a sharded, weakly-referencing set of canonical UIDs
type Store struct {
	shards          []*shard
	mask            uint64
	initialCapacity int
	partitionOf     PartitionFunc

	interned atomic.Int64
	hits     atomic.Int64
	cleared  atomic.Int64
	swept    atomic.Int64
}

// NewStore creates an interning store
func NewStore(cfg StoreConfig) (*Store, error) {
	n := cfg.Shards
	if n == 0 {
		n = ShardCount(cfg.Concurrency)
	}
	if !IsPowerOfTwo(n) {
		return nil, uiderrors.NewArgumentError("NewStore", "shards", "must be a power of two")
	}
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = DefaultInitialCapacity
	}
	if cfg.Partition == nil {
		cfg.Partition = DefaultPartition
	}

	s := &Store{
		shards:          make([]*shard, n),
		mask:            uint64(n - 1),
		initialCapacity: cfg.InitialCapacity,
		partitionOf:     cfg.Partition,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			buckets:    make(map[uint64][]weak.Pointer[UID], cfg.InitialCapacity),
			partitions: roaring.New(),
		}
	}
	return s, nil
}

// NumShards returns the fixed shard count
func (s *Store) NumShards() int {
	return len(s.shards)
}

func (s *Store) shardFor(hash uint64) *shard {
	return s.shards[hash&s.mask]
}

// InternOrGet returns the resident UID equal to u, or interns u and returns it.
// Only the target shard is locked.
func (s *Store) InternOrGet(u *UID) (*UID, error) {
	if u == nil {
		return nil, uiderrors.NewArgumentError("InternOrGet", "uid", "must not be nil")
	}

	sh := s.shardFor(u.hash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	bucket := sh.buckets[u.hash]
	kept := bucket[:0]
	var found *UID
	for _, wp := range bucket {
		v := wp.Value()
		if v == nil {
			continue
		}
		kept = append(kept, wp)
		if found == nil && v.Equal(u) {
			found = v
		}
	}
	if dropped := len(bucket) - len(kept); dropped > 0 {
		clear(bucket[len(kept):])
		sh.entries -= dropped
		s.swept.Add(int64(dropped))
	}

	if found != nil {
		s.storeBucket(sh, u.hash, kept)
		s.hits.Add(1)
		return found, nil
	}

	sh.buckets[u.hash] = append(kept, weak.Make(u))
	sh.entries++
	sh.sinceSweep++
	s.interned.Add(1)

	if u.variant == Persisted {
		raw := s.partitionOf(u.key)
		if p, ok := bitmapPartition(raw); ok {
			sh.partitions.Add(p)
		} else if raw >= 0 {
			sh.wide = true
		}
	}

	if sh.sinceSweep > minSweepInterval && sh.sinceSweep > sh.entries/2 {
		s.sweepLocked(sh)
	}
	return u, nil
}

// bitmapPartition converts p to a bitmap index; false when p is out of range
func bitmapPartition(p int) (uint32, bool) {
	if p < 0 || uint64(p) > math.MaxUint32 {
		return 0, false
	}
	return uint32(p), true
}

func (s *Store) storeBucket(sh *shard, hash uint64, bucket []weak.Pointer[UID]) {
	if len(bucket) == 0 {
		delete(sh.buckets, hash)
		return
	}
	sh.buckets[hash] = bucket
}

// sweepLocked removes collected entries from every bucket of sh
func (s *Store) sweepLocked(sh *shard) int {
	removed := 0
	for hash, bucket := range sh.buckets {
		kept := bucket[:0]
		for _, wp := range bucket {
			if wp.Value() != nil {
				kept = append(kept, wp)
			}
		}
		if n := len(bucket) - len(kept); n > 0 {
			clear(bucket[len(kept):])
			removed += n
			s.storeBucket(sh, hash, kept)
		}
	}
	sh.entries -= removed
	sh.sinceSweep = 0
	s.swept.Add(int64(removed))
	return removed
}

// Sweep removes collected entries from all shards and returns how many were dropped
func (s *Store) Sweep() int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += s.sweepLocked(sh)
		sh.mu.Unlock()
	}
	return removed
}

// ClearPartition clears the cached entity of every resident persisted UID in
// partition p. UIDs stay resident, so identity is preserved. Shards are
// locked one at a time. Returns the number of UIDs invalidated.
func (s *Store) ClearPartition(p int) int {
	if p < 0 {
		return 0
	}
	bp, inRange := bitmapPartition(p)
	cleared := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		if (inRange && sh.partitions.Contains(bp)) || (!inRange && sh.wide) {
			for _, bucket := range sh.buckets {
				for _, wp := range bucket {
					v := wp.Value()
					if v == nil || v.variant != Persisted {
						continue
					}
					if s.partitionOf(v.key) == p {
						v.ClearCache()
						cleared++
					}
				}
			}
		}
		sh.mu.Unlock()
	}
	s.cleared.Add(int64(cleared))
	return cleared
}

// DisposeAll empties every shard and shrinks it back to its initial capacity
func (s *Store) DisposeAll() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.buckets = make(map[uint64][]weak.Pointer[UID], s.initialCapacity)
		sh.entries = 0
		sh.sinceSweep = 0
		sh.partitions.Clear()
		sh.wide = false
		sh.mu.Unlock()
	}
}

// ShardSizes returns the number of live UIDs in each shard
func (s *Store) ShardSizes() []int {
	sizes := make([]int, len(s.shards))
	for i, sh := range s.shards {
		sh.mu.Lock()
		s.sweepLocked(sh)
		sizes[i] = sh.entries
		sh.mu.Unlock()
	}
	return sizes
}

// Len returns the number of live UIDs in the store
func (s *Store) Len() int {
	total := 0
	for _, n := range s.ShardSizes() {
		total += n
	}
	return total
}

// Partitions returns the partitions interned since the last dispose, in ascending order
func (s *Store) Partitions() []int {
	union := roaring.New()
	for _, sh := range s.shards {
		sh.mu.Lock()
		union.Or(sh.partitions)
		sh.mu.Unlock()
	}
	out := make([]int, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Stats returns a snapshot of the store counters
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Shards:   len(s.shards),
		Resident: s.Len(),
		Interned: s.interned.Load(),
		Hits:     s.hits.Load(),
		Cleared:  s.cleared.Load(),
		Swept:    s.swept.Load(),
	}
}
