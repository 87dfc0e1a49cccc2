package uid

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// testKey is a minimal Key with a partition
type testKey struct {
	part int
	id   int
}

func (k testKey) Hash() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%d/%d", k.part, k.id))
}

func (k testKey) Equal(other Key) bool {
	o, ok := other.(testKey)
	return ok && o == k
}

func (k testKey) Compare(other Key) int {
	o := other.(testKey)
	return cmp.Or(cmp.Compare(k.part, o.part), cmp.Compare(k.id, o.id))
}

func (k testKey) String() string { return fmt.Sprintf("P%d#%d", k.part, k.id) }

func (k testKey) Partition() int { return k.part }

// collidingKey always hashes to the same bucket
type collidingKey struct{ id int }

func (k collidingKey) Hash() uint64 { return 42 }

func (k collidingKey) Equal(other Key) bool {
	o, ok := other.(collidingKey)
	return ok && o == k
}

func (k collidingKey) Compare(other Key) int { return cmp.Compare(k.id, other.(collidingKey).id) }

func (k collidingKey) String() string { return fmt.Sprintf("C#%d", k.id) }

// testKeyCodec writes testKey as two varints
type testKeyCodec struct{}

func (testKeyCodec) EncodeKey(w io.Writer, k Key) error {
	tk := k.(testKey)
	buf := binary.AppendVarint(nil, int64(tk.part))
	buf = binary.AppendVarint(buf, int64(tk.id))
	_, err := w.Write(buf)
	return err
}

func (testKeyCodec) DecodeKey(r ByteReader) (Key, error) {
	part, err := binary.ReadVarint(r)
	if err != nil {
		return nil, err
	}
	id, err := binary.ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return testKey{part: int(part), id: int(id)}, nil
}

// entity is a repository object that knows its handle
type entity struct {
	uid   *UID
	name  string
	start int
	end   int

	disposed bool
}

func (e *entity) UID() *UID { return e.uid }

func (e *entity) StartOffset() int { return e.start }

func (e *entity) EndOffset() int { return e.end }

func (e *entity) Dispose() { e.disposed = true }

func (e *entity) String() string { return e.name }

// Namespace is exempt from missing-UID reports by the default patterns
type Namespace struct {
	name string
}

func (n *Namespace) UID() *UID { return nil }

// countingRepository serves entities and counts Get calls per key
type countingRepository struct {
	mu      sync.Mutex
	objects map[testKey]any
	gets    map[testKey]int
	total   atomic.Int64
	err     error

	// when release is set, Get signals entered and blocks until release closes
	entered chan struct{}
	release chan struct{}
}

func newCountingRepository() *countingRepository {
	return &countingRepository{
		objects: make(map[testKey]any),
		gets:    make(map[testKey]int),
	}
}

func (r *countingRepository) put(k testKey, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[k] = v
}

func (r *countingRepository) Get(_ context.Context, key Key) (any, error) {
	r.total.Add(1)
	if r.release != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key.(testKey)
	r.gets[k]++
	if r.err != nil {
		return nil, r.err
	}
	return r.objects[k], nil
}

func (r *countingRepository) PartitionOf(key Key) int {
	return DefaultPartition(key)
}

func (r *countingRepository) count(k testKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets[k]
}

// recordingSink collects anomalies
type recordingSink struct {
	mu        sync.Mutex
	anomalies []Anomaly
}

func (s *recordingSink) Report(a Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, a)
}

func (s *recordingSink) all() []Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Anomaly(nil), s.anomalies...)
}
