// Package uid implements handle interning and dereference for entities of a
// persistent, key-addressed object graph.
//
// A UID is either persisted (it wraps a repository Key) or transient (it wraps
// an in-memory entity that has no key). The Store deduplicates equal UIDs into
// one canonical instance per value, holding them weakly so that unreferenced
// handles are reclaimed by the garbage collector. The Provider resolves UIDs to
// live entities through a Repository.
package uid

import (
	"context"
	"io"
)

// NoPartition is returned by a PartitionFunc for keys that belong to no partition.
const NoPartition = -1

// Key is an opaque identifier of a persisted entity. Keys are produced by the
// repository layer; this package only stores and compares them.
//
// Implementations must be immutable and their methods total, consistent and
// side-effect free: Equal keys have equal Hash values and Compare to 0.
type Key interface {
	Hash() uint64
	Equal(other Key) bool
	Compare(other Key) int
	String() string
}

// PartitionFunc maps a key to its partition (project) index.
type PartitionFunc func(Key) int

// DefaultPartition uses the key's own Partition method when it has one.
func DefaultPartition(k Key) int {
	if p, ok := k.(interface{ Partition() int }); ok {
		return p.Partition()
	}
	return NoPartition
}

// KeyCodec writes and reads keys. The wire format belongs to the repository layer.
type KeyCodec interface {
	EncodeKey(w io.Writer, k Key) error
	DecodeKey(r ByteReader) (Key, error)
}

// ByteReader is the input side of KeyCodec and Codec
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// Repository is the persistent object store consulted by the Provider.
// Get may do disk I/O, decompression or index lookups.
type Repository interface {
	Get(ctx context.Context, key Key) (any, error)
	PartitionOf(key Key) int
}
