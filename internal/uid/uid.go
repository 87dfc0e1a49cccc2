package uid

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
)

// Variant tells which of the two handle forms a UID has
type Variant uint8

const (
	// Persisted handles wrap a repository key
	Persisted Variant = iota + 1
	// Transient handles wrap an in-memory entity that has no key
	Transient
)

func (v Variant) String() string {
	switch v {
	case Persisted:
		return "persisted"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// UID is a lightweight identity proxy for an entity.
//
// The variant is decided at construction and never changes. A persisted UID
// holds only its key for identity; the resolved entity lives in a separate,
// clearable cache slot. A transient UID holds its entity strongly.
type UID struct {
	variant Variant
	key     Key
	self    any
	hash    uint64

	cache atomic.Pointer[cacheSlot]
}

type cacheSlot struct {
	value any
}

// NewKeyUID creates a persisted handle for key
func NewKeyUID(key Key) (*UID, error) {
	if isNil(key) {
		return nil, uiderrors.NewArgumentError("NewKeyUID", "key", "must not be nil")
	}
	return &UID{variant: Persisted, key: key, hash: key.Hash()}, nil
}

// NewSelfUID creates a transient handle wrapping entity
func NewSelfUID(entity any) (*UID, error) {
	if isNil(entity) {
		return nil, uiderrors.NewArgumentError("NewSelfUID", "entity", "must not be nil")
	}
	return &UID{variant: Transient, self: entity, hash: entityHash(entity)}, nil
}

// MustKeyUID is NewKeyUID for keys known to be non-nil
func MustKeyUID(key Key) *UID {
	u, err := NewKeyUID(key)
	if err != nil {
		panic(err)
	}
	return u
}

// Variant returns the handle form
func (u *UID) Variant() Variant { return u.variant }

// Key returns the wrapped key of a persisted handle
func (u *UID) Key() (Key, bool) {
	return u.key, u.variant == Persisted
}

// Self returns the wrapped entity of a transient handle, nil otherwise
func (u *UID) Self() any { return u.self }

// Hash returns the hash used for shard and bucket selection
func (u *UID) Hash() uint64 { return u.hash }

// IsPersistable reports whether the handle can be written to a stream
func (u *UID) IsPersistable() bool { return u.variant == Persisted }

// IsPersistable reports whether u is a non-nil persisted handle
func IsPersistable(u *UID) bool {
	return u != nil && u.IsPersistable()
}

// Equal reports whether u and other identify the same entity
func (u *UID) Equal(other *UID) bool {
	if u == other {
		return true
	}
	if u == nil || other == nil || u.variant != other.variant || u.hash != other.hash {
		return false
	}
	if u.variant == Persisted {
		return u.key.Equal(other.key)
	}
	return entityEqual(u.self, other.self)
}

// Compare orders persisted handles before transient ones, persisted handles
// by key and transient handles by hash, then type, then text.
func (u *UID) Compare(other *UID) int {
	if u.variant != other.variant {
		if u.variant == Persisted {
			return -1
		}
		return 1
	}
	if u.variant == Persisted {
		return u.key.Compare(other.key)
	}
	if u.Equal(other) {
		return 0
	}
	switch {
	case u.hash < other.hash:
		return -1
	case u.hash > other.hash:
		return 1
	}
	if c := strings.Compare(reflect.TypeOf(u.self).String(), reflect.TypeOf(other.self).String()); c != 0 {
		return c
	}
	return strings.Compare(fmt.Sprint(u.self), fmt.Sprint(other.self))
}

func (u *UID) String() string {
	if u == nil {
		return "<nil uid>"
	}
	if u.variant == Persisted {
		return "KeyUID(" + u.key.String() + ")"
	}
	return fmt.Sprintf("SelfUID(%T %v)", u.self, u.self)
}

// Cached returns the entity cached by the last successful resolve
func (u *UID) Cached() (any, bool) {
	if u.variant == Transient {
		return u.self, true
	}
	slot := u.cache.Load()
	if slot == nil {
		return nil, false
	}
	return slot.value, true
}

func (u *UID) setCached(v any) {
	if u.variant == Persisted && v != nil {
		u.cache.Store(&cacheSlot{value: v})
	}
}

// ClearCache drops the cached entity of a persisted handle so that the next
// resolve goes back to the repository. Transient handles are unaffected.
func (u *UID) ClearCache() bool {
	if u.variant != Persisted {
		return false
	}
	return u.cache.Swap(nil) != nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// entityHash hashes a transient entity consistently with entityEqual
func entityHash(e any) uint64 {
	if h, ok := e.(interface{ Hash() uint64 }); ok {
		return h.Hash()
	}
	typeName := reflect.TypeOf(e).String()
	rv := reflect.ValueOf(e)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(rv.Pointer()))
		d := xxhash.New()
		_, _ = d.WriteString(typeName)
		_, _ = d.Write(buf[:])
		return d.Sum64()
	}
	return xxhash.Sum64String(typeName + "|" + fmt.Sprint(e))
}

// entityEqual is value equality for comparable entities and identity for
// reference kinds that cannot be compared with ==. Values whose type is
// comparable but which hold an uncomparable dynamic value, such as a struct
// with an interface field holding a slice, are compared deeply.
func entityEqual(a, b any) bool {
	if eq, ok := a.(interface{ Equal(any) bool }); ok {
		return eq.Equal(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
