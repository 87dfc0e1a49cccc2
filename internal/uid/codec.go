package uid

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
)

// Handle tags on the wire
const (
	tagNil   byte = 0
	tagKeyed byte = 1
)

// nullCollection marks a nil collection in place of its length
const nullCollection = -1

// Decoding limits so corrupt input cannot force huge allocations
const (
	maxCollectionLen = 1 << 24
	maxStringLen     = 1 << 16
	// preallocation cap; larger collections grow as entries arrive
	maxPrealloc = 1024
)

// Codec writes and reads handles. Only persisted handles have a wire form;
// the key itself is written by the repository's KeyCodec.
type Codec struct {
	keys    KeyCodec
	manager *Manager
}

// NewCodec creates a codec. When manager is non-nil, decoded handles are
// replaced by their canonical instances.
func NewCodec(keys KeyCodec, manager *Manager) *Codec {
	return &Codec{keys: keys, manager: manager}
}

// WriteUID writes u; nil is written as an empty marker
func (c *Codec) WriteUID(w io.Writer, u *UID) error {
	if u == nil {
		return writeByte(w, tagNil)
	}
	if u.variant != Persisted {
		return uiderrors.NewSerializationError(u.String())
	}
	if err := writeByte(w, tagKeyed); err != nil {
		return err
	}
	return c.keys.EncodeKey(w, u.key)
}

// ReadUID reads a handle written by WriteUID
func (c *Codec) ReadUID(r ByteReader) (*UID, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagKeyed:
		k, err := c.keys.DecodeKey(r)
		if err != nil {
			return nil, err
		}
		u, err := NewKeyUID(k)
		if err != nil {
			return nil, err
		}
		if c.manager != nil {
			return c.manager.SharedUID(u)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown handle tag %d", tag)
	}
}

// WriteUIDs writes a length-prefixed handle collection; nil is distinct from empty
func (c *Codec) WriteUIDs(w io.Writer, uids []*UID) error {
	if uids == nil {
		return writeVarint(w, nullCollection)
	}
	if err := writeVarint(w, int64(len(uids))); err != nil {
		return err
	}
	for _, u := range uids {
		if u == nil {
			return uiderrors.NewArgumentError("WriteUIDs", "uids", "collection contains nil")
		}
		if err := c.WriteUID(w, u); err != nil {
			return err
		}
	}
	return nil
}

// ReadUIDs reads a collection written by WriteUIDs
func (c *Codec) ReadUIDs(r ByteReader) ([]*UID, error) {
	n, err := binary.ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if n == nullCollection {
		return nil, nil
	}
	if n < 0 || n > maxCollectionLen {
		return nil, fmt.Errorf("invalid collection size %d", n)
	}
	out := make([]*UID, 0, min(n, maxPrealloc))
	for i := int64(0); i < n; i++ {
		u, err := c.ReadUID(r)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("nil handle at position %d", i)
		}
		out = append(out, u)
	}
	return out, nil
}

// WriteNameMap writes a name-to-handle map in name order
func (c *Codec) WriteNameMap(w io.Writer, m map[string]*UID) error {
	if m == nil {
		return writeVarint(w, nullCollection)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := writeVarint(w, int64(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeString(w, name); err != nil {
			return err
		}
		u := m[name]
		if u == nil {
			return uiderrors.NewArgumentError("WriteNameMap", name, "handle must not be nil")
		}
		if err := c.WriteUID(w, u); err != nil {
			return err
		}
	}
	return nil
}

// ReadNameMap reads a map written by WriteNameMap
func (c *Codec) ReadNameMap(r ByteReader) (map[string]*UID, error) {
	n, err := binary.ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if n == nullCollection {
		return nil, nil
	}
	if n < 0 || n > maxCollectionLen {
		return nil, fmt.Errorf("invalid map size %d", n)
	}
	out := make(map[string]*UID, min(n, maxPrealloc))
	for i := int64(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		u, err := c.ReadUID(r)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("nil handle for %q", name)
		}
		out[name] = u
	}
	return out, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeVarint(w io.Writer, v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("name length %d exceeds %d", len(s), maxStringLen)
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r ByteReader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("name length %d exceeds %d", n, maxStringLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
