package keys

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/standardbeagle/uidmgr/internal/uid"
)

// maxNameLen bounds decoded names so corrupt input cannot force huge allocations
const maxNameLen = 1 << 16

// Codec is the binary uid.KeyCodec for Key: five uvarint fields followed by a
// uvarint-length-prefixed name.
type Codec struct{}

var _ uid.KeyCodec = Codec{}

// EncodeKey writes k
func (Codec) EncodeKey(w io.Writer, k uid.Key) error {
	key, ok := k.(Key)
	if !ok {
		return fmt.Errorf("keys: cannot encode %T", k)
	}
	buf := make([]byte, 0, 5*binary.MaxVarintLen32+binary.MaxVarintLen32+len(key.Name))
	buf = binary.AppendUvarint(buf, uint64(key.Unit))
	buf = binary.AppendUvarint(buf, uint64(key.Kind))
	buf = binary.AppendUvarint(buf, uint64(key.File))
	buf = binary.AppendUvarint(buf, uint64(key.Start))
	buf = binary.AppendUvarint(buf, uint64(key.End))
	buf = binary.AppendUvarint(buf, uint64(len(key.Name)))
	buf = append(buf, key.Name...)
	_, err := w.Write(buf)
	return err
}

// DecodeKey reads a key written by EncodeKey
func (Codec) DecodeKey(r uid.ByteReader) (uid.Key, error) {
	var fields [6]uint64
	for i := range fields {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("keys: field %d: %w", i, err)
		}
		fields[i] = v
	}
	if fields[5] > maxNameLen {
		return nil, fmt.Errorf("keys: name length %d exceeds %d", fields[5], maxNameLen)
	}
	name := make([]byte, fields[5])
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("keys: name: %w", err)
	}
	return Key{
		Unit:  uint32(fields[0]),
		Kind:  Kind(fields[1]),
		File:  uint32(fields[2]),
		Start: uint32(fields[3]),
		End:   uint32(fields[4]),
		Name:  string(name),
	}, nil
}
