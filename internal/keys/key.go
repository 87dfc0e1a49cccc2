// Package keys defines the repository key for code model entities and its
// binary and text encodings.
package keys

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/uidmgr/internal/idcodec"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

// Kind identifies the kind of code model entity a key addresses
type Kind uint16

const (
	KindUnknown Kind = iota
	KindProject
	KindFile
	KindNamespace
	KindClass
	KindEnum
	KindFunction
	KindVariable
	KindTypedef
	KindMacro
	KindInclude
	KindInheritance
	KindInstantiation
	KindUnresolved
)

var kindNames = [...]string{
	KindUnknown:       "unknown",
	KindProject:       "project",
	KindFile:          "file",
	KindNamespace:     "namespace",
	KindClass:         "class",
	KindEnum:          "enum",
	KindFunction:      "function",
	KindVariable:      "variable",
	KindTypedef:       "typedef",
	KindMacro:         "macro",
	KindInclude:       "include",
	KindInheritance:   "inheritance",
	KindInstantiation: "instantiation",
	KindUnresolved:    "unresolved",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}

// ParseKind parses a kind name as printed by Kind.String
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown kind %q", s)
}

// Key addresses one entity of the code model.
//
// Unit is the project (partition) index. File, Start and End locate
// offsetable entities; Name disambiguates entities at the same position and
// names non-offsetable ones (namespaces, projects).
type Key struct {
	Unit  uint32
	Kind  Kind
	File  uint32
	Start uint32
	End   uint32
	Name  string
}

var _ uid.Key = Key{}

// fixedSize is the byte length of the numeric fields fed to the hash
const fixedSize = 4 + 2 + 4 + 4 + 4

// Hash returns the xxhash of the key fields
func (k Key) Hash() uint64 {
	var buf [fixedSize]byte
	binary.LittleEndian.PutUint32(buf[0:], k.Unit)
	binary.LittleEndian.PutUint16(buf[4:], uint16(k.Kind))
	binary.LittleEndian.PutUint32(buf[6:], k.File)
	binary.LittleEndian.PutUint32(buf[10:], k.Start)
	binary.LittleEndian.PutUint32(buf[14:], k.End)

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(k.Name)
	return d.Sum64()
}

// Equal reports whether other is a Key with the same fields
func (k Key) Equal(other uid.Key) bool {
	o, ok := other.(Key)
	return ok && k == o
}

// Compare orders by unit, kind, file, start, end, then name. Keys of other
// types are ordered by type name, then text form; nil sorts first.
func (k Key) Compare(other uid.Key) int {
	o, ok := other.(Key)
	if !ok {
		if other == nil {
			return 1
		}
		return cmp.Or(
			strings.Compare(typeName(k), typeName(other)),
			strings.Compare(k.String(), other.String()),
		)
	}
	return cmp.Or(
		cmp.Compare(k.Unit, o.Unit),
		cmp.Compare(k.Kind, o.Kind),
		cmp.Compare(k.File, o.File),
		cmp.Compare(k.Start, o.Start),
		cmp.Compare(k.End, o.End),
		strings.Compare(k.Name, o.Name),
	)
}

// Partition returns the project index of the key
func (k Key) Partition() int {
	return int(k.Unit)
}

// String returns the text form, see Parse
func (k Key) String() string {
	return idcodec.EncodeFields([]uint64{
		uint64(k.Unit), uint64(k.Kind), uint64(k.File), uint64(k.Start), uint64(k.End),
	}, k.Name)
}

// Parse parses the text form produced by Key.String
func Parse(s string) (Key, error) {
	fields, name, err := idcodec.DecodeFields(s, 5)
	if err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	for i, f := range fields {
		limit := uint64(^uint32(0))
		if i == 1 {
			limit = uint64(^uint16(0))
		}
		if f > limit {
			return Key{}, fmt.Errorf("parse key %q: field %d: %w", s, i, idcodec.ErrOverflow)
		}
	}
	return Key{
		Unit:  uint32(fields[0]),
		Kind:  Kind(fields[1]),
		File:  uint32(fields[2]),
		Start: uint32(fields[3]),
		End:   uint32(fields[4]),
		Name:  name,
	}, nil
}

// Partition maps any uid.Key to its partition, for use as a uid.PartitionFunc
func Partition(k uid.Key) int {
	if key, ok := k.(Key); ok {
		return key.Partition()
	}
	return uid.NoPartition
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
