package idcodec

import (
	"errors"
	"fmt"
	"strings"
)

const (
	fieldSeparator = "."
	nameSeparator  = ":"
)

// ErrFieldCount is returned when decoded text has the wrong number of fields
var ErrFieldCount = errors.New("unexpected field count")

// EncodeFields encodes numeric fields and an optional name.
// Example: EncodeFields([]uint64{1, 64}, "foo") == "B.BB:foo"
func EncodeFields(fields []uint64, name string) string {
	var b strings.Builder
	b.Grow(len(fields)*3 + len(name) + 1)
	for i, f := range fields {
		if i > 0 {
			b.WriteString(fieldSeparator)
		}
		b.WriteString(Encode(f))
	}
	if name != "" {
		b.WriteString(nameSeparator)
		b.WriteString(name)
	}
	return b.String()
}

// DecodeFields decodes text produced by EncodeFields, expecting exactly want fields.
// The name may contain any character, including separators.
func DecodeFields(encoded string, want int) ([]uint64, string, error) {
	if encoded == "" {
		return nil, "", ErrEmptyString
	}

	head, name, _ := strings.Cut(encoded, nameSeparator)
	parts := strings.Split(head, fieldSeparator)
	if len(parts) != want {
		return nil, "", fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(parts), want)
	}

	fields := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := Decode(p)
		if err != nil {
			return nil, "", fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = v
	}
	return fields, name, nil
}
