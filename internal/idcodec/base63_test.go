package idcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Table(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "a"},
		{52, "0"},
		{62, "_"},
		{63, "BA"},
		{125, "B_"},
		{3969, "BAA"},
	}

	for _, tc := range tests {
		t.Run(tc.encoded, func(t *testing.T) {
			assert.Equal(t, tc.encoded, Encode(tc.value))

			decoded, err := Decode(tc.encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, value := range []uint64{1, 1000, 0xFFFFFFFF, 0x0000FFFFFFFFFFFF, ^uint64(0)} {
		decoded, err := Decode(Encode(value))
		require.NoError(t, err)
		assert.Equal(t, value, decoded)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrEmptyString)

	_, err = Decode("AB@CD")
	assert.ErrorIs(t, err, ErrInvalidChar)

	// One digit more than max uint64 can hold
	_, err = Decode(Encode(^uint64(0)) + "A")
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("abc_123"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("AB CD"))
}

func TestEncodeNoZero(t *testing.T) {
	assert.Equal(t, "", EncodeNoZero(0))
	assert.Equal(t, "B", EncodeNoZero(1))
}

func TestFields_RoundTrip(t *testing.T) {
	encoded := EncodeFields([]uint64{1, 64, 0}, "ns::foo:bar")
	assert.Equal(t, "B.BB.A:ns::foo:bar", encoded)

	fields, name, err := DecodeFields(encoded, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 64, 0}, fields)
	assert.Equal(t, "ns::foo:bar", name)
}

func TestFields_NoName(t *testing.T) {
	fields, name, err := DecodeFields(EncodeFields([]uint64{7, 8}, ""), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 8}, fields)
	assert.Empty(t, name)
}

func TestFields_Errors(t *testing.T) {
	_, _, err := DecodeFields("B.C", 3)
	assert.ErrorIs(t, err, ErrFieldCount)

	_, _, err = DecodeFields("B.!", 2)
	assert.ErrorIs(t, err, ErrInvalidChar)

	_, _, err = DecodeFields("", 1)
	assert.ErrorIs(t, err, ErrEmptyString)
}

func BenchmarkEncodeFields(b *testing.B) {
	fields := []uint64{3, 12, 4821, 190, 260}
	for i := 0; i < b.N; i++ {
		_ = EncodeFields(fields, "compute")
	}
}
