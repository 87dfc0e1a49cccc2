// Package idcodec encodes identifiers as short base-63 text.
//
// Base-63 Alphabet: A-Z (0-25), a-z (26-51), 0-9 (52-61), _ (62)
// Multi-field identifiers such as repository keys are written as base-63
// fields joined by '.', optionally followed by ':' and a free-form name.
package idcodec

import (
	"errors"
	"fmt"
)

// Base-63 encoding constants
const (
	Base     = 63
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"
)

// Errors for use with errors.Is
var (
	ErrEmptyString = errors.New("empty encoded string")
	ErrInvalidChar = errors.New("invalid character in encoded string")
	ErrOverflow    = errors.New("decoded value overflow")
)

// Encode encodes a uint64 value to a base-63 string.
// Returns "A" for zero (minimum non-empty encoding).
func Encode(value uint64) string {
	if value == 0 {
		return "A"
	}

	// 11 chars max for uint64
	var buf [11]byte
	pos := len(buf)

	for value > 0 {
		pos--
		buf[pos] = Alphabet[value%Base]
		value /= Base
	}

	return string(buf[pos:])
}

// EncodeNoZero encodes a uint64 value to a base-63 string.
// Returns empty string for zero value (used where 0 means "none").
func EncodeNoZero(value uint64) string {
	if value == 0 {
		return ""
	}
	return Encode(value)
}

// Decode decodes a base-63 string to a uint64 value.
// Returns error for empty strings or invalid characters.
func Decode(encoded string) (uint64, error) {
	if encoded == "" {
		return 0, ErrEmptyString
	}

	var value uint64
	for _, c := range encoded {
		charVal, err := charToValue(c)
		if err != nil {
			return 0, err
		}
		if value > (^uint64(0)-charVal)/Base {
			return 0, ErrOverflow
		}
		value = value*Base + charVal
	}

	return value, nil
}

// IsValid checks if a string is a valid base-63 encoded value.
func IsValid(encoded string) bool {
	if encoded == "" {
		return false
	}
	for _, c := range encoded {
		if _, err := charToValue(c); err != nil {
			return false
		}
	}
	return true
}

func charToValue(c rune) (uint64, error) {
	switch {
	case c >= 'A' && c <= 'Z':
		return uint64(c - 'A'), nil
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 26, nil
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 52, nil
	case c == '_':
		return 62, nil
	default:
		return 0, fmt.Errorf("%w: %c", ErrInvalidChar, c)
	}
}
