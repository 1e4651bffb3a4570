// Package shiny converts 64-bit identifiers to and from compact URL-safe
// strings.
//
// A shiny is the base-64 positional representation of an id, most
// significant digit first, written with the alphabet
// A-Z a-z 0-9 - _ (digit values 0 through 63). Zero is "A" and the largest
// uint64 is "P__________".
package shiny

import (
	"errors"
	"fmt"
	"math"
)

// Alphabet lists the digits in value order.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// MaxLen is the length of the shiny for math.MaxUint64.
const MaxLen = 11

const (
	zero     = "A"
	bits     = 6
	mask     = 1<<bits - 1
	shiftCap = math.MaxUint64 >> bits
)

var (
	ErrInvalidInput = errors.New("input must be a valid shiny")
	ErrOutOfRange   = errors.New("shiny overflows uint64")
)

// index maps a byte to its digit value, -1 for bytes outside the alphabet.
var index = buildIndex()

func buildIndex() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		idx[Alphabet[i]] = int8(i)
	}
	return idx
}

// Encode returns the shiny for id.
func Encode(id uint64) string {
	if id == 0 {
		return zero
	}

	// Digits are produced least significant first, so fill from the back.
	var buf [MaxLen]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = Alphabet[id&mask]
		id >>= bits
	}
	return string(buf[i:])
}

// Decode returns the id encoded by s.
//
// It fails with ErrInvalidInput when s holds a character outside the
// alphabet, and with ErrOutOfRange when the value does not fit in a uint64.
// Leading "A" digits are accepted, and the empty string decodes to 0.
func Decode(s string) (uint64, error) {
	if s == zero {
		return 0, nil
	}
	if !IsValid(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	if len(s) > MaxLen {
		return 0, fmt.Errorf("%w: %d characters", ErrOutOfRange, len(s))
	}

	var id uint64
	for i := 0; i < len(s); i++ {
		if id > shiftCap {
			return 0, fmt.Errorf("%w: %q", ErrOutOfRange, s)
		}
		id = id<<bits | digit(s[i])
	}
	return id, nil
}

// IsValid reports whether every character of s belongs to the alphabet.
// Length is not checked, so "" is valid.
func IsValid(s string) bool {
	for i := 0; i < len(s); i++ {
		if index[s[i]] < 0 {
			return false
		}
	}
	return true
}

func digit(c byte) uint64 {
	v := index[c]
	if v < 0 {
		panic(fmt.Sprintf("shiny: byte %#x passed validation but is not in the alphabet", c))
	}
	return uint64(v)
}
