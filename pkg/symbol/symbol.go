// Package symbol implements the byte-level symbol types that flow through
// every layer of a Coded Merkle Tree: fixed-size base symbols on layer 0,
// and A-hash upper symbols above it.
package symbol

import (
	"errors"
	"fmt"
)

// HashSize is the width of a single child hash inside an UpperSymbol.
const HashSize = 32

var (
	ErrLengthMismatch = errors.New("symbol: operand length mismatch")
	ErrBadByteLength  = errors.New("symbol: byte slice has the wrong length for this symbol width")
)

// Base is an immutable base-layer symbol: S0 raw bytes of block data.
type Base []byte

// NewBase copies b into a fresh Base of the given width, zero-padding or
// truncating is never performed here — callers must supply exactly
// width bytes.
func NewBase(b []byte, width int) (Base, error) {
	if len(b) != width {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadByteLength, len(b), width)
	}
	out := make(Base, width)
	copy(out, b)
	return out, nil
}

// Zero returns a width-byte Base symbol of all zeros.
func Zero(width int) Base {
	return make(Base, width)
}

// Bytes returns the raw byte representation (no copy).
func (b Base) Bytes() []byte { return b }

// IsZero reports whether every byte of b is zero.
func (b Base) IsZero() bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Equal reports byte-for-byte equality.
func (b Base) Equal(o Base) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// XOR returns the branchless byte-wise XOR of a and b. Both must share the
// same length.
func XOR(a, b Base) (Base, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	out := make(Base, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// XOR returns the XOR of b and o. It satisfies peeling.Value[Base] so
// Base can be used directly as a peeling engine's symbol width.
func (b Base) XOR(o Base) (Base, error) {
	return XOR(b, o)
}

// XORInto XORs src into dst in place. Both must share the same length.
func XORInto(dst Base, src Base) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(dst), len(src))
	}
	for i := range dst {
		dst[i] ^= src[i]
	}
	return nil
}

// Upper is an ordered tuple of A 32-byte child hashes: the first kA entries
// are the systematic lane, the remaining A-kA entries are the parity lane.
type Upper [][HashSize]byte

// NewUpper allocates an Upper symbol with width hash slots, all zero.
func NewUpper(width int) Upper {
	return make(Upper, width)
}

// ToBytes packs the A hashes contiguously into a 32*A-byte string.
func (u Upper) ToBytes() []byte {
	out := make([]byte, len(u)*HashSize)
	for i, h := range u {
		copy(out[i*HashSize:(i+1)*HashSize], h[:])
	}
	return out
}

// Bytes is an alias for ToBytes, satisfying peeling.Value[Upper].
func (u Upper) Bytes() []byte { return u.ToBytes() }

// FromBytes unpacks a 32*A-byte string into width hash slots.
func FromBytes(b []byte, width int) (Upper, error) {
	if len(b) != width*HashSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadByteLength, len(b), width*HashSize)
	}
	u := make(Upper, width)
	for i := range u {
		copy(u[i][:], b[i*HashSize:(i+1)*HashSize])
	}
	return u, nil
}

// XORUpper returns the byte-wise XOR of two same-width Upper symbols,
// operating on their packed byte representation.
func XORUpper(a, b Upper) (Upper, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	out := make(Upper, len(a))
	for i := range a {
		for j := 0; j < HashSize; j++ {
			out[i][j] = a[i][j] ^ b[i][j]
		}
	}
	return out, nil
}

// XOR returns the XOR of u and o. It satisfies peeling.Value[Upper] so
// Upper can be used directly as a peeling engine's symbol width.
func (u Upper) XOR(o Upper) (Upper, error) {
	return XORUpper(u, o)
}

// Equal reports element-wise equality.
func (u Upper) Equal(o Upper) bool {
	if len(u) != len(o) {
		return false
	}
	for i := range u {
		if u[i] != o[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether every hash slot is the all-zero hash.
func (u Upper) IsZero() bool {
	var zero [HashSize]byte
	for _, h := range u {
		if h != zero {
			return false
		}
	}
	return true
}
