package ber

import "strconv"

// Length is the length of a TLV value in octets, or Indefinite.
type Length int

// Indefinite marks a constructed value terminated by an end-of-contents
// marker instead of a length prefix.
const Indefinite Length = -1

// MaxPrealloc caps the value buffer reserved from a declared length before
// any value octets have been read. Larger values grow as they arrive.
const MaxPrealloc = 4096

// IsIndefinite reports whether l is the indefinite-length sentinel.
func (l Length) IsIndefinite() bool {
	return l == Indefinite
}

// String returns the decimal length or "indefinite".
func (l Length) String() string {
	if l.IsIndefinite() {
		return "indefinite"
	}
	return strconv.Itoa(int(l))
}

// Size returns the number of length octets in the minimal encoding of l.
// The indefinite form occupies one octet.
func (l Length) Size() int {
	if l <= MaxShortFormLength {
		return 1
	}
	return 1 + lengthOctets(int(l))
}

// lengthOctets returns the number of big-endian octets needed for v > 0.
func lengthOctets(v int) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	return n
}

// AppendLength appends the minimal length octets of l to b.
// Uses short form for lengths 0-127, long form for larger values.
func AppendLength(b []byte, l Length) []byte {
	if l.IsIndefinite() {
		return append(b, lengthIndefiniteOctet)
	}

	// Short form: length fits in 7 bits (0-127)
	if l <= MaxShortFormLength {
		return append(b, byte(l))
	}

	// Long form: first byte indicates number of length bytes
	n := lengthOctets(int(l))
	b = append(b, byte(LengthLongFormBit|n))

	// Write length bytes in big-endian order
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(int(l)>>(uint(i)*8)))
	}
	return b
}
