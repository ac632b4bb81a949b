package ber

import (
	"strconv"
	"strings"
)

// ParseBoolean decodes BOOLEAN content octets. Per X.690, FALSE is 0x00
// and TRUE is any non-zero value.
func ParseBoolean(v []byte) (bool, error) {
	if len(v) != 1 {
		return false, ErrInvalidBoolean
	}
	return v[0] != 0x00, nil
}

// EncodeBoolean returns the DER content octets of a BOOLEAN.
func EncodeBoolean(b bool) []byte {
	if b {
		return []byte{0xFF}
	}
	return []byte{0x00}
}

// ParseInteger decodes the two's complement content octets of an INTEGER
// or ENUMERATED into an int64.
func ParseInteger(v []byte) (int64, error) {
	if len(v) == 0 {
		return 0, ErrInvalidInteger
	}
	if len(v) > 8 {
		return 0, ErrInvalidInteger
	}

	var result int64
	// sign extension
	if v[0]&0x80 != 0 {
		result = -1
	}
	for _, b := range v {
		result = result<<8 | int64(b)
	}
	return result, nil
}

// EncodeInteger returns the minimal two's complement content octets of v.
func EncodeInteger(v int64) []byte {
	n := 1
	for x := v; x > 127 || x < -128; x >>= 8 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// ParseNull validates NULL content octets.
func ParseNull(v []byte) error {
	if len(v) != 0 {
		return ErrInvalidNull
	}
	return nil
}

// ParseOID decodes OBJECT IDENTIFIER content octets into dotted form.
func ParseOID(v []byte) (string, error) {
	if len(v) == 0 {
		return "", ErrInvalidOID
	}

	var sb strings.Builder
	var arc uint64
	first := true
	for i, b := range v {
		if arc == 0 && b == 0x80 {
			return "", ErrInvalidOID
		}
		if arc > (1<<57)-1 {
			return "", ErrInvalidOID
		}
		arc = arc<<7 | uint64(b&0x7F)
		if b&0x80 != 0 {
			if i == len(v)-1 {
				return "", ErrInvalidOID
			}
			continue
		}
		if first {
			// the first subidentifier packs the first two arcs
			x, y := uint64(2), arc-80
			if arc < 80 {
				x, y = arc/40, arc%40
			}
			sb.WriteString(strconv.FormatUint(x, 10))
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(y, 10))
			first = false
		} else {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(arc, 10))
		}
		arc = 0
	}
	return sb.String(), nil
}

// EncodeOID returns the content octets of the dotted OBJECT IDENTIFIER oid.
func EncodeOID(oid string) ([]byte, error) {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return nil, ErrInvalidOID
	}
	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, ErrInvalidOID
		}
		arcs[i] = n
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] > 39) || arcs[1] > (1<<63)-81 {
		return nil, ErrInvalidOID
	}

	out := appendBase128(nil, arcs[0]*40+arcs[1])
	for _, a := range arcs[2:] {
		out = appendBase128(out, a)
	}
	return out, nil
}
