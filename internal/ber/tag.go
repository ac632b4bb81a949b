package ber

import (
	"fmt"
)

// Tag identifies the type of a TLV: its class, tag number, and whether its
// contents are primitive or constructed. Two tags are equal iff all three
// fields match, so Tag is directly comparable with ==.
type Tag struct {
	Class       Class
	Number      uint32
	Constructed bool
}

// Frequently used universal tags.
var (
	EndOfContentsTag = Tag{Class: ClassUniversal, Number: TagEndOfContents}
	BooleanTag       = Tag{Class: ClassUniversal, Number: TagBoolean}
	IntegerTag       = Tag{Class: ClassUniversal, Number: TagInteger}
	OctetStringTag   = Tag{Class: ClassUniversal, Number: TagOctetString}
	NullTag          = Tag{Class: ClassUniversal, Number: TagNull}
	EnumeratedTag    = Tag{Class: ClassUniversal, Number: TagEnumerated}
	SequenceTag      = Tag{Class: ClassUniversal, Number: TagSequence, Constructed: true}
	SetTag           = Tag{Class: ClassUniversal, Number: TagSet, Constructed: true}
)

// ApplicationTag returns an APPLICATION class tag.
func ApplicationTag(number uint32, constructed bool) Tag {
	return Tag{Class: ClassApplication, Number: number, Constructed: constructed}
}

// ContextTag returns a context-specific tag.
func ContextTag(number uint32, constructed bool) Tag {
	return Tag{Class: ClassContextSpecific, Number: number, Constructed: constructed}
}

// TagID is the composite key of a tag: class and constructed bit in the
// upper word, tag number in the lower 32 bits. It is used as the pattern
// key by the rule registry.
type TagID uint64

// ID returns the composite identifier of t.
func (t Tag) ID() TagID {
	hi := uint64(t.Class)
	if t.Constructed {
		hi |= TypeConstructed
	}
	return TagID(hi<<32 | uint64(t.Number))
}

// Tag reconstructs the tag from its composite identifier.
func (id TagID) Tag() Tag {
	hi := uint8(id >> 32)
	return Tag{
		Class:       Class(hi & classMask),
		Number:      uint32(id),
		Constructed: hi&constructedMask != 0,
	}
}

// String returns the tag in the notation of the tag it identifies.
func (id TagID) String() string {
	return id.Tag().String()
}

// IsEndOfContents reports whether t is the end-of-contents marker tag.
func (t Tag) IsEndOfContents() bool {
	return t == EndOfContentsTag
}

// String returns a readable form such as "[APPLICATION 1]/c" or "UNIVERSAL 4/p".
func (t Tag) String() string {
	form := "p"
	if t.Constructed {
		form = "c"
	}
	if t.Class == ClassUniversal {
		return fmt.Sprintf("UNIVERSAL %d/%s", t.Number, form)
	}
	return fmt.Sprintf("[%s %d]/%s", t.Class, t.Number, form)
}

// Size returns the number of identifier octets in the minimal encoding of t.
func (t Tag) Size() int {
	if t.Number <= MaxLowTagNumber {
		return 1
	}
	return 1 + base128Size(uint64(t.Number))
}

// AppendTag appends the minimal identifier octets of t to b. Tag numbers up
// to 30 use the single octet form, larger numbers the high tag number form.
func AppendTag(b []byte, t Tag) []byte {
	first := byte(t.Class)
	if t.Constructed {
		first |= TypeConstructed
	}

	// Short form: tag number fits in 5 bits (0-30)
	if t.Number <= MaxLowTagNumber {
		return append(b, first|byte(t.Number))
	}

	// Long form: class | constructed | 0x1F, then base-128 octets
	b = append(b, first|highTagNumber)
	return appendBase128(b, uint64(t.Number))
}

// base128Size returns how many base-128 octets are needed for v.
func base128Size(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// appendBase128 encodes v big-endian in base 128, setting bit 8 on every
// octet except the last.
func appendBase128(b []byte, v uint64) []byte {
	n := base128Size(v)
	for i := n - 1; i >= 0; i-- {
		o := byte(v>>(uint(i)*7)) & 0x7F
		if i > 0 {
			o |= 0x80
		}
		b = append(b, o)
	}
	return b
}
