package ber

// Class is the tag class carried in bits 7-8 of the identifier octet.
type Class uint8

// Tag class constants (bits 7-8 of the tag byte)
const (
	ClassUniversal       Class = 0x00 // 00xxxxxx
	ClassApplication     Class = 0x40 // 01xxxxxx
	ClassContextSpecific Class = 0x80 // 10xxxxxx
	ClassPrivate         Class = 0xC0 // 11xxxxxx
)

// String returns the short name of the class.
func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassApplication:
		return "APPLICATION"
	case ClassContextSpecific:
		return "CONTEXT"
	case ClassPrivate:
		return "PRIVATE"
	default:
		return "INVALID"
	}
}

// Constructed flag (bit 6 of the tag byte)
const (
	TypePrimitive   = 0x00 // xx0xxxxx
	TypeConstructed = 0x20 // xx1xxxxx
)

// Universal tag numbers for primitive types
const (
	TagEndOfContents = 0x00
	TagBoolean       = 0x01
	TagInteger       = 0x02
	TagBitString     = 0x03
	TagOctetString   = 0x04
	TagNull          = 0x05
	TagOID           = 0x06
	TagEnumerated    = 0x0A
	TagUTF8String    = 0x0C
	TagSequence      = 0x10
	TagSet           = 0x11
)

// Identifier octet layout
const (
	classMask       = 0xC0
	constructedMask = 0x20
	numberMask      = 0x1F

	// highTagNumber in the low five bits selects the high tag number form.
	highTagNumber = 0x1F

	// MaxLowTagNumber is the largest tag number that fits the single octet form.
	MaxLowTagNumber = 30
)

// Length encoding constants
const (
	// LengthLongFormBit indicates long form length encoding (bit 8 set)
	LengthLongFormBit = 0x80
	// MaxShortFormLength is the maximum length encodable in short form (0-127)
	MaxShortFormLength = 127
	// lengthIndefiniteOctet is the single length octet of the indefinite form.
	lengthIndefiniteOctet = 0x80
	// lengthReservedOctet is reserved by X.690 8.1.3.5 c.
	lengthReservedOctet = 0xFF
)

// Decoder limits
const (
	// maxTagOctets bounds the identifier: one leading octet plus five
	// base-128 continuation octets, enough for any uint32 tag number.
	maxTagOctets = 6
	// maxLengthOctets bounds the long form: 0x8N followed by N <= 8 octets.
	maxLengthOctets = 8
)
