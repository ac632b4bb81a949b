// Package ber implements ASN.1 BER (Basic Encoding Rules) encoding and decoding
// as specified in ITU-T X.690.
//
// BER is the wire format used by LDAP for all protocol messages. This package
// provides the tag-length-value model, a resumable stream decoder, and a
// two-pass definite-length encoder.
//
// # Tag Classes
//
// BER uses four tag classes to identify data types:
//
//   - Universal (0x00): Standard ASN.1 types like INTEGER, BOOLEAN, SEQUENCE
//   - Application (0x40): Protocol-specific types (LDAP operations)
//   - Context-specific (0x80): Context-dependent types within a structure
//   - Private (0xC0): Organization-specific types
//
// Tag numbers up to 30 are encoded in a single identifier octet. Larger
// numbers use the high tag number form: the low five bits are all set and
// the number follows in base-128 octets.
//
// # Decoding
//
// StreamDecoder consumes input in chunks of any size and reports each TLV
// to a Handler as OpenTag, Length, Value and CloseTag events. A chunk may
// end anywhere; the decoder resumes on the next Feed:
//
//	d := ber.NewStreamDecoder(handler, ber.DefaultDecoderOptions())
//	for {
//	    n, err := conn.Read(buf)
//	    if err != nil {
//	        break
//	    }
//	    if err := d.Feed(buf[:n]); err != nil {
//	        // structural error, the stream cannot continue
//	    }
//	}
//	err := d.Close()
//
// Both definite and indefinite lengths are accepted. An indefinite-length
// value ends at the end-of-contents marker (00 00), which produces no event.
//
// TreeBuilder is a Handler that collects the events into a Tree, and
// DecodeTree does the same for a complete buffer.
//
// # Encoding
//
// A Tree is an arena of nodes addressed by NodeID. Encoding runs in two
// passes: ComputeLengths assigns every constructed node the exact length of
// its children, then Serialize writes the nodes in pre-order. The output is
// always definite-length and uses minimal tag and length forms.
//
// Use Encoder to build a tree with sequential writes:
//
//	enc := ber.NewEncoder()
//	pos := enc.BeginSequence()
//	enc.WriteInteger(1)
//	enc.WriteOctetString([]byte("hello"))
//	enc.End(pos)
//	data, err := enc.Bytes()
//
// # Universal Tags
//
// The package defines constants for common universal tags:
//
//   - TagBoolean (0x01): Boolean values
//   - TagInteger (0x02): Integer values
//   - TagOctetString (0x04): Byte strings
//   - TagNull (0x05): Null value
//   - TagOID (0x06): Object identifiers
//   - TagEnumerated (0x0A): Enumerated values
//   - TagSequence (0x10): Ordered collection
//   - TagSet (0x11): Unordered collection
//
// # References
//
//   - ITU-T X.690: ASN.1 encoding rules
//   - RFC 4511: LDAP Protocol (uses BER encoding)
package ber
