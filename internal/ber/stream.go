package ber

import (
	"math"
)

// Handler receives the events of a StreamDecoder. For every TLV the events
// arrive in the order OpenTag, Length, Value*, CloseTag, and the complete
// event sequence of a child precedes the CloseTag of its parent.
//
// Value may be called several times for one primitive TLV, each call
// delivering the next sub-slice of the value. The slice aliases the buffer
// passed to Feed and must be copied if retained. Zero-length values produce
// no Value call. End-of-contents markers produce no events.
//
// An error returned by a Handler method stops decoding; the decoder returns
// that error from Feed and from every later call.
type Handler interface {
	OpenTag(tag Tag) error
	Length(length Length) error
	Value(chunk []byte) error
	CloseTag() error
}

// DecoderOptions bounds the resources a StreamDecoder accepts from a peer.
// Zero values mean unlimited.
type DecoderOptions struct {
	// MaxDepth is the maximum number of simultaneously open TLVs.
	MaxDepth int
	// MaxLength is the maximum declared definite length of a single TLV.
	MaxLength int
	// DisallowIndefinite rejects the indefinite length form (DER input).
	DisallowIndefinite bool
}

// DefaultDecoderOptions returns the limits used for network input.
func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{
		MaxDepth:  64,
		MaxLength: 16 * 1024 * 1024,
	}
}

type decodeState uint8

const (
	stateTag decodeState = iota
	stateTagExtended
	stateLength
	stateLengthExtended
	stateValue
)

// frame is the parsing state of one open TLV.
type frame struct {
	tag      Tag
	length   Length // declared length
	header   int    // identifier and length octets of this TLV
	consumed int    // value octets consumed so far, including closed children
	limit    int    // maximum value octets, -1 when unbounded
}

func (f *frame) remaining() int {
	if f.limit < 0 {
		return -1
	}
	return f.limit - f.consumed
}

// StreamDecoder is a resumable BER decoder. It accepts input in chunks of
// any size through Feed and keeps its position across calls, so a chunk may
// end anywhere: inside a tag, a length, a value, or between TLVs.
//
// A StreamDecoder serves one byte stream and must not be used from several
// goroutines at once.
type StreamDecoder struct {
	handler Handler
	opts    DecoderOptions

	// stack[0] is a virtual unbounded root; the rest are open TLVs.
	stack []frame
	state decodeState

	// header under construction
	tag       Tag
	tagOctets int
	lenOctets int
	lenValue  int
	hdr       int
	hdrStart  int

	offset int
	err    error
	closed bool
}

// NewStreamDecoder creates a decoder that reports events to h.
func NewStreamDecoder(h Handler, opts DecoderOptions) *StreamDecoder {
	d := &StreamDecoder{
		handler: h,
		opts:    opts,
		stack:   make([]frame, 0, 8),
	}
	d.Reset()
	return d
}

// Reset discards all parsing state so the decoder can serve a new stream.
func (d *StreamDecoder) Reset() {
	d.stack = append(d.stack[:0], frame{length: Indefinite, limit: -1})
	d.state = stateTag
	d.hdr = 0
	d.offset = 0
	d.err = nil
	d.closed = false
}

// Depth returns the number of currently open TLVs.
func (d *StreamDecoder) Depth() int {
	return len(d.stack) - 1
}

// Offset returns the number of octets consumed from the stream so far.
func (d *StreamDecoder) Offset() int {
	return d.offset
}

// InProgress reports whether the decoder is positioned inside a TLV.
func (d *StreamDecoder) InProgress() bool {
	return len(d.stack) > 1 || d.hdr > 0
}

// Err returns the error that terminated decoding, if any.
func (d *StreamDecoder) Err() error {
	return d.err
}

// Feed consumes p. It returns once p is exhausted, leaving the decoder
// ready for the next chunk. A structural error is returned at most once in
// its original form and then persists for the lifetime of the decoder.
func (d *StreamDecoder) Feed(p []byte) error {
	if d.err != nil {
		return d.err
	}
	if d.closed {
		return ErrDecoderClosed
	}

	for len(p) > 0 {
		if d.state == stateValue {
			n, err := d.readValue(p)
			p = p[n:]
			if err != nil {
				return d.fail(err)
			}
			continue
		}

		b := p[0]
		p = p[1:]
		if err := d.readHeaderOctet(b); err != nil {
			return d.fail(err)
		}
	}
	return nil
}

// Close signals the end of the stream. It reports ErrTruncatedStream when
// the stream ended inside a TLV.
func (d *StreamDecoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if d.closed {
		return nil
	}
	d.closed = true
	if d.InProgress() {
		return d.fail(NewDecodeError(d.offset, "stream ended inside a TLV", ErrTruncatedStream))
	}
	return nil
}

func (d *StreamDecoder) fail(err error) error {
	d.err = err
	return err
}

func (d *StreamDecoder) top() *frame {
	return &d.stack[len(d.stack)-1]
}

func (d *StreamDecoder) headerError(message string, err error) error {
	return NewDecodeError(d.hdrStart, message, err)
}

// readHeaderOctet advances the identifier and length state machine by one octet.
func (d *StreamDecoder) readHeaderOctet(b byte) error {
	if d.hdr == 0 {
		d.hdrStart = d.offset
	}
	d.hdr++
	d.offset++

	if rem := d.top().remaining(); rem >= 0 && d.hdr > rem {
		return d.headerError("header overruns enclosing value", ErrMalformedLength)
	}

	switch d.state {
	case stateTag:
		d.tag = Tag{
			Class:       Class(b & classMask),
			Number:      uint32(b & numberMask),
			Constructed: b&constructedMask != 0,
		}
		if b&numberMask == highTagNumber {
			d.tag.Number = 0
			d.tagOctets = 1
			d.state = stateTagExtended
			return nil
		}
		d.state = stateLength
		return d.tagDone()

	case stateTagExtended:
		d.tagOctets++
		if d.tagOctets > maxTagOctets {
			return d.headerError("tag number too long", ErrMalformedTag)
		}
		// X.690 8.1.2.4.2 c: the first continuation octet must not be 0x80
		if d.tagOctets == 2 && b == 0x80 {
			return d.headerError("leading zero in high tag number", ErrMalformedTag)
		}
		if d.tag.Number > math.MaxUint32>>7 {
			return d.headerError("tag number overflow", ErrMalformedTag)
		}
		d.tag.Number = d.tag.Number<<7 | uint32(b&0x7F)
		if b&0x80 != 0 {
			return nil
		}
		d.state = stateLength
		return d.tagDone()

	case stateLength:
		switch {
		case b == lengthIndefiniteOctet:
			return d.headerDone(Indefinite)
		case b&LengthLongFormBit == 0:
			return d.headerDone(Length(b))
		case b == lengthReservedOctet:
			return d.headerError("reserved length octet", ErrMalformedLength)
		}
		d.lenOctets = int(b &^ LengthLongFormBit)
		if d.lenOctets > maxLengthOctets {
			return d.headerError("too many length octets", ErrMalformedLength)
		}
		d.lenValue = 0
		d.state = stateLengthExtended
		return nil

	case stateLengthExtended:
		if d.lenValue > math.MaxInt>>8 {
			return d.headerError("length value overflow", ErrMalformedLength)
		}
		d.lenValue = d.lenValue<<8 | int(b)
		d.lenOctets--
		if d.lenOctets > 0 {
			return nil
		}
		return d.headerDone(Length(d.lenValue))
	}
	return nil
}

// tagDone runs once the identifier octets are complete.
func (d *StreamDecoder) tagDone() error {
	if d.tag.Class == ClassUniversal && d.tag.Number == TagEndOfContents {
		if d.tag.Constructed {
			return d.headerError("constructed end-of-contents", ErrUnexpectedEndOfContents)
		}
		if d.Depth() == 0 || !d.top().length.IsIndefinite() {
			return d.headerError("end-of-contents outside an indefinite-length value", ErrUnexpectedEndOfContents)
		}
		return nil
	}
	if d.opts.MaxDepth > 0 && d.Depth() >= d.opts.MaxDepth {
		return d.headerError("nesting too deep", ErrMaxDepthExceeded)
	}
	return d.handler.OpenTag(d.tag)
}

// headerDone runs once the length octets are complete and opens the frame.
func (d *StreamDecoder) headerDone(l Length) error {
	top := d.top()

	if d.tag.IsEndOfContents() {
		if l != 0 {
			return d.headerError("end-of-contents with non-zero length", ErrUnexpectedEndOfContents)
		}
		top.consumed += d.hdr
		d.hdr = 0
		d.state = stateTag
		return d.finishTop()
	}

	if l.IsIndefinite() {
		if !d.tag.Constructed {
			return d.headerError("indefinite length on primitive "+d.tag.String(), ErrMalformedLength)
		}
		if d.opts.DisallowIndefinite {
			return d.headerError("indefinite length not permitted", ErrMalformedLength)
		}
	} else if d.opts.MaxLength > 0 && int(l) > d.opts.MaxLength {
		return d.headerError("declared length "+l.String()+" exceeds limit", ErrLengthLimitExceeded)
	}

	f := frame{tag: d.tag, length: l, header: d.hdr, limit: -1}
	rem := top.remaining()
	if l.IsIndefinite() {
		if rem >= 0 {
			f.limit = rem - d.hdr
		}
	} else {
		if rem >= 0 && d.hdr+int(l) > rem {
			return d.headerError("value overruns enclosing value", ErrMalformedLength)
		}
		f.limit = int(l)
	}

	d.hdr = 0
	d.stack = append(d.stack, f)
	if err := d.handler.Length(l); err != nil {
		return err
	}

	d.state = stateTag
	if l == 0 {
		return d.finishTop()
	}
	if !f.tag.Constructed {
		d.state = stateValue
	}
	return nil
}

// readValue consumes value octets of the open primitive TLV.
func (d *StreamDecoder) readValue(p []byte) (int, error) {
	f := d.top()
	n := int(f.length) - f.consumed
	if n > len(p) {
		n = len(p)
	}
	f.consumed += n
	d.offset += n
	if err := d.handler.Value(p[:n]); err != nil {
		return n, err
	}
	if f.consumed < int(f.length) {
		return n, nil
	}
	d.state = stateTag
	return n, d.finishTop()
}

// finishTop closes the topmost TLV, credits its octets to the parent, and
// keeps closing definite-length ancestors whose value is now complete.
func (d *StreamDecoder) finishTop() error {
	for {
		f := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		if err := d.handler.CloseTag(); err != nil {
			return err
		}

		parent := d.top()
		parent.consumed += f.header + f.consumed
		if d.Depth() == 0 || parent.length.IsIndefinite() || parent.consumed < int(parent.length) {
			return nil
		}
	}
}
