package ber

import (
	"fmt"
	"io"
)

// ComputeLengths assigns every constructed node under id the exact length
// of its encoded children. It runs post-order because the size of a length
// field depends on the value it encodes. Running it again yields the same
// lengths.
func ComputeLengths(t *Tree, id NodeID) error {
	n := t.Node(id)
	if n == nil {
		return ErrInvalidNode
	}
	if !n.Tag.Constructed {
		n.Length = Length(len(n.Value))
		return nil
	}
	sum := 0
	for _, c := range n.children {
		if err := ComputeLengths(t, c); err != nil {
			return err
		}
		sum += encodedSize(&t.nodes[c])
	}
	n.Length = Length(sum)
	return nil
}

// EncodedSize returns the number of octets the node at id occupies when
// encoded: identifier, length octets, and value. Lengths must be computed.
func EncodedSize(t *Tree, id NodeID) (int, error) {
	n := t.Node(id)
	if n == nil {
		return 0, ErrInvalidNode
	}
	if n.Length.IsIndefinite() {
		return 0, ErrLengthNotComputed
	}
	return encodedSize(n), nil
}

func encodedSize(n *Node) int {
	return n.Tag.Size() + n.Length.Size() + int(n.Length)
}

// Serialize writes the subtree at id to w in pre-order. Every length must
// already be known; the encoder never emits the indefinite form, so the
// output can be streamed without buffering.
func Serialize(t *Tree, id NodeID, w io.Writer) error {
	var hdr [maxTagOctets + 1 + maxLengthOctets]byte
	return serialize(t, id, w, hdr[:0])
}

func serialize(t *Tree, id NodeID, w io.Writer, scratch []byte) error {
	n := t.Node(id)
	if n == nil {
		return ErrInvalidNode
	}
	if n.Length.IsIndefinite() {
		return fmt.Errorf("%w: %s", ErrLengthNotComputed, n.Tag)
	}

	hdr := AppendLength(AppendTag(scratch, n.Tag), n.Length)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	if !n.Tag.Constructed {
		if len(n.Value) == 0 {
			return nil
		}
		_, err := w.Write(n.Value)
		return err
	}
	for _, c := range n.children {
		if err := serialize(t, c, w, scratch); err != nil {
			return err
		}
	}
	return nil
}

// Encode runs both passes over the subtree at id and returns its bytes.
func Encode(t *Tree, id NodeID) ([]byte, error) {
	if err := ComputeLengths(t, id); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, encodedSize(&t.nodes[id]))
	return appendNode(buf, t, id), nil
}

// EncodeTo runs both passes over the subtree at id, writing to w.
func EncodeTo(w io.Writer, t *Tree, id NodeID) error {
	if err := ComputeLengths(t, id); err != nil {
		return err
	}
	return Serialize(t, id, w)
}

// appendNode is the buffer form of serialize for nodes whose lengths are known.
func appendNode(b []byte, t *Tree, id NodeID) []byte {
	n := &t.nodes[id]
	b = AppendLength(AppendTag(b, n.Tag), n.Length)
	if !n.Tag.Constructed {
		return append(b, n.Value...)
	}
	for _, c := range n.children {
		b = appendNode(b, t, c)
	}
	return b
}

// Encoder builds a TLV tree with the write API used by protocol message
// encoders, then encodes it with the two-pass algorithm.
//
//	enc := ber.NewEncoder()
//	pos := enc.BeginSequence()
//	enc.WriteInteger(1)
//	enc.WriteOctetString([]byte("hello"))
//	enc.End(pos)
//	data, err := enc.Bytes()
type Encoder struct {
	tree  *Tree
	open  []NodeID
	roots []NodeID
	err   error
}

// NewEncoder creates an Encoder with an empty tree.
func NewEncoder() *Encoder {
	return &Encoder{tree: NewTree()}
}

// Reset clears the encoder for reuse.
func (e *Encoder) Reset() {
	e.tree.Reset()
	e.open = e.open[:0]
	e.roots = e.roots[:0]
	e.err = nil
}

// Tree returns the tree under construction.
func (e *Encoder) Tree() *Tree {
	return e.tree
}

// Roots returns the top-level nodes written so far.
func (e *Encoder) Roots() []NodeID {
	return e.roots
}

// Err returns the first error recorded by a write.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) attach(id NodeID) {
	if len(e.open) == 0 {
		e.roots = append(e.roots, id)
		return
	}
	if err := e.tree.Append(e.open[len(e.open)-1], id); err != nil && e.err == nil {
		e.err = err
	}
}

// Begin opens a constructed node with the given tag and returns its
// position for the matching End.
func (e *Encoder) Begin(tag Tag) NodeID {
	id := e.tree.NewConstructed(tag)
	e.attach(id)
	e.open = append(e.open, id)
	return id
}

// End closes the constructed node opened at pos. Nodes must be closed in
// reverse order of opening.
func (e *Encoder) End(pos NodeID) error {
	if len(e.open) == 0 || e.open[len(e.open)-1] != pos {
		if e.err == nil {
			e.err = ErrUnbalanced
		}
		return ErrUnbalanced
	}
	e.open = e.open[:len(e.open)-1]
	return nil
}

// BeginSequence opens a SEQUENCE.
func (e *Encoder) BeginSequence() NodeID {
	return e.Begin(SequenceTag)
}

// BeginSet opens a SET.
func (e *Encoder) BeginSet() NodeID {
	return e.Begin(SetTag)
}

// BeginApplication opens a constructed APPLICATION tag.
func (e *Encoder) BeginApplication(number uint32) NodeID {
	return e.Begin(ApplicationTag(number, true))
}

// BeginContext opens a constructed context-specific tag.
func (e *Encoder) BeginContext(number uint32) NodeID {
	return e.Begin(ContextTag(number, true))
}

// WritePrimitive writes a primitive node. The value is not copied.
func (e *Encoder) WritePrimitive(tag Tag, value []byte) {
	e.attach(e.tree.NewPrimitive(tag, value))
}

// WriteBoolean writes a BOOLEAN. TRUE is encoded as 0xFF.
func (e *Encoder) WriteBoolean(v bool) {
	e.WritePrimitive(BooleanTag, EncodeBoolean(v))
}

// WriteInteger writes an INTEGER using the minimum number of octets.
func (e *Encoder) WriteInteger(v int64) {
	e.WritePrimitive(IntegerTag, EncodeInteger(v))
}

// WriteEnumerated writes an ENUMERATED, encoded identically to INTEGER.
func (e *Encoder) WriteEnumerated(v int64) {
	e.WritePrimitive(EnumeratedTag, EncodeInteger(v))
}

// WriteOctetString writes an OCTET STRING.
func (e *Encoder) WriteOctetString(v []byte) {
	e.WritePrimitive(OctetStringTag, v)
}

// WriteString writes s as an OCTET STRING.
func (e *Encoder) WriteString(s string) {
	e.WritePrimitive(OctetStringTag, []byte(s))
}

// WriteNull writes a NULL.
func (e *Encoder) WriteNull() {
	e.WritePrimitive(NullTag, nil)
}

// WriteTaggedValue writes a primitive context-specific value.
func (e *Encoder) WriteTaggedValue(number uint32, value []byte) {
	e.WritePrimitive(ContextTag(number, false), value)
}

// Bytes encodes every root written so far, in order.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if len(e.open) > 0 {
		return nil, ErrUnbalanced
	}
	size := 0
	for _, r := range e.roots {
		if err := ComputeLengths(e.tree, r); err != nil {
			return nil, err
		}
		size += encodedSize(&e.tree.nodes[r])
	}
	buf := make([]byte, 0, size)
	for _, r := range e.roots {
		buf = appendNode(buf, e.tree, r)
	}
	return buf, nil
}

// WriteTo encodes every root to w.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	data, err := e.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
