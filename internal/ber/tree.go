package ber

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// NodeID addresses a node inside a Tree.
type NodeID int

// NoNode is the parent of a root node.
const NoNode NodeID = -1

// Tuple is a single tag-length-value unit. Primitive tuples hold their
// resolved value octets; constructed tuples hold no value, their children
// live in the owning Tree.
type Tuple struct {
	Tag    Tag
	Length Length
	Value  []byte
}

// PrimitiveTuple returns a primitive tuple whose length is len(value).
func PrimitiveTuple(tag Tag, value []byte) Tuple {
	tag.Constructed = false
	return Tuple{Tag: tag, Length: Length(len(value)), Value: value}
}

// ConstructedTuple returns a constructed tuple with the given length, which
// may be Indefinite until ComputeLengths runs.
func ConstructedTuple(tag Tag, length Length) Tuple {
	tag.Constructed = true
	return Tuple{Tag: tag, Length: length}
}

// Validate checks the tuple against the TLV model.
func (tp Tuple) Validate() error {
	if tp.Length < Indefinite {
		return fmt.Errorf("%w: negative length %d", ErrInvalidTuple, tp.Length)
	}
	if tp.Tag.Constructed {
		if tp.Value != nil {
			return fmt.Errorf("%w: constructed tuple carries value octets", ErrInvalidTuple)
		}
		return nil
	}
	if tp.Length.IsIndefinite() {
		return fmt.Errorf("%w: indefinite length on primitive %s", ErrInvalidTuple, tp.Tag)
	}
	if int(tp.Length) != len(tp.Value) {
		return fmt.Errorf("%w: length %d does not match %d value octets", ErrInvalidTuple, tp.Length, len(tp.Value))
	}
	return nil
}

// Node is one tuple in a Tree with its ordered children and a parent
// reference used only for navigation.
type Node struct {
	Tuple
	parent   NodeID
	children []NodeID
}

// Tree is an arena of TLV nodes addressed by NodeID. Children are listed
// by index and the parent index is kept for navigation only, so the whole
// tree is released at once when it is dropped.
type Tree struct {
	nodes []Node
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make([]Node, 0, 16)}
}

// Reset discards every node, keeping the allocated arena.
func (t *Tree) Reset() {
	t.nodes = t.nodes[:0]
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Add stores tp as a new parentless node.
func (t *Tree) Add(tp Tuple) (NodeID, error) {
	if err := tp.Validate(); err != nil {
		return NoNode, err
	}
	t.nodes = append(t.nodes, Node{Tuple: tp, parent: NoNode})
	return NodeID(len(t.nodes) - 1), nil
}

// NewPrimitive adds a primitive node holding value.
func (t *Tree) NewPrimitive(tag Tag, value []byte) NodeID {
	id, _ := t.Add(PrimitiveTuple(tag, value))
	return id
}

// NewConstructed adds a constructed node whose length is unknown until
// ComputeLengths runs.
func (t *Tree) NewConstructed(tag Tag) NodeID {
	id, _ := t.Add(ConstructedTuple(tag, Indefinite))
	return id
}

// Append makes child the last child of parent.
func (t *Tree) Append(parent, child NodeID) error {
	if !t.valid(parent) || !t.valid(child) || parent == child {
		return ErrInvalidNode
	}
	p := &t.nodes[parent]
	if !p.Tag.Constructed {
		return ErrNotConstructed
	}
	c := &t.nodes[child]
	if c.parent != NoNode {
		return fmt.Errorf("%w: node %d already has a parent", ErrInvalidNode, child)
	}
	for a := parent; a != NoNode; a = t.nodes[a].parent {
		if a == child {
			return fmt.Errorf("%w: appending node %d would create a cycle", ErrInvalidNode, child)
		}
	}
	c.parent = parent
	p.children = append(p.children, child)
	return nil
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Node returns the node at id, or nil when id is not in the tree.
func (t *Tree) Node(id NodeID) *Node {
	if !t.valid(id) {
		return nil
	}
	return &t.nodes[id]
}

// Tuple returns the tuple stored at id.
func (t *Tree) Tuple(id NodeID) Tuple {
	return t.nodes[id].Tuple
}

// Parent returns the parent of id, or NoNode for a root.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// Children returns the ordered children of id. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// Roots returns every parentless node in insertion order.
func (t *Tree) Roots() []NodeID {
	var roots []NodeID
	for i := range t.nodes {
		if t.nodes[i].parent == NoNode {
			roots = append(roots, NodeID(i))
		}
	}
	return roots
}

// Walk visits id and its descendants in pre-order.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) error) error {
	return t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) error) error {
	if err := fn(id, depth); err != nil {
		return err
	}
	for _, c := range t.nodes[id].children {
		if err := t.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether the subtree at a in t and the subtree at b in o
// have identical tags, lengths, and value octets.
func (t *Tree) Equal(a NodeID, o *Tree, b NodeID) bool {
	na, nb := t.Node(a), o.Node(b)
	if na == nil || nb == nil {
		return na == nb
	}
	if na.Tag != nb.Tag || na.Length != nb.Length || !bytes.Equal(na.Value, nb.Value) {
		return false
	}
	if len(na.children) != len(nb.children) {
		return false
	}
	for i := range na.children {
		if !t.Equal(na.children[i], o, nb.children[i]) {
			return false
		}
	}
	return true
}

// Format writes an indented dump of the subtree at id, one tuple per line.
func (t *Tree) Format(w io.Writer, id NodeID) error {
	return t.Walk(id, func(n NodeID, depth int) error {
		node := &t.nodes[n]
		indent := strings.Repeat("  ", depth)
		var err error
		if node.Tag.Constructed {
			_, err = fmt.Fprintf(w, "%s%s len=%s\n", indent, node.Tag, node.Length)
		} else {
			_, err = fmt.Fprintf(w, "%s%s len=%s % X\n", indent, node.Tag, node.Length, node.Value)
		}
		return err
	})
}
