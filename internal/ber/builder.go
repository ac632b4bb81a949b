package ber

// TreeBuilder is a Handler that materialises decoder events into a Tree.
// Indefinite-length nodes receive the definite length of their content
// once they close, so a decoded tree always re-encodes in definite form.
type TreeBuilder struct {
	tree *Tree
	open []NodeID
}

// NewTreeBuilder creates a builder that appends nodes to tree. A nil tree
// allocates a new one.
func NewTreeBuilder(tree *Tree) *TreeBuilder {
	if tree == nil {
		tree = NewTree()
	}
	return &TreeBuilder{tree: tree}
}

// Tree returns the tree being built.
func (b *TreeBuilder) Tree() *Tree {
	return b.tree
}

// OpenTag adds a node for tag under the innermost open node.
func (b *TreeBuilder) OpenTag(tag Tag) error {
	var id NodeID
	if tag.Constructed {
		id = b.tree.NewConstructed(tag)
	} else {
		id = b.tree.NewPrimitive(tag, nil)
	}
	if len(b.open) > 0 {
		if err := b.tree.Append(b.open[len(b.open)-1], id); err != nil {
			return err
		}
	}
	b.open = append(b.open, id)
	return nil
}

// Length records the declared length of the innermost open node.
func (b *TreeBuilder) Length(length Length) error {
	n := &b.tree.nodes[b.open[len(b.open)-1]]
	if n.Tag.Constructed {
		n.Length = length
		return nil
	}
	if length > 0 {
		n.Value = make([]byte, 0, min(int(length), MaxPrealloc))
	}
	return nil
}

// Value appends a copy of chunk to the innermost open primitive node.
func (b *TreeBuilder) Value(chunk []byte) error {
	n := &b.tree.nodes[b.open[len(b.open)-1]]
	n.Value = append(n.Value, chunk...)
	n.Length = Length(len(n.Value))
	return nil
}

// CloseTag closes the innermost open node.
func (b *TreeBuilder) CloseTag() error {
	id := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	if b.tree.nodes[id].Length.IsIndefinite() {
		return ComputeLengths(b.tree, id)
	}
	return nil
}

// DecodeTree decodes a complete BER buffer into a tree. Every top-level
// TLV becomes a root of the returned tree.
func DecodeTree(p []byte, opts DecoderOptions) (*Tree, error) {
	b := NewTreeBuilder(nil)
	d := NewStreamDecoder(b, opts)
	if err := d.Feed(p); err != nil {
		return nil, err
	}
	if err := d.Close(); err != nil {
		return nil, err
	}
	return b.Tree(), nil
}
