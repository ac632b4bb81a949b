package ber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuple_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tuple   Tuple
		wantErr bool
	}{
		{"primitive", PrimitiveTuple(OctetStringTag, []byte("abc")), false},
		{"empty primitive", PrimitiveTuple(NullTag, nil), false},
		{"constructed indefinite", ConstructedTuple(SequenceTag, Indefinite), false},
		{"constructed definite", ConstructedTuple(SequenceTag, 4), false},
		{"negative length", Tuple{Tag: OctetStringTag, Length: -2}, true},
		{"indefinite primitive", Tuple{Tag: OctetStringTag, Length: Indefinite}, true},
		{"length mismatch", Tuple{Tag: OctetStringTag, Length: 3, Value: []byte("a")}, true},
		{"constructed with value", Tuple{Tag: SequenceTag, Length: 1, Value: []byte{0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tuple.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTuple)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrimitiveTuple_ClearsConstructed(t *testing.T) {
	tp := PrimitiveTuple(SequenceTag, []byte{1})
	assert.False(t, tp.Tag.Constructed)
	assert.Equal(t, Length(1), tp.Length)

	tp = ConstructedTuple(OctetStringTag, Indefinite)
	assert.True(t, tp.Tag.Constructed)
}

func TestTree_Append(t *testing.T) {
	tree := NewTree()
	seq := tree.NewConstructed(SequenceTag)
	a := tree.NewPrimitive(IntegerTag, []byte{1})
	b := tree.NewPrimitive(IntegerTag, []byte{2})

	require.NoError(t, tree.Append(seq, a))
	require.NoError(t, tree.Append(seq, b))

	assert.Equal(t, []NodeID{a, b}, tree.Children(seq))
	assert.Equal(t, seq, tree.Parent(a))
	assert.Equal(t, NoNode, tree.Parent(seq))
	assert.Equal(t, []NodeID{seq}, tree.Roots())
	assert.Equal(t, 3, tree.Len())

	t.Run("primitive parent", func(t *testing.T) {
		c := tree.NewPrimitive(NullTag, nil)
		assert.ErrorIs(t, tree.Append(a, c), ErrNotConstructed)
	})

	t.Run("already attached", func(t *testing.T) {
		other := tree.NewConstructed(SetTag)
		assert.ErrorIs(t, tree.Append(other, a), ErrInvalidNode)
	})

	t.Run("cycle", func(t *testing.T) {
		inner := tree.NewConstructed(SequenceTag)
		require.NoError(t, tree.Append(seq, inner))
		assert.ErrorIs(t, tree.Append(inner, seq), ErrInvalidNode)
	})

	t.Run("self", func(t *testing.T) {
		assert.ErrorIs(t, tree.Append(seq, seq), ErrInvalidNode)
	})

	t.Run("out of range", func(t *testing.T) {
		assert.ErrorIs(t, tree.Append(seq, NodeID(99)), ErrInvalidNode)
		assert.Nil(t, tree.Node(NoNode))
	})
}

func TestTree_Add(t *testing.T) {
	tree := NewTree()
	id, err := tree.Add(Tuple{Tag: OctetStringTag, Length: Indefinite})
	assert.ErrorIs(t, err, ErrInvalidTuple)
	assert.Equal(t, NoNode, id)
	assert.Equal(t, 0, tree.Len())

	id, err = tree.Add(PrimitiveTuple(OctetStringTag, []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, NodeID(0), id)
}

func TestTree_Walk(t *testing.T) {
	tree, err := DecodeTree(mustHex(t, "30 08 02 01 01 30 03 04 01 41"), DefaultDecoderOptions())
	require.NoError(t, err)

	var visited []string
	err = tree.Walk(0, func(id NodeID, depth int) error {
		visited = append(visited, tree.Tuple(id).Tag.String()+"@"+string(rune('0'+depth)))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UNIVERSAL 16/c@0",
		"UNIVERSAL 2/p@1",
		"UNIVERSAL 16/c@1",
		"UNIVERSAL 4/p@2",
	}, visited)
}

func TestTree_Format(t *testing.T) {
	tree, err := DecodeTree(mustHex(t, "30 06 02 01 01 04 01 41"), DefaultDecoderOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Format(&buf, 0))
	assert.Equal(t, "UNIVERSAL 16/c len=6\n  UNIVERSAL 2/p len=1 01\n  UNIVERSAL 4/p len=1 41\n", buf.String())
}

func TestTree_Equal(t *testing.T) {
	a, err := DecodeTree(mustHex(t, "30 03 02 01 01"), DefaultDecoderOptions())
	require.NoError(t, err)
	b, err := DecodeTree(mustHex(t, "30 03 02 01 02"), DefaultDecoderOptions())
	require.NoError(t, err)
	c, err := DecodeTree(mustHex(t, "30 06 02 01 01 02 01 01"), DefaultDecoderOptions())
	require.NoError(t, err)

	assert.True(t, a.Equal(0, a, 0))
	assert.False(t, a.Equal(0, b, 0))
	assert.False(t, a.Equal(0, c, 0))
	assert.False(t, a.Equal(0, a, 5))
}

func TestTree_Reset(t *testing.T) {
	tree := NewTree()
	tree.NewPrimitive(NullTag, nil)
	tree.Reset()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Roots())
}

func TestDecodeTree_MultipleRoots(t *testing.T) {
	tree, err := DecodeTree(mustHex(t, "02 01 01 30 03 02 01 02"), DefaultDecoderOptions())
	require.NoError(t, err)
	roots := tree.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, IntegerTag, tree.Tuple(roots[0]).Tag)
	assert.Equal(t, SequenceTag, tree.Tuple(roots[1]).Tag)
	assert.Len(t, tree.Children(roots[1]), 1)
}

func TestDecodeTree_Truncated(t *testing.T) {
	_, err := DecodeTree(mustHex(t, "30 03 02 01"), DefaultDecoderOptions())
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestDecodeTree_HugeDeclaredLength(t *testing.T) {
	data := mustHex(t, "04 88 7F FF FF FF FF FF FF FF")
	require.NotPanics(t, func() {
		_, err := DecodeTree(data, DecoderOptions{})
		assert.ErrorIs(t, err, ErrTruncatedStream)
	})
}

func TestTreeBuilder_CapsPreallocation(t *testing.T) {
	b := NewTreeBuilder(nil)
	require.NoError(t, b.OpenTag(OctetStringTag))
	require.NoError(t, b.Length(Length(1<<40)))
	assert.LessOrEqual(t, cap(b.Tree().Tuple(0).Value), MaxPrealloc)

	require.NoError(t, b.Value([]byte{0x41, 0x42}))
	assert.Equal(t, []byte{0x41, 0x42}, b.Tree().Tuple(0).Value)
}
