package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return out
}

// integerRegistry decodes top-level INTEGERs into int64 values.
func integerRegistry() *digester.Registry {
	reg := digester.NewRegistry()
	reg.MustAdd(digester.P(ber.IntegerTag), digester.PrimitiveRule(func(d *digester.Digester, v []byte) error {
		n, err := ber.ParseInteger(v)
		if err != nil {
			return err
		}
		d.Push(n)
		return nil
	}))
	return reg
}

func TestCodec_Decode(t *testing.T) {
	c := New(integerRegistry(), DefaultOptions())
	assert.True(t, c.Registry().Frozen())

	objs, err := c.Decode("a", mustHex(t, "02 01 05 02 02"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, objs)
	assert.Equal(t, 1, c.Streams())

	objs, err = c.Decode("a", mustHex(t, "01 00 02 01 FF"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(256), int64(-1)}, objs)

	objs, err = c.Decode("a", nil)
	require.NoError(t, err)
	assert.Empty(t, objs)

	require.NoError(t, c.Close("a"))
	assert.Equal(t, 0, c.Streams())
	assert.ErrorIs(t, c.Close("a"), ErrUnknownStream)
}

func TestCodec_StreamsAreIndependent(t *testing.T) {
	c := New(integerRegistry(), DefaultOptions())

	_, err := c.Decode("a", mustHex(t, "02 01"))
	require.NoError(t, err)
	_, err = c.Decode("b", mustHex(t, "02"))
	require.NoError(t, err)

	objs, err := c.Decode("b", mustHex(t, "01 09"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(9)}, objs)

	objs, err = c.Decode("a", mustHex(t, "07"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7)}, objs)
	assert.Equal(t, 2, c.Streams())
}

func TestCodec_StructuralErrorRemovesStream(t *testing.T) {
	c := New(integerRegistry(), DefaultOptions())

	objs, err := c.Decode("a", mustHex(t, "02 01 01 02 89"))
	assert.ErrorIs(t, err, ber.ErrMalformedLength)
	assert.Contains(t, err.Error(), "stream a")
	assert.Equal(t, []any{int64(1)}, objs)
	assert.Equal(t, 0, c.Streams())

	// the id can be reused for a fresh stream
	objs, err = c.Decode("a", mustHex(t, "02 01 03"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, objs)
}

func TestCodec_CloseTruncated(t *testing.T) {
	c := New(integerRegistry(), DefaultOptions())
	_, err := c.Decode("a", mustHex(t, "30 05 02 01"))
	require.NoError(t, err)

	assert.ErrorIs(t, c.Close("a"), ber.ErrTruncatedStream)
	assert.Equal(t, 0, c.Streams())
}

func TestCodec_AbortOnRuleFailure(t *testing.T) {
	opts := DefaultOptions()
	opts.AbortOnRuleFailure = true
	c := New(integerRegistry(), opts)

	_, err := c.Decode("a", mustHex(t, "02 00"))
	var re *digester.RuleError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ber.ErrInvalidInteger)
	assert.Equal(t, 0, c.Streams())
}

func TestCodec_Concurrent(t *testing.T) {
	c := New(integerRegistry(), DefaultOptions())
	data := mustHex(t, "02 01 2A")

	var wg sync.WaitGroup
	results := make([][]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for _, b := range data {
				objs, err := c.Decode(id, []byte{b})
				if err != nil {
					return
				}
				results[i] = append(results[i], objs...)
			}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, []any{int64(42)}, r, "stream %d", i)
	}
	assert.Equal(t, 16, c.Streams())
}

func TestCodec_TreeRoundTrip(t *testing.T) {
	c := New(digester.NewRegistry(), DefaultOptions())
	data := mustHex(t, "30 80 02 01 01 04 02 68 69 00 00")

	tree, err := c.DecodeTree(data)
	require.NoError(t, err)
	require.Len(t, tree.Roots(), 1)

	out, err := c.Encode(tree, tree.Roots()[0])
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, "30 07 02 01 01 04 02 68 69"), out)

	var buf bytes.Buffer
	require.NoError(t, c.EncodeTo(&buf, tree, tree.Roots()[0]))
	assert.Equal(t, out, buf.Bytes())
}
