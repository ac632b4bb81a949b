package ber

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs decoder events. Adjacent value chunks are merged so logs
// from different chunkings of the same input compare equal.
type recorder struct {
	events []string
	value  []byte
}

func (r *recorder) flush() {
	if r.value != nil {
		r.events = append(r.events, fmt.Sprintf("value % X", r.value))
		r.value = nil
	}
}

func (r *recorder) OpenTag(tag Tag) error {
	r.flush()
	r.events = append(r.events, "open "+tag.String())
	return nil
}

func (r *recorder) Length(l Length) error {
	r.flush()
	r.events = append(r.events, "len "+l.String())
	return nil
}

func (r *recorder) Value(chunk []byte) error {
	if len(chunk) == 0 {
		r.events = append(r.events, "empty value chunk")
		return nil
	}
	r.value = append(r.value, chunk...)
	return nil
}

func (r *recorder) CloseTag() error {
	r.flush()
	r.events = append(r.events, "close")
	return nil
}

func (r *recorder) log() []string {
	r.flush()
	return r.events
}

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return out
}

func decodeEvents(t *testing.T, chunks ...[]byte) ([]string, error) {
	t.Helper()
	r := &recorder{}
	d := NewStreamDecoder(r, DefaultDecoderOptions())
	for _, c := range chunks {
		if err := d.Feed(c); err != nil {
			return r.log(), err
		}
	}
	return r.log(), d.Close()
}

var streamSamples = []struct {
	name string
	hex  string
}{
	{"bind response", "30 0C 02 01 01 61 07 0A 01 00 04 00 04 00"},
	{"bind response with sasl creds", "30 10 02 01 01 61 0B 0A 01 00 04 00 04 00 87 02 41 42"},
	{"indefinite sequence", "30 80 02 01 05 04 02 41 42 00 00"},
	{"indefinite inside definite", "30 0A 30 80 02 01 01 00 00 04 01 41"},
	{"nested indefinite", "30 80 31 80 02 01 07 00 00 00 00"},
	{"high tag number", "5F 1F 01 41 BF 81 00 03 80 01 FF"},
	{"nested definite closes together", "30 05 30 03 02 01 01"},
	{"empty values", "30 04 04 00 05 00 30 00"},
	{"sibling roots", "02 01 01 02 01 02 30 00"},
}

func TestStreamDecoder_Events(t *testing.T) {
	events, err := decodeEvents(t, mustHex(t, "30 07 02 01 05 04 02 41 42"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"open UNIVERSAL 16/c",
		"len 7",
		"open UNIVERSAL 2/p",
		"len 1",
		"value 05",
		"close",
		"open UNIVERSAL 4/p",
		"len 2",
		"value 41 42",
		"close",
		"close",
	}, events)
}

func TestStreamDecoder_IndefiniteLength(t *testing.T) {
	events, err := decodeEvents(t, mustHex(t, "30 80 02 01 05 04 02 41 42 00 00"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"open UNIVERSAL 16/c",
		"len indefinite",
		"open UNIVERSAL 2/p",
		"len 1",
		"value 05",
		"close",
		"open UNIVERSAL 4/p",
		"len 2",
		"value 41 42",
		"close",
		"close",
	}, events)
}

func TestStreamDecoder_ZeroLength(t *testing.T) {
	events, err := decodeEvents(t, mustHex(t, "30 04 04 00 05 00"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"open UNIVERSAL 16/c",
		"len 4",
		"open UNIVERSAL 4/p",
		"len 0",
		"close",
		"open UNIVERSAL 5/p",
		"len 0",
		"close",
		"close",
	}, events)
}

func TestStreamDecoder_NestedClose(t *testing.T) {
	events, err := decodeEvents(t, mustHex(t, "30 05 30 03 02 01 01 02 01 02"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"open UNIVERSAL 16/c",
		"len 5",
		"open UNIVERSAL 16/c",
		"len 3",
		"open UNIVERSAL 2/p",
		"len 1",
		"value 01",
		"close",
		"close",
		"close",
		"open UNIVERSAL 2/p",
		"len 1",
		"value 02",
		"close",
	}, events)
}

func TestStreamDecoder_TagForms(t *testing.T) {
	tests := []struct {
		name   string
		hex    string
		number uint32
	}{
		{"number 30", "1E 00", 30},
		{"number 31", "1F 1F 00", 31},
		{"number 128", "1F 81 00 00", 128},
		{"number 16384", "1F 81 80 00 00", 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := DecodeTree(mustHex(t, tt.hex), DecoderOptions{})
			require.NoError(t, err)
			require.Equal(t, 1, tree.Len())
			assert.Equal(t, tt.number, tree.Tuple(0).Tag.Number)
			assert.Equal(t, ClassUniversal, tree.Tuple(0).Tag.Class)
		})
	}
}

func TestStreamDecoder_LongFormLength(t *testing.T) {
	value := bytes.Repeat([]byte{0xAB}, 300)
	data := append([]byte{0x04, 0x82, 0x01, 0x2C}, value...)

	tree, err := DecodeTree(data, DefaultDecoderOptions())
	require.NoError(t, err)
	assert.Equal(t, Length(300), tree.Tuple(0).Length)
	assert.Equal(t, value, tree.Tuple(0).Value)

	// non-minimal long form is accepted on input
	tree, err = DecodeTree(mustHex(t, "04 81 02 41 42"), DefaultDecoderOptions())
	require.NoError(t, err)
	assert.Equal(t, []byte("AB"), tree.Tuple(0).Value)
}

func TestStreamDecoder_IncrementalFeedEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, s := range streamSamples {
		t.Run(s.name, func(t *testing.T) {
			data := mustHex(t, s.hex)
			want, err := decodeEvents(t, data)
			require.NoError(t, err)

			// every two-chunk split
			for i := 0; i <= len(data); i++ {
				got, err := decodeEvents(t, data[:i], data[i:])
				require.NoError(t, err, "split at %d", i)
				assert.Equal(t, want, got, "split at %d", i)
			}

			// one byte at a time
			chunks := make([][]byte, len(data))
			for i := range data {
				chunks[i] = data[i : i+1]
			}
			got, err := decodeEvents(t, chunks...)
			require.NoError(t, err)
			assert.Equal(t, want, got, "byte at a time")

			// random chunk sizes, including empty chunks
			for round := 0; round < 20; round++ {
				var chunks [][]byte
				for rest := data; len(rest) > 0; {
					n := rng.Intn(len(rest) + 1)
					chunks = append(chunks, rest[:n])
					rest = rest[n:]
				}
				got, err := decodeEvents(t, chunks...)
				require.NoError(t, err)
				assert.Equal(t, want, got, "random round %d", round)
			}
		})
	}
}

func TestStreamDecoder_IndefiniteMatchesDefinite(t *testing.T) {
	tests := []struct {
		name       string
		indefinite string
		definite   string
	}{
		{
			name:       "flat sequence",
			indefinite: "30 80 02 01 05 04 02 41 42 00 00",
			definite:   "30 07 02 01 05 04 02 41 42",
		},
		{
			name:       "nested set",
			indefinite: "30 80 31 80 02 01 07 00 00 00 00",
			definite:   "30 05 31 03 02 01 07",
		},
		{
			name:       "empty",
			indefinite: "30 80 00 00",
			definite:   "30 00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := DecodeTree(mustHex(t, tt.indefinite), DefaultDecoderOptions())
			require.NoError(t, err)
			b, err := DecodeTree(mustHex(t, tt.definite), DefaultDecoderOptions())
			require.NoError(t, err)
			assert.True(t, a.Equal(0, b, 0))

			out, err := Encode(a, 0)
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.definite), out)
		})
	}
}

func TestStreamDecoder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		opts    DecoderOptions
		wantErr error
		offset  int
	}{
		{"leading zero continuation", "1F 80 01 00", DefaultDecoderOptions(), ErrMalformedTag, 0},
		{"tag number overflow", "1F FF FF FF FF 7F 00", DefaultDecoderOptions(), ErrMalformedTag, 0},
		{"too many tag octets", "1F 81 81 81 81 81 01 00", DefaultDecoderOptions(), ErrMalformedTag, 0},
		{"reserved length octet", "04 FF", DefaultDecoderOptions(), ErrMalformedLength, 0},
		{"too many length octets", "04 89 00 00 00 00 00 00 00 00 01", DefaultDecoderOptions(), ErrMalformedLength, 0},
		{"indefinite primitive", "04 80 41 00 00", DefaultDecoderOptions(), ErrMalformedLength, 0},
		{"child overruns parent", "30 03 04 02 41 42", DefaultDecoderOptions(), ErrMalformedLength, 2},
		{"child header overruns parent", "30 01 04 01 41", DefaultDecoderOptions(), ErrMalformedLength, 2},
		{"indefinite child overruns parent", "30 03 30 80 00 00", DefaultDecoderOptions(), ErrMalformedLength, 4},
		{"end-of-contents at root", "00 00", DefaultDecoderOptions(), ErrUnexpectedEndOfContents, 0},
		{"end-of-contents in definite", "30 02 00 00", DefaultDecoderOptions(), ErrUnexpectedEndOfContents, 2},
		{"end-of-contents with length", "30 80 00 01 00", DefaultDecoderOptions(), ErrUnexpectedEndOfContents, 2},
		{"constructed end-of-contents", "30 80 20 00", DefaultDecoderOptions(), ErrUnexpectedEndOfContents, 2},
		{"depth limit", "30 80 30 80 30 80", DecoderOptions{MaxDepth: 2}, ErrMaxDepthExceeded, 4},
		{"length limit", "04 05 41 42 43 44 45", DecoderOptions{MaxLength: 4}, ErrLengthLimitExceeded, 0},
		{"indefinite disallowed", "30 80 00 00", DecoderOptions{DisallowIndefinite: true}, ErrMalformedLength, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewStreamDecoder(&recorder{}, tt.opts)
			err := d.Feed(mustHex(t, tt.hex))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.offset, de.Offset)

			// the decoder stays failed
			assert.Equal(t, err, d.Feed([]byte{0x05, 0x00}))
			assert.Equal(t, err, d.Close())
			assert.Equal(t, err, d.Err())
		})
	}
}

func TestStreamDecoder_Truncated(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"inside value", "04 05 41 42"},
		{"inside constructed", "30 05 02 01 01"},
		{"inside tag", "1F 81"},
		{"inside length", "04 82 01"},
		{"after tag", "04"},
		{"open indefinite", "30 80 02 01 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewStreamDecoder(&recorder{}, DefaultDecoderOptions())
			require.NoError(t, d.Feed(mustHex(t, tt.hex)))
			assert.True(t, d.InProgress())
			assert.ErrorIs(t, d.Close(), ErrTruncatedStream)
		})
	}
}

func TestStreamDecoder_Close(t *testing.T) {
	d := NewStreamDecoder(&recorder{}, DefaultDecoderOptions())
	require.NoError(t, d.Feed(mustHex(t, "02 01 01")))
	assert.False(t, d.InProgress())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Feed([]byte{0x02}), ErrDecoderClosed)

	d.Reset()
	require.NoError(t, d.Feed(mustHex(t, "02 01 01")))
	assert.Equal(t, 3, d.Offset())
}

func TestStreamDecoder_Depth(t *testing.T) {
	d := NewStreamDecoder(&recorder{}, DefaultDecoderOptions())
	require.NoError(t, d.Feed(mustHex(t, "30 80 30 80")))
	assert.Equal(t, 2, d.Depth())
	require.NoError(t, d.Feed(mustHex(t, "00 00")))
	assert.Equal(t, 1, d.Depth())
	require.NoError(t, d.Feed(mustHex(t, "00 00")))
	assert.Equal(t, 0, d.Depth())
	require.NoError(t, d.Close())
}

type failingHandler struct {
	recorder
	failOn string
}

var errHandler = errors.New("handler failed")

func (h *failingHandler) OpenTag(tag Tag) error {
	if h.failOn == "open" {
		return errHandler
	}
	return h.recorder.OpenTag(tag)
}

func (h *failingHandler) Value(chunk []byte) error {
	if h.failOn == "value" {
		return errHandler
	}
	return h.recorder.Value(chunk)
}

func TestStreamDecoder_HandlerError(t *testing.T) {
	for _, on := range []string{"open", "value"} {
		t.Run(on, func(t *testing.T) {
			d := NewStreamDecoder(&failingHandler{failOn: on}, DefaultDecoderOptions())
			err := d.Feed(mustHex(t, "04 01 41"))
			assert.ErrorIs(t, err, errHandler)
			assert.ErrorIs(t, d.Feed(nil), errHandler)
		})
	}
}

func TestDecodeError(t *testing.T) {
	err := NewDecodeError(12, "bad thing", ErrMalformedTag)
	assert.Equal(t, "ber: decode error at offset 12: bad thing: ber: malformed tag", err.Error())
	assert.ErrorIs(t, err, ErrMalformedTag)

	err = NewDecodeError(3, "no cause", nil)
	assert.Equal(t, "ber: decode error at offset 3: no cause", err.Error())
}
