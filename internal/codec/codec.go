// Package codec is the entry point for decoding and encoding BER streams.
// A Codec multiplexes any number of independent byte streams over one
// frozen rule registry, keeping a digester per stream.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
)

// ErrUnknownStream is returned by Close for a stream that was never fed or
// has already been discarded.
var ErrUnknownStream = errors.New("codec: unknown stream")

// Options configures a Codec.
type Options struct {
	// Decoder bounds the input of every stream.
	Decoder ber.DecoderOptions
	// Monitor observes the rule outcomes of every stream.
	Monitor digester.Monitor
	// AbortOnRuleFailure terminates a stream on its first rule failure.
	AbortOnRuleFailure bool
}

// DefaultOptions returns the options used for network input.
func DefaultOptions() Options {
	return Options{Decoder: ber.DefaultDecoderOptions()}
}

type stream struct {
	mu      sync.Mutex
	d       *digester.Digester
	pending []any
}

// Codec decodes streams with the rules of one registry. It is safe for
// concurrent use; calls for the same stream are serialized.
type Codec struct {
	registry *digester.Registry
	opts     Options

	mu      sync.Mutex
	streams map[string]*stream
}

// New creates a codec over reg, freezing it.
func New(reg *digester.Registry, opts Options) *Codec {
	reg.Freeze()
	return &Codec{
		registry: reg,
		opts:     opts,
		streams:  make(map[string]*stream),
	}
}

// Registry returns the frozen registry the codec decodes with.
func (c *Codec) Registry() *digester.Registry {
	return c.registry
}

func (c *Codec) stream(id string, create bool) *stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.streams[id]
	if s == nil && create {
		s = &stream{}
		s.d = digester.New(c.registry, digester.Options{
			Decoder:            c.opts.Decoder,
			Monitor:            c.opts.Monitor,
			AbortOnRuleFailure: c.opts.AbortOnRuleFailure,
			OnComplete: func(obj any) {
				s.pending = append(s.pending, obj)
			},
		})
		c.streams[id] = s
	}
	return s
}

func (c *Codec) remove(id string, s *stream) {
	c.mu.Lock()
	if c.streams[id] == s {
		delete(c.streams, id)
	}
	c.mu.Unlock()
}

// Decode feeds chunk to the stream identified by streamID and returns the
// objects completed during this call, in stream order. The stream is
// created on first use. On error the stream is discarded; objects that
// completed before the error are still returned.
func (c *Codec) Decode(streamID string, chunk []byte) ([]any, error) {
	s := c.stream(streamID, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.d.Feed(chunk)
	out := s.pending
	s.pending = nil
	if err != nil {
		c.remove(streamID, s)
		return out, fmt.Errorf("stream %s: %w", streamID, err)
	}
	return out, nil
}

// Close signals the end of a stream and discards it. It returns
// ber.ErrTruncatedStream when the stream ended inside a TLV.
func (c *Codec) Close(streamID string) error {
	s := c.stream(streamID, false)
	if s == nil {
		return ErrUnknownStream
	}
	c.remove(streamID, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.d.Close(); err != nil {
		return fmt.Errorf("stream %s: %w", streamID, err)
	}
	return nil
}

// Streams returns the number of open streams.
func (c *Codec) Streams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// Encode runs both encoder passes over the subtree at root.
func (c *Codec) Encode(t *ber.Tree, root ber.NodeID) ([]byte, error) {
	return ber.Encode(t, root)
}

// EncodeTo encodes the subtree at root into w.
func (c *Codec) EncodeTo(w io.Writer, t *ber.Tree, root ber.NodeID) error {
	return ber.EncodeTo(w, t, root)
}

// DecodeTree decodes a complete buffer into a TLV tree, using the codec's
// decoder limits.
func (c *Codec) DecodeTree(p []byte) (*ber.Tree, error) {
	return ber.DecodeTree(p, c.opts.Decoder)
}
