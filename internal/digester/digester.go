package digester

import (
	"fmt"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// Options configures a Digester.
type Options struct {
	// Decoder bounds the input accepted by the underlying stream decoder.
	Decoder ber.DecoderOptions

	// Monitor is notified of every completed and failed rule. Nil means NopMonitor.
	Monitor Monitor

	// OnComplete receives the object left at the bottom of the object stack
	// when a top-level TLV closes. It is not called when the stack is empty
	// or when a rule failed while the TLV was being decoded.
	OnComplete func(obj any)

	// AbortOnRuleFailure makes a rule failure terminate the stream like a
	// structural decode error. By default the failing rule is skipped for
	// the rest of its TLV and decoding continues.
	AbortOnRuleFailure bool
}

type activeRule struct {
	rule   Rule
	failed bool
}

// frame is the dispatch state of one open TLV.
type frame struct {
	tag    ber.Tag
	length ber.Length
	cursor Cursor
	rules  []activeRule
	value  []byte
}

// Digester routes the events of a BER stream to the rules registered for
// each TLV's nesting path and owns the stacks through which rules build
// domain objects. It embeds a resumable stream decoder, so a digester is
// fed raw bytes in chunks of any size.
//
// A Digester serves one byte stream and must not be shared between
// goroutines. The Registry it reads from may be shared.
type Digester struct {
	registry *Registry
	opts     Options
	monitor  Monitor
	decoder  *ber.StreamDecoder

	path   Pattern
	frames []frame

	objects []any
	ints    []int

	// failed is set when a rule fails inside the current top-level TLV.
	failed bool
}

// New creates a digester over reg. The registry is frozen, since rules
// must not change once decoding begins.
func New(reg *Registry, opts Options) *Digester {
	reg.Freeze()
	d := &Digester{
		registry: reg,
		opts:     opts,
		monitor:  opts.Monitor,
		path:     make(Pattern, 0, 8),
		frames:   make([]frame, 0, 8),
	}
	if d.monitor == nil {
		d.monitor = NopMonitor{}
	}
	d.decoder = ber.NewStreamDecoder(d, opts.Decoder)
	return d
}

// Feed decodes the next chunk of the stream. Any error is terminal for the
// stream: a *ber.DecodeError for malformed input, a *RuleError when rule
// failures abort, or ber.ErrDecoderClosed after Close.
func (d *Digester) Feed(p []byte) error {
	return d.decoder.Feed(p)
}

// Close signals the end of the stream and reports ber.ErrTruncatedStream
// if it ended inside a TLV.
func (d *Digester) Close() error {
	return d.decoder.Close()
}

// Reset discards all decoding and stack state so the digester can serve a
// new stream.
func (d *Digester) Reset() {
	d.decoder.Reset()
	d.path = d.path[:0]
	d.frames = d.frames[:0]
	d.clearStacks()
}

// Offset returns the number of octets consumed from the stream.
func (d *Digester) Offset() int {
	return d.decoder.Offset()
}

// Registry returns the registry the digester matches against.
func (d *Digester) Registry() *Registry {
	return d.registry
}

// OpenTag implements ber.Handler.
func (d *Digester) OpenTag(t ber.Tag) error {
	parent := d.registry.Root()
	if n := len(d.frames); n > 0 {
		parent = d.frames[n-1].cursor
	}
	c := parent.Child(t.ID())

	d.path = append(d.path, t.ID())
	f := frame{tag: t, length: ber.Indefinite, cursor: c}
	if rules := c.Rules(); len(rules) > 0 {
		f.rules = make([]activeRule, len(rules))
		for i, r := range rules {
			f.rules[i].rule = r
		}
	}
	d.frames = append(d.frames, f)

	return d.dispatch(PhaseTag, func(r Rule) error {
		return r.Tag(d, t)
	})
}

// Length implements ber.Handler.
func (d *Digester) Length(n ber.Length) error {
	f := d.top()
	f.length = n
	if len(f.rules) > 0 && !f.tag.Constructed && n > 0 {
		f.value = make([]byte, 0, min(int(n), ber.MaxPrealloc))
	}
	return d.dispatch(PhaseLength, func(r Rule) error {
		return r.Length(d, n)
	})
}

// Value implements ber.Handler.
func (d *Digester) Value(chunk []byte) error {
	f := d.top()
	if len(f.rules) == 0 {
		return nil
	}
	f.value = append(f.value, chunk...)
	return d.dispatch(PhaseValue, func(r Rule) error {
		return r.Value(d, chunk)
	})
}

// CloseTag implements ber.Handler. Finish runs for the frame's rules in
// reverse registration order.
func (d *Digester) CloseTag() error {
	f := d.top()
	var abort error
	for i := len(f.rules) - 1; i >= 0; i-- {
		ar := &f.rules[i]
		if ar.failed {
			continue
		}
		if err := ar.rule.Finish(d); err != nil {
			if abort = d.ruleFailed(ar, PhaseFinish, err); abort != nil {
				break
			}
			continue
		}
		d.monitor.RuleCompleted(d.path, ar.rule)
	}

	d.frames[len(d.frames)-1] = frame{}
	d.frames = d.frames[:len(d.frames)-1]
	d.path = d.path[:len(d.path)-1]
	if abort != nil {
		return abort
	}

	if len(d.frames) == 0 {
		d.complete()
	}
	return nil
}

func (d *Digester) top() *frame {
	return &d.frames[len(d.frames)-1]
}

// dispatch invokes fn for every rule of the current frame that has not failed.
func (d *Digester) dispatch(phase Phase, fn func(Rule) error) error {
	f := d.top()
	for i := range f.rules {
		ar := &f.rules[i]
		if ar.failed {
			continue
		}
		if err := fn(ar.rule); err != nil {
			if abort := d.ruleFailed(ar, phase, err); abort != nil {
				return abort
			}
		}
	}
	return nil
}

// ruleFailed reports a failure and returns the error to abort with, if any.
func (d *Digester) ruleFailed(ar *activeRule, phase Phase, err error) error {
	ar.failed = true
	d.failed = true
	re := &RuleError{
		Pattern: d.Path(),
		Rule:    ar.rule,
		Phase:   phase,
		Err:     err,
	}
	d.monitor.RuleFailed(re)
	if d.opts.AbortOnRuleFailure {
		return re
	}
	return nil
}

// complete delivers the finished top-level object and resets the stacks.
func (d *Digester) complete() {
	if !d.failed && len(d.objects) > 0 && d.opts.OnComplete != nil {
		d.opts.OnComplete(d.objects[0])
	}
	d.clearStacks()
}

func (d *Digester) clearStacks() {
	clear(d.objects)
	d.objects = d.objects[:0]
	d.ints = d.ints[:0]
	d.failed = false
}

// Path returns a copy of the nesting path of the current TLV.
func (d *Digester) Path() Pattern {
	p := make(Pattern, len(d.path))
	copy(p, d.path)
	return p
}

// Depth returns the number of open TLVs.
func (d *Digester) Depth() int {
	return len(d.frames)
}

// CurrentTag returns the tag of the current TLV.
func (d *Digester) CurrentTag() ber.Tag {
	if len(d.frames) == 0 {
		return ber.Tag{}
	}
	return d.top().tag
}

// CurrentLength returns the declared length of the current TLV, or
// ber.Indefinite before it is known.
func (d *Digester) CurrentLength() ber.Length {
	if len(d.frames) == 0 {
		return ber.Indefinite
	}
	return d.top().length
}

// CurrentValue returns the value octets of the current primitive TLV read
// so far. The slice is not reused by the digester.
func (d *Digester) CurrentValue() []byte {
	if len(d.frames) == 0 {
		return nil
	}
	return d.top().value
}

// Push pushes v onto the object stack.
func (d *Digester) Push(v any) {
	d.objects = append(d.objects, v)
}

// Pop removes and returns the top of the object stack.
func (d *Digester) Pop() (any, error) {
	n := len(d.objects)
	if n == 0 {
		return nil, ErrStackEmpty
	}
	v := d.objects[n-1]
	d.objects[n-1] = nil
	d.objects = d.objects[:n-1]
	return v, nil
}

// Peek returns the object depth entries below the top of the stack;
// depth 0 is the top.
func (d *Digester) Peek(depth int) (any, error) {
	i := len(d.objects) - 1 - depth
	if depth < 0 || i < 0 {
		return nil, ErrStackEmpty
	}
	return d.objects[i], nil
}

// Count returns the number of objects on the object stack.
func (d *Digester) Count() int {
	return len(d.objects)
}

// PushInt pushes v onto the integer stack.
func (d *Digester) PushInt(v int) {
	d.ints = append(d.ints, v)
}

// PopInt removes and returns the top of the integer stack.
func (d *Digester) PopInt() (int, error) {
	n := len(d.ints)
	if n == 0 {
		return 0, ErrStackEmpty
	}
	v := d.ints[n-1]
	d.ints = d.ints[:n-1]
	return v, nil
}

// PeekInt returns the integer depth entries below the top of the stack.
func (d *Digester) PeekInt(depth int) (int, error) {
	i := len(d.ints) - 1 - depth
	if depth < 0 || i < 0 {
		return 0, ErrStackEmpty
	}
	return d.ints[i], nil
}

// IntCount returns the number of entries on the integer stack.
func (d *Digester) IntCount() int {
	return len(d.ints)
}

// PeekAs returns the object at depth converted to T.
func PeekAs[T any](d *Digester, depth int) (T, error) {
	var zero T
	v, err := d.Peek(depth)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, zero)
	}
	return t, nil
}

// PopAs pops the top object converted to T. The object is left on the
// stack when it has a different type.
func PopAs[T any](d *Digester) (T, error) {
	t, err := PeekAs[T](d, 0)
	if err != nil {
		return t, err
	}
	_, _ = d.Pop()
	return t, nil
}
