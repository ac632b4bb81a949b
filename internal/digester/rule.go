package digester

import "github.com/KilimcininKorOglu/obaber/internal/ber"

// Rule reacts to the events of every TLV whose nesting path equals the
// pattern it is registered at. Each callback receives the Digester driving
// the decode, which gives access to the object and integer stacks.
//
// One Rule value is shared by every digester that uses the registry, so a
// rule must keep per-message state on the digester stacks and not in its
// own fields.
type Rule interface {
	// Tag is called when the TLV's identifier has been read.
	Tag(d *Digester, t ber.Tag) error
	// Length is called when the TLV's length has been read.
	Length(d *Digester, n ber.Length) error
	// Value is called for each chunk of a primitive TLV's value. A value
	// may arrive in any number of chunks; the chunk must be copied if kept.
	Value(d *Digester, chunk []byte) error
	// Finish is called when the TLV, including all children, is complete.
	Finish(d *Digester) error
}

// BaseRule implements every Rule callback as a no-op. Embed it to
// implement only the callbacks a rule needs.
type BaseRule struct{}

func (BaseRule) Tag(*Digester, ber.Tag) error       { return nil }
func (BaseRule) Length(*Digester, ber.Length) error { return nil }
func (BaseRule) Value(*Digester, []byte) error      { return nil }
func (BaseRule) Finish(*Digester) error             { return nil }

// Funcs adapts optional callback functions to a Rule. Nil fields are no-ops.
type Funcs struct {
	OnTag    func(d *Digester, t ber.Tag) error
	OnLength func(d *Digester, n ber.Length) error
	OnValue  func(d *Digester, chunk []byte) error
	OnFinish func(d *Digester) error
}

func (f Funcs) Tag(d *Digester, t ber.Tag) error {
	if f.OnTag == nil {
		return nil
	}
	return f.OnTag(d, t)
}

func (f Funcs) Length(d *Digester, n ber.Length) error {
	if f.OnLength == nil {
		return nil
	}
	return f.OnLength(d, n)
}

func (f Funcs) Value(d *Digester, chunk []byte) error {
	if f.OnValue == nil {
		return nil
	}
	return f.OnValue(d, chunk)
}

func (f Funcs) Finish(d *Digester) error {
	if f.OnFinish == nil {
		return nil
	}
	return f.OnFinish(d)
}

// PrimitiveRule receives the complete value of a primitive TLV once it has
// been fully read, however many chunks it arrived in. The value slice is
// owned by the callee.
type PrimitiveRule func(d *Digester, value []byte) error

// Tag rejects constructed TLVs.
func (r PrimitiveRule) Tag(_ *Digester, t ber.Tag) error {
	if t.Constructed {
		return ErrNotPrimitive
	}
	return nil
}

func (PrimitiveRule) Length(*Digester, ber.Length) error { return nil }
func (PrimitiveRule) Value(*Digester, []byte) error      { return nil }

// Finish calls r with the accumulated value.
func (r PrimitiveRule) Finish(d *Digester) error {
	return r(d, d.CurrentValue())
}
