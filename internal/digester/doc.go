// Package digester turns a stream of BER events into domain objects by
// dispatching each TLV to the rules registered for its nesting path.
//
// A rule is registered at a Pattern, the sequence of tag ids from the
// outermost TLV down to the one the rule handles:
//
//	reg := digester.NewRegistry()
//	msg := digester.P(ber.SequenceTag)
//	reg.MustAdd(msg, digester.Funcs{
//	    OnTag: func(d *digester.Digester, _ ber.Tag) error {
//	        d.Push(&Message{})
//	        return nil
//	    },
//	})
//	reg.MustAdd(msg.Append(ber.IntegerTag), digester.PrimitiveRule(
//	    func(d *digester.Digester, v []byte) error {
//	        m, err := digester.PeekAs[*Message](d, 0)
//	        ...
//	    }))
//
// Rules communicate through the object and integer stacks of the Digester
// passed to every callback. When a top-level TLV closes, the object at the
// bottom of the object stack is handed to Options.OnComplete and both
// stacks are cleared.
//
// Matching is exact and incremental: the digester keeps a registry cursor
// for every open TLV and descends by one tag per TLV opened.
package digester
