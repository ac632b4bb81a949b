package digester

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// trieNode holds the rules registered at one pattern and the nodes of
// every pattern that extends it by one tag.
type trieNode struct {
	children map[ber.TagID]*trieNode
	rules    []Rule
}

func (n *trieNode) child(id ber.TagID) *trieNode {
	if n == nil {
		return nil
	}
	return n.children[id]
}

// Registry maps patterns to rules. It is populated at startup and frozen
// before decoding begins; a frozen registry is read-only and may be shared
// by any number of digesters without locking.
//
// Matching is exact: a rule fires only for TLVs whose full nesting path
// equals its pattern. Rules at the same pattern fire in registration order.
type Registry struct {
	root   trieNode
	count  int
	frozen atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers rule at pattern. Registering a rule value that is already
// present at the same pattern returns ErrPatternConflict; distinct rules
// may share a pattern.
func (r *Registry) Add(p Pattern, rule Rule) error {
	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	if len(p) == 0 {
		return ErrEmptyPattern
	}
	if rule == nil {
		return ErrNilRule
	}

	n := &r.root
	for _, id := range p {
		next := n.children[id]
		if next == nil {
			if n.children == nil {
				n.children = make(map[ber.TagID]*trieNode)
			}
			next = &trieNode{}
			n.children[id] = next
		}
		n = next
	}

	for _, existing := range n.rules {
		if sameRule(existing, rule) {
			return fmt.Errorf("%w: %T at %s", ErrPatternConflict, rule, p)
		}
	}
	n.rules = append(n.rules, rule)
	r.count++
	return nil
}

// MustAdd registers every rule at pattern and panics on error. It is
// intended for static rule tables built at program start.
func (r *Registry) MustAdd(p Pattern, rules ...Rule) {
	for _, rule := range rules {
		if err := r.Add(p, rule); err != nil {
			panic(err)
		}
	}
}

// sameRule reports whether a and b are the same rule value. Rules whose
// dynamic values are not comparable, such as closures, never conflict.
func sameRule(a, b Rule) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

// Clear removes every registered rule.
func (r *Registry) Clear() error {
	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	r.root = trieNode{}
	r.count = 0
	return nil
}

// Freeze makes the registry read-only. It is safe to call more than once.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Len returns the number of registered (pattern, rule) pairs.
func (r *Registry) Len() int {
	return r.count
}

// Match returns the rules registered at exactly path, in registration
// order. The returned slice must not be modified.
func (r *Registry) Match(path Pattern) []Rule {
	c := r.Root()
	for _, id := range path {
		c = c.Child(id)
		if !c.Valid() {
			return nil
		}
	}
	return c.Rules()
}

// Root returns a cursor at the empty pattern.
func (r *Registry) Root() Cursor {
	return Cursor{node: &r.root}
}

// Cursor is a position in the registry trie. Descending one tag at a time
// lets a digester match each newly opened TLV without walking its whole
// path again. The zero Cursor matches nothing.
type Cursor struct {
	node *trieNode
}

// Child returns the cursor for the current pattern extended by id.
func (c Cursor) Child(id ber.TagID) Cursor {
	return Cursor{node: c.node.child(id)}
}

// Rules returns the rules registered at the cursor's pattern.
func (c Cursor) Rules() []Rule {
	if c.node == nil {
		return nil
	}
	return c.node.rules
}

// Valid reports whether any registered pattern starts with the cursor's
// pattern. Descendants of an invalid cursor are invalid.
func (c Cursor) Valid() bool {
	return c.node != nil
}
