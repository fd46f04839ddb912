// Package schema flattens a view's declared fields, including those reached
// through relations, into the property paths a field selection needs.
package schema

import (
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/model"
)

// Policy bounds recursion through relations.
//
// A single-valued relation pointing back at the type being walked (a parent
// chain) is expanded while fewer than SelfChainDepth consecutive occurrences
// of that type end the current path. Every other relation is expanded while
// its target occurs fewer than MaxTypeVisits times on the current path.
type Policy struct {
	SelfChainDepth int
	MaxTypeVisits  int
}

// DefaultPolicy expands parent chains three levels deep and visits any other
// type at most twice per path.
func DefaultPolicy() Policy {
	return Policy{SelfChainDepth: 3, MaxTypeVisits: 2}
}

// Validate rejects policies that could not expand the root's relations.
func (p Policy) Validate() error {
	if p.SelfChainDepth < 1 {
		return fmt.Errorf("self chain depth must be at least 1, got %d", p.SelfChainDepth)
	}
	if p.MaxTypeVisits < 1 {
		return fmt.Errorf("max type visits must be at least 1, got %d", p.MaxTypeVisits)
	}
	return nil
}

// Option configures Properties.
type Option func(*walker)

// WithPolicy replaces the default recursion policy.
func WithPolicy(p Policy) Option {
	return func(w *walker) { w.policy = p }
}

// Properties returns every addressable property path of desc, joining path
// segments with sep. Each field contributes its own wire name; relations
// that the policy allows are expanded beneath it. Paths are unique and come
// in depth-first declaration order.
func Properties(desc *model.Descriptor, sep string, opts ...Option) []string {
	w := &walker{
		sep:    sep,
		policy: DefaultPolicy(),
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.walk(desc, "", []*model.Descriptor{desc})
	return w.out
}

// PropertiesOf is Properties for the view model T.
func PropertiesOf[T any](sep string, opts ...Option) ([]string, error) {
	desc, err := model.Describe[T]()
	if err != nil {
		return nil, err
	}
	return Properties(desc, sep, opts...), nil
}

type walker struct {
	sep    string
	policy Policy
	seen   map[string]struct{}
	out    []string
}

// walk emits desc's fields under prefix. stack holds the types on the
// current path, ending with desc.
func (w *walker) walk(desc *model.Descriptor, prefix string, stack []*model.Descriptor) {
	for _, f := range desc.Fields {
		path := prefix + f.Alias
		w.emit(path)
		if f.Target == nil || !w.expand(desc, f, stack) {
			continue
		}
		next := append(stack[:len(stack):len(stack)], f.Target)
		w.walk(f.Target, path+w.sep, next)
	}
}

func (w *walker) expand(current *model.Descriptor, f model.Field, stack []*model.Descriptor) bool {
	if !f.List && f.Target == current {
		return tailRun(stack, current) < w.policy.SelfChainDepth
	}
	return visits(stack, f.Target) < w.policy.MaxTypeVisits
}

func (w *walker) emit(path string) {
	if _, dup := w.seen[path]; dup {
		return
	}
	w.seen[path] = struct{}{}
	w.out = append(w.out, path)
}

// tailRun counts consecutive occurrences of d at the end of stack.
func tailRun(stack []*model.Descriptor, d *model.Descriptor) int {
	n := 0
	for i := len(stack) - 1; i >= 0 && stack[i] == d; i-- {
		n++
	}
	return n
}

func visits(stack []*model.Descriptor, d *model.Descriptor) int {
	n := 0
	for _, s := range stack {
		if s == d {
			n++
		}
	}
	return n
}
