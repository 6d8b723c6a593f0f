// Package scope implements the binding environment threaded through block and
// inline evaluation. A Scope maps names to engine values and user-defined
// functions, and knows how to project itself into an hcl.EvalContext for the
// expression engine.
package scope

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// GlobalPrefix marks a binding as persistent across blocks and inline
// expressions within one note session.
const GlobalPrefix = "$"

// Scope is a mutable key→value binding environment. It is not safe for
// concurrent use; the host guarantees a single writer per Scope.
type Scope struct {
	vars  map[string]cty.Value
	funcs map[string]function.Function
}

// New returns an empty Scope.
func New() *Scope {
	return &Scope{
		vars:  make(map[string]cty.Value),
		funcs: make(map[string]function.Function),
	}
}

// Set binds name to v, replacing any previous binding.
func (s *Scope) Set(name string, v cty.Value) {
	s.vars[name] = v
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (cty.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Delete removes the binding for name, if any.
func (s *Scope) Delete(name string) {
	delete(s.vars, name)
}

// SetFunc binds a user-defined function under name.
func (s *Scope) SetFunc(name string, fn function.Function) {
	s.funcs[name] = fn
}

// Func returns the user-defined function bound to name.
func (s *Scope) Func(name string) (function.Function, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// Len reports the number of value bindings.
func (s *Scope) Len() int {
	return len(s.vars)
}

// Names returns all bound value names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the Scope. Values are immutable cty
// values, so a shallow copy of both maps is sufficient.
func (s *Scope) Clone() *Scope {
	c := New()
	for name, v := range s.vars {
		c.vars[name] = v
	}
	for name, fn := range s.funcs {
		c.funcs[name] = fn
	}
	return c
}

// Merge copies every binding from globals into the Scope, overwriting on
// collision.
func (s *Scope) Merge(globals map[string]cty.Value) {
	for name, v := range globals {
		s.vars[name] = v
	}
}

// DiffGlobals returns the persistent-prefix bindings that are present in s
// but absent from or changed in base. This is how inline evaluation reports
// newly created note-globals without mutating the shared scope.
func (s *Scope) DiffGlobals(base *Scope) map[string]cty.Value {
	diff := make(map[string]cty.Value)
	for name, v := range s.vars {
		if !strings.HasPrefix(name, GlobalPrefix) {
			continue
		}
		old, ok := base.vars[name]
		if !ok || !v.RawEquals(old) {
			diff[name] = v
		}
	}
	return diff
}

// Globals returns all persistent-prefix bindings of the Scope.
func (s *Scope) Globals() map[string]cty.Value {
	out := make(map[string]cty.Value)
	for name, v := range s.vars {
		if strings.HasPrefix(name, GlobalPrefix) {
			out[name] = v
		}
	}
	return out
}

// EvalContext projects the Scope into an hcl.EvalContext, merging the engine's
// builtin function table with the Scope's own functions (the latter win).
// Persistent-prefix names are mangled to engine-safe identifiers; undefined
// placeholders (cty.NilVal) are skipped so they never reach the engine.
func (s *Scope) EvalContext(builtins map[string]function.Function) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(s.vars))
	for name, v := range s.vars {
		if v == cty.NilVal {
			continue
		}
		vars[Mangle(name)] = v
	}
	funcs := make(map[string]function.Function, len(builtins)+len(s.funcs))
	for name, fn := range builtins {
		funcs[name] = fn
	}
	for name, fn := range s.funcs {
		funcs[Mangle(name)] = fn
	}
	return &hcl.EvalContext{Variables: vars, Functions: funcs}
}

// Mangle rewrites a persistent-prefix name into an identifier the expression
// engine can parse. Non-prefixed names pass through unchanged.
func Mangle(name string) string {
	if strings.HasPrefix(name, GlobalPrefix) {
		return "__g_" + name[len(GlobalPrefix):]
	}
	return name
}
