package env

import "sort"

// Env is an immutable mapping from names to values.
//
// Environments are built by composition: every With or Extend call returns a
// new Env that shares its parent frames, so earlier environments remain valid
// and cheap to keep around. The zero value is an empty environment.
type Env struct {
	top  *frame
	size int
}

type frame struct {
	bindings map[string]any
	parent   *frame
}

// Empty returns an environment with no bindings.
func Empty() Env { return Env{} }

// Of builds an environment from a map. The map is copied.
func Of(values map[string]any) Env {
	return Env{}.WithAll(values)
}

// With returns a new environment where name is bound to value.
// An existing binding with the same name is shadowed.
func (e Env) With(name string, value any) Env {
	return Env{
		top:  &frame{bindings: map[string]any{name: value}, parent: e.top},
		size: e.size + 1,
	}
}

// WithAll binds every entry of values on top of e.
func (e Env) WithAll(values map[string]any) Env {
	if len(values) == 0 {
		return e
	}
	bindings := make(map[string]any, len(values))
	for k, v := range values {
		bindings[k] = v
	}
	return Env{top: &frame{bindings: bindings, parent: e.top}, size: e.size + 1}
}

// Extend layers other on top of e; bindings in other win.
func (e Env) Extend(other Env) Env {
	if other.top == nil {
		return e
	}
	if e.top == nil {
		return other
	}
	return e.WithAll(other.Map())
}

// Lookup returns the innermost binding for name.
func (e Env) Lookup(name string) (any, bool) {
	for f := e.top; f != nil; f = f.parent {
		if v, ok := f.bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether name is bound.
func (e Env) Has(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}

// Map flattens the environment into a fresh map with shadowing applied.
func (e Env) Map() map[string]any {
	var frames []*frame
	for f := e.top; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	out := make(map[string]any)
	for i := len(frames) - 1; i >= 0; i-- {
		for k, v := range frames[i].bindings {
			out[k] = v
		}
	}
	return out
}

// Names returns the visible names in sorted order.
func (e Env) Names() []string {
	m := e.Map()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct visible names.
func (e Env) Len() int {
	if e.top == nil {
		return 0
	}
	return len(e.Map())
}

// IsEmpty reports whether e has no bindings.
func (e Env) IsEmpty() bool { return e.top == nil }
