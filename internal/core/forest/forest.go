package forest

import (
	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

// Forest bundles what the forest operations need: the block every entry is
// an instance of, the environment surrounding the top-level list, and the
// sink that receives self-initiated changes of the whole list.
//
// A Forest holds no entries itself; all operations take a list and return
// a new one.
type Forest[S any] struct {
	Inner  block.Block[S]
	Env    env.Env
	Update block.Updater[[]*Entry[S]]
}

// Bind folds the results of entries into scope, in order.
func (f Forest[S]) Bind(scope env.Env, entries []*Entry[S]) env.Env {
	for _, e := range entries {
		scope = scope.With(EffectiveName(e), f.Inner.Result(e.State))
	}
	return scope
}

// Results maps the effective names of entries to their results.
func (f Forest[S]) Results(entries []*Entry[S]) map[string]block.Value {
	out := make(map[string]block.Value, len(entries))
	for _, e := range entries {
		out[EffectiveName(e)] = f.Inner.Result(e.State)
	}
	return out
}

// LastResult is the result of the last entry, or nil for an empty list.
func (f Forest[S]) LastResult(entries []*Entry[S]) block.Value {
	if len(entries) == 0 {
		return nil
	}
	return f.Inner.Result(entries[len(entries)-1].State)
}

// ScopeAt returns the environment the entry at path is evaluated in, without
// its own children: the surrounding environment plus every preceding sibling
// of the entry and of each of its ancestors.
func (f Forest[S]) ScopeAt(entries []*Entry[S], path Path) env.Env {
	scope := f.Env
	list := entries
	for depth, id := range path {
		i := IndexOf(list, id)
		if i < 0 {
			return scope
		}
		scope = f.Bind(scope, list[:i])
		if depth < len(path)-1 {
			list = list[i].Children
		}
	}
	return scope
}

// EnvAt returns the environment the entry at path is recomputed against:
// ScopeAt plus the bindings of its own children.
func (f Forest[S]) EnvAt(entries []*Entry[S], path Path) env.Env {
	scope := f.ScopeAt(entries, path)
	if e, ok := At(entries, path); ok {
		scope = f.Bind(scope, e.Children)
	}
	return scope
}

// updaterFor routes self-initiated changes of the entry at path through Apply.
func (f Forest[S]) updaterFor(path Path) block.Updater[S] {
	if f.Update == nil {
		return nil
	}
	return func(transform func(S) S) {
		f.Update(func(entries []*Entry[S]) []*Entry[S] {
			return f.Apply(entries, path, transform)
		})
	}
}

// Recompute recomputes every entry.
func (f Forest[S]) Recompute(entries []*Entry[S]) []*Entry[S] {
	return f.RecomputeFrom(entries, All())
}

// RecomputeFrom recomputes the entries at and after anchor and every
// ancestor of anchor. If the anchor names a missing id, entries is
// returned unchanged.
func (f Forest[S]) RecomputeFrom(entries []*Entry[S], anchor Anchor) []*Entry[S] {
	if !resolves(entries, anchor) {
		return entries
	}
	return f.recomputeList(entries, nil, anchor, f.Env)
}

func (f Forest[S]) recomputeList(entries []*Entry[S], parent Path, anchor Anchor, scope env.Env) []*Entry[S] {
	lookup := func(id int) int { return IndexOf(entries, id) }

	descendIdx := -1
	var next Anchor
	start := len(entries)
	if id, a, ok := anchor.descend(); ok {
		descendIdx = lookup(id)
		if descendIdx < 0 {
			return entries
		}
		next = a
		start = descendIdx + 1
	} else {
		s, ok := anchor.start(lookup, len(entries))
		if !ok {
			return entries
		}
		start = s
	}
	if descendIdx < 0 && start >= len(entries) {
		return entries
	}

	out := make([]*Entry[S], len(entries))
	copy(out, entries)
	for i, e := range out {
		switch {
		case i == descendIdx:
			out[i] = f.recomputeEntry(e, parent.Join(e.ID), next, scope)
		case i >= start:
			out[i] = f.recomputeEntry(e, parent.Join(e.ID), All(), scope)
		}
		scope = scope.With(EffectiveName(out[i]), f.Inner.Result(out[i].State))
	}
	return out
}

func (f Forest[S]) recomputeEntry(e *Entry[S], path Path, childAnchor Anchor, scope env.Env) *Entry[S] {
	children := f.recomputeList(e.Children, path, childAnchor, scope)
	n := e.clone()
	n.Children = children
	n.State = f.Inner.Recompute(e.State, f.updaterFor(path), f.Bind(scope, children))
	return n
}

// Apply replaces the state of the entry at path with transform(state) and
// recomputes everything that can observe it. The transformed entry itself is
// authoritative and not recomputed.
func (f Forest[S]) Apply(entries []*Entry[S], path Path, transform func(S) S) []*Entry[S] {
	updated, ok := modify(entries, path, func(e *Entry[S]) *Entry[S] {
		n := e.clone()
		n.State = transform(e.State)
		return n
	})
	if !ok {
		return entries
	}
	return f.RecomputeFrom(updated, After(path...))
}

// ApplyWithEnv is Apply for transforms that need the environment of the entry.
func (f Forest[S]) ApplyWithEnv(entries []*Entry[S], path Path, transform func(S, env.Env) S) []*Entry[S] {
	scope := f.EnvAt(entries, path)
	return f.Apply(entries, path, func(s S) S { return transform(s, scope) })
}

// Rename sets the name of the entry at path.
func (f Forest[S]) Rename(entries []*Entry[S], path Path, name string) []*Entry[S] {
	updated, ok := modify(entries, path, func(e *Entry[S]) *Entry[S] {
		n := e.clone()
		n.Name = name
		return n
	})
	if !ok {
		return entries
	}
	return f.RecomputeFrom(updated, After(path...))
}

// SetCollapsed changes the display flag of an entry. Nothing is recomputed.
func (f Forest[S]) SetCollapsed(entries []*Entry[S], path Path, collapsed bool) []*Entry[S] {
	updated, ok := modify(entries, path, func(e *Entry[S]) *Entry[S] {
		if e.Collapsed == collapsed {
			return e
		}
		n := e.clone()
		n.Collapsed = collapsed
		return n
	})
	if !ok {
		return entries
	}
	return updated
}

// ToggleCollapsed flips the display flag of an entry.
func (f Forest[S]) ToggleCollapsed(entries []*Entry[S], path Path) []*Entry[S] {
	e, ok := At(entries, path)
	if !ok {
		return entries
	}
	return f.SetCollapsed(entries, path, !e.Collapsed)
}

// SetVisibility replaces the display parts of an entry. Nothing is
// recomputed.
func (f Forest[S]) SetVisibility(entries []*Entry[S], path Path, v Visibility) []*Entry[S] {
	updated, ok := modify(entries, path, func(e *Entry[S]) *Entry[S] {
		if e.Visibility != nil && *e.Visibility == v {
			return e
		}
		n := e.clone()
		n.Visibility = &v
		return n
	})
	if !ok {
		return entries
	}
	return updated
}

// InsertBefore inserts entry as the preceding sibling of the entry at path
// and returns the path of the inserted entry.
func (f Forest[S]) InsertBefore(entries []*Entry[S], path Path, entry *Entry[S]) ([]*Entry[S], Path) {
	return f.insertNear(entries, path, entry, 0)
}

// InsertAfter inserts entry as the following sibling of the entry at path
// and returns the path of the inserted entry.
func (f Forest[S]) InsertAfter(entries []*Entry[S], path Path, entry *Entry[S]) ([]*Entry[S], Path) {
	return f.insertNear(entries, path, entry, 1)
}

func (f Forest[S]) insertNear(entries []*Entry[S], path Path, entry *Entry[S], offset int) ([]*Entry[S], Path) {
	id, ok := path.Last()
	if !ok {
		return entries, path
	}
	var newPath Path
	updated, ok := modifyList(entries, path.Parent(), func(list []*Entry[S]) []*Entry[S] {
		i := IndexOf(list, id)
		if i < 0 {
			return nil
		}
		n := entry.clone()
		n.ID = NextFreeID(list)
		newPath = path.Parent().Join(n.ID)
		return insertAt(list, i+offset, n)
	})
	if !ok {
		return entries, path
	}
	return f.RecomputeFrom(updated, From(newPath...)), newPath
}

// AddChild appends entry to the children of the entry at parent, or to the
// top-level list when parent is empty, and returns its path.
func (f Forest[S]) AddChild(entries []*Entry[S], parent Path, entry *Entry[S]) ([]*Entry[S], Path) {
	var newPath Path
	updated, ok := modifyList(entries, parent, func(list []*Entry[S]) []*Entry[S] {
		n := entry.clone()
		n.ID = NextFreeID(list)
		newPath = parent.Join(n.ID)
		return insertAt(list, len(list), n)
	})
	if !ok {
		return entries, nil
	}
	return f.RecomputeFrom(updated, From(newPath...)), newPath
}

// Delete removes the entry at path together with its children. It returns
// the path that should become current: the previous sibling, else the first
// remaining sibling, else the parent.
func (f Forest[S]) Delete(entries []*Entry[S], path Path) ([]*Entry[S], Path) {
	id, ok := path.Last()
	if !ok {
		return entries, path
	}
	parent := path.Parent()
	k := -1
	var current Path
	updated, ok := modifyList(entries, parent, func(list []*Entry[S]) []*Entry[S] {
		k = IndexOf(list, id)
		if k < 0 {
			return nil
		}
		out := removeAt(list, k)
		switch {
		case k > 0:
			current = parent.Join(out[k-1].ID)
		case len(out) > 0:
			current = parent.Join(out[0].ID)
		default:
			current = parent
		}
		return out
	})
	if !ok {
		return entries, path
	}
	return f.RecomputeFrom(updated, AtIndex(parent, k)), current
}

// Move shifts the entry at path by delta positions among its siblings,
// clamped to the bounds of the list. The entry keeps its id.
func (f Forest[S]) Move(entries []*Entry[S], path Path, delta int) []*Entry[S] {
	id, ok := path.Last()
	if !ok || delta == 0 {
		return entries
	}
	parent := path.Parent()
	var resume Path
	updated, ok := modifyList(entries, parent, func(list []*Entry[S]) []*Entry[S] {
		from := IndexOf(list, id)
		if from < 0 {
			return nil
		}
		to := min(max(from+delta, 0), len(list)-1)
		if to == from {
			return nil
		}
		moved := list[from]
		out := insertAt(removeAt(list, from), to, moved)
		resume = parent.Join(out[min(from, to)].ID)
		return out
	})
	if !ok {
		return entries
	}
	return f.RecomputeFrom(updated, From(resume...))
}

// Nest makes the entry at path the last child of its preceding sibling and
// returns its new path. The first entry of a list cannot be nested.
func (f Forest[S]) Nest(entries []*Entry[S], path Path) ([]*Entry[S], Path) {
	id, ok := path.Last()
	if !ok {
		return entries, path
	}
	parent := path.Parent()
	var newPath Path
	updated, ok := modifyList(entries, parent, func(list []*Entry[S]) []*Entry[S] {
		i := IndexOf(list, id)
		if i <= 0 {
			return nil
		}
		target := list[i-1].clone()
		moved := list[i].clone()
		moved.ID = NextFreeID(target.Children)
		target.Children = insertAt(target.Children, len(target.Children), moved)
		newPath = parent.Join(target.ID).Join(moved.ID)

		out := removeAt(list, i)
		out[i-1] = target
		return out
	})
	if !ok {
		return entries, path
	}
	return f.RecomputeFrom(updated, From(newPath...)), newPath
}

// Unnest moves the entry at path out of its parent, directly after it, and
// returns its new path. Top-level entries cannot be unnested.
func (f Forest[S]) Unnest(entries []*Entry[S], path Path) ([]*Entry[S], Path) {
	id, ok := path.Last()
	if !ok || len(path) < 2 {
		return entries, path
	}
	parentPath := path.Parent()
	parentID, _ := parentPath.Last()
	grand := parentPath.Parent()

	k := -1
	var newPath Path
	updated, ok := modifyList(entries, grand, func(list []*Entry[S]) []*Entry[S] {
		pi := IndexOf(list, parentID)
		if pi < 0 {
			return nil
		}
		p := list[pi].clone()
		k = IndexOf(p.Children, id)
		if k < 0 {
			return nil
		}
		moved := p.Children[k].clone()
		moved.ID = NextFreeID(list)
		p.Children = removeAt(p.Children, k)
		newPath = grand.Join(moved.ID)

		out := make([]*Entry[S], len(list))
		copy(out, list)
		out[pi] = p
		return insertAt(out, pi+1, moved)
	})
	if !ok {
		return entries, path
	}
	return f.RecomputeFrom(updated, AtIndex(parentPath, k)), newPath
}

// modify replaces the entry at path with fn(entry), cloning its ancestors.
func modify[S any](entries []*Entry[S], path Path, fn func(*Entry[S]) *Entry[S]) ([]*Entry[S], bool) {
	id, ok := path.Last()
	if !ok {
		return entries, false
	}
	return modifyList(entries, path.Parent(), func(list []*Entry[S]) []*Entry[S] {
		i := IndexOf(list, id)
		if i < 0 {
			return nil
		}
		out := make([]*Entry[S], len(list))
		copy(out, list)
		out[i] = fn(list[i])
		return out
	})
}

// modifyList replaces the child list under parent with fn(list). fn returns
// nil to signal that nothing should change.
func modifyList[S any](entries []*Entry[S], parent Path, fn func([]*Entry[S]) []*Entry[S]) ([]*Entry[S], bool) {
	if len(parent) == 0 {
		out := fn(entries)
		if out == nil {
			return entries, false
		}
		return out, true
	}
	i := IndexOf(entries, parent[0])
	if i < 0 {
		return entries, false
	}
	children, ok := modifyList(entries[i].Children, parent[1:], fn)
	if !ok {
		return entries, false
	}
	n := entries[i].clone()
	n.Children = children
	out := make([]*Entry[S], len(entries))
	copy(out, entries)
	out[i] = n
	return out, true
}

func insertAt[S any](list []*Entry[S], i int, e *Entry[S]) []*Entry[S] {
	out := make([]*Entry[S], 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, e)
	return append(out, list[i:]...)
}

func removeAt[S any](list []*Entry[S], i int) []*Entry[S] {
	out := make([]*Entry[S], 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
