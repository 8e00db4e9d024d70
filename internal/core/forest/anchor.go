package forest

type anchorKind int

const (
	anchorAll anchorKind = iota
	anchorAfter
	anchorAt
	anchorIndex
)

// Anchor marks where a recompute starts. Entries before the anchor keep
// their pointer identity; everything from the anchor on is recomputed, and
// every ancestor of the anchor is recomputed after its children.
type Anchor struct {
	kind  anchorKind
	path  Path
	index int
}

// All recomputes every entry.
func All() Anchor { return Anchor{kind: anchorAll} }

// After treats the addressed entry as authoritative and resumes with the
// sibling following it.
func After(path ...int) Anchor { return Anchor{kind: anchorAfter, path: path} }

// From resumes with the addressed entry itself.
func From(path ...int) Anchor { return Anchor{kind: anchorAt, path: path} }

// AtIndex resumes at position k of the children of parent (the top-level
// list when parent is empty). Used when the entry at k has just been removed.
func AtIndex(parent Path, k int) Anchor {
	return Anchor{kind: anchorIndex, path: parent, index: k}
}

// descend reports whether the anchor points below the current level and
// returns the id to descend into and the anchor for the next level.
func (a Anchor) descend() (int, Anchor, bool) {
	switch a.kind {
	case anchorAfter, anchorAt:
		if len(a.path) > 1 {
			return a.path[0], Anchor{kind: a.kind, path: a.path[1:]}, true
		}
	case anchorIndex:
		if len(a.path) >= 1 {
			return a.path[0], Anchor{kind: anchorIndex, path: a.path[1:], index: a.index}, true
		}
	}
	return 0, Anchor{}, false
}

// start returns the first index of entries to recompute at the current level.
// A result of len(entries) recomputes nothing; ok is false when the anchor
// names an id that does not exist.
func (a Anchor) start(ids func(int) int, n int) (int, bool) {
	switch a.kind {
	case anchorAll:
		return 0, true
	case anchorIndex:
		return min(max(a.index, 0), n), true
	case anchorAfter, anchorAt:
		if len(a.path) == 0 {
			return n, true
		}
		i := ids(a.path[0])
		if i < 0 {
			return n, false
		}
		if a.kind == anchorAfter {
			return i + 1, true
		}
		return i, true
	}
	return n, true
}

// resolves reports whether every id the anchor names exists in entries.
func resolves[S any](entries []*Entry[S], a Anchor) bool {
	if a.kind == anchorAll || len(a.path) == 0 {
		return true
	}
	_, ok := At(entries, a.path)
	return ok
}
