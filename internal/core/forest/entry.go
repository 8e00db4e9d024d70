package forest

import (
	"strconv"
	"strings"
)

// Entry is a named node of a forest. Entries are never mutated after they are
// built; operations return new entries along the changed path and share all
// others, so an unchanged entry keeps its pointer identity.
type Entry[S any] struct {
	ID        int
	Name      string
	State     S
	Children  []*Entry[S]
	Collapsed bool

	// Visibility is nil for entries that show everything.
	Visibility *Visibility
}

// Visibility selects which parts of an entry are displayed.
type Visibility struct {
	Block  bool `json:"block"`
	Result bool `json:"result"`
}

// New creates a detached entry. Its ID is assigned when it is inserted.
func New[S any](name string, state S) *Entry[S] {
	return &Entry[S]{Name: name, State: state}
}

func (e *Entry[S]) clone() *Entry[S] {
	c := *e
	return &c
}

// Path addresses an entry by the ids of itself and its ancestors, root first.
type Path []int

// Join returns a fresh path with id appended.
func (p Path) Join(id int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = id
	return out
}

// Parent returns the path without its last element.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the id of the addressed entry.
func (p Path) Last() (int, bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1], true
}

// Equal reports whether p and o address the same entry.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = strconv.Itoa(id)
	}
	return "/" + strings.Join(parts, "/")
}

// DefaultName is the name used for entries whose name is blank.
func DefaultName(id int) string {
	return "_" + strconv.Itoa(id)
}

// EffectiveName is the trimmed name of e, or its default name.
func EffectiveName[S any](e *Entry[S]) string {
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	return DefaultName(e.ID)
}

// NextFreeID returns max(ids)+1, or 0 for an empty list.
func NextFreeID[S any](entries []*Entry[S]) int {
	next := 0
	for _, e := range entries {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}

// IndexOf returns the position of id in entries, or -1.
func IndexOf[S any](entries []*Entry[S], id int) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// At returns the entry addressed by path.
func At[S any](entries []*Entry[S], path Path) (*Entry[S], bool) {
	if len(path) == 0 {
		return nil, false
	}
	list := entries
	var found *Entry[S]
	for _, id := range path {
		i := IndexOf(list, id)
		if i < 0 {
			return nil, false
		}
		found = list[i]
		list = found.Children
	}
	return found, true
}

// SiblingsOf returns the list that contains the entry addressed by path.
func SiblingsOf[S any](entries []*Entry[S], path Path) ([]*Entry[S], bool) {
	if len(path) == 0 {
		return nil, false
	}
	if len(path) == 1 {
		return entries, true
	}
	parent, ok := At(entries, path.Parent())
	if !ok {
		return nil, false
	}
	return parent.Children, true
}

// AllPaths lists every entry in pre-order.
func AllPaths[S any](entries []*Entry[S]) []Path {
	var out []Path
	walk(entries, nil, false, &out)
	return out
}

// ExpandedPaths lists entries in pre-order, skipping the children of
// collapsed entries.
func ExpandedPaths[S any](entries []*Entry[S]) []Path {
	var out []Path
	walk(entries, nil, true, &out)
	return out
}

func walk[S any](entries []*Entry[S], prefix Path, skipCollapsed bool, out *[]Path) {
	for _, e := range entries {
		p := prefix.Join(e.ID)
		*out = append(*out, p)
		if skipCollapsed && e.Collapsed {
			continue
		}
		walk(e.Children, p, skipCollapsed, out)
	}
}

// Count returns the number of entries in the forest.
func Count[S any](entries []*Entry[S]) int {
	n := 0
	for _, e := range entries {
		n += 1 + Count(e.Children)
	}
	return n
}
