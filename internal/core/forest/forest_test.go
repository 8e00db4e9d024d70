package forest

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/eval"
)

// cell is a tiny expression block used to observe recompute order.
type cell struct {
	Expr  string
	Value block.Value
}

type cells struct{}

func (cells) Init() cell { return cell{} }

func (cells) Recompute(c cell, _ block.Updater[cell], e env.Env) cell {
	return cell{Expr: c.Expr, Value: eval.Default.Evaluate(c.Expr, e)}
}

func (cells) Result(c cell) block.Value { return c.Value }

func (cells) ToJSON(c cell) (json.RawMessage, error) { return json.Marshal(c.Expr) }

func (cells) FromJSON(data json.RawMessage, _ block.Updater[cell], e env.Env) (cell, error) {
	var code string
	if err := block.Decode(data, &code); err != nil {
		return cell{}, err
	}
	return cell{Expr: code, Value: eval.Default.Evaluate(code, e)}, nil
}

func newForest() Forest[cell] {
	return Forest[cell]{Inner: cells{}, Env: env.Empty()}
}

func leaf(id int, name, code string, children ...*Entry[cell]) *Entry[cell] {
	return &Entry[cell]{ID: id, Name: name, State: cell{Expr: code}, Children: children}
}

func render(v block.Value) string {
	if block.IsError(v) {
		return "error"
	}
	return fmt.Sprint(v)
}

// snapshot renders every result in pre-order, keyed by path.
func snapshot(f Forest[cell], entries []*Entry[cell]) map[string]string {
	out := make(map[string]string)
	for _, p := range AllPaths(entries) {
		e, _ := At(entries, p)
		out[p.String()+":"+EffectiveName(e)] = render(f.Inner.Result(e.State))
	}
	return out
}

func abc(f Forest[cell]) []*Entry[cell] {
	return f.Recompute([]*Entry[cell]{
		leaf(0, "a", "1"),
		leaf(1, "b", "a + 1"),
		leaf(2, "c", "b + 1"),
	})
}

func TestRecompute(t *testing.T) {
	f := newForest()

	t.Run("Chain", func(t *testing.T) {
		entries := abc(f)
		assert.Equal(t, 3, f.LastResult(entries))
		assert.Equal(t, map[string]block.Value{"a": 1, "b": 2, "c": 3}, f.Results(entries))
	})

	t.Run("LaterSiblingsAreInvisible", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{leaf(0, "a", "b"), leaf(1, "b", "1")})
		assert.True(t, block.IsError(f.Inner.Result(entries[0].State)))
	})

	t.Run("DefaultNames", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{leaf(0, "  ", "4"), leaf(1, "", "_0 * 2")})
		assert.Equal(t, 8, f.LastResult(entries))
	})

	t.Run("ParentSeesChildren", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{
			leaf(0, "base", "2"),
			leaf(1, "p", "x * 10", leaf(0, "x", "base + 3")),
			leaf(2, "q", "p + 1"),
		})
		assert.Equal(t, 50, f.Inner.Result(entries[1].State))
		assert.Equal(t, 51, f.LastResult(entries))
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := abc(f)
		b := abc(f)
		assert.Equal(t, snapshot(f, a), snapshot(f, b))
	})

	t.Run("SurroundingEnv", func(t *testing.T) {
		g := Forest[cell]{Inner: cells{}, Env: env.Empty().With("outer", 5)}
		entries := g.Recompute([]*Entry[cell]{leaf(0, "a", "outer + 1")})
		assert.Equal(t, 6, g.LastResult(entries))
	})
}

func TestRecomputeFrom(t *testing.T) {
	f := newForest()
	entries := abc(f)

	t.Run("AfterKeepsPrefixAndAnchor", func(t *testing.T) {
		out := f.RecomputeFrom(entries, After(1))
		assert.Same(t, entries[0], out[0])
		assert.Same(t, entries[1], out[1])
		assert.NotSame(t, entries[2], out[2])
	})

	t.Run("AtRecomputesAnchor", func(t *testing.T) {
		out := f.RecomputeFrom(entries, From(1))
		assert.Same(t, entries[0], out[0])
		assert.NotSame(t, entries[1], out[1])
	})

	t.Run("MissingIDIsNoop", func(t *testing.T) {
		out := f.RecomputeFrom(entries, After(42))
		require.Len(t, out, 3)
		for i := range out {
			assert.Same(t, entries[i], out[i])
		}
		out = f.RecomputeFrom(entries, From(0, 7))
		assert.Same(t, entries[0], out[0])
	})

	t.Run("EmptyPathRecomputesNothing", func(t *testing.T) {
		out := f.RecomputeFrom(entries, After())
		assert.Same(t, entries[2], out[2])
	})

	t.Run("NestedAnchorRecomputesAncestors", func(t *testing.T) {
		nested := f.Recompute([]*Entry[cell]{
			leaf(0, "first", "1"),
			leaf(1, "p", "y", leaf(0, "x", "1"), leaf(1, "y", "x + 1")),
			leaf(2, "q", "p + 1"),
		})
		out := f.RecomputeFrom(nested, After(1, 0))
		assert.Same(t, nested[0], out[0])
		assert.NotSame(t, nested[1], out[1])
		assert.Same(t, nested[1].Children[0], out[1].Children[0])
		assert.NotSame(t, nested[1].Children[1], out[1].Children[1])
		assert.NotSame(t, nested[2], out[2])
	})
}

func TestApply(t *testing.T) {
	f := newForest()
	entries := abc(f)

	out := f.Apply(entries, Path{0}, func(c cell) cell { return cell{Expr: "10", Value: 10} })
	assert.Equal(t, map[string]block.Value{"a": 10, "b": 11, "c": 12}, f.Results(out))
	assert.Equal(t, 1, f.Inner.Result(entries[0].State), "input must stay untouched")

	t.Run("WithEnv", func(t *testing.T) {
		out := f.ApplyWithEnv(entries, Path{2}, func(c cell, e env.Env) cell {
			c.Expr = "a + b"
			c.Value = eval.Default.Evaluate(c.Expr, e)
			return c
		})
		assert.Equal(t, 3, f.LastResult(out))
		assert.Same(t, entries[1], out[1])
	})

	t.Run("MissingPath", func(t *testing.T) {
		out := f.Apply(entries, Path{9}, func(c cell) cell { panic("must not be called") })
		assert.Same(t, entries[0], out[0])
	})
}

func TestRename(t *testing.T) {
	f := newForest()
	entries := abc(f)

	out := f.Rename(entries, Path{0}, "z")
	assert.Equal(t, "error", render(f.Inner.Result(out[1].State)))
	assert.Equal(t, "error", render(f.LastResult(out)))

	out = f.Rename(out, Path{0}, " a ")
	assert.Equal(t, 3, f.LastResult(out))
}

func TestDelete(t *testing.T) {
	f := newForest()

	t.Run("MiddleEntryBreaksDependents", func(t *testing.T) {
		entries := abc(f)
		out, current := f.Delete(entries, Path{1})
		require.Len(t, out, 2)
		assert.Same(t, entries[0], out[0])
		assert.Equal(t, Path{0}, current)

		var evalErr *block.EvaluationError
		require.True(t, errors.As(asError(f.LastResult(out)), &evalErr))
	})

	t.Run("FirstEntrySelectsNextSibling", func(t *testing.T) {
		out, current := f.Delete(abc(f), Path{0})
		assert.Len(t, out, 2)
		assert.Equal(t, Path{1}, current)
	})

	t.Run("OnlyChildSelectsParent", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{leaf(0, "p", "1", leaf(0, "x", "2"))})
		out, current := f.Delete(entries, Path{0, 0})
		assert.Empty(t, out[0].Children)
		assert.Equal(t, Path{0}, current)
	})

	t.Run("MissingIsNoop", func(t *testing.T) {
		entries := abc(f)
		out, current := f.Delete(entries, Path{5})
		assert.Len(t, out, 3)
		assert.Equal(t, Path{5}, current)
	})
}

func asError(v block.Value) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

func TestInsert(t *testing.T) {
	f := newForest()

	t.Run("AfterFirst", func(t *testing.T) {
		entries := abc(f)
		out, p := f.InsertAfter(entries, Path{0}, New("d", cell{Expr: "a + 1"}))
		require.Len(t, out, 4)
		assert.Equal(t, Path{3}, p)
		assert.Same(t, entries[0], out[0])
		assert.Equal(t, "d", out[1].Name)
		assert.Equal(t, 2, f.Inner.Result(out[1].State))
		assert.Equal(t, 3, f.LastResult(out))
	})

	t.Run("BeforeRecomputesTarget", func(t *testing.T) {
		entries := abc(f)
		out, p := f.InsertBefore(entries, Path{1}, New("a", cell{Expr: "100"}))
		assert.Equal(t, Path{3}, p)
		assert.Equal(t, []int{0, 3, 1, 2}, ids(out))
		assert.Equal(t, 102, f.LastResult(out))
	})

	t.Run("AddChild", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{leaf(0, "p", "x", leaf(0, "x", "1"))})
		out, p := f.AddChild(entries, Path{0}, New("x", cell{Expr: "x + 1"}))
		assert.Equal(t, Path{0, 1}, p)
		assert.Equal(t, 2, f.LastResult(out))

		out, p = f.AddChild(out, nil, New("", cell{Expr: "p"}))
		assert.Equal(t, Path{1}, p)
		assert.Equal(t, 2, f.LastResult(out))
	})
}

func ids(entries []*Entry[cell]) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestMove(t *testing.T) {
	f := newForest()
	base := f.Recompute([]*Entry[cell]{
		leaf(0, "a", "1"),
		leaf(1, "b", "a + 1"),
		leaf(2, "c", "b * 2"),
		leaf(3, "d", "c + a"),
		leaf(4, "", "d"),
	})

	for from := range base {
		for delta := -len(base); delta <= len(base); delta++ {
			t.Run(fmt.Sprintf("from=%d,delta=%d", from, delta), func(t *testing.T) {
				moved := f.Move(base, Path{base[from].ID}, delta)
				full := f.Recompute(moved)
				assert.Equal(t, snapshot(f, full), snapshot(f, moved))

				to := min(max(from+delta, 0), len(base)-1)
				for i := 0; i < min(from, to); i++ {
					assert.Same(t, base[i], moved[i])
				}
			})
		}
	}

	t.Run("Nested", func(t *testing.T) {
		nested := f.Recompute([]*Entry[cell]{
			leaf(0, "p", "z", leaf(0, "x", "1"), leaf(1, "y", "x + 1"), leaf(2, "z", "y + 1")),
			leaf(1, "q", "p * 2"),
		})
		for from := 0; from < 3; from++ {
			for delta := -3; delta <= 3; delta++ {
				moved := f.Move(nested, Path{0, from}, delta)
				full := f.Recompute(moved)
				assert.Equal(t, snapshot(f, full), snapshot(f, moved), "from=%d delta=%d", from, delta)
			}
		}
	})
}

func TestNesting(t *testing.T) {
	f := newForest()

	t.Run("NestUnderPrevious", func(t *testing.T) {
		entries := abc(f)
		out, p := f.Nest(entries, Path{1})
		assert.Equal(t, Path{0, 0}, p)
		require.Len(t, out, 2)
		require.Len(t, out[0].Children, 1)
		assert.Equal(t, "b", out[0].Children[0].Name)
		assert.Equal(t, "error", render(f.LastResult(out)), "b is no longer a sibling of c")
		assertUniqueIDs(t, out)
	})

	t.Run("FirstCannotNest", func(t *testing.T) {
		entries := abc(f)
		out, p := f.Nest(entries, Path{0})
		assert.Same(t, entries[0], out[0])
		assert.Equal(t, Path{0}, p)
	})

	t.Run("UnnestRestores", func(t *testing.T) {
		nested, p := f.Nest(abc(f), Path{1})
		out, p := f.Unnest(nested, p)
		assert.Equal(t, Path{3}, p)
		assert.Equal(t, []int{0, 3, 2}, ids(out))
		assert.Equal(t, 3, f.LastResult(out))
		assertUniqueIDs(t, out)
		assert.Equal(t, snapshot(f, f.Recompute(out)), snapshot(f, out))
	})

	t.Run("UnnestTopLevelIsNoop", func(t *testing.T) {
		entries := abc(f)
		out, _ := f.Unnest(entries, Path{1})
		assert.Same(t, entries[1], out[1])
	})

	t.Run("UnnestMiddleChild", func(t *testing.T) {
		entries := f.Recompute([]*Entry[cell]{
			leaf(0, "p", "z", leaf(0, "x", "1"), leaf(1, "y", "x + 1"), leaf(2, "z", "y + 1")),
			leaf(1, "q", "y"),
		})
		out, p := f.Unnest(entries, Path{0, 1})
		assert.Equal(t, Path{2}, p)
		assert.Equal(t, []int{0, 2, 1}, ids(out))
		assert.Equal(t, "error", render(f.Inner.Result(out[0].State)))
		assert.Equal(t, snapshot(f, f.Recompute(out)), snapshot(f, out))
	})
}

func assertUniqueIDs(t *testing.T, entries []*Entry[cell]) {
	t.Helper()
	seen := make(map[int]bool)
	for _, e := range entries {
		assert.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true
		assertUniqueIDs(t, e.Children)
	}
}

func TestQueries(t *testing.T) {
	f := newForest()
	entries := f.Recompute([]*Entry[cell]{
		leaf(0, "a", "1"),
		leaf(1, "p", "x", leaf(0, "x", "a + 1"), leaf(1, "y", "x")),
		leaf(2, "c", "p"),
	})
	entries = f.SetCollapsed(entries, Path{1}, true)

	assert.Equal(t, []Path{{0}, {1}, {1, 0}, {1, 1}, {2}}, AllPaths(entries))
	assert.Equal(t, []Path{{0}, {1}, {2}}, ExpandedPaths(entries))
	assert.Equal(t, 5, Count(entries))

	e, ok := At(entries, Path{1, 1})
	require.True(t, ok)
	assert.Equal(t, "y", e.Name)

	siblings, ok := SiblingsOf(entries, Path{1, 0})
	require.True(t, ok)
	assert.Len(t, siblings, 2)

	scope := f.ScopeAt(entries, Path{1, 1})
	assert.Equal(t, []string{"a", "x"}, scope.Names())
	assert.Equal(t, []string{"a", "x", "y"}, f.EnvAt(entries, Path{1}).Names())

	toggled := f.ToggleCollapsed(entries, Path{1})
	assert.False(t, toggled[1].Collapsed)
	assert.Same(t, entries[0], toggled[0])

	assert.Equal(t, 3, NextFreeID(entries))
	assert.Equal(t, 0, NextFreeID[cell](nil))
	assert.Equal(t, "/1/0", Path{1, 0}.String())
}

func TestUpdater(t *testing.T) {
	var current []*Entry[cell]
	f := newForest()
	f.Update = func(transform func([]*Entry[cell]) []*Entry[cell]) { current = transform(current) }
	current = abc(f)

	f.updaterFor(Path{0})(func(c cell) cell { return cell{Expr: "5", Value: 5} })
	assert.Equal(t, 7, f.LastResult(current))
}

func TestJSON(t *testing.T) {
	f := newForest()
	entries := f.Recompute([]*Entry[cell]{
		leaf(0, "a", "1"),
		leaf(3, "p", "x", leaf(0, "x", "a + 1")),
		leaf(4, "", "p * 3"),
	})
	entries = f.SetCollapsed(entries, Path{3}, true)

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := f.ToJSON(entries)
		require.NoError(t, err)
		loaded, err := f.FromJSON(data)
		require.NoError(t, err)
		assert.Equal(t, snapshot(f, entries), snapshot(f, loaded))
		assert.True(t, loaded[1].Collapsed)
		assert.Equal(t, 6, f.LastResult(loaded))
	})

	t.Run("Shape", func(t *testing.T) {
		data, err := f.ToJSON(entries[:1])
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":0,"name":"a","state":"1"}]`, string(data))
	})

	invalid := []struct {
		name string
		in   string
		path string
	}{
		{name: "NotAList", in: `{}`, path: ""},
		{name: "MissingID", in: `[{"name":"a","state":"1"}]`, path: "[0].id"},
		{name: "DuplicateID", in: `[{"id":1,"name":"a","state":"1"},{"id":1,"name":"b","state":"2"}]`, path: "[1].id"},
		{name: "BadState", in: `[{"id":0,"name":"a","state":"1","children":[{"id":0,"name":"x","state":7}]}]`, path: "[0].children[0].state"},
		{name: "UnknownField", in: `[{"id":0,"name":"a","state":"1","colour":"red"}]`, path: "[0]"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.FromJSON(json.RawMessage(tc.in))
			var verr *block.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.path, verr.Path)
		})
	}
}
