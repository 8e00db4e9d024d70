package sheet

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/blocks/expr"
	"github.com/csicar/tables/internal/core/env"
)

var scope = env.Empty()

func newSheet(t *testing.T) (Block[expr.State], State[expr.State]) {
	t.Helper()
	b := New[expr.State](expr.New(nil))
	data := `{"lines":[
		{"id":0,"name":"a","state":{"expr":"1"}},
		{"id":1,"name":"b","state":{"expr":"a + 1"}},
		{"id":2,"name":"c","state":{"expr":"b + 1"}}
	]}`
	s, err := b.FromJSON(json.RawMessage(data), nil, scope)
	require.NoError(t, err)
	return b, s
}

func result(t *testing.T, b Block[expr.State], s State[expr.State], id int) block.Value {
	t.Helper()
	v, ok := b.LineResult(s, id)
	require.True(t, ok, "line %d", id)
	return v
}

func TestSheet(t *testing.T) {
	t.Run("Init", func(t *testing.T) {
		b := New[expr.State](expr.New(nil))
		s := b.Init()
		require.Len(t, s.Lines, 1)
		assert.Equal(t, 0, s.Lines[0].ID)
		assert.Nil(t, b.Result(s))
	})

	t.Run("Chain", func(t *testing.T) {
		b, s := newSheet(t)
		assert.Equal(t, 3, result(t, b, s, 2))
		assert.Equal(t, 3, b.Result(s))
	})

	t.Run("DeleteMakesDependentAnError", func(t *testing.T) {
		b, s := newSheet(t)
		out, current := b.Delete(s, 1, scope, nil)
		assert.Equal(t, 0, current)

		v := result(t, b, out, 2)
		var evalErr *block.EvaluationError
		require.True(t, errors.As(v.(error), &evalErr), "got %#v", v)
		assert.Equal(t, "b + 1", evalErr.Expr)
	})

	t.Run("DeleteLastRemainingLineIsRefused", func(t *testing.T) {
		b := New[expr.State](expr.New(nil))
		s := b.Init()
		out, current := b.Delete(s, 0, scope, nil)
		assert.Len(t, out.Lines, 1)
		assert.Equal(t, 0, current)
	})

	t.Run("InsertAfterKeepsPrefix", func(t *testing.T) {
		b, s := newSheet(t)
		out, id := b.InsertAfter(s, 0, scope, nil)
		require.Equal(t, 3, id)
		assert.Same(t, s.Lines[0], out.Lines[0])

		out = b.Rename(out, id, "d", scope, nil)
		out = b.UpdateLineWithEnv(out, id, func(st expr.State, e env.Env) expr.State {
			return expr.New(nil).Set("a + 1", e)(st)
		}, scope, nil)

		assert.Equal(t, 2, result(t, b, out, id))
		assert.Equal(t, 1, result(t, b, out, 0))
		assert.Same(t, s.Lines[0], out.Lines[0])
		assert.Equal(t, 3, b.Result(out))
	})

	t.Run("InsertBefore", func(t *testing.T) {
		b, s := newSheet(t)
		out, id := b.InsertBefore(s, 0, scope, nil)
		assert.Equal(t, 3, id)
		assert.Equal(t, id, out.Lines[0].ID)

		_, id = b.InsertBefore(s, 42, scope, nil)
		assert.Equal(t, -1, id)
	})

	t.Run("UpdateLine", func(t *testing.T) {
		b, s := newSheet(t)
		out := b.UpdateLine(s, 0, expr.New(nil).Set("10", scope), scope, nil)
		assert.Equal(t, 12, b.Result(out))
	})

	t.Run("Move", func(t *testing.T) {
		b, s := newSheet(t)
		out := b.Move(s, 2, -2, scope, nil)
		assert.Equal(t, 2, out.Lines[0].ID)
		assert.True(t, block.IsError(result(t, b, out, 2)))
		assert.Equal(t, 2, b.Result(out))
	})

	t.Run("SelfInitiatedUpdate", func(t *testing.T) {
		b, s := newSheet(t)
		update := block.Updater[State[expr.State]](func(f func(State[expr.State]) State[expr.State]) { s = f(s) })
		s = b.Recompute(s, update, scope)

		f := b.lines(scope, update)
		f.Update(func(lines []*Line[expr.State]) []*Line[expr.State] {
			return f.Apply(lines, []int{0}, expr.New(nil).Set("5", scope))
		})
		assert.Equal(t, 7, b.Result(s))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		b, s := newSheet(t)
		data, err := b.ToJSON(s)
		require.NoError(t, err)
		loaded, err := b.FromJSON(data, nil, scope)
		require.NoError(t, err)
		assert.Equal(t, b.Result(s), b.Result(loaded))
	})

	t.Run("InvalidLine", func(t *testing.T) {
		b := New[expr.State](expr.New(nil))
		_, err := b.FromJSON(json.RawMessage(`{"lines":[{"id":0,"name":"a","state":{}}]}`), nil, scope)
		var verr *block.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "lines[0].state.expr", verr.Path)
	})
}

func TestVisibility(t *testing.T) {
	t.Run("Cycle", func(t *testing.T) {
		v := VisibilityStates[0]
		for range VisibilityStates {
			v = NextVisibility(v)
		}
		assert.Equal(t, VisibilityStates[0], v)
		assert.Equal(t, VisibilityStates[0], NextVisibility(Visibility{}))
	})

	t.Run("NewLinesStartVisible", func(t *testing.T) {
		b := New[expr.State](expr.New(nil))
		s := b.Init()
		v, ok := b.LineVisibility(s, 0)
		require.True(t, ok)
		assert.Equal(t, Visibility{Block: true, Result: true}, v)

		s, id := b.InsertAfter(s, 0, scope, nil)
		v, ok = b.LineVisibility(s, id)
		require.True(t, ok)
		assert.Equal(t, VisibilityStates[0], v)
	})

	t.Run("CycleKeepsResults", func(t *testing.T) {
		b, s := newSheet(t)
		out := b.CycleVisibility(s, 1)
		v, _ := b.LineVisibility(out, 1)
		assert.Equal(t, VisibilityStates[1], v)
		assert.Same(t, s.Lines[0], out.Lines[0])
		assert.Equal(t, 3, b.Result(out))

		v, _ = b.LineVisibility(s, 1)
		assert.Equal(t, VisibilityStates[0], v, "the previous state is untouched")
		assert.Equal(t, s, b.CycleVisibility(s, 42))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		b := New[expr.State](expr.New(nil))
		s, err := b.FromJSON(json.RawMessage(`{"lines":[
			{"id":0,"name":"a","visibility":{"block":false,"result":true},"state":{"expr":"1"}},
			{"id":1,"name":"b","state":{"expr":"a + 1"}}
		]}`), nil, scope)
		require.NoError(t, err)
		v, _ := b.LineVisibility(s, 0)
		assert.Equal(t, Visibility{Block: false, Result: true}, v)

		s = b.CycleVisibility(s, 1)
		data, err := b.ToJSON(s)
		require.NoError(t, err)
		loaded, err := b.FromJSON(data, nil, scope)
		require.NoError(t, err)
		for _, id := range []int{0, 1} {
			want, _ := b.LineVisibility(s, id)
			got, _ := b.LineVisibility(loaded, id)
			assert.Equal(t, want, got, "line %d", id)
		}
		assert.Equal(t, 2, b.Result(loaded))
	})
}

func TestEmptySheetIsInvalid(t *testing.T) {
	b := New[expr.State](expr.New(nil))
	for _, data := range []string{`{"lines":[]}`, `{"lines":null}`} {
		_, err := b.FromJSON(json.RawMessage(data), nil, scope)
		var verr *block.ValidationError
		require.True(t, errors.As(err, &verr), data)
		assert.Equal(t, "lines", verr.Path)
	}
}
