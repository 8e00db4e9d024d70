// Package sheet implements a flat list of named lines. Each line sees the
// results of the lines above it; the sheet's result is its last line's.
package sheet

import (
	"encoding/json"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/forest"
)

type Line[S any] = forest.Entry[S]

type Visibility = forest.Visibility

// VisibilityStates is the order CycleVisibility steps through. New lines
// start with the first.
var VisibilityStates = []Visibility{
	{Block: true, Result: true},
	{Block: true, Result: false},
	{Block: false, Result: true},
}

// NextVisibility returns the state following v. A state outside the cycle
// restarts it.
func NextVisibility(v Visibility) Visibility {
	for i, st := range VisibilityStates {
		if st == v {
			return VisibilityStates[(i+1)%len(VisibilityStates)]
		}
	}
	return VisibilityStates[0]
}

type State[S any] struct {
	Lines []*Line[S]
}

type Block[S any] struct {
	Inner block.Block[S]
}

func New[S any](inner block.Block[S]) Block[S] {
	return Block[S]{Inner: inner}
}

func (b Block[S]) lines(e env.Env, update block.Updater[State[S]]) forest.Forest[S] {
	return forest.Forest[S]{
		Inner: b.Inner,
		Env:   e,
		Update: block.Lift(update,
			func(s State[S]) []*Line[S] { return s.Lines },
			func(s State[S], lines []*Line[S]) State[S] { return State[S]{Lines: lines} }),
	}
}

// Init returns a sheet with one empty line.
func (b Block[S]) Init() State[S] {
	return State[S]{Lines: []*Line[S]{b.newLine()}}
}

func (b Block[S]) newLine() *Line[S] {
	l := forest.New("", b.Inner.Init())
	v := VisibilityStates[0]
	l.Visibility = &v
	return l
}

func (b Block[S]) Recompute(s State[S], update block.Updater[State[S]], e env.Env) State[S] {
	return State[S]{Lines: b.lines(e, update).Recompute(s.Lines)}
}

func (b Block[S]) Result(s State[S]) block.Value {
	return forest.Forest[S]{Inner: b.Inner}.LastResult(s.Lines)
}

// LineResult returns the result of the line with id.
func (b Block[S]) LineResult(s State[S], id int) (block.Value, bool) {
	l, ok := forest.At(s.Lines, forest.Path{id})
	if !ok {
		return nil, false
	}
	return b.Inner.Result(l.State), true
}

// LineVisibility returns the visibility of the line with id. Lines stored
// without one show everything.
func (b Block[S]) LineVisibility(s State[S], id int) (Visibility, bool) {
	l, ok := forest.At(s.Lines, forest.Path{id})
	if !ok {
		return Visibility{}, false
	}
	if l.Visibility == nil {
		return VisibilityStates[0], true
	}
	return *l.Visibility, true
}

// CycleVisibility advances the line with id to the next visibility state.
// Nothing is recomputed.
func (b Block[S]) CycleVisibility(s State[S], id int) State[S] {
	v, ok := b.LineVisibility(s, id)
	if !ok {
		return s
	}
	return State[S]{Lines: forest.Forest[S]{Inner: b.Inner}.SetVisibility(s.Lines, forest.Path{id}, NextVisibility(v))}
}

type stateJSON struct {
	Lines json.RawMessage `json:"lines" validate:"required"`
}

func (b Block[S]) ToJSON(s State[S]) (json.RawMessage, error) {
	lines, err := b.lines(env.Empty(), nil).ToJSON(s.Lines)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stateJSON{Lines: lines})
}

func (b Block[S]) FromJSON(data json.RawMessage, update block.Updater[State[S]], e env.Env) (State[S], error) {
	var sj stateJSON
	if err := block.Decode(data, &sj); err != nil {
		return State[S]{}, err
	}
	lines, err := b.lines(e, update).FromJSON(sj.Lines)
	if err != nil {
		return State[S]{}, block.AtPath("lines", err)
	}
	if len(lines) == 0 {
		return State[S]{}, block.Invalid("lines", "a sheet needs at least one line")
	}
	return State[S]{Lines: lines}, nil
}

// Rename sets the name of a line.
func (b Block[S]) Rename(s State[S], id int, name string, e env.Env, update block.Updater[State[S]]) State[S] {
	return State[S]{Lines: b.lines(e, update).Rename(s.Lines, forest.Path{id}, name)}
}

// UpdateLine applies transform to the state of a line.
func (b Block[S]) UpdateLine(s State[S], id int, transform func(S) S, e env.Env, update block.Updater[State[S]]) State[S] {
	return State[S]{Lines: b.lines(e, update).Apply(s.Lines, forest.Path{id}, transform)}
}

// UpdateLineWithEnv is UpdateLine for transforms that evaluate against the
// environment of the line.
func (b Block[S]) UpdateLineWithEnv(s State[S], id int, transform func(S, env.Env) S, e env.Env, update block.Updater[State[S]]) State[S] {
	return State[S]{Lines: b.lines(e, update).ApplyWithEnv(s.Lines, forest.Path{id}, transform)}
}

// InsertBefore adds an empty line above the line with id and returns the
// new line's id, or -1 if id does not exist.
func (b Block[S]) InsertBefore(s State[S], id int, e env.Env, update block.Updater[State[S]]) (State[S], int) {
	lines, p := b.lines(e, update).InsertBefore(s.Lines, forest.Path{id}, b.newLine())
	return b.inserted(s, lines, p, id)
}

// InsertAfter adds an empty line below the line with id.
func (b Block[S]) InsertAfter(s State[S], id int, e env.Env, update block.Updater[State[S]]) (State[S], int) {
	lines, p := b.lines(e, update).InsertAfter(s.Lines, forest.Path{id}, b.newLine())
	return b.inserted(s, lines, p, id)
}

func (b Block[S]) inserted(s State[S], lines []*Line[S], p forest.Path, id int) (State[S], int) {
	newID, _ := p.Last()
	if len(lines) == len(s.Lines) {
		return s, -1
	}
	return State[S]{Lines: lines}, newID
}

// Delete removes a line and returns the id of the line that should become
// current. The last remaining line cannot be deleted.
func (b Block[S]) Delete(s State[S], id int, e env.Env, update block.Updater[State[S]]) (State[S], int) {
	if len(s.Lines) <= 1 {
		return s, id
	}
	lines, current := b.lines(e, update).Delete(s.Lines, forest.Path{id})
	next, ok := current.Last()
	if !ok {
		return s, id
	}
	return State[S]{Lines: lines}, next
}

// Move shifts a line by delta positions.
func (b Block[S]) Move(s State[S], id int, delta int, e env.Env, update block.Updater[State[S]]) State[S] {
	return State[S]{Lines: b.lines(e, update).Move(s.Lines, forest.Path{id}, delta)}
}
