// Package selector implements a block that wraps another block chosen by
// evaluating an expression, e.g. "Sheet" or a user-defined name bound to a
// block value.
package selector

import (
	"encoding/json"
	"fmt"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/eval"
)

type Mode int

const (
	// Choose means no block is in use yet, or the user is picking another one.
	Choose Mode = iota
	// Run means Inner is selected and in normal operation.
	Run
	// Loading holds a persisted inner state whose block could not be resolved yet.
	Loading
)

func (m Mode) String() string {
	switch m {
	case Run:
		return "run"
	case Loading:
		return "loading"
	default:
		return "choose"
	}
}

func parseMode(s string) (Mode, error) {
	switch s {
	case "run":
		return Run, nil
	case "choose":
		return Choose, nil
	}
	return Choose, fmt.Errorf("unknown mode %q", s)
}

type State struct {
	Mode Mode
	Expr string

	Inner      block.Block[any]
	InnerState any

	// Set while Loading.
	Resume  Mode
	Pending json.RawMessage
}

type Block struct {
	library env.Env
	eval    eval.Evaluator
}

// New returns a selector resolving expressions against library and the
// environment of the block, where the environment wins.
func New(library env.Env, ev eval.Evaluator) Block {
	if ev == nil {
		ev = eval.Default
	}
	return Block{library: library, eval: ev}
}

func (b Block) resolve(code string, e env.Env) (block.Block[any], bool) {
	inner, ok := b.eval.Evaluate(code, b.library.Extend(e)).(block.Block[any])
	return inner, ok
}

func (b Block) innerUpdater(update block.Updater[State]) block.Updater[any] {
	if update == nil {
		return nil
	}
	return func(transform func(any) any) {
		update(UpdateInner(transform))
	}
}

func (b Block) Init() State { return State{Mode: Choose} }

// Choose selects the block code evaluates to. If it does not evaluate to a
// block, only the expression is remembered.
func (b Block) Choose(code string, e env.Env, update block.Updater[State]) func(State) State {
	return func(s State) State {
		inner, ok := b.resolve(code, e)
		if !ok {
			return State{Mode: Choose, Expr: code, Inner: s.Inner, InnerState: s.InnerState}
		}
		return State{
			Mode:       Run,
			Expr:       code,
			Inner:      inner,
			InnerState: inner.Recompute(inner.Init(), b.innerUpdater(update), e),
		}
	}
}

// Rechoose goes back to choosing while keeping the current block around.
func Rechoose(s State) State {
	if s.Mode != Run {
		return s
	}
	s.Mode = Choose
	return s
}

// UpdateInner applies transform to the inner state. It does nothing while
// loading or before a block was chosen.
func UpdateInner(transform func(any) any) func(State) State {
	return func(s State) State {
		if s.Mode == Loading || s.Inner == nil {
			return s
		}
		s.InnerState = transform(s.InnerState)
		return s
	}
}

// Recompute re-resolves the expression and recomputes the inner state. When
// the expression no longer yields a block, the block chosen last keeps
// running against the new environment.
func (b Block) Recompute(s State, update block.Updater[State], e env.Env) State {
	inner, ok := b.resolve(s.Expr, e)
	if !ok {
		if s.Mode == Loading || s.Inner == nil {
			return s
		}
		s.InnerState = s.Inner.Recompute(s.InnerState, b.innerUpdater(update), e)
		return s
	}
	if s.Mode == Loading {
		innerState, err := inner.FromJSON(s.Pending, b.innerUpdater(update), e)
		if err != nil {
			return s
		}
		return State{Mode: s.Resume, Expr: s.Expr, Inner: inner, InnerState: innerState}
	}
	if s.Inner == nil {
		return s
	}
	s.Inner = inner
	s.InnerState = inner.Recompute(s.InnerState, b.innerUpdater(update), e)
	return s
}

func (b Block) Result(s State) block.Value {
	if s.Mode == Loading || s.Inner == nil {
		return nil
	}
	return s.Inner.Result(s.InnerState)
}

type stateJSON struct {
	Mode  string          `json:"mode" validate:"required,oneof=run choose"`
	Expr  *string         `json:"expr" validate:"required"`
	Inner json.RawMessage `json:"inner"`
}

func (b Block) ToJSON(s State) (json.RawMessage, error) {
	sj := stateJSON{Mode: s.Mode.String(), Expr: &s.Expr, Inner: json.RawMessage("null")}
	switch {
	case s.Mode == Loading:
		sj.Mode = s.Resume.String()
		if s.Pending != nil {
			sj.Inner = s.Pending
		}
	case s.Inner != nil:
		inner, err := s.Inner.ToJSON(s.InnerState)
		if err != nil {
			return nil, err
		}
		sj.Inner = inner
	}
	return json.Marshal(sj)
}

// FromJSON restores a selector. If the expression does not resolve to a
// block yet, the state is Loading and resolution is retried on Recompute.
func (b Block) FromJSON(data json.RawMessage, update block.Updater[State], e env.Env) (State, error) {
	var sj stateJSON
	if err := block.Decode(data, &sj); err != nil {
		return State{}, err
	}
	mode, err := parseMode(sj.Mode)
	if err != nil {
		return State{}, block.AtPath("mode", err)
	}
	code := *sj.Expr
	empty := len(sj.Inner) == 0 || string(sj.Inner) == "null"
	if mode == Choose && empty {
		return State{Mode: Choose, Expr: code}, nil
	}

	inner, ok := b.resolve(code, e)
	if !ok {
		return State{Mode: Loading, Expr: code, Resume: mode, Pending: sj.Inner}, nil
	}
	innerState, err := inner.FromJSON(sj.Inner, b.innerUpdater(update), e)
	if err != nil {
		return State{}, block.AtPath("inner", err)
	}
	return State{Mode: mode, Expr: code, Inner: inner, InnerState: innerState}, nil
}
