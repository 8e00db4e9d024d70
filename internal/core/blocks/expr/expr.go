// Package expr implements the command block: a single expression whose
// value is the block's result.
package expr

import (
	"encoding/json"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/eval"
)

// State holds the source expression and its last computed value.
type State struct {
	Expr   string
	Result block.Value
}

type Block struct {
	eval eval.Evaluator
}

// New returns an expression block. A nil evaluator uses eval.Default.
func New(ev eval.Evaluator) Block {
	if ev == nil {
		ev = eval.Default
	}
	return Block{eval: ev}
}

func (b Block) Init() State { return State{} }

func (b Block) Recompute(s State, _ block.Updater[State], e env.Env) State {
	return State{Expr: s.Expr, Result: b.eval.Evaluate(s.Expr, e)}
}

func (b Block) Result(s State) block.Value { return s.Result }

type stateJSON struct {
	Expr *string `json:"expr" validate:"required"`
}

func (b Block) ToJSON(s State) (json.RawMessage, error) {
	return json.Marshal(stateJSON{Expr: &s.Expr})
}

func (b Block) FromJSON(data json.RawMessage, _ block.Updater[State], e env.Env) (State, error) {
	var sj stateJSON
	if err := block.Decode(data, &sj); err != nil {
		return State{}, err
	}
	return b.Recompute(State{Expr: *sj.Expr}, nil, e), nil
}

// Set replaces the expression and evaluates it against e.
func (b Block) Set(code string, e env.Env) func(State) State {
	return func(State) State {
		return b.Recompute(State{Expr: code}, nil, e)
	}
}
