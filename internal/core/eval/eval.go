package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

// Evaluator turns an expression into a value against an environment.
// Failures are returned as *block.EvaluationError values; Evaluate never panics.
type Evaluator interface {
	Evaluate(expression string, e env.Env) block.Value
}

// Func adapts a plain function to Evaluator.
type Func func(expression string, e env.Env) block.Value

func (f Func) Evaluate(expression string, e env.Env) block.Value { return f(expression, e) }

// Expr evaluates expressions with github.com/expr-lang/expr. Every name of the
// environment is visible to the expression; unknown names fail at compile time.
type Expr struct {
	options []expr.Option
}

// NewExpr returns an evaluator. Extra options are passed to expr.Compile.
func NewExpr(options ...expr.Option) *Expr {
	return &Expr{options: options}
}

// Default is the evaluator used by the builtin blocks.
var Default Evaluator = NewExpr()

func (x *Expr) Evaluate(expression string, e env.Env) (result block.Value) {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = &block.EvaluationError{Expr: expression, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	vars := e.Map()
	opts := make([]expr.Option, 0, len(x.options)+1)
	opts = append(opts, expr.Env(vars))
	opts = append(opts, x.options...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return &block.EvaluationError{Expr: expression, Err: err}
	}
	out, err := expr.Run(program, vars)
	if err != nil {
		return &block.EvaluationError{Expr: expression, Err: err}
	}
	return out
}
