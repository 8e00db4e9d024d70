// Package library registers the builtin blocks users can choose by name.
package library

import (
	"encoding/json"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/blocks/expr"
	"github.com/csicar/tables/internal/core/blocks/sheet"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/eval"
)

// Tags of the builtin blocks.
const (
	ExprTag  = "Expr"
	SheetTag = "Sheet"
	NoteTag  = "Note"
)

// New returns a registry with the builtin blocks, evaluating with ev.
func New(ev eval.Evaluator) *block.Registry {
	r := block.NewRegistry()
	line := expr.New(ev)
	r.Register(ExprTag, block.Erase[expr.State](line))
	r.Register(SheetTag, block.Erase[sheet.State[expr.State]](sheet.New[expr.State](line)))
	r.Register(NoteTag, block.Erase[string](Note{}))
	return r
}

// Default is the registry built with eval.Default.
var Default = New(eval.Default)

// Note is a block holding plain text; its result is the text.
type Note struct{}

func (Note) Init() string { return "" }
func (Note) Recompute(s string, _ block.Updater[string], _ env.Env) string { return s }
func (Note) Result(s string) block.Value { return s }

type noteJSON struct {
	Text *string `json:"text" validate:"required"`
}

func (Note) ToJSON(s string) (json.RawMessage, error) {
	return json.Marshal(noteJSON{Text: &s})
}

func (Note) FromJSON(data json.RawMessage, _ block.Updater[string], _ env.Env) (string, error) {
	var nj noteJSON
	if err := block.Decode(data, &nj); err != nil {
		return "", err
	}
	return *nj.Text, nil
}

// SetText replaces the text of a note.
func SetText(text string) func(string) string {
	return func(string) string { return text }
}
