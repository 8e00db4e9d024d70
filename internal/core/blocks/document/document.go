// Package document implements the top-level editable unit: a named forest of
// pages, the page that is currently open and a table of saved templates.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/forest"
)

type Page[S any] = forest.Entry[S]

type State[S any] struct {
	Name      string
	Pages     []*Page[S]
	Open      forest.Path
	Templates map[string]json.RawMessage
}

// ErrUnknownTemplate is returned when a template name is not in the table.
var ErrUnknownTemplate = errors.New("unknown template")

type Block[S any] struct {
	Inner block.Block[S]
}

func New[S any](inner block.Block[S]) Block[S] {
	return Block[S]{Inner: inner}
}

// Pages returns the forest operations bound to e and update.
func (b Block[S]) Pages(e env.Env, update block.Updater[State[S]]) forest.Forest[S] {
	return forest.Forest[S]{
		Inner: b.Inner,
		Env:   e,
		Update: block.Lift(update,
			func(s State[S]) []*Page[S] { return s.Pages },
			func(s State[S], pages []*Page[S]) State[S] { s.Pages = pages; return s }),
	}
}

// Init returns a document with a single open page.
func (b Block[S]) Init() State[S] {
	return State[S]{
		Pages: []*Page[S]{{ID: 0, State: b.Inner.Init()}},
		Open:  forest.Path{0},
	}
}

func (b Block[S]) Recompute(s State[S], update block.Updater[State[S]], e env.Env) State[S] {
	s.Pages = b.Pages(e, update).Recompute(s.Pages)
	return s
}

// Result maps the names of the top-level pages to their results.
func (b Block[S]) Result(s State[S]) block.Value {
	return forest.Forest[S]{Inner: b.Inner}.Results(s.Pages)
}

// OpenEntry returns the page that is currently open.
func (b Block[S]) OpenEntry(s State[S]) (*Page[S], bool) {
	return forest.At(s.Pages, s.Open)
}

// PageEnv returns the environment the page at path is computed in.
func (b Block[S]) PageEnv(s State[S], path forest.Path, e env.Env) env.Env {
	return b.Pages(e, nil).EnvAt(s.Pages, path)
}

// SetName renames the document.
func SetName[S any](name string) func(State[S]) State[S] {
	return func(s State[S]) State[S] {
		s.Name = name
		return s
	}
}

// OpenPage opens the page at path if it exists.
func OpenPage[S any](path forest.Path) func(State[S]) State[S] {
	return func(s State[S]) State[S] {
		if _, ok := forest.At(s.Pages, path); !ok {
			return s
		}
		s.Open = path
		return s
	}
}

// ToggleCollapsed shows or hides the children of a page.
func (b Block[S]) ToggleCollapsed(s State[S], path forest.Path) State[S] {
	s.Pages = b.Pages(env.Empty(), nil).ToggleCollapsed(s.Pages, path)
	return s
}

// AddPage appends a new page under parent (top-level when parent is empty)
// and opens it.
func (b Block[S]) AddPage(s State[S], parent forest.Path, e env.Env, update block.Updater[State[S]]) State[S] {
	return b.addEntry(s, parent, forest.New("", b.Inner.Init()), e, update)
}

func (b Block[S]) addEntry(s State[S], parent forest.Path, page *Page[S], e env.Env, update block.Updater[State[S]]) State[S] {
	pages, p := b.Pages(e, update).AddChild(s.Pages, parent, page)
	if p == nil {
		return s
	}
	s.Pages = pages
	s.Open = p
	return s
}

// RenamePage sets the name of the page at path.
func (b Block[S]) RenamePage(s State[S], path forest.Path, name string, e env.Env, update block.Updater[State[S]]) State[S] {
	s.Pages = b.Pages(e, update).Rename(s.Pages, path, name)
	return s
}

// DeletePage removes the page at path with its children and opens a
// neighbouring page.
func (b Block[S]) DeletePage(s State[S], path forest.Path, e env.Env, update block.Updater[State[S]]) State[S] {
	if _, ok := forest.At(s.Pages, path); !ok {
		return s
	}
	pages, current := b.Pages(e, update).Delete(s.Pages, path)
	s.Pages = pages
	if len(current) == 0 {
		current = nil
	}
	if s.Open != nil && !hasPrefix(s.Open, path) {
		if _, ok := forest.At(pages, s.Open); ok {
			return s
		}
	}
	s.Open = current
	return s
}

// NestPage makes the page at path the last child of its preceding sibling.
func (b Block[S]) NestPage(s State[S], path forest.Path, e env.Env, update block.Updater[State[S]]) State[S] {
	pages, p := b.Pages(e, update).Nest(s.Pages, path)
	s.Pages = pages
	s.Open = rebase(s.Open, path, p)
	return s
}

// UnnestPage moves the page at path out of its parent, right after it.
func (b Block[S]) UnnestPage(s State[S], path forest.Path, e env.Env, update block.Updater[State[S]]) State[S] {
	pages, p := b.Pages(e, update).Unnest(s.Pages, path)
	s.Pages = pages
	s.Open = rebase(s.Open, path, p)
	return s
}

// MovePage shifts the page at path by delta among its siblings.
func (b Block[S]) MovePage(s State[S], path forest.Path, delta int, e env.Env, update block.Updater[State[S]]) State[S] {
	s.Pages = b.Pages(e, update).Move(s.Pages, path, delta)
	return s
}

// UpdatePage applies transform to the state of the page at path.
func (b Block[S]) UpdatePage(s State[S], path forest.Path, transform func(S) S, e env.Env, update block.Updater[State[S]]) State[S] {
	s.Pages = b.Pages(e, update).Apply(s.Pages, path, transform)
	return s
}

// UpdatePageWithEnv is UpdatePage for transforms that need the page's environment.
func (b Block[S]) UpdatePageWithEnv(s State[S], path forest.Path, transform func(S, env.Env) S, e env.Env, update block.Updater[State[S]]) State[S] {
	s.Pages = b.Pages(e, update).ApplyWithEnv(s.Pages, path, transform)
	return s
}

// UpdateOpenPage applies transform to the open page.
func (b Block[S]) UpdateOpenPage(s State[S], transform func(S, env.Env) S, e env.Env, update block.Updater[State[S]]) State[S] {
	if s.Open == nil {
		return s
	}
	return b.UpdatePageWithEnv(s, s.Open, transform, e, update)
}

// SaveTemplate stores the page at path, including its children, under name.
func (b Block[S]) SaveTemplate(s State[S], name string, path forest.Path) (State[S], error) {
	page, ok := forest.At(s.Pages, path)
	if !ok {
		return s, fmt.Errorf("save template %q: no page at %s", name, path)
	}
	data, err := b.Pages(env.Empty(), nil).ToJSON([]*Page[S]{page})
	if err != nil {
		return s, fmt.Errorf("save template %q: %w", name, err)
	}
	templates := make(map[string]json.RawMessage, len(s.Templates)+1)
	maps.Copy(templates, s.Templates)
	templates[name] = data
	s.Templates = templates
	return s, nil
}

// AddFromTemplate inserts a copy of a saved template under parent and opens it.
func (b Block[S]) AddFromTemplate(s State[S], name string, parent forest.Path, e env.Env, update block.Updater[State[S]]) (State[S], error) {
	data, ok := s.Templates[name]
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	pages := b.Pages(e, nil)
	if len(parent) > 0 {
		pages.Env = pages.EnvAt(s.Pages, parent)
	}
	loaded, err := pages.FromJSON(data)
	if err != nil {
		return s, fmt.Errorf("template %s: %w", name, err)
	}
	if len(loaded) != 1 {
		return s, fmt.Errorf("template %s: expected one page, got %d", name, len(loaded))
	}
	return b.addEntry(s, parent, loaded[0], e, update), nil
}

// DeleteTemplate removes a template from the table.
func DeleteTemplate[S any](name string) func(State[S]) State[S] {
	return func(s State[S]) State[S] {
		if _, ok := s.Templates[name]; !ok {
			return s
		}
		templates := maps.Clone(s.Templates)
		delete(templates, name)
		s.Templates = templates
		return s
	}
}

type stateJSON struct {
	Name      string                     `json:"name"`
	Pages     json.RawMessage            `json:"pages" validate:"required"`
	OpenPage  []int                      `json:"openPage"`
	Templates map[string]json.RawMessage `json:"templates,omitempty"`
}

func (b Block[S]) ToJSON(s State[S]) (json.RawMessage, error) {
	pages, err := b.Pages(env.Empty(), nil).ToJSON(s.Pages)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stateJSON{Name: s.Name, Pages: pages, OpenPage: s.Open, Templates: s.Templates})
}

func (b Block[S]) FromJSON(data json.RawMessage, update block.Updater[State[S]], e env.Env) (State[S], error) {
	var sj stateJSON
	if err := block.Decode(data, &sj); err != nil {
		return State[S]{}, err
	}
	pages, err := b.Pages(e, update).FromJSON(sj.Pages)
	if err != nil {
		return State[S]{}, block.AtPath("pages", err)
	}
	s := State[S]{Name: sj.Name, Pages: pages, Templates: sj.Templates}
	if _, ok := forest.At(pages, sj.OpenPage); ok {
		s.Open = sj.OpenPage
	}
	return s, nil
}

func hasPrefix(p, prefix forest.Path) bool {
	return len(p) >= len(prefix) && p[:len(prefix)].Equal(prefix)
}

// rebase rewrites path if it lies at or below from, which moved to to.
func rebase(path, from, to forest.Path) forest.Path {
	if path == nil || !hasPrefix(path, from) {
		return path
	}
	out := make(forest.Path, 0, len(to)+len(path)-len(from))
	out = append(out, to...)
	return append(out, path[len(from):]...)
}
