package forest

import (
	"encoding/json"
	"fmt"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

type entryJSON struct {
	ID         *int              `json:"id" validate:"required"`
	Name       string            `json:"name"`
	State      json.RawMessage   `json:"state" validate:"required"`
	Children   []json.RawMessage `json:"children,omitempty"`
	Collapsed  bool              `json:"collapsed,omitempty"`
	Visibility *Visibility       `json:"visibility,omitempty"`
}

// ToJSON serializes entries as a JSON array of
// {id, name, state, children?, collapsed?, visibility?}.
func (f Forest[S]) ToJSON(entries []*Entry[S]) (json.RawMessage, error) {
	raws, err := f.marshalList(entries)
	if err != nil {
		return nil, err
	}
	return json.Marshal(raws)
}

func (f Forest[S]) marshalList(entries []*Entry[S]) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		state, err := f.Inner.ToJSON(e.State)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		var children []json.RawMessage
		if len(e.Children) > 0 {
			if children, err = f.marshalList(e.Children); err != nil {
				return nil, err
			}
		}
		id := e.ID
		raw, err := json.Marshal(entryJSON{ID: &id, Name: e.Name, State: state, Children: children, Collapsed: e.Collapsed, Visibility: e.Visibility})
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// FromJSON restores entries. Every entry is loaded against the environment
// it would see during a recompute, so blocks can resolve names while loading.
func (f Forest[S]) FromJSON(data json.RawMessage) ([]*Entry[S], error) {
	var raws []json.RawMessage
	if err := block.Decode(data, &raws); err != nil {
		return nil, err
	}
	return f.load(raws, nil, f.Env)
}

func (f Forest[S]) load(raws []json.RawMessage, parent Path, scope env.Env) ([]*Entry[S], error) {
	if len(raws) == 0 {
		return nil, nil
	}
	entries := make([]*Entry[S], 0, len(raws))
	seen := make(map[int]struct{}, len(raws))
	for i, raw := range raws {
		at := fmt.Sprintf("[%d]", i)
		var ej entryJSON
		if err := block.Decode(raw, &ej); err != nil {
			return nil, block.AtPath(at, err)
		}
		id := *ej.ID
		if _, dup := seen[id]; dup {
			return nil, block.Invalid(at+".id", "duplicate id %d", id)
		}
		seen[id] = struct{}{}

		path := parent.Join(id)
		children, err := f.load(ej.Children, path, scope)
		if err != nil {
			return nil, block.AtPath(at+".children", err)
		}
		state, err := f.Inner.FromJSON(ej.State, f.updaterFor(path), f.Bind(scope, children))
		if err != nil {
			return nil, block.AtPath(at+".state", err)
		}
		e := &Entry[S]{ID: id, Name: ej.Name, State: state, Children: children, Collapsed: ej.Collapsed, Visibility: ej.Visibility}
		entries = append(entries, e)
		scope = scope.With(EffectiveName(e), f.Inner.Result(state))
	}
	return entries, nil
}
