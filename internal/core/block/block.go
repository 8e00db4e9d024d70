package block

import (
	"encoding/json"

	"github.com/csicar/tables/internal/core/env"
)

// Value is a computed block result. Results are opaque to the engine; they are
// bound into environments and handed to the evaluator as-is.
type Value = any

// Updater applies a transform to a block state at some later point in time.
// Blocks may keep the updater they receive and call it from callbacks, but
// never synchronously from within Recompute or FromJSON.
type Updater[S any] func(transform func(S) S)

// Apply calls u if it is set.
func (u Updater[S]) Apply(transform func(S) S) {
	if u != nil {
		u(transform)
	}
}

// Block is the capability set every block variant provides.
//
// Implementations must be pure: Recompute and FromJSON return new states and
// never mutate their inputs, and Result depends only on the given state.
type Block[S any] interface {
	// Init returns the state of a freshly created block.
	Init() S
	// Recompute re-derives the state against a possibly changed environment.
	Recompute(state S, update Updater[S], e env.Env) S
	// Result returns the value this block contributes to later siblings.
	Result(state S) Value
	// ToJSON serializes the persistent part of the state.
	ToJSON(state S) (json.RawMessage, error)
	// FromJSON restores a state. Malformed input yields a *ValidationError.
	FromJSON(data json.RawMessage, update Updater[S], e env.Env) (S, error)
}

// Lift adapts an updater of an outer state to an updater of a part of it.
func Lift[S, T any](outer Updater[T], get func(T) S, set func(T, S) T) Updater[S] {
	if outer == nil {
		return nil
	}
	return func(transform func(S) S) {
		outer(func(t T) T {
			return set(t, transform(get(t)))
		})
	}
}

// Erase hides the state type of b so blocks can be stored in registries and
// environments. A state of the wrong type is replaced by b.Init().
func Erase[S any](b Block[S]) Block[any] {
	if same, ok := any(b).(Block[any]); ok {
		return same
	}
	return erased[S]{inner: b}
}

type erased[S any] struct {
	inner Block[S]
}

func (e erased[S]) typed(state any) S {
	if s, ok := state.(S); ok {
		return s
	}
	return e.inner.Init()
}

func (e erased[S]) lift(update Updater[any]) Updater[S] {
	if update == nil {
		return nil
	}
	return func(transform func(S) S) {
		update(func(state any) any { return transform(e.typed(state)) })
	}
}

func (e erased[S]) Init() any { return e.inner.Init() }

func (e erased[S]) Recompute(state any, update Updater[any], scope env.Env) any {
	return e.inner.Recompute(e.typed(state), e.lift(update), scope)
}

func (e erased[S]) Result(state any) Value { return e.inner.Result(e.typed(state)) }

func (e erased[S]) ToJSON(state any) (json.RawMessage, error) {
	return e.inner.ToJSON(e.typed(state))
}

func (e erased[S]) FromJSON(data json.RawMessage, update Updater[any], scope env.Env) (any, error) {
	s, err := e.inner.FromJSON(data, e.lift(update), scope)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Unwrap returns the typed block behind an erased one.
func (e erased[S]) Unwrap() any { return e.inner }
