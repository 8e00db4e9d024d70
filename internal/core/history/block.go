package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

// Block adds a history log to an inner block.
type Block[S any] struct {
	History[S]
}

// Wrap returns a history block around inner. A nil clock uses time.Now.
func Wrap[S any](inner block.Block[S], clock func() time.Time) Block[S] {
	return Block[S]{History: History[S]{Inner: inner, Clock: clock, Divisor: DefaultDivisor}}
}

func (b Block[S]) Init() *Wrapper[S] {
	return b.History.Init(b.Inner.Init())
}

// Recompute recomputes the latest state in place; recomputes are not
// recorded as edits. Changes the inner block initiates itself are committed.
func (b Block[S]) Recompute(w *Wrapper[S], update block.Updater[*Wrapper[S]], scope env.Env) *Wrapper[S] {
	inner := b.Inner.Recompute(w.Current(), b.innerUpdater(update, scope), scope)
	return b.Replace(w, inner)
}

func (b Block[S]) innerUpdater(update block.Updater[*Wrapper[S]], scope env.Env) block.Updater[S] {
	if update == nil {
		return nil
	}
	return func(transform func(S) S) {
		update(func(w *Wrapper[S]) *Wrapper[S] {
			next, err := b.Commit(w, transform, scope)
			if err != nil {
				return w
			}
			return next
		})
	}
}

func (b Block[S]) Result(w *Wrapper[S]) block.Value {
	return b.Inner.Result(w.Current())
}

type entryJSON struct {
	Time  *int64          `json:"time" validate:"required"`
	State json.RawMessage `json:"state" validate:"required"`
	Prev  *int64          `json:"prev,omitempty"`
}

type wrapperJSON struct {
	History []entryJSON     `json:"history" validate:"required,dive"`
	Inner   json.RawMessage `json:"inner" validate:"required"`
}

func (b Block[S]) ToJSON(w *Wrapper[S]) (json.RawMessage, error) {
	entries := make([]entryJSON, len(w.Log))
	for i, e := range w.Log {
		state := e.Snapshot
		if e.Loaded() {
			var err error
			if state, err = b.Inner.ToJSON(e.State); err != nil {
				return nil, fmt.Errorf("history entry %d: %w", i, err)
			}
		}
		ms := e.Time.UnixMilli()
		entries[i] = entryJSON{Time: &ms, State: state}
		if !e.Prev.IsZero() {
			prev := e.Prev.UnixMilli()
			entries[i].Prev = &prev
		}
	}
	inner, err := b.Inner.ToJSON(w.Current())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wrapperJSON{History: entries, Inner: inner})
}

// FromJSON restores the log. Only the latest state is loaded eagerly; older
// snapshots are restored when they are first looked at.
func (b Block[S]) FromJSON(data json.RawMessage, update block.Updater[*Wrapper[S]], scope env.Env) (*Wrapper[S], error) {
	var wj wrapperJSON
	if err := block.Decode(data, &wj); err != nil {
		return nil, err
	}
	inner, err := b.Inner.FromJSON(wj.Inner, b.innerUpdater(update, scope), scope)
	if err != nil {
		return nil, block.AtPath("inner", err)
	}
	if len(wj.History) == 0 {
		return b.History.Init(inner), nil
	}

	log := make([]Entry[S], len(wj.History))
	for i, ej := range wj.History {
		log[i] = Entry[S]{Time: time.UnixMilli(*ej.Time), Snapshot: ej.State}
		if ej.Prev != nil {
			log[i].Prev = time.UnixMilli(*ej.Prev)
		}
	}
	last := len(log) - 1
	log[last].State = inner
	log[last].Snapshot = nil
	return &Wrapper[S]{Log: log}, nil
}
