package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

// Kind distinguishes editing the latest state from looking at an older one.
type Kind int

const (
	Current Kind = iota
	Viewing
)

func (k Kind) String() string {
	if k == Viewing {
		return "history"
	}
	return "current"
}

// Mode is the navigation state. Position indexes the log while Viewing;
// Position == len(log) shows the latest state.
type Mode struct {
	Kind     Kind
	Position int
}

// Entry is one snapshot of the log. Entries loaded from storage keep their
// serialized form in Snapshot until they are looked at.
type Entry[S any] struct {
	Time     time.Time
	State    S
	Snapshot json.RawMessage
	Prev     time.Time
}

// Loaded reports whether State holds the materialized snapshot.
func (e Entry[S]) Loaded() bool { return e.Snapshot == nil }

// Wrapper is the state of a block with history. The last log entry is always
// loaded and is the state being edited.
type Wrapper[S any] struct {
	Mode Mode
	Log  []Entry[S]
}

// Current returns the latest state.
func (w *Wrapper[S]) Current() S {
	return w.Log[len(w.Log)-1].State
}

// Len returns the number of retained snapshots.
func (w *Wrapper[S]) Len() int { return len(w.Log) }

// Viewing reports whether an older state is being looked at.
func (w *Wrapper[S]) Viewing() bool { return w.Mode.Kind == Viewing }

func (w *Wrapper[S]) with(mode Mode, log []Entry[S]) *Wrapper[S] {
	return &Wrapper[S]{Mode: mode, Log: log}
}

// ErrPosition is returned when the log has no entry at the viewed position.
var ErrPosition = errors.New("history: no entry at position")

// History implements the navigation and commit operations over a Wrapper.
// Inner restores snapshots that were loaded lazily.
type History[S any] struct {
	Inner   block.Block[S]
	Clock   func() time.Time
	Divisor float64
}

func (h History[S]) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// Init starts a log with a single entry.
func (h History[S]) Init(state S) *Wrapper[S] {
	return &Wrapper[S]{Log: []Entry[S]{{Time: h.now(), State: state}}}
}

// materialize returns the log with the entry at i loaded.
func (h History[S]) materialize(log []Entry[S], i int, scope env.Env) ([]Entry[S], error) {
	if i < 0 || i >= len(log) {
		return log, ErrPosition
	}
	if log[i].Loaded() {
		return log, nil
	}
	state, err := h.Inner.FromJSON(log[i].Snapshot, nil, scope)
	if err != nil {
		return log, fmt.Errorf("history entry %d: %w", i, err)
	}
	out := make([]Entry[S], len(log))
	copy(out, log)
	out[i].State = state
	out[i].Snapshot = nil
	return out, nil
}

// source returns the index of the entry an edit starts from.
func (w *Wrapper[S]) source() int {
	if w.Mode.Kind == Viewing && w.Mode.Position < len(w.Log) {
		return w.Mode.Position
	}
	return len(w.Log) - 1
}

// Commit applies transform to the state being looked at and appends the
// result. Committing while viewing an older state continues from it and
// returns to Current mode.
func (h History[S]) Commit(w *Wrapper[S], transform func(S) S, scope env.Env) (*Wrapper[S], error) {
	src := w.source()
	log, err := h.materialize(w.Log, src, scope)
	if err != nil {
		return w, err
	}
	base := log[src]
	next := Entry[S]{Time: h.now(), State: transform(base.State), Prev: base.Time}

	appended := make([]Entry[S], len(log), len(log)+1)
	copy(appended, log)
	appended = append(appended, next)
	return w.with(Mode{Kind: Current}, CompactWith(appended, next.Time, h.Divisor)), nil
}

// Replace swaps the latest state without recording a new entry. Used for
// recomputes, which derive state rather than edit it.
func (h History[S]) Replace(w *Wrapper[S], state S) *Wrapper[S] {
	log := make([]Entry[S], len(w.Log))
	copy(log, w.Log)
	log[len(log)-1].State = state
	log[len(log)-1].Snapshot = nil
	return w.with(w.Mode, log)
}

// Open starts viewing the entry before the latest one.
func (h History[S]) Open(w *Wrapper[S], scope env.Env) (*Wrapper[S], error) {
	if len(w.Log) <= 1 {
		return w, nil
	}
	pos := len(w.Log) - 2
	log, err := h.materialize(w.Log, pos, scope)
	if err != nil {
		return w, err
	}
	return w.with(Mode{Kind: Viewing, Position: pos}, log), nil
}

// Move shifts the viewed position by delta, clamped to [0, len(log)].
func (h History[S]) Move(w *Wrapper[S], delta int, scope env.Env) (*Wrapper[S], error) {
	if w.Mode.Kind != Viewing {
		return w, nil
	}
	pos := min(max(w.Mode.Position+delta, 0), len(w.Log))
	log := w.Log
	if pos < len(log) {
		var err error
		if log, err = h.materialize(log, pos, scope); err != nil {
			return w, err
		}
	}
	return w.with(Mode{Kind: Viewing, Position: pos}, log), nil
}

// Close stops viewing and keeps the log as it is.
func (h History[S]) Close(w *Wrapper[S]) *Wrapper[S] {
	if w.Mode.Kind == Current {
		return w
	}
	return w.with(Mode{Kind: Current}, w.Log)
}

// Restore makes the viewed state the latest one by appending a copy of it.
// Newer entries are kept, so the restore itself can be undone.
func (h History[S]) Restore(w *Wrapper[S], scope env.Env) (*Wrapper[S], error) {
	if w.Mode.Kind != Viewing {
		return w, nil
	}
	if w.Mode.Position >= len(w.Log) {
		return h.Close(w), nil
	}
	pos := w.Mode.Position
	log, err := h.materialize(w.Log, pos, scope)
	if err != nil {
		return w, err
	}
	restored := Entry[S]{Time: h.now(), State: log[pos].State, Prev: log[pos].Time}
	appended := make([]Entry[S], len(log), len(log)+1)
	copy(appended, log)
	return w.with(Mode{Kind: Current}, append(appended, restored)), nil
}

// Compact thins the log as of now. Restores append without compacting, so
// hosts call this to bound logs that grew that way. It does nothing while
// viewing, since positions would shift under the viewer.
func (h History[S]) Compact(w *Wrapper[S]) *Wrapper[S] {
	if w.Mode.Kind == Viewing {
		return w
	}
	log := CompactWith(w.Log, h.now(), h.Divisor)
	if len(log) == len(w.Log) {
		return w
	}
	return w.with(w.Mode, log)
}

// View returns the state being looked at.
func (h History[S]) View(w *Wrapper[S], scope env.Env) (S, error) {
	src := w.source()
	if w.Log[src].Loaded() {
		return w.Log[src].State, nil
	}
	log, err := h.materialize(w.Log, src, scope)
	if err != nil {
		var zero S
		return zero, err
	}
	return log[src].State, nil
}
