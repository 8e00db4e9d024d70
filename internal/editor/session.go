package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/events/bus"
	"github.com/csicar/tables/internal/core/history"
	"github.com/csicar/tables/internal/core/observability/log"
	"github.com/csicar/tables/internal/core/storage"
	"github.com/csicar/tables/pkg/sequence"
)

// step is one queued change to the hosted history.
type step[S any] struct {
	name  string
	event string
	apply func(w *history.Wrapper[S]) (*history.Wrapper[S], error)
	// done, if set, is closed once the step has been applied or has failed.
	done chan struct{}
}

// Session hosts one document: it owns the only mutable copy of its history,
// applies updates one at a time and persists the document under its key.
//
// Updates are queued and applied in call order by whichever goroutine is
// draining the queue. An update issued while another is being applied, from
// a block updater or an event handler, is applied after it.
type Session[S any] struct {
	id     string
	key    string
	block  history.Block[S]
	scope  env.Env
	store  storage.Storage
	events bus.EventBus
	logger log.Log
	clock  func() time.Time

	mu    sync.Mutex
	state *history.Wrapper[S]
	// saved is the hash of the serialized document last read or written.
	saved uint64

	qmu      sync.Mutex
	queue    *sequence.Queue[step[S]]
	draining bool
}

func NewSession[S any](key string, b history.Block[S], store storage.Storage, events bus.EventBus, logger log.Log) *Session[S] {
	id := uuid.NewString()
	return &Session[S]{
		id:     id,
		key:    key,
		block:  b,
		scope:  env.Empty(),
		store:  store,
		events: events,
		logger: logger.With(log.String("session", id), log.String("key", key)),
		clock:  time.Now,
		state:  b.Init(),
		queue:  sequence.NewQueue[step[S]](),
	}
}

func (s *Session[S]) ID() string  { return s.id }
func (s *Session[S]) Key() string { return s.key }

// Scope is the environment the document is computed in.
func (s *Session[S]) Scope() env.Env { return s.scope }

// State returns the latest state.
func (s *Session[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Current()
}

// View returns the state being looked at, which differs from State while
// browsing history.
func (s *Session[S]) View() (S, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block.View(s.state, s.scope)
}

func (s *Session[S]) Result() block.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block.Result(s.state)
}

func (s *Session[S]) Mode() history.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode
}

// History returns the log. Entries must not be modified.
func (s *Session[S]) History() []history.Entry[S] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Log
}

// Update commits transform applied to the state being looked at. When
// another goroutine is draining the queue, Update returns as soon as the
// transform is queued and a following State may not reflect it yet; use
// UpdateWait to block until it is applied.
func (s *Session[S]) Update(transform func(S) S) {
	s.enqueue(s.commitStep(transform, nil))
}

// UpdateWait is Update that returns once transform has been applied, or with
// ctx's error when ctx is done first. The transform stays queued in that
// case. It must not be called from a block updater or an event handler of
// this session, since the queue is drained by their caller.
func (s *Session[S]) UpdateWait(ctx context.Context, transform func(S) S) error {
	done := make(chan struct{})
	s.enqueue(s.commitStep(transform, done))
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session[S]) commitStep(transform func(S) S, done chan struct{}) step[S] {
	return step[S]{name: "update", event: EventCommitted, done: done, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Commit(w, transform, s.scope)
	}}
}

// Updater returns an updater that commits through the session. Pass it to
// block operations so that changes their blocks initiate later are recorded.
func (s *Session[S]) Updater() block.Updater[S] {
	return s.Update
}

func (s *Session[S]) wrapperUpdater() block.Updater[*history.Wrapper[S]] {
	return func(transform func(*history.Wrapper[S]) *history.Wrapper[S]) {
		s.enqueue(step[S]{name: "block", event: EventCommitted, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
			return transform(w), nil
		}})
	}
}

// Recompute re-derives the latest state, e.g. after the library changed.
func (s *Session[S]) Recompute() {
	s.enqueue(step[S]{name: "recompute", apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Recompute(w, s.wrapperUpdater(), s.scope), nil
	}})
}

func (s *Session[S]) OpenHistory() {
	s.enqueue(step[S]{name: "open", event: EventHistoryOpened, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Open(w, s.scope)
	}})
}

func (s *Session[S]) MoveHistory(delta int) {
	s.enqueue(step[S]{name: "move", event: EventHistoryMoved, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Move(w, delta, s.scope)
	}})
}

func (s *Session[S]) CloseHistory() {
	s.enqueue(step[S]{name: "close", event: EventHistoryClosed, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Close(w), nil
	}})
}

func (s *Session[S]) RestoreHistory() {
	s.enqueue(step[S]{name: "restore", event: EventHistoryRestored, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Restore(w, s.scope)
	}})
}

func (s *Session[S]) Compact() {
	s.enqueue(step[S]{name: "compact", event: EventCompacted, apply: func(w *history.Wrapper[S]) (*history.Wrapper[S], error) {
		return s.block.Compact(w), nil
	}})
}

func (s *Session[S]) enqueue(st step[S]) {
	s.qmu.Lock()
	s.queue.Enqueue(st)
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	s.qmu.Unlock()

	for {
		s.qmu.Lock()
		next, ok := s.queue.Dequeue()
		if !ok {
			s.draining = false
			s.qmu.Unlock()
			return
		}
		s.qmu.Unlock()

		s.mu.Lock()
		event := s.run(next)
		s.mu.Unlock()
		if event != nil {
			s.publish(*event)
		}
		if next.done != nil {
			close(next.done)
		}
	}
}

// run applies st to the state. A failing or panicking step leaves the state
// as it was. Callers hold mu.
func (s *Session[S]) run(st step[S]) (event *bus.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("update panicked", log.String("step", st.name), log.Any("panic", r))
			event = s.failed(st.name, fmt.Errorf("panic: %v", r))
		}
	}()
	next, err := st.apply(s.state)
	if err != nil {
		s.logger.Warn("update failed", log.String("step", st.name), log.Error(err))
		return s.failed(st.name, err)
	}
	if next == s.state || st.event == "" {
		s.state = next
		return nil
	}
	s.state = next
	e := s.event(st.event, map[string]any{
		"mode":     next.Mode.Kind.String(),
		"position": next.Mode.Position,
		"entries":  next.Len(),
	})
	return &e
}

func (s *Session[S]) failed(name string, err error) *bus.Event {
	e := s.event(EventUpdateFailed, map[string]any{"step": name, "error": err.Error()})
	return &e
}

func (s *Session[S]) event(typ string, data map[string]any) bus.Event {
	if data == nil {
		data = map[string]any{}
	}
	data["key"] = s.key
	return bus.Event{Type: typ, Source: s.id, Time: s.clock(), Data: data}
}

func (s *Session[S]) publish(e bus.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(e); err != nil {
		s.logger.Warn("event handler failed", log.String("event", e.Type), log.Error(err))
	}
}

func (s *Session[S]) reset(w *history.Wrapper[S], saved uint64) {
	s.mu.Lock()
	s.state = w
	s.saved = saved
	s.mu.Unlock()
}

// Load replaces the session's history with the stored document. A missing
// document starts a new one. A document that fails validation is copied to
// a backup key and replaced by a new document.
func (s *Session[S]) Load(ctx context.Context) error {
	data, err := s.store.Read(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.reset(s.block.Init(), 0)
		s.logger.Info("starting new document")
		s.publish(s.event(EventLoaded, map[string]any{"created": true}))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", s.key, err)
	}

	w, err := s.block.FromJSON(data, s.wrapperUpdater(), s.scope)
	var verr *block.ValidationError
	if errors.As(err, &verr) {
		return s.recoverInvalid(ctx, data, verr)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", s.key, err)
	}
	s.reset(w, xxhash.Sum64(data))
	s.logger.Info("document loaded", log.Int("entries", w.Len()))
	s.publish(s.event(EventLoaded, map[string]any{"created": false, "entries": w.Len()}))
	return nil
}

func (s *Session[S]) recoverInvalid(ctx context.Context, data []byte, verr *block.ValidationError) error {
	backup := BackupKey(s.key, s.clock())
	if err := s.store.Create(ctx, backup, data); err != nil {
		return fmt.Errorf("back up %s: %w", s.key, err)
	}
	s.reset(s.block.Init(), 0)
	s.logger.Warn("stored document is invalid, starting over",
		log.String("backup", backup), log.String("path", verr.Path), log.Error(verr))
	s.publish(s.event(EventRecovered, map[string]any{
		"backup": backup,
		"path":   verr.Path,
		"error":  verr.Error(),
	}))
	return nil
}

// Save writes the document unless it is unchanged since it was last read or
// written. It reports whether anything was written.
func (s *Session[S]) Save(ctx context.Context) (bool, error) {
	s.mu.Lock()
	data, err := s.block.ToJSON(s.state)
	saved := s.saved
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("serialize %s: %w", s.key, err)
	}

	sum := xxhash.Sum64(data)
	if sum == saved {
		return false, nil
	}
	if err := storage.Put(ctx, s.store, s.key, data); err != nil {
		return false, fmt.Errorf("save %s: %w", s.key, err)
	}
	s.mu.Lock()
	s.saved = sum
	s.mu.Unlock()
	s.logger.Debug("document saved", log.Int("bytes", len(data)))
	s.publish(s.event(EventSaved, map[string]any{"bytes": len(data)}))
	return true, nil
}

// Import replaces the document with data, the JSON of a bare document
// without history. The import is committed like any other edit.
func (s *Session[S]) Import(data json.RawMessage) error {
	state, err := s.block.Inner.FromJSON(data, s.Updater(), s.scope)
	if err != nil {
		return fmt.Errorf("import %s: %w", s.key, err)
	}
	s.Update(func(S) S { return state })
	return nil
}

// Export returns the JSON of the latest state without history.
func (s *Session[S]) Export() (json.RawMessage, error) {
	return s.block.Inner.ToJSON(s.State())
}

// Run autosaves every interval until ctx is done and then saves once more.
// A zero interval only saves on shutdown.
func (s *Session[S]) Run(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			_, err := s.Save(context.WithoutCancel(ctx))
			return err
		case <-tick:
			if _, err := s.Save(ctx); err != nil {
				s.logger.Error("autosave failed", log.Error(err))
			}
		}
	}
}
