package editor

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/csicar/tables/internal/core/observability/log"
	"github.com/csicar/tables/internal/core/storage"
	"github.com/csicar/tables/pkg/concurrent"
	"github.com/csicar/tables/pkg/sequence"
)

// maxParallel bounds concurrent storage calls made by a workspace.
const maxParallel = 8

// Workspace keeps one session per open document key.
type Workspace[S any] struct {
	store      storage.Storage
	logger     log.Log
	newSession func(key string) *Session[S]

	mu       sync.RWMutex
	sessions map[string]*Session[S]
}

func NewWorkspace[S any](store storage.Storage, logger log.Log, newSession func(key string) *Session[S]) *Workspace[S] {
	return &Workspace[S]{
		store:      store,
		logger:     logger,
		newSession: newSession,
		sessions:   make(map[string]*Session[S]),
	}
}

// Documents lists the stored documents, leaving out backups.
func (w *Workspace[S]) Documents(ctx context.Context) ([]string, error) {
	keys, err := w.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return sequence.From(keys).Filter(func(key string) bool { return !IsBackupKey(key) }).Collect(), nil
}

// Open loads the sessions for keys that are not open yet, concurrently.
func (w *Workspace[S]) Open(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := storage.ValidateKey(key); err != nil {
			return err
		}
	}
	w.mu.RLock()
	missing := sequence.From(slices.Compact(slices.Sorted(slices.Values(keys)))).Filter(func(key string) bool {
		_, ok := w.sessions[key]
		return !ok
	}).Collect()
	w.mu.RUnlock()

	loaded, err := concurrent.Map(ctx, sequence.From(missing), maxParallel, func(ctx context.Context, key string) (*Session[S], error) {
		s := w.newSession(key)
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range loaded {
		if _, ok := w.sessions[s.Key()]; !ok {
			w.sessions[s.Key()] = s
		}
	}
	return nil
}

// Session returns the open session for key.
func (w *Workspace[S]) Session(key string) (*Session[S], bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[key]
	return s, ok
}

// Sessions returns the open sessions ordered by key.
func (w *Workspace[S]) Sessions() []*Session[S] {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Session[S], 0, len(w.sessions))
	for _, key := range slices.Sorted(maps.Keys(w.sessions)) {
		out = append(out, w.sessions[key])
	}
	return out
}

// SaveAll saves every open session and returns how many were written.
func (w *Workspace[S]) SaveAll(ctx context.Context) (int, error) {
	written, err := concurrent.Map(ctx, sequence.From(w.Sessions()), maxParallel, func(ctx context.Context, s *Session[S]) (bool, error) {
		return s.Save(ctx)
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ok := range written {
		if ok {
			n++
		}
	}
	return n, nil
}

// Run autosaves all sessions open at the time of the call until ctx is done.
func (w *Workspace[S]) Run(ctx context.Context, interval time.Duration) error {
	sessions := w.Sessions()
	w.logger.Info("autosave started", log.Int("sessions", len(sessions)), log.Duration("interval", interval))
	return concurrent.Concurrent(ctx, sequence.From(sessions), 0, func(ctx context.Context, s *Session[S]) error {
		return s.Run(ctx, interval)
	})
}

// Close saves all sessions and closes the store.
func (w *Workspace[S]) Close(ctx context.Context) error {
	_, err := w.SaveAll(ctx)
	if cerr := w.store.Close(); err == nil {
		err = cerr
	}
	return err
}
