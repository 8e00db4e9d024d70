package block

import (
	"fmt"
	"sort"
	"sync"

	"github.com/csicar/tables/internal/core/env"
)

// Registry maps stable type tags to block implementations.
type Registry struct {
	mu     sync.RWMutex
	blocks map[string]Block[any]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{blocks: make(map[string]Block[any])}
}

// Register binds tag to b, replacing any previous binding.
func (r *Registry) Register(tag string, b Block[any]) {
	r.mu.Lock()
	r.blocks[tag] = b
	r.mu.Unlock()
}

// Get returns the block registered under tag.
func (r *Registry) Get(tag string) (Block[any], error) {
	r.mu.RLock()
	b := r.blocks[tag]
	r.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("unknown block: %s", tag)
	}
	return b, nil
}

// Tags lists the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.blocks))
	for t := range r.blocks {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Env exposes the registered blocks as an environment, keyed by tag.
func (r *Registry) Env() env.Env {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make(map[string]any, len(r.blocks))
	for t, b := range r.blocks {
		values[t] = b
	}
	return env.Of(values)
}
