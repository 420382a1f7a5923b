// Package registry manages the executors the host's business-logic layer
// injects per intent.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tellerflow/tellerflow/pkg/ports"
)

// Registry manages the available executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ports.Executor
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]ports.Executor),
	}
}

// Register adds an executor for an intent.
// If an executor for the same intent exists, it is overwritten.
func (r *Registry) Register(intent string, executor ports.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[intent] = executor
}

// Lookup returns the executor for an intent.
func (r *Registry) Lookup(intent string) (ports.Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[intent]
	return executor, ok
}

// Execute looks up the executor for an intent and runs it.
// Returns an error if no executor is registered for the intent.
func (r *Registry) Execute(ctx context.Context, intent string, slots map[string]any, userID string) (any, error) {
	executor, ok := r.Lookup(intent)
	if !ok {
		return nil, fmt.Errorf("no executor registered for intent: %s", intent)
	}
	return executor.Execute(ctx, intent, slots, userID)
}

// Intents returns the registered intent names, sorted.
func (r *Registry) Intents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intents := make([]string, 0, len(r.executors))
	for intent := range r.executors {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents
}
