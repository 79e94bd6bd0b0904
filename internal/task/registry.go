package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownTask is returned when resolving an identifier nothing was
	// registered under. Callers treat this as a fatal configuration error
	// for the message carrying the identifier, not a retryable condition.
	ErrUnknownTask = errors.New("task: unknown task identifier")

	ErrRegistrySealed = errors.New("task: registry is sealed")
	ErrDuplicateTask  = errors.New("task: identifier already registered")
)

// Registry maps task identifiers to factories. Registration happens during
// process initialization, before any message is processed; after Seal the
// mapping is read-only.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	sealed    bool
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds an identifier to a factory. It fails after Seal and on
// duplicate identifiers; there is no runtime re-registration.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("task: empty task identifier")
	}
	if f == nil {
		return fmt.Errorf("task: nil factory for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %q: %w", name, ErrRegistrySealed)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateTask)
	}
	r.factories[name] = f
	return nil
}

// Seal freezes the registry. Called once after all factories are registered.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve produces a descriptor for the given identifier.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, fmt.Errorf("resolve %q: %w", name, ErrUnknownTask)
	}
	d := f()
	if d.Task == nil {
		return Descriptor{}, fmt.Errorf("resolve %q: factory returned descriptor with nil task", name)
	}
	return d, nil
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
