package checker

import (
	"sort"
	"sync"

	"github.com/hmatter/ingot/internal/keywords"
)

// Factory constructs the checker and error handler pair for one job's
// configuration record.
type Factory func(kw *keywords.Keywords) (Checker, ErrorHandler, error)

// Registry maps program names to their capability-set factories. Adding a
// new simulation-program backend means registering one more factory here.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a factory under a program name. Registering the same
// name twice is a programmer error and panics.
func (r *Registry) Register(program string, factory Factory) {
	if program == "" || factory == nil {
		panic("checker: program name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[program]; exists {
		panic("checker: " + program + " already registered")
	}
	r.factories[program] = factory
}

// Resolve constructs the capability set for a configuration record. An
// unrecognized program name is a hard configuration error.
func (r *Registry) Resolve(kw *keywords.Keywords) (Checker, ErrorHandler, error) {
	r.mu.RLock()
	factory, ok := r.factories[kw.Program]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, NewConfigurationError("Registry.Resolve",
			"program %q not recognized (known: %v)", kw.Program, r.Programs())
	}
	return factory(kw)
}

// Programs returns the sorted list of registered program names.
func (r *Registry) Programs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	programs := make([]string, 0, len(r.factories))
	for name := range r.factories {
		programs = append(programs, name)
	}
	sort.Strings(programs)
	return programs
}
