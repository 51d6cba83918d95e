package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
)

// Registry manages strategy factories by name
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates a new strategy registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory, keyed by the name its instances report.
func (r *Registry) Register(f Factory) error {
	name := f().Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.factories[name] = f
	r.logger.Debug("strategy registered", zap.String("strategy", name))
	return nil
}

// MustRegister is Register that panics on duplicates.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns registered strategy names in sorted order
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

// New creates and initialises a fresh instance of the named strategy.
// Each call returns an independent instance, safe to use in parallel runs.
func (r *Registry) New(name string, cfg Config) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%s", name)
	}

	s := f()
	if err := s.Init(cfg); err != nil {
		r.logger.Warn("strategy init failed",
			zap.String("strategy", name),
			zap.Error(err),
		)
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy %s: %w", name, err))
	}
	return s, nil
}
