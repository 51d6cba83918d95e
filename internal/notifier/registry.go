package notifier

import (
	"context"
	"sort"
	"sync"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return core.Errorf(core.ErrConfigInvalid, "notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, core.Errorf(core.ErrNotFound, "notifier %s", name)
	}
	return n, nil
}

// GetAll returns all registered notifiers ordered by name
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// AlertNotifiers returns the registered notifiers for an alert evaluator.
func (r *Registry) AlertNotifiers() []alert.Notifier {
	all := r.GetAll()
	out := make([]alert.Notifier, len(all))
	for i, n := range all {
		out[i] = n
	}
	return out
}

// NotifyAllBatch sends alerts to all registered notifiers, in one call for
// notifiers that support batches.
func (r *Registry) NotifyAllBatch(ctx context.Context, alerts []core.RiskAlert) map[string]error {
	errs := make(map[string]error)
	if len(alerts) == 0 {
		return errs
	}
	for _, n := range r.GetAll() {
		if b, ok := n.(BatchNotifier); ok {
			if err := b.NotifyBatch(ctx, alerts); err != nil {
				errs[n.Name()] = err
			}
			continue
		}
		for _, a := range alerts {
			if err := n.Notify(ctx, a); err != nil {
				errs[n.Name()] = err
				break
			}
		}
	}
	return errs
}
