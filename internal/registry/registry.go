package registry

import (
	"fmt"
	"sync"

	"equityTriggerBot/internal/domain"
)

// Registry is the set of outstanding triggers, keyed by id. A mutex guards
// the map; readers take snapshots so a tick never iterates live state.
// Retirement wins over a stale snapshot: the scheduler re-checks each
// trigger's id against the registry before evaluating it.
type Registry struct {
	mu       sync.Mutex
	triggers map[string]*domain.Trigger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		triggers: make(map[string]*domain.Trigger),
	}
}

// Add inserts a trigger. Ids are generated, so a duplicate means a caller
// bug rather than a race.
func (r *Registry) Add(t *domain.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.triggers[t.ID]; exists {
		return fmt.Errorf("trigger %s already registered", t.ID)
	}
	t.Status = domain.TriggerActive
	r.triggers[t.ID] = t
	return nil
}

// Active returns copies of all active triggers. Order is unspecified.
func (r *Registry) Active() []*domain.Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Trigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		if t.Status == domain.TriggerActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// IsActive reports whether the id is present and not retired. The scheduler
// calls this mid-tick so a trigger retired after the snapshot was taken is
// never evaluated again.
func (r *Registry) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.triggers[id]
	return ok && t.Status == domain.TriggerActive
}

// Retire removes a trigger. Retiring an unknown or already-retired id is a
// no-op. Returns true when the call actually removed an active trigger.
func (r *Registry) Retire(id string, reason domain.RetireReason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.triggers[id]
	if !ok || t.Status == domain.TriggerRetired {
		return false
	}
	t.Status = domain.TriggerRetired
	delete(r.triggers, id)
	return true
}

// Clear retires every trigger at once. Used by auto-exit and shutdown.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.triggers)
	for id, t := range r.triggers {
		t.Status = domain.TriggerRetired
		delete(r.triggers, id)
	}
	return n
}

// Len returns the number of outstanding triggers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}
