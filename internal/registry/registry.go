// Package registry binds skill definitions from a manifest to their feature
// builders and inference runners, and indexes trigger phrases for lookup.
package registry

import (
	"sort"
	"strings"
	"sync"

	"aria/internal/features"
)

// Runner executes inference for a skill over an already-built feature vector.
type Runner func(feats []float64) ([]float64, error)

// Definition describes one skill entry from the manifest.
type Definition struct {
	ID       string
	Triggers []string // normalized trigger phrases
	Builder  string   // feature builder name
}

// Registration is a definition bound to its builder and inference runner.
// Registrations are owned by the Registry; the router borrows them per call.
type Registration struct {
	Definition Definition
	Build      features.Builder
	Run        Runner
}

// Registry holds skill registrations keyed by id plus a trigger index.
//
// Population happens once, single-threaded, before routing begins; the lock
// exists so later administrative mutation cannot race concurrent lookups.
type Registry struct {
	mu       sync.RWMutex
	skills   map[string]*Registration
	triggers map[string]map[string]struct{} // normalized trigger → id set
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		skills:   make(map[string]*Registration),
		triggers: make(map[string]map[string]struct{}),
	}
}

// NormalizeTrigger normalizes a trigger phrase for indexing and lookup.
func NormalizeTrigger(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

// Register adds or replaces a skill registration. Trigger phrases are
// normalized before indexing; empty phrases are dropped.
func (r *Registry) Register(reg *Registration) {
	if reg == nil || reg.Definition.ID == "" {
		return
	}
	id := reg.Definition.ID

	r.mu.Lock()
	defer r.mu.Unlock()

	// Replacing an existing registration must not leave stale trigger entries.
	if _, exists := r.skills[id]; exists {
		r.removeTriggersLocked(id)
	}

	normalized := make([]string, 0, len(reg.Definition.Triggers))
	for _, phrase := range reg.Definition.Triggers {
		key := NormalizeTrigger(phrase)
		if key == "" {
			continue
		}
		normalized = append(normalized, key)
		ids, ok := r.triggers[key]
		if !ok {
			ids = make(map[string]struct{})
			r.triggers[key] = ids
		}
		ids[id] = struct{}{}
	}
	reg.Definition.Triggers = normalized
	r.skills[id] = reg
}

// Unregister removes a skill and every trigger index entry it contributed.
// Triggers whose id-set becomes empty are deleted outright, never left
// dangling. Returns false when the id was not registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[id]; !exists {
		return false
	}
	r.removeTriggersLocked(id)
	delete(r.skills, id)
	return true
}

// removeTriggersLocked strips id from the trigger index. Caller holds r.mu.
func (r *Registry) removeTriggersLocked(id string) {
	for key, ids := range r.triggers {
		if _, ok := ids[id]; !ok {
			continue
		}
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.triggers, key)
		}
	}
}

// Lookup returns the registration for a skill id.
func (r *Registry) Lookup(id string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.skills[id]
	return reg, ok
}

// ByTrigger returns every skill id registered under the normalized phrase.
// Multiple skills may legitimately share a trigger.
func (r *Registry) ByTrigger(phrase string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.triggers[NormalizeTrigger(phrase)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListSkills returns the currently registered id set, sorted.
func (r *Registry) ListSkills() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.skills))
	for id := range r.skills {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TriggerCount returns the number of distinct indexed trigger phrases.
func (r *Registry) TriggerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.triggers)
}
