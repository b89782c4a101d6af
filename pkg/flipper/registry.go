package flipper

import (
	"sort"
	"sync"

	"github.com/xrash/smetrics"
)

// Group is a named predicate over actors, registered process-wide (§3).
// Identity is by name.
type Group struct {
	name      string
	predicate func(Actor) bool
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Match runs the group's predicate. A nil actor is passed through — most
// predicates will treat it as non-matching, but that's the predicate's call.
func (g *Group) Match(actor Actor) bool {
	if g == nil || g.predicate == nil {
		return false
	}
	return g.predicate(actor)
}

// Registry is the process-global map from group name to predicate (§2, §9).
// Safe for concurrent reads and for registrations interleaved with
// evaluation (§5).
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

// NewRegistry constructs an empty registry. Applications typically keep one
// process-wide instance and share it across every Flipper/Feature.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

// Register appends-or-replaces the named group's predicate (§6 Registry
// API).
func (r *Registry) Register(name string, predicate func(Actor) bool) *Group {
	group := &Group{name: name, predicate: predicate}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = group
	return group
}

// Lookup resolves a group name. Unregistered names return (nil, false);
// callers evaluating a gate treat that as "never matches" (§4.2.3), while
// callers mutating a feature treat it as a caller-visible error (§7).
func (r *Registry) Lookup(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[name]
	return g, ok
}

// Group returns the named group, or nil if unregistered (§6).
func (r *Registry) Group(name string) *Group {
	g, _ := r.Lookup(name)
	return g
}

// Groups returns every registered group, name-sorted for deterministic
// iteration.
func (r *Registry) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// suggest finds the closest registered group name to an unrecognized one,
// using Jaro-Winkler similarity, so a mutation-time "unknown group" error
// can offer a "did you mean" hint instead of leaving the operator to guess
// at a typo (§7, §9).
func (r *Registry) suggest(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best string
	var bestScore float64
	for candidate := range r.groups {
		score := smetrics.JaroWinkler(name, candidate, 0.7, 4)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore < 0.7 {
		return "", false
	}
	return best, true
}

// defaultRegistry is the process-global instance the package-level
// Register/RegisteredGroup/RegisteredGroups helpers and Flipper.New operate
// on by default (§2, §9). Applications preferring explicit dependency
// injection can construct their own Registry and pass it to New via
// WithRegistry instead.
var defaultRegistry = NewRegistry()

// Register registers a group on the process-global registry.
func Register(name string, predicate func(Actor) bool) *Group {
	return defaultRegistry.Register(name, predicate)
}

// RegisteredGroup looks up a group on the process-global registry.
func RegisteredGroup(name string) *Group {
	return defaultRegistry.Group(name)
}

// RegisteredGroups lists every group on the process-global registry.
func RegisteredGroups() []*Group {
	return defaultRegistry.Groups()
}
