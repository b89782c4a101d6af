// Package memoryadapter is the in-process reference Adapter: a map guarded
// by a mutex, linearizable within one process and gone on restart. It's
// what the core's invariants (§4.5) are tested against, grounded on the
// teacher's map-of-struct bookkeeping in decision/billing.Engine.
package memoryadapter

import (
	"context"
	"sync"

	"github.com/larouxn/flipper/pkg/flipper"
)

// Adapter is an in-memory, mutex-guarded flipper.Adapter.
type Adapter struct {
	mu       sync.RWMutex
	features map[string]struct{}
	values   map[string]flipper.GateValues
}

// New constructs an empty in-memory Adapter.
func New() *Adapter {
	return &Adapter{
		features: make(map[string]struct{}),
		values:   make(map[string]flipper.GateValues),
	}
}

var _ flipper.Adapter = (*Adapter)(nil)

// Features implements flipper.Adapter.
func (a *Adapter) Features(context.Context) (map[string]struct{}, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]struct{}, len(a.features))
	for name := range a.features {
		out[name] = struct{}{}
	}
	return out, nil
}

// Add implements flipper.Adapter.
func (a *Adapter) Add(_ context.Context, featureName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.features[featureName] = struct{}{}
	if _, ok := a.values[featureName]; !ok {
		a.values[featureName] = flipper.DefaultGateValues()
	}
	return nil
}

// Remove implements flipper.Adapter.
func (a *Adapter) Remove(_ context.Context, featureName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.features, featureName)
	delete(a.values, featureName)
	return nil
}

// Clear implements flipper.Adapter.
func (a *Adapter) Clear(_ context.Context, featureName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[featureName] = flipper.DefaultGateValues()
	return nil
}

// Get implements flipper.Adapter.
func (a *Adapter) Get(_ context.Context, featureName string) (flipper.GateValues, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.getLocked(featureName), nil
}

func (a *Adapter) getLocked(featureName string) flipper.GateValues {
	values, ok := a.values[featureName]
	if !ok {
		return flipper.DefaultGateValues()
	}
	return values.Clone()
}

// GetMulti implements flipper.Adapter.
func (a *Adapter) GetMulti(_ context.Context, featureNames []string) (map[string]flipper.GateValues, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]flipper.GateValues, len(featureNames))
	for _, name := range featureNames {
		out[name] = a.getLocked(name)
	}
	return out, nil
}

// GetAll implements flipper.Adapter.
func (a *Adapter) GetAll(_ context.Context) (map[string]flipper.GateValues, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]flipper.GateValues, len(a.features))
	for name := range a.features {
		out[name] = a.getLocked(name)
	}
	return out, nil
}

// Enable implements flipper.Adapter.
func (a *Adapter) Enable(_ context.Context, featureName string, gate flipper.GateName, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := flipper.ApplyEnable(a.getLockedOrDefault(featureName), gate, value)
	if err != nil {
		return err
	}
	a.values[featureName] = next
	a.features[featureName] = struct{}{}
	return nil
}

// Disable implements flipper.Adapter.
func (a *Adapter) Disable(_ context.Context, featureName string, gate flipper.GateName, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := flipper.ApplyDisable(a.getLockedOrDefault(featureName), gate, value)
	if err != nil {
		return err
	}
	a.values[featureName] = next
	return nil
}

func (a *Adapter) getLockedOrDefault(featureName string) flipper.GateValues {
	values, ok := a.values[featureName]
	if !ok {
		return flipper.DefaultGateValues()
	}
	return values
}
