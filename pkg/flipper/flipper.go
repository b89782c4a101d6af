package flipper

import "context"

// Flipper is the application-facing facade (§6): `flipper[name] -> Feature`.
// It bundles an Adapter, an Instrumenter, and a group Registry, and hands out
// Feature values that share them.
type Flipper struct {
	adapter      Adapter
	instrumenter Instrumenter
	registry     *Registry
}

// Option configures a Flipper at construction.
type Option func(*Flipper)

// WithInstrumenter overrides the default no-op Instrumenter.
func WithInstrumenter(instrumenter Instrumenter) Option {
	return func(f *Flipper) { f.instrumenter = instrumenter }
}

// WithRegistry overrides the process-global default Registry with an
// explicitly injected one (§9 design note).
func WithRegistry(registry *Registry) Option {
	return func(f *Flipper) { f.registry = registry }
}

// New constructs a Flipper backed by adapter. Without WithInstrumenter, every
// operation is instrumented through a no-op sink; without WithRegistry, the
// process-global default registry is used.
func New(adapter Adapter, opts ...Option) *Flipper {
	f := &Flipper{
		adapter:      adapter,
		instrumenter: NoopInstrumenter{},
		registry:     defaultRegistry,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feature returns the named Feature. Features are created on demand and are
// stateless beyond their cached name (§3) — calling Feature twice with the
// same name yields observationally equivalent values.
func (f *Flipper) Feature(name string) *Feature {
	return newFeature(name, f.adapter, f.instrumenter, f.registry)
}

// Features lists every registered feature name.
func (f *Flipper) Features(ctx context.Context) (map[string]struct{}, error) {
	names, err := f.adapter.Features(ctx)
	if err != nil {
		return nil, newAdapterError("", err)
	}
	return names, nil
}

// Add registers a new feature name with the adapter.
func (f *Flipper) Add(ctx context.Context, name string) error {
	if err := f.adapter.Add(ctx, name); err != nil {
		return newAdapterError(name, err)
	}
	return nil
}

// Remove unregisters a feature name, wiping its gate values.
func (f *Flipper) Remove(ctx context.Context, name string) error {
	if err := f.adapter.Remove(ctx, name); err != nil {
		return newAdapterError(name, err)
	}
	return nil
}
