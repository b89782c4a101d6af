package flipper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is a package-level, unconfigured-by-default OTel tracer (§ SPEC_FULL
// Domain Stack). With no SDK/exporter installed by the caller it's a
// zero-cost no-op, exactly like the teacher's own unconfigured otel pull.
var tracer = otel.Tracer("github.com/larouxn/flipper")

// Feature is the orchestrator: a name, an adapter handle, an instrumenter
// handle, and the mutation/evaluation verbs that operate through them
// (§2, §4). Feature is a thin value — identity is its name, and two Feature
// values with equal names sharing an adapter are observationally equivalent
// (§3).
type Feature struct {
	name         string
	adapter      Adapter
	instrumenter Instrumenter
	registry     *Registry
}

func newFeature(name string, adapter Adapter, instrumenter Instrumenter, registry *Registry) *Feature {
	return &Feature{name: name, adapter: adapter, instrumenter: instrumenter, registry: registry}
}

// Name returns the feature's name.
func (f *Feature) Name() string { return f.name }

// Enabled decides whether the feature is on for the given actors (§4.1).
// Called with no actors, it answers the actor-independent gates only
// (boolean, percentage-of-time). Called with several, it answers true if
// ANY actor would be enabled by ANY gate — the "any-actor semantics" of §9's
// open question.
func (f *Feature) Enabled(ctx context.Context, actors ...Actor) (bool, error) {
	ctx, span := tracer.Start(ctx, "flipper.enabled", trace.WithAttributes(
		attribute.String("feature_name", f.name),
	))
	defer span.End()

	values, err := f.adapter.Get(ctx, f.name)
	if err != nil {
		return false, newAdapterError(f.name, err)
	}

	checks := actors
	if len(checks) == 0 {
		checks = []Actor{nil}
	}

	enabled := false
	for _, actor := range checks {
		if f.evaluateGates(values, actor) {
			enabled = true
			break
		}
	}

	span.SetAttributes(attribute.Bool("result", enabled))
	instrument(ctx, f.instrumenter, Event{
		FeatureName: f.name,
		Operation:   "enabled?",
		Result:      enabled,
		Actors:      actors,
	})
	return enabled, nil
}

func (f *Feature) evaluateGates(values GateValues, actor Actor) bool {
	ctx := evalContext{featureName: f.name, actor: actor, registry: f.registry}
	for _, name := range gateOrder {
		gate := gateFor(name)
		if gate.IsDefault(values) {
			continue
		}
		if gate.Open(values, ctx) {
			return true
		}
	}
	return false
}

// GateValues returns the feature's current merged gate state (§6).
func (f *Feature) GateValues(ctx context.Context) (GateValues, error) {
	values, err := f.adapter.Get(ctx, f.name)
	if err != nil {
		return GateValues{}, newAdapterError(f.name, err)
	}
	return values, nil
}

// State classifies the feature as on/off/conditional (§3, §6).
func (f *Feature) State(ctx context.Context) (State, error) {
	values, err := f.GateValues(ctx)
	if err != nil {
		return "", err
	}
	return values.state(), nil
}

// On reports whether State == on.
func (f *Feature) On(ctx context.Context) (bool, error) {
	state, err := f.State(ctx)
	return state == StateOn, err
}

// Off reports whether State == off.
func (f *Feature) Off(ctx context.Context) (bool, error) {
	state, err := f.State(ctx)
	return state == StateOff, err
}

// Conditional reports whether State == conditional.
func (f *Feature) Conditional(ctx context.Context) (bool, error) {
	state, err := f.State(ctx)
	return state == StateConditional, err
}

// GateFor maps a mutation-input value to the Gate that would handle it
// (§6), without touching the adapter.
func (f *Feature) GateFor(thing any) (Gate, error) {
	name, err := gateNameFor(thing)
	if err != nil {
		return nil, err
	}
	return gateFor(name), nil
}

// EnabledGates returns the gates whose stored value is not at default.
func (f *Feature) EnabledGates(ctx context.Context) ([]Gate, error) {
	values, err := f.GateValues(ctx)
	if err != nil {
		return nil, err
	}
	var out []Gate
	for _, name := range gateOrder {
		gate := gateFor(name)
		if !gate.IsDefault(values) {
			out = append(out, gate)
		}
	}
	return out, nil
}

// DisabledGates returns the gates whose stored value is at default.
func (f *Feature) DisabledGates(ctx context.Context) ([]Gate, error) {
	values, err := f.GateValues(ctx)
	if err != nil {
		return nil, err
	}
	var out []Gate
	for _, name := range gateOrder {
		gate := gateFor(name)
		if gate.IsDefault(values) {
			out = append(out, gate)
		}
	}
	return out, nil
}

// EnabledGateNames is EnabledGates, projected to names.
func (f *Feature) EnabledGateNames(ctx context.Context) ([]GateName, error) {
	gates, err := f.EnabledGates(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]GateName, len(gates))
	for i, g := range gates {
		names[i] = g.Name()
	}
	return names, nil
}

// DisabledGateNames is DisabledGates, projected to names.
func (f *Feature) DisabledGateNames(ctx context.Context) ([]GateName, error) {
	gates, err := f.DisabledGates(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]GateName, len(gates))
	for i, g := range gates {
		names[i] = g.Name()
	}
	return names, nil
}

// --- Mutation verbs (§4.3, §4.4) ---

// Enable, with no argument, turns the boolean kill-switch on. With one
// argument, it routes by the argument's runtime type (§4.3, §9).
func (f *Feature) Enable(ctx context.Context, thing ...any) error {
	if len(thing) == 0 {
		return f.EnableBoolean(ctx)
	}
	return f.route(ctx, thing[0])
}

// Disable, with no argument, resets every gate to its default via
// Adapter.Clear (§4.3).
func (f *Feature) Disable(ctx context.Context) error {
	if err := f.adapter.Clear(ctx, f.name); err != nil {
		return newAdapterError(f.name, err)
	}
	instrument(ctx, f.instrumenter, Event{FeatureName: f.name, Operation: "disable", Result: true})
	return nil
}

func (f *Feature) route(ctx context.Context, thing any) error {
	switch t := thing.(type) {
	case bool:
		if t {
			return f.EnableBoolean(ctx)
		}
		return f.DisableBoolean(ctx)
	case Boolean:
		if t.Enabled {
			return f.EnableBoolean(ctx)
		}
		return f.DisableBoolean(ctx)
	case string:
		return f.EnableGroup(ctx, t)
	case GroupRef:
		return f.EnableGroup(ctx, t.Name)
	case *Group:
		return f.EnableGroup(ctx, t.Name())
	case PercentageOfActors:
		return f.EnablePercentageOfActors(ctx, t.Value)
	case PercentageOfTime:
		return f.EnablePercentageOfTime(ctx, t.Value)
	case *Expression:
		return f.EnableExpression(ctx, t)
	default:
		if actor, ok := thing.(Actor); ok {
			return f.EnableActor(ctx, actor)
		}
		return &Error{
			Code:        ErrCodeFeatureNotFound,
			Message:     fmt.Sprintf("flipper: enable() does not know how to route %T", thing),
			Severity:    SeverityError,
			FeatureName: f.name,
		}
	}
}

// EnableBoolean turns the boolean kill-switch on.
func (f *Feature) EnableBoolean(ctx context.Context) error {
	return f.mutate(ctx, "enable_boolean", GateBoolean, true, func() error {
		return f.adapter.Enable(ctx, f.name, GateBoolean, true)
	})
}

// DisableBoolean turns the boolean kill-switch off.
func (f *Feature) DisableBoolean(ctx context.Context) error {
	return f.mutate(ctx, "disable_boolean", GateBoolean, false, func() error {
		return f.adapter.Disable(ctx, f.name, GateBoolean, false)
	})
}

// EnableActor adds an actor id to the actor gate's set (§4.2.2).
func (f *Feature) EnableActor(ctx context.Context, actor Actor) error {
	id := actorID(actor)
	return f.mutate(ctx, "enable_actor", GateActor, id, func() error {
		if id == "" {
			return nil
		}
		return f.adapter.Enable(ctx, f.name, GateActor, id)
	})
}

// DisableActor removes an actor id from the actor gate's set. Disabling a
// non-present actor is a no-op success (§4.2.2).
func (f *Feature) DisableActor(ctx context.Context, actor Actor) error {
	id := actorID(actor)
	return f.mutate(ctx, "disable_actor", GateActor, id, func() error {
		if id == "" {
			return nil
		}
		return f.adapter.Disable(ctx, f.name, GateActor, id)
	})
}

// EnableGroup adds a registered group's name to the group gate's set. The
// admin path rejects unregistered group names (§4.2.3, §7).
func (f *Feature) EnableGroup(ctx context.Context, name string) error {
	if f.registry == nil || f.registry.Group(name) == nil {
		err := newUnknownGroupError(f.name, name)
		if f.registry != nil {
			if suggestion, ok := f.registry.suggest(name); ok {
				err.Message = fmt.Sprintf("%s (did you mean %q?)", err.Message, suggestion)
			}
		}
		return err
	}
	return f.mutate(ctx, "enable_group", GateGroup, name, func() error {
		return f.adapter.Enable(ctx, f.name, GateGroup, name)
	})
}

// DisableGroup removes a name from the group gate's set. Disabling an
// unregistered or absent name is a no-op success.
func (f *Feature) DisableGroup(ctx context.Context, name string) error {
	return f.mutate(ctx, "disable_group", GateGroup, name, func() error {
		return f.adapter.Disable(ctx, f.name, GateGroup, name)
	})
}

// EnablePercentageOfActors sets the rollout percentage (§4.2.4). Values
// outside [0, 100] are rejected (§7).
func (f *Feature) EnablePercentageOfActors(ctx context.Context, percentage int) error {
	if !validPercentage(percentage) {
		return newInvalidPercentageError(f.name, percentage)
	}
	return f.mutate(ctx, "enable_percentage_of_actors", GatePercentageOfActors, percentage, func() error {
		return f.adapter.Enable(ctx, f.name, GatePercentageOfActors, percentage)
	})
}

// DisablePercentageOfActors resets the rollout percentage to 0.
func (f *Feature) DisablePercentageOfActors(ctx context.Context) error {
	return f.mutate(ctx, "disable_percentage_of_actors", GatePercentageOfActors, 0, func() error {
		return f.adapter.Disable(ctx, f.name, GatePercentageOfActors, 0)
	})
}

// EnablePercentageOfTime sets the time-based rollout percentage (§4.2.5).
func (f *Feature) EnablePercentageOfTime(ctx context.Context, percentage int) error {
	if !validPercentage(percentage) {
		return newInvalidPercentageError(f.name, percentage)
	}
	return f.mutate(ctx, "enable_percentage_of_time", GatePercentageOfTime, percentage, func() error {
		return f.adapter.Enable(ctx, f.name, GatePercentageOfTime, percentage)
	})
}

// DisablePercentageOfTime resets the time-based rollout percentage to 0.
func (f *Feature) DisablePercentageOfTime(ctx context.Context) error {
	return f.mutate(ctx, "disable_percentage_of_time", GatePercentageOfTime, 0, func() error {
		return f.adapter.Disable(ctx, f.name, GatePercentageOfTime, 0)
	})
}

// EnableExpression replaces the stored expression wholesale.
func (f *Feature) EnableExpression(ctx context.Context, expr *Expression) error {
	return f.mutate(ctx, "enable_expression", GateExpression, expr, func() error {
		return f.adapter.Enable(ctx, f.name, GateExpression, expr)
	})
}

// DisableExpression clears the stored expression.
func (f *Feature) DisableExpression(ctx context.Context) error {
	return f.mutate(ctx, "disable_expression", GateExpression, nil, func() error {
		return f.adapter.Disable(ctx, f.name, GateExpression, nil)
	})
}

// AddExpression is monotonic-OR composition (§4.4): if no expression is
// present, expr becomes the expression; if the current expression is
// Any(args...), expr is appended to it; otherwise the current expression is
// wrapped into Any(current, expr). Operators can only accrete rules this
// way, never narrow the enabled set by accident.
func (f *Feature) AddExpression(ctx context.Context, expr *Expression) error {
	values, err := f.GateValues(ctx)
	if err != nil {
		return err
	}
	var next *Expression
	switch {
	case values.Expression == nil:
		next = expr
	case values.Expression.op == OpAny:
		next = Any(append(append([]*Expression{}, values.Expression.args...), expr)...)
	default:
		next = Any(values.Expression, expr)
	}
	return f.EnableExpression(ctx, next)
}

// RemoveExpression narrows the stored expression (§4.4). If the current
// expression is Any(args...), the first AST-equal arg is removed; if the
// current expression equals expr outright, it's replaced with an empty
// Any() (always false); otherwise the current expression is wrapped into
// Any(current), a no-op in effect. A missing expression is a no-op.
func (f *Feature) RemoveExpression(ctx context.Context, expr *Expression) error {
	values, err := f.GateValues(ctx)
	if err != nil {
		return err
	}
	if values.Expression == nil {
		return nil
	}
	var next *Expression
	switch {
	case values.Expression.op == OpAny:
		next = Any(removeFirstEqual(values.Expression.args, expr)...)
	case values.Expression.Equal(expr):
		next = Any()
	default:
		next = Any(values.Expression)
	}
	return f.EnableExpression(ctx, next)
}

func removeFirstEqual(args []*Expression, target *Expression) []*Expression {
	out := make([]*Expression, 0, len(args))
	removed := false
	for _, a := range args {
		if !removed && a.Equal(target) {
			removed = true
			continue
		}
		out = append(out, a)
	}
	return out
}

// mutate performs an adapter write and, on success, emits the
// instrumentation event every mutation verb produces (§4.6).
func (f *Feature) mutate(ctx context.Context, operation string, gate GateName, thing any, write func() error) error {
	ctx, span := tracer.Start(ctx, "flipper."+operation, trace.WithAttributes(
		attribute.String("feature_name", f.name),
	))
	defer span.End()

	if err := write(); err != nil {
		return newAdapterError(f.name, err)
	}
	instrument(ctx, f.instrumenter, Event{
		FeatureName: f.name,
		Operation:   operation,
		Result:      true,
		GateName:    gate,
		Thing:       thing,
	})
	return nil
}

// gateNameFor maps a mutation-input value to its gate name, used by GateFor.
func gateNameFor(thing any) (GateName, error) {
	switch t := thing.(type) {
	case bool, Boolean:
		return GateBoolean, nil
	case string, GroupRef, *Group:
		return GateGroup, nil
	case PercentageOfActors:
		return GatePercentageOfActors, nil
	case PercentageOfTime:
		return GatePercentageOfTime, nil
	case *Expression:
		return GateExpression, nil
	default:
		if _, ok := thing.(Actor); ok {
			return GateActor, nil
		}
		return "", fmt.Errorf("flipper: no gate handles %T", t)
	}
}
