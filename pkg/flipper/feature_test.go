package flipper_test

import (
	"context"
	"testing"

	"github.com/larouxn/flipper/pkg/adapter/memoryadapter"
	"github.com/larouxn/flipper/pkg/flipper"
)

func newTestFlipper() *flipper.Flipper {
	return flipper.New(memoryadapter.New(), flipper.WithRegistry(flipper.NewRegistry()))
}

func TestFeature_DefaultIsOff(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("unused_feature")

	enabled, err := feature.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("a never-touched feature should be disabled")
	}

	state, err := feature.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state != flipper.StateOff {
		t.Errorf("State() = %q, want %q", state, flipper.StateOff)
	}
}

func TestFeature_BooleanGate(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("killswitch")

	if err := feature.EnableBoolean(ctx); err != nil {
		t.Fatalf("EnableBoolean() error: %v", err)
	}
	enabled, err := feature.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if !enabled {
		t.Error("feature should be enabled after EnableBoolean")
	}
	on, err := feature.On(ctx)
	if err != nil {
		t.Fatalf("On() error: %v", err)
	}
	if !on {
		t.Error("State should be on once the boolean gate is set")
	}

	if err := feature.DisableBoolean(ctx); err != nil {
		t.Fatalf("DisableBoolean() error: %v", err)
	}
	enabled, err = feature.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("feature should be disabled after DisableBoolean")
	}
}

func TestFeature_ActorGate(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("actor_feature")
	alice := flipper.NewActor("alice")
	bob := flipper.NewActor("bob")

	if err := feature.EnableActor(ctx, alice); err != nil {
		t.Fatalf("EnableActor() error: %v", err)
	}

	enabled, err := feature.Enabled(ctx, alice)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if !enabled {
		t.Error("alice should be enabled once added to the actor gate")
	}

	enabled, err = feature.Enabled(ctx, bob)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("bob should not be enabled, only alice was added")
	}

	// any-actor semantics: enabled if ANY passed actor matches.
	enabled, err = feature.Enabled(ctx, bob, alice)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if !enabled {
		t.Error("Enabled(bob, alice) should be true since alice matches")
	}

	if err := feature.DisableActor(ctx, alice); err != nil {
		t.Fatalf("DisableActor() error: %v", err)
	}
	enabled, err = feature.Enabled(ctx, alice)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("alice should no longer be enabled after DisableActor")
	}

	// disabling a non-present actor is a no-op success, not an error.
	if err := feature.DisableActor(ctx, flipper.NewActor("never-added")); err != nil {
		t.Errorf("DisableActor on an absent actor should succeed, got: %v", err)
	}
}

func TestFeature_GroupGate(t *testing.T) {
	ctx := context.Background()
	registry := flipper.NewRegistry()
	registry.Register("staff", func(a flipper.Actor) bool {
		return a != nil && a.FlipperID() == "staff-1"
	})
	app := flipper.New(memoryadapter.New(), flipper.WithRegistry(registry))
	feature := app.Feature("staff_feature")

	if err := feature.EnableGroup(ctx, "staff"); err != nil {
		t.Fatalf("EnableGroup() error: %v", err)
	}

	enabled, err := feature.Enabled(ctx, flipper.NewActor("staff-1"))
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if !enabled {
		t.Error("staff-1 should be enabled via the staff group")
	}

	enabled, err = feature.Enabled(ctx, flipper.NewActor("customer-1"))
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("customer-1 should not match the staff group")
	}
}

func TestFeature_EnableGroupUnregisteredIsError(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("f")

	err := feature.EnableGroup(ctx, "does_not_exist")
	if err == nil {
		t.Fatal("expected an error enabling an unregistered group")
	}
	flipperErr, ok := err.(*flipper.Error)
	if !ok {
		t.Fatalf("expected a *flipper.Error, got %T", err)
	}
	if flipperErr.Code != flipper.ErrCodeUnknownGroup {
		t.Errorf("Code = %q, want %q", flipperErr.Code, flipper.ErrCodeUnknownGroup)
	}
}

func TestFeature_PercentageOfActors(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("rollout_feature")

	if err := feature.EnablePercentageOfActors(ctx, 100); err != nil {
		t.Fatalf("EnablePercentageOfActors() error: %v", err)
	}
	enabled, err := feature.Enabled(ctx, flipper.NewActor("any-actor"))
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if !enabled {
		t.Error("100% rollout should enable any actor")
	}

	if err := feature.EnablePercentageOfActors(ctx, 150); err == nil {
		t.Error("expected an error for an out-of-range percentage")
	}

	if err := feature.DisablePercentageOfActors(ctx); err != nil {
		t.Fatalf("DisablePercentageOfActors() error: %v", err)
	}
	enabled, err = feature.Enabled(ctx, flipper.NewActor("any-actor"))
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("feature should be disabled after resetting the percentage to 0")
	}
}

func TestFeature_PercentageOfTimeFullyOnCountsAsStateOn(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("time_feature")

	if err := feature.EnablePercentageOfTime(ctx, 100); err != nil {
		t.Fatalf("EnablePercentageOfTime() error: %v", err)
	}
	state, err := feature.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state != flipper.StateOn {
		t.Errorf("State() = %q, want %q for a 100%% time rollout", state, flipper.StateOn)
	}
}

func TestFeature_StateConditional(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("conditional_feature")

	if err := feature.EnablePercentageOfActors(ctx, 10); err != nil {
		t.Fatalf("EnablePercentageOfActors() error: %v", err)
	}
	state, err := feature.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state != flipper.StateConditional {
		t.Errorf("State() = %q, want %q for a partial rollout", state, flipper.StateConditional)
	}
}

func TestFeature_RouteByType(t *testing.T) {
	ctx := context.Background()
	registry := flipper.NewRegistry()
	registry.Register("vips", func(flipper.Actor) bool { return false })
	app := flipper.New(memoryadapter.New(), flipper.WithRegistry(registry))

	testCases := []struct {
		name string
		arg  any
	}{
		{"bool true", true},
		{"Boolean value", flipper.NewBoolean(true)},
		{"group string", "vips"},
		{"GroupRef", flipper.NewGroupRef("vips")},
		{"actor via ActorRef", flipper.NewActor("routed-actor")},
		{"PercentageOfActors", flipper.NewPercentageOfActors(42)},
		{"PercentageOfTime", flipper.NewPercentageOfTime(42)},
		{"Expression", flipper.Value(true)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			feature := app.Feature("route_" + tc.name)
			if err := feature.Enable(ctx, tc.arg); err != nil {
				t.Errorf("Enable(%v) error: %v", tc.arg, err)
			}
		})
	}
}

func TestFeature_EnableRoutesUnknownTypeToError(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("f")

	err := feature.Enable(ctx, 3.14)
	if err == nil {
		t.Fatal("expected an error routing an unsupported type")
	}
}

func TestFeature_DisableResetsEverything(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("reset_feature")

	if err := feature.EnableBoolean(ctx); err != nil {
		t.Fatalf("EnableBoolean() error: %v", err)
	}
	if err := feature.EnableActor(ctx, flipper.NewActor("someone")); err != nil {
		t.Fatalf("EnableActor() error: %v", err)
	}
	if err := feature.EnablePercentageOfActors(ctx, 50); err != nil {
		t.Fatalf("EnablePercentageOfActors() error: %v", err)
	}

	if err := feature.Disable(ctx); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}

	values, err := feature.GateValues(ctx)
	if err != nil {
		t.Fatalf("GateValues() error: %v", err)
	}
	if !values.IsDefault() {
		t.Errorf("expected default gate values after Disable(), got %+v", values)
	}
}

func TestFeature_EnabledGatesAndDisabledGates(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("gates_feature")

	if err := feature.EnableBoolean(ctx); err != nil {
		t.Fatalf("EnableBoolean() error: %v", err)
	}

	enabled, err := feature.EnabledGateNames(ctx)
	if err != nil {
		t.Fatalf("EnabledGateNames() error: %v", err)
	}
	if len(enabled) != 1 || enabled[0] != flipper.GateBoolean {
		t.Errorf("EnabledGateNames() = %v, want [%q]", enabled, flipper.GateBoolean)
	}

	disabled, err := feature.DisabledGateNames(ctx)
	if err != nil {
		t.Fatalf("DisabledGateNames() error: %v", err)
	}
	// Six gate kinds total (§3); one is enabled here, five remain at default.
	if len(disabled) != 5 {
		t.Errorf("DisabledGateNames() has %d entries, want 5", len(disabled))
	}
}

func TestFeature_GateFor(t *testing.T) {
	app := newTestFlipper()
	feature := app.Feature("f")

	gate, err := feature.GateFor(true)
	if err != nil {
		t.Fatalf("GateFor(true) error: %v", err)
	}
	if gate.Name() != flipper.GateBoolean {
		t.Errorf("GateFor(true) = %q, want %q", gate.Name(), flipper.GateBoolean)
	}

	gate, err = feature.GateFor(flipper.NewActor("x"))
	if err != nil {
		t.Fatalf("GateFor(actor) error: %v", err)
	}
	if gate.Name() != flipper.GateActor {
		t.Errorf("GateFor(actor) = %q, want %q", gate.Name(), flipper.GateActor)
	}

	if _, err := feature.GateFor(3.14); err == nil {
		t.Error("expected an error for a type no gate handles")
	}
}

func TestFeature_AddExpressionMonotonicOr(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("expr_feature")

	first := flipper.Property("plan").Eq("pro")
	if err := feature.AddExpression(ctx, first); err != nil {
		t.Fatalf("AddExpression() error: %v", err)
	}
	values, err := feature.GateValues(ctx)
	if err != nil {
		t.Fatalf("GateValues() error: %v", err)
	}
	if !values.Expression.Equal(first) {
		t.Fatalf("first AddExpression should store the expression verbatim")
	}

	second := flipper.Property("beta").Eq(true)
	if err := feature.AddExpression(ctx, second); err != nil {
		t.Fatalf("AddExpression() error: %v", err)
	}
	values, err = feature.GateValues(ctx)
	if err != nil {
		t.Fatalf("GateValues() error: %v", err)
	}
	want := flipper.Any(first, second)
	if !values.Expression.Equal(want) {
		t.Fatalf("second AddExpression should wrap into Any(first, second)")
	}

	third := flipper.Property("country").Eq("US")
	if err := feature.AddExpression(ctx, third); err != nil {
		t.Fatalf("AddExpression() error: %v", err)
	}
	values, err = feature.GateValues(ctx)
	if err != nil {
		t.Fatalf("GateValues() error: %v", err)
	}
	want = flipper.Any(first, second, third)
	if !values.Expression.Equal(want) {
		t.Fatalf("third AddExpression should append into the existing Any()")
	}
}

func TestFeature_RemoveExpression(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("expr_remove_feature")

	a := flipper.Property("plan").Eq("pro")
	b := flipper.Property("beta").Eq(true)
	if err := feature.AddExpression(ctx, a); err != nil {
		t.Fatalf("AddExpression(a) error: %v", err)
	}
	if err := feature.AddExpression(ctx, b); err != nil {
		t.Fatalf("AddExpression(b) error: %v", err)
	}

	if err := feature.RemoveExpression(ctx, a); err != nil {
		t.Fatalf("RemoveExpression(a) error: %v", err)
	}
	values, err := feature.GateValues(ctx)
	if err != nil {
		t.Fatalf("GateValues() error: %v", err)
	}
	want := flipper.Any(b)
	if !values.Expression.Equal(want) {
		t.Fatalf("RemoveExpression should leave Any(b) once a is removed")
	}

	// Removing on a feature with no expression at all is a no-op.
	empty := app.Feature("expr_never_set")
	if err := empty.RemoveExpression(ctx, a); err != nil {
		t.Errorf("RemoveExpression on an unset expression should be a no-op, got: %v", err)
	}
}

func TestFeature_EnabledWithNoActorsChecksActorIndependentGatesOnly(t *testing.T) {
	ctx := context.Background()
	app := newTestFlipper()
	feature := app.Feature("actor_only_feature")

	if err := feature.EnableActor(ctx, flipper.NewActor("someone")); err != nil {
		t.Fatalf("EnableActor() error: %v", err)
	}

	enabled, err := feature.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled() error: %v", err)
	}
	if enabled {
		t.Error("an actor-only gate should not open when Enabled is called with no actors")
	}
}
