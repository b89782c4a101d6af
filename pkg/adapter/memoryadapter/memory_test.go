package memoryadapter

import (
	"context"
	"sync"
	"testing"

	"github.com/larouxn/flipper/pkg/flipper"
)

func TestAdapter_AddAndFeatures(t *testing.T) {
	ctx := context.Background()
	a := New()

	if err := a.Add(ctx, "feature_one"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := a.Add(ctx, "feature_two"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	// Add is idempotent.
	if err := a.Add(ctx, "feature_one"); err != nil {
		t.Fatalf("second Add() error: %v", err)
	}

	names, err := a.Features(ctx)
	if err != nil {
		t.Fatalf("Features() error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("Features() returned %d entries, want 2", len(names))
	}
	if _, ok := names["feature_one"]; !ok {
		t.Error("Features() missing feature_one")
	}
}

func TestAdapter_GetOnUnknownFeatureReturnsDefault(t *testing.T) {
	ctx := context.Background()
	a := New()

	values, err := a.Get(ctx, "never_added")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !values.IsDefault() {
		t.Errorf("expected default gate values for an unknown feature, got %+v", values)
	}
}

func TestAdapter_RemoveWipesGateValues(t *testing.T) {
	ctx := context.Background()
	a := New()

	if err := a.Enable(ctx, "f", flipper.GateBoolean, true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if err := a.Remove(ctx, "f"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	names, err := a.Features(ctx)
	if err != nil {
		t.Fatalf("Features() error: %v", err)
	}
	if _, ok := names["f"]; ok {
		t.Error("Remove() should drop the feature from Features()")
	}
	values, err := a.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !values.IsDefault() {
		t.Error("Remove() should wipe the feature's gate values")
	}
}

func TestAdapter_ClearResetsButKeepsFeature(t *testing.T) {
	ctx := context.Background()
	a := New()

	if err := a.Add(ctx, "f"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := a.Enable(ctx, "f", flipper.GateBoolean, true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if err := a.Clear(ctx, "f"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	names, err := a.Features(ctx)
	if err != nil {
		t.Fatalf("Features() error: %v", err)
	}
	if _, ok := names["f"]; !ok {
		t.Error("Clear() should not remove the feature from Features()")
	}
	values, err := a.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !values.IsDefault() {
		t.Error("Clear() should reset gate values to default")
	}
}

func TestAdapter_EnableAndDisableActor(t *testing.T) {
	ctx := context.Background()
	a := New()

	if err := a.Enable(ctx, "f", flipper.GateActor, "actor-1"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	values, err := a.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, ok := values.Actors["actor-1"]; !ok {
		t.Fatal("expected actor-1 to be present after Enable")
	}

	if err := a.Disable(ctx, "f", flipper.GateActor, "actor-1"); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}
	values, err = a.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, ok := values.Actors["actor-1"]; ok {
		t.Error("actor-1 should be gone after Disable")
	}

	// Disabling an absent actor is a no-op success.
	if err := a.Disable(ctx, "f", flipper.GateActor, "never-there"); err != nil {
		t.Errorf("Disable on an absent actor should succeed, got: %v", err)
	}
}

func TestAdapter_GetMultiAndGetAll(t *testing.T) {
	ctx := context.Background()
	a := New()

	if err := a.Add(ctx, "a"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := a.Enable(ctx, "a", flipper.GateBoolean, true); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if err := a.Add(ctx, "b"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	multi, err := a.GetMulti(ctx, []string{"a", "b", "unknown"})
	if err != nil {
		t.Fatalf("GetMulti() error: %v", err)
	}
	if len(multi) != 3 {
		t.Fatalf("GetMulti() returned %d entries, want 3", len(multi))
	}
	if multi["a"].Boolean == nil || *multi["a"].Boolean != "true" {
		t.Error("GetMulti()[\"a\"] should reflect the enabled boolean gate")
	}

	all, err := a.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("GetAll() returned %d entries, want 2", len(all))
	}
}

func TestAdapter_ConcurrentMutationIsRaceFree(t *testing.T) {
	ctx := context.Background()
	a := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = a.Enable(ctx, "concurrent", flipper.GatePercentageOfActors, n%100)
		}(i)
	}
	wg.Wait()

	values, err := a.Get(ctx, "concurrent")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if values.PercentageOfActors < 0 || values.PercentageOfActors > 99 {
		t.Errorf("unexpected settled percentage %d", values.PercentageOfActors)
	}
}
