package flipper

import "testing"

func TestGateValues_IsDefault(t *testing.T) {
	if !DefaultGateValues().IsDefault() {
		t.Error("DefaultGateValues() should report IsDefault() == true")
	}

	on := "true"
	if (GateValues{Boolean: &on}).IsDefault() {
		t.Error("a set Boolean gate should not be default")
	}
}

func TestGateValues_Clone(t *testing.T) {
	on := "true"
	original := GateValues{
		Boolean: &on,
		Actors:  map[string]struct{}{"a": {}},
		Groups:  map[string]struct{}{"g": {}},
	}
	clone := original.Clone()

	clone.Actors["b"] = struct{}{}
	if _, ok := original.Actors["b"]; ok {
		t.Error("mutating the clone's Actors set should not affect the original")
	}

	*clone.Boolean = "false"
	if *original.Boolean != "true" {
		t.Error("mutating the clone's Boolean should not affect the original")
	}
}

func TestGateValues_State(t *testing.T) {
	on := "true"
	off := "false"

	testCases := []struct {
		name   string
		values GateValues
		want   State
	}{
		{"default is off", DefaultGateValues(), StateOff},
		{"boolean true is on", GateValues{Boolean: &on}, StateOn},
		{"boolean false alone is conditional", GateValues{Boolean: &off}, StateConditional},
		{"full time rollout is on", GateValues{PercentageOfTime: 100}, StateOn},
		{"partial time rollout is conditional", GateValues{PercentageOfTime: 50}, StateConditional},
		{"partial actor rollout is conditional", GateValues{PercentageOfActors: 10}, StateConditional},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.values.state(); got != tc.want {
				t.Errorf("state() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGateValues_JSONRoundTrip(t *testing.T) {
	on := "true"
	original := GateValues{
		Boolean:            &on,
		Actors:             map[string]struct{}{"alice": {}, "bob": {}},
		Groups:             map[string]struct{}{"staff": {}},
		PercentageOfTime:   10,
		PercentageOfActors: 20,
		Expression:         Property("plan").Eq("pro"),
	}

	encoded, err := original.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	var decoded GateValues
	if err := decoded.UnmarshalJSON(encoded); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}

	if decoded.Boolean == nil || *decoded.Boolean != "true" {
		t.Error("Boolean did not round-trip")
	}
	if len(decoded.Actors) != 2 {
		t.Errorf("Actors round-trip has %d entries, want 2", len(decoded.Actors))
	}
	if decoded.PercentageOfTime != 10 || decoded.PercentageOfActors != 20 {
		t.Error("percentage fields did not round-trip")
	}
	if decoded.Expression == nil || !decoded.Expression.Equal(original.Expression) {
		t.Error("Expression did not round-trip")
	}
}
