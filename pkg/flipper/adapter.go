package flipper

import "context"

// Adapter is the persistence seam (§4.5, §6). The core ships a reference
// memory implementation (pkg/adapter/memoryadapter); Postgres, DynamoDB,
// HTTP, and cascading composites live alongside it in pkg/adapter.
//
// Implementations must uphold: Get(f) after Clear(f) equals
// DefaultGateValues(); Enable/Disable are idempotent on the set gates for a
// given element; integer gates store the most recent write; Features never
// contains duplicates. Adapters may be eventually consistent across
// processes but must be linearizable within one process's reference (§5).
type Adapter interface {
	// Features returns every registered feature name.
	Features(ctx context.Context) (map[string]struct{}, error)
	// Add registers a feature name, a no-op if already present.
	Add(ctx context.Context, featureName string) error
	// Remove unregisters a feature name and wipes its gate values.
	Remove(ctx context.Context, featureName string) error
	// Clear resets every gate to its default; Features membership is
	// unchanged.
	Clear(ctx context.Context, featureName string) error
	// Get returns the full default-shaped gate view for one feature.
	Get(ctx context.Context, featureName string) (GateValues, error)
	// GetMulti returns the gate view for each named feature.
	GetMulti(ctx context.Context, featureNames []string) (map[string]GateValues, error)
	// GetAll returns the gate view for every registered feature.
	GetAll(ctx context.Context) (map[string]GateValues, error)
	// Enable mutates one gate's stored value. value's concrete type
	// depends on gate: bool for GateBoolean, string for GateActor/GateGroup
	// (one set element), int for the percentage gates, *Expression for
	// GateExpression.
	Enable(ctx context.Context, featureName string, gate GateName, value any) error
	// Disable mutates one gate back toward its default. For set gates,
	// value is the element to remove; for percentage gates and GateBoolean,
	// value is ignored and the gate resets to default; for GateExpression,
	// value is ignored and the expression is cleared.
	Disable(ctx context.Context, featureName string, gate GateName, value any) error
}
