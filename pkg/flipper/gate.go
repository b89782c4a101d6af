package flipper

// DataType is the wire-level shape a gate's stored value takes (§4.2).
type DataType string

const (
	DataTypeBoolean    DataType = "boolean"
	DataTypeSet        DataType = "set-of-string"
	DataTypeInteger    DataType = "integer"
	DataTypeExpression DataType = "expression"
)

// evalContext carries what a gate needs beyond its own stored value:
// the feature name (percentage-of-actors hashing needs it) and the group
// registry (group gate resolution needs it). Actor may be nil — "no actor"
// (§7).
type evalContext struct {
	featureName string
	actor       Actor
	registry    *Registry
}

// Gate is the uniform interface behind the six gate kinds (§4.2, §9).
// Evaluation holds them in the fixed order of gateOrder.
type Gate interface {
	Name() GateName
	DataType() DataType
	// IsDefault reports whether this gate's slice of values is at its
	// default, letting Feature.Enabled skip it without calling Open.
	IsDefault(values GateValues) bool
	// Open decides per-actor enablement from this gate's slice of the
	// feature's stored values.
	Open(values GateValues, ctx evalContext) bool
}

// gates is the fixed, ordered set of gate implementations every Feature
// evaluates against (§4.1).
var gates = []Gate{
	booleanGate{},
	groupGate{},
	actorGate{},
	percentageOfActorsGate{},
	percentageOfTimeGate{},
	expressionGate{},
}

func gateFor(name GateName) Gate {
	for _, g := range gates {
		if g.Name() == name {
			return g
		}
	}
	return nil
}
