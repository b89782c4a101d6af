package flipper

// GateName identifies one of the six gate kinds. Declared order matches the
// fixed evaluation order of §4.1.
type GateName string

const (
	GateBoolean            GateName = "boolean"
	GateGroup              GateName = "group"
	GateActor              GateName = "actor"
	GatePercentageOfActors GateName = "percentage_of_actors"
	GatePercentageOfTime   GateName = "percentage_of_time"
	GateExpression         GateName = "expression"
)

// gateOrder is the fixed traversal order Feature.Enabled walks (§4.1, §9).
var gateOrder = []GateName{
	GateBoolean,
	GateGroup,
	GateActor,
	GatePercentageOfActors,
	GatePercentageOfTime,
	GateExpression,
}

// GateValues is the merged, default-shaped view of one feature's stored
// state (§3). Adapters return it from Get/GetMulti/GetAll, filling any
// missing gate with its default value.
type GateValues struct {
	Boolean            *string
	Actors             map[string]struct{}
	Groups             map[string]struct{}
	PercentageOfTime   int
	PercentageOfActors int
	Expression         *Expression
}

// DefaultGateValues returns the all-defaults shape every adapter must
// produce after Clear (§4.5 invariant).
func DefaultGateValues() GateValues {
	return GateValues{
		Actors: map[string]struct{}{},
		Groups: map[string]struct{}{},
	}
}

// Clone returns a deep-enough copy so callers can mutate the sets without
// racing the adapter's own copy.
func (g GateValues) Clone() GateValues {
	out := GateValues{
		PercentageOfTime:   g.PercentageOfTime,
		PercentageOfActors: g.PercentageOfActors,
		Expression:         g.Expression,
	}
	if g.Boolean != nil {
		b := *g.Boolean
		out.Boolean = &b
	}
	out.Actors = make(map[string]struct{}, len(g.Actors))
	for a := range g.Actors {
		out.Actors[a] = struct{}{}
	}
	out.Groups = make(map[string]struct{}, len(g.Groups))
	for gr := range g.Groups {
		out.Groups[gr] = struct{}{}
	}
	return out
}

// IsDefault reports whether every gate is at its zero value — required by
// the "off" state classifier (§3). Feature.Enabled's per-gate skip uses each
// Gate's own IsDefault instead (§4.1).
func (g GateValues) IsDefault() bool {
	return g.Boolean == nil &&
		len(g.Actors) == 0 &&
		len(g.Groups) == 0 &&
		g.PercentageOfTime == 0 &&
		g.PercentageOfActors == 0 &&
		g.Expression == nil
}

// State classifies the feature per §3.
type State string

const (
	StateOn          State = "on"
	StateOff         State = "off"
	StateConditional State = "conditional"
)

func (g GateValues) state() State {
	if (g.Boolean != nil && *g.Boolean == "true") || g.PercentageOfTime == 100 {
		return StateOn
	}
	if g.IsDefault() {
		return StateOff
	}
	return StateConditional
}
