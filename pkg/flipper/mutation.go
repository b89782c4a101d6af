package flipper

import "fmt"

// ApplyEnable applies one Adapter.Enable mutation to a GateValues snapshot,
// returning the updated snapshot. It's exported so storage-adapter
// implementations that persist the whole GateValues blob (memory, SQL JSON
// column, DynamoDB item) share one authoritative mutation semantics instead
// of reimplementing §4.5 per backend.
func ApplyEnable(values GateValues, gate GateName, value any) (GateValues, error) {
	next := values.Clone()
	switch gate {
	case GateBoolean:
		b, ok := value.(bool)
		if !ok {
			return values, fmt.Errorf("flipper: boolean gate expects bool, got %T", value)
		}
		s := "false"
		if b {
			s = "true"
		}
		next.Boolean = &s
	case GateActor:
		id, ok := value.(string)
		if !ok {
			return values, fmt.Errorf("flipper: actor gate expects string, got %T", value)
		}
		if id != "" {
			next.Actors[id] = struct{}{}
		}
	case GateGroup:
		name, ok := value.(string)
		if !ok {
			return values, fmt.Errorf("flipper: group gate expects string, got %T", value)
		}
		if name != "" {
			next.Groups[name] = struct{}{}
		}
	case GatePercentageOfActors:
		p, ok := value.(int)
		if !ok {
			return values, fmt.Errorf("flipper: percentage_of_actors gate expects int, got %T", value)
		}
		next.PercentageOfActors = p
	case GatePercentageOfTime:
		p, ok := value.(int)
		if !ok {
			return values, fmt.Errorf("flipper: percentage_of_time gate expects int, got %T", value)
		}
		next.PercentageOfTime = p
	case GateExpression:
		expr, _ := value.(*Expression)
		next.Expression = expr
	default:
		return values, fmt.Errorf("flipper: unknown gate %q", gate)
	}
	return next, nil
}

// ApplyDisable applies one Adapter.Disable mutation to a GateValues
// snapshot, returning the updated snapshot. Disabling a set element that
// isn't present is a no-op success (§4.2.2).
func ApplyDisable(values GateValues, gate GateName, value any) (GateValues, error) {
	next := values.Clone()
	switch gate {
	case GateBoolean:
		next.Boolean = nil
	case GateActor:
		if id, ok := value.(string); ok {
			delete(next.Actors, id)
		}
	case GateGroup:
		if name, ok := value.(string); ok {
			delete(next.Groups, name)
		}
	case GatePercentageOfActors:
		next.PercentageOfActors = 0
	case GatePercentageOfTime:
		next.PercentageOfTime = 0
	case GateExpression:
		next.Expression = nil
	default:
		return values, fmt.Errorf("flipper: unknown gate %q", gate)
	}
	return next, nil
}
