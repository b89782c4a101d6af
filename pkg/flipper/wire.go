package flipper

import (
	"encoding/json"
	"sort"
)

// gateValuesWire is the on-wire encoding of GateValues used by adapters that
// persist a single JSON blob per feature (SQL, DynamoDB — §6 "On-wire/
// persisted value encoding"). Sets are encoded as sorted string slices
// rather than Go's native map[string]struct{} so the stored JSON is stable
// and human-inspectable.
type gateValuesWire struct {
	Boolean            *string     `json:"boolean,omitempty"`
	Actors             []string    `json:"actors,omitempty"`
	Groups             []string    `json:"groups,omitempty"`
	PercentageOfTime   int         `json:"percentage_of_time"`
	PercentageOfActors int         `json:"percentage_of_actors"`
	Expression         *Expression `json:"expression,omitempty"`
}

// MarshalJSON implements json.Marshaler for GateValues.
func (g GateValues) MarshalJSON() ([]byte, error) {
	return json.Marshal(gateValuesWire{
		Boolean:            g.Boolean,
		Actors:             sortedKeys(g.Actors),
		Groups:             sortedKeys(g.Groups),
		PercentageOfTime:   g.PercentageOfTime,
		PercentageOfActors: g.PercentageOfActors,
		Expression:         g.Expression,
	})
}

// UnmarshalJSON implements json.Unmarshaler for GateValues.
func (g *GateValues) UnmarshalJSON(data []byte) error {
	var wire gateValuesWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*g = GateValues{
		Boolean:            wire.Boolean,
		Actors:             toSet(wire.Actors),
		Groups:             toSet(wire.Groups),
		PercentageOfTime:   wire.PercentageOfTime,
		PercentageOfActors: wire.PercentageOfActors,
		Expression:         wire.Expression,
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
