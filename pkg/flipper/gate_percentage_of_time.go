package flipper

import "math/rand"

// percentageOfTimeGate draws a fresh uniform random value on every
// evaluation; it never depends on the actor (§4.2.5).
type percentageOfTimeGate struct{}

func (percentageOfTimeGate) Name() GateName     { return GatePercentageOfTime }
func (percentageOfTimeGate) DataType() DataType { return DataTypeInteger }

func (percentageOfTimeGate) IsDefault(values GateValues) bool {
	return values.PercentageOfTime == 0
}

func (percentageOfTimeGate) Open(values GateValues, _ evalContext) bool {
	return rand.Float64()*100 < float64(values.PercentageOfTime)
}
