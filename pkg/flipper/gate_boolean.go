package flipper

// booleanGate is the kill-switch gate: wide open once its value is "true"
// (§4.2.1).
type booleanGate struct{}

func (booleanGate) Name() GateName     { return GateBoolean }
func (booleanGate) DataType() DataType { return DataTypeBoolean }

func (booleanGate) IsDefault(values GateValues) bool {
	return values.Boolean == nil
}

func (booleanGate) Open(values GateValues, _ evalContext) bool {
	return values.Boolean != nil && *values.Boolean == "true"
}
