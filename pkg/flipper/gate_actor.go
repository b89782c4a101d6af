package flipper

// actorGate opens for actors whose id has been explicitly added (§4.2.2).
type actorGate struct{}

func (actorGate) Name() GateName     { return GateActor }
func (actorGate) DataType() DataType { return DataTypeSet }

func (actorGate) IsDefault(values GateValues) bool {
	return len(values.Actors) == 0
}

func (actorGate) Open(values GateValues, ctx evalContext) bool {
	id := actorID(ctx.actor)
	if id == "" {
		return false
	}
	_, ok := values.Actors[id]
	return ok
}
