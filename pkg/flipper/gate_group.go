package flipper

// groupGate opens when the actor matches any registered group predicate
// named in its stored set (§4.2.3). Unregistered names are silently
// skipped at evaluation time — they remain persisted for an operator to
// register later. A nil actor, or one with an empty id, never opens it.
type groupGate struct{}

func (groupGate) Name() GateName     { return GateGroup }
func (groupGate) DataType() DataType { return DataTypeSet }

func (groupGate) IsDefault(values GateValues) bool {
	return len(values.Groups) == 0
}

func (groupGate) Open(values GateValues, ctx evalContext) bool {
	if ctx.registry == nil || actorID(ctx.actor) == "" {
		return false
	}
	for name := range values.Groups {
		group, ok := ctx.registry.Lookup(name)
		if !ok {
			continue
		}
		if group.Match(ctx.actor) {
			return true
		}
	}
	return false
}
