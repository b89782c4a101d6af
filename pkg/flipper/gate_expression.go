package flipper

// expressionGate evaluates the stored AST against the actor's property bag
// (§4.2.6). Evaluation is pure and total — Expression.Evaluate already
// absorbs malformed subtrees into false. A nil actor, or one with an empty
// id, never opens it.
type expressionGate struct{}

func (expressionGate) Name() GateName     { return GateExpression }
func (expressionGate) DataType() DataType { return DataTypeExpression }

func (expressionGate) IsDefault(values GateValues) bool {
	return values.Expression == nil
}

func (expressionGate) Open(values GateValues, ctx evalContext) bool {
	if values.Expression == nil || actorID(ctx.actor) == "" {
		return false
	}
	return values.Expression.Evaluate(properties(ctx.actor))
}
