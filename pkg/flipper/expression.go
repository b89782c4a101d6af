package flipper

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"time"
)

// Op names an expression node kind. Each is also the wire-format key used
// when a node is serialized (§3): {OpName: [arg, arg, ...]}.
type Op string

const (
	OpValue                Op = "Value"
	OpProperty             Op = "Property"
	OpEqual                Op = "Equal"
	OpNotEqual             Op = "NotEqual"
	OpGreaterThan          Op = "GreaterThan"
	OpGreaterThanOrEqualTo Op = "GreaterThanOrEqualTo"
	OpLessThan             Op = "LessThan"
	OpLessThanOrEqualTo    Op = "LessThanOrEqualTo"
	OpNumber               Op = "Number"
	OpString               Op = "String"
	OpBoolean              Op = "Boolean"
	OpRandom               Op = "Random"
	OpNow                  Op = "Now"
	OpTime                 Op = "Time"
	OpAny                  Op = "Any"
	OpAll                  Op = "All"
	OpAnd                  Op = "And"
)

// Expression is an immutable node in the decision tree (§3, §4.2.6). A
// Value node carries its scalar directly in Scalar; a Property node carries
// its property name in Scalar; every other node operates on Args.
type Expression struct {
	op     Op
	args   []*Expression
	scalar any
}

// Value wraps a scalar (string, number, or bool) as a leaf expression.
func Value(scalar any) *Expression {
	return &Expression{op: OpValue, scalar: scalar}
}

// Property reads properties[name] at evaluation time.
func Property(name string) *Expression {
	return &Expression{op: OpProperty, scalar: name}
}

func wrap(v any) *Expression {
	if e, ok := v.(*Expression); ok {
		return e
	}
	return Value(v)
}

func binary(op Op, left *Expression, right any) *Expression {
	return &Expression{op: op, args: []*Expression{left, wrap(right)}}
}

// Eq builds an Equal comparison node with the receiver as the left operand.
func (e *Expression) Eq(v any) *Expression { return binary(OpEqual, e, v) }

// NotEq builds a NotEqual comparison node.
func (e *Expression) NotEq(v any) *Expression { return binary(OpNotEqual, e, v) }

// Gt builds a GreaterThan comparison node.
func (e *Expression) Gt(v any) *Expression { return binary(OpGreaterThan, e, v) }

// Gte builds a GreaterThanOrEqualTo comparison node.
func (e *Expression) Gte(v any) *Expression { return binary(OpGreaterThanOrEqualTo, e, v) }

// Lt builds a LessThan comparison node.
func (e *Expression) Lt(v any) *Expression { return binary(OpLessThan, e, v) }

// Lte builds a LessThanOrEqualTo comparison node.
func (e *Expression) Lte(v any) *Expression { return binary(OpLessThanOrEqualTo, e, v) }

// AsNumber wraps the receiver in a Number coercion node.
func (e *Expression) AsNumber() *Expression { return &Expression{op: OpNumber, args: []*Expression{e}} }

// AsString wraps the receiver in a String coercion node.
func (e *Expression) AsString() *Expression { return &Expression{op: OpString, args: []*Expression{e}} }

// AsBoolean wraps the receiver in a Boolean coercion node.
func (e *Expression) AsBoolean() *Expression {
	return &Expression{op: OpBoolean, args: []*Expression{e}}
}

// RandomExpr is a generator node yielding a fresh uniform value in [0, 100)
// on every evaluation.
func RandomExpr() *Expression { return &Expression{op: OpRandom} }

// NowExpr is a generator node yielding the current time on every evaluation.
func NowExpr() *Expression { return &Expression{op: OpNow} }

// TimeExpr parses its argument (RFC3339 string, or another time-valued node)
// into a time.Time at evaluation.
func TimeExpr(v any) *Expression { return &Expression{op: OpTime, args: []*Expression{wrap(v)}} }

// Any is true iff any child evaluates true; an empty Any is false (§3).
func Any(children ...*Expression) *Expression { return &Expression{op: OpAny, args: children} }

// All is true iff every child evaluates true; an empty All is true (§3).
func All(children ...*Expression) *Expression { return &Expression{op: OpAll, args: children} }

// And is a synonym for All, kept for parity with the overview's "And/Any/All".
func And(children ...*Expression) *Expression { return &Expression{op: OpAnd, args: children} }

// Op reports the node's operator.
func (e *Expression) Op() Op { return e.op }

// Args reports the node's children (empty for leaves and generators).
func (e *Expression) Args() []*Expression { return e.args }

// Evaluate is pure and total: malformed subtrees, type mismatches, and
// missing properties all fold to false rather than panicking the caller
// (§4.2.6, §7).
func (e *Expression) Evaluate(props map[string]any) (result bool) {
	if e == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return truthy(e.eval(props))
}

func (e *Expression) eval(props map[string]any) any {
	switch e.op {
	case OpValue:
		return e.scalar
	case OpProperty:
		name, _ := e.scalar.(string)
		return props[name]
	case OpEqual:
		return looseEqual(e.args[0].eval(props), e.args[1].eval(props))
	case OpNotEqual:
		return !looseEqual(e.args[0].eval(props), e.args[1].eval(props))
	case OpGreaterThan:
		return compareNumeric(e.args[0].eval(props), e.args[1].eval(props)) > 0
	case OpGreaterThanOrEqualTo:
		return compareNumeric(e.args[0].eval(props), e.args[1].eval(props)) >= 0
	case OpLessThan:
		return compareNumeric(e.args[0].eval(props), e.args[1].eval(props)) < 0
	case OpLessThanOrEqualTo:
		return compareNumeric(e.args[0].eval(props), e.args[1].eval(props)) <= 0
	case OpNumber:
		return toNumber(e.args[0].eval(props))
	case OpString:
		return toStringValue(e.args[0].eval(props))
	case OpBoolean:
		return truthy(e.args[0].eval(props))
	case OpRandom:
		return rand.Float64() * 100
	case OpNow:
		return time.Now()
	case OpTime:
		return toTime(e.args[0].eval(props))
	case OpAny:
		for _, child := range e.args {
			if child.Evaluate(props) {
				return true
			}
		}
		return false
	case OpAll, OpAnd:
		for _, child := range e.args {
			if !child.Evaluate(props) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("flipper: unknown expression op %q", e.op))
	}
}

// Equal reports AST deep-equality, used by Feature.RemoveExpression (§4.4).
func (e *Expression) Equal(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.op != other.op || len(e.args) != len(other.args) {
		return false
	}
	if !reflect.DeepEqual(e.scalar, other.scalar) {
		return false
	}
	for i := range e.args {
		if !e.args[i].Equal(other.args[i]) {
			return false
		}
	}
	return true
}

// ToWire serializes the node into the §3 nested-mapping form: scalars are
// themselves, every other node is a single-key map {OpName: [args...]}.
func (e *Expression) ToWire() any {
	if e == nil {
		return nil
	}
	if e.op == OpValue {
		return e.scalar
	}
	if e.op == OpProperty {
		return map[string]any{string(OpProperty): []any{e.scalar}}
	}
	args := make([]any, len(e.args))
	for i, a := range e.args {
		args[i] = a.ToWire()
	}
	if e.op == OpRandom || e.op == OpNow {
		args = []any{}
	}
	return map[string]any{string(e.op): args}
}

// ParseExpression reconstructs a tree from its wire form, the inverse of
// ToWire. A bare scalar parses to a Value leaf.
func ParseExpression(wire any) (*Expression, error) {
	switch v := wire.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(v) != 1 {
			return nil, fmt.Errorf("flipper: malformed expression node: %v", v)
		}
		for key, rawArgs := range v {
			op := Op(key)
			if op == OpProperty {
				args, ok := rawArgs.([]any)
				if !ok || len(args) != 1 {
					return nil, fmt.Errorf("flipper: malformed Property node: %v", v)
				}
				name, ok := args[0].(string)
				if !ok {
					return nil, fmt.Errorf("flipper: Property name must be a string: %v", args[0])
				}
				return Property(name), nil
			}
			rawList, ok := rawArgs.([]any)
			if !ok {
				return nil, fmt.Errorf("flipper: malformed expression args for %s: %v", key, rawArgs)
			}
			children := make([]*Expression, len(rawList))
			for i, raw := range rawList {
				child, err := ParseExpression(raw)
				if err != nil {
					return nil, err
				}
				children[i] = child
			}
			return &Expression{op: op, args: children}, nil
		}
		panic("unreachable")
	default:
		return Value(v), nil
	}
}

// MarshalJSON implements json.Marshaler, serializing through ToWire so a
// stored expression round-trips through any JSON-backed adapter (§6).
func (e *Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToWire())
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var wire any
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	parsed, err := ParseExpression(wire)
	if err != nil {
		return err
	}
	if parsed == nil {
		*e = Expression{}
		return nil
	}
	*e = *parsed
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

func looseEqual(a, b any) bool {
	an, aok := asFloat(a)
	bn, bok := asFloat(b)
	if aok && bok {
		return an == bn
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareNumeric(a, b any) int {
	an, aok := asFloat(a)
	bn, bok := asFloat(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func toNumber(v any) any {
	if f, ok := asFloat(v); ok {
		return f
	}
	return 0.0
}

func toStringValue(v any) any {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toTime(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
