// Package flipper implements the feature-flag evaluation engine: features,
// gates, the expression tree, and the storage/instrumentation seams they
// run against.
package flipper

// Actor is any value with a stable string identifier, used for per-subject
// rollout decisions (actor gates, percentage-of-actors, expression property
// lookups).
type Actor interface {
	FlipperID() string
}

// Identifiable is satisfied by application types that want to be used
// directly as actors without wrapping, e.g. a *User with a FlipperID method.
type Identifiable = Actor

// PropertyActor is an Actor that also exposes a property bag for expression
// gate evaluation (§4.2.6). Actors that don't implement it evaluate
// expressions against an empty property set.
type PropertyActor interface {
	Actor
	FlipperProperties() map[string]any
}

// ActorRef is the canonical, concrete Actor used when callers hand in a bare
// id instead of an application type.
type ActorRef struct {
	id         string
	properties map[string]any
}

// NewActor wraps a stable id as an Actor. An empty id is retained as-is;
// gates treat it as "no actor" per §7 ("nil actor").
func NewActor(id string) ActorRef {
	return ActorRef{id: id}
}

// NewActorWithProperties wraps an id together with the property bag used by
// expression gates.
func NewActorWithProperties(id string, properties map[string]any) ActorRef {
	return ActorRef{id: id, properties: properties}
}

// FlipperID implements Actor.
func (a ActorRef) FlipperID() string { return a.id }

// FlipperProperties implements PropertyActor.
func (a ActorRef) FlipperProperties() map[string]any {
	if a.properties == nil {
		return map[string]any{}
	}
	return a.properties
}

// properties extracts the property bag from any actor, defaulting to empty
// when the actor doesn't carry one.
func properties(actor Actor) map[string]any {
	if actor == nil {
		return map[string]any{}
	}
	if p, ok := actor.(PropertyActor); ok {
		return p.FlipperProperties()
	}
	return map[string]any{}
}

// actorID reads an actor's id, treating a nil actor as "no actor" (empty id,
// never matches an actor/group/percentage-of-actors gate).
func actorID(actor Actor) string {
	if actor == nil {
		return ""
	}
	return actor.FlipperID()
}
