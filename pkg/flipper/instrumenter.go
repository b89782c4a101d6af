package flipper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventName is the literal instrumentation event name every operation emits
// (§4.6, §6).
const EventName = "feature_operation.flipper"

// Event is the instrumentation payload emitted after every externally
// facing Feature operation (§4.6). GateName and Thing are populated only
// for gate-specific mutations; Actors only for Enabled.
type Event struct {
	ID          string
	FeatureName string
	Operation   string
	Result      any
	GateName    GateName
	Thing       any
	Actors      []Actor
	Timestamp   time.Time
}

// Instrumenter is a fire-and-forget event sink (§2, §4.6, §9). Instrument
// must never block the caller on anything but its own work, and a panic
// inside it must never propagate to the Feature operation that triggered it
// (§7 "Instrumentation errors are swallowed").
type Instrumenter interface {
	Instrument(ctx context.Context, event Event)
}

// NoopInstrumenter discards every event. It's the default when a Flipper is
// constructed without one (§9 "Default is a no-op").
type NoopInstrumenter struct{}

// Instrument implements Instrumenter.
func (NoopInstrumenter) Instrument(context.Context, Event) {}

// SlogInstrumenter logs one structured line per event, the ambient-stack
// reference implementation (internal/platform's slog.Logger carried through
// to the core, per SPEC_FULL.md).
type SlogInstrumenter struct {
	Logger *slog.Logger
}

// NewSlogInstrumenter constructs an Instrumenter that logs through logger.
func NewSlogInstrumenter(logger *slog.Logger) *SlogInstrumenter {
	return &SlogInstrumenter{Logger: logger}
}

// Instrument implements Instrumenter.
func (s *SlogInstrumenter) Instrument(_ context.Context, event Event) {
	if s == nil || s.Logger == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Logger.Debug(EventName,
		"id", event.ID,
		"feature_name", event.FeatureName,
		"operation", event.Operation,
		"result", event.Result,
		"gate_name", event.GateName,
	)
}

// instrument stamps and dispatches an event, recovering from any panic the
// Instrumenter raises so a misbehaving sink never takes the caller down
// (§4.6, §7).
func instrument(ctx context.Context, sink Instrumenter, event Event) {
	if sink == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	defer func() { _ = recover() }()
	sink.Instrument(ctx, event)
}
