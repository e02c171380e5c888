package dispatch

import (
	"context"
	"time"

	"github.com/nerrad567/lockbot/internal/bridges/nuki"
)

// ActionEvent describes one completed bridge action.
type ActionEvent struct {
	RequestID       string
	Action          nuki.Action
	Outcome         nuki.Outcome
	BatteryCritical *bool
	// Err is the bridge error text; empty on a bridge response.
	Err      string
	Duration time.Duration
	At       time.Time
}

// StateEvent describes one successful state read.
type StateEvent struct {
	RequestID string
	State     nuki.LockState
	At        time.Time
}

// EventSink receives lock activity for fan-out (MQTT, InfluxDB).
// Implementations must not block for long; they run on the dispatch path.
type EventSink interface {
	ActionPerformed(ctx context.Context, ev ActionEvent)
	StateObserved(ctx context.Context, ev StateEvent)
}

// EventSinks fans events out to every member.
type EventSinks []EventSink

// ActionPerformed implements EventSink.
func (s EventSinks) ActionPerformed(ctx context.Context, ev ActionEvent) {
	for _, sink := range s {
		sink.ActionPerformed(ctx, ev)
	}
}

// StateObserved implements EventSink.
func (s EventSinks) StateObserved(ctx context.Context, ev StateEvent) {
	for _, sink := range s {
		sink.StateObserved(ctx, ev)
	}
}
