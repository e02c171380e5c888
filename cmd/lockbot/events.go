package main

import (
	"context"
	"time"

	"github.com/nerrad567/lockbot/internal/dispatch"
	"github.com/nerrad567/lockbot/internal/infrastructure/influxdb"
	"github.com/nerrad567/lockbot/internal/infrastructure/mqtt"
)

// statePublisher is the subset of *mqtt.Client the MQTT sink uses.
type statePublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
}

// warnLogger is the subset of *logging.Logger the MQTT sink uses.
type warnLogger interface {
	Warn(msg string, args ...any)
}

// actionMessage is the payload published on lock/action/<action>.
// It never carries the chat identity of the requester.
type actionMessage struct {
	RequestID       string `json:"request_id"`
	Action          string `json:"action"`
	Outcome         string `json:"outcome"`
	BatteryCritical *bool  `json:"battery_critical,omitempty"`
	Error           string `json:"error,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
	Timestamp       string `json:"timestamp"`
}

// stateMessage is the retained payload published on lock/state.
type stateMessage struct {
	State              *int   `json:"state,omitempty"`
	StateName          string `json:"state_name,omitempty"`
	DoorState          *int   `json:"door_state,omitempty"`
	DoorStateName      string `json:"door_state_name,omitempty"`
	BatteryChargeState *int   `json:"battery_charge_state,omitempty"`
	BatteryCritical    *bool  `json:"battery_critical,omitempty"`
	LastUpdate         string `json:"last_update,omitempty"`
	Timestamp          string `json:"timestamp"`
}

// mqttEventSink publishes lock activity to the broker.
type mqttEventSink struct {
	client statePublisher
	log    warnLogger
}

// ActionPerformed implements dispatch.EventSink.
func (s *mqttEventSink) ActionPerformed(_ context.Context, ev dispatch.ActionEvent) {
	msg := actionMessage{
		RequestID:       ev.RequestID,
		Action:          ev.Action.String(),
		Outcome:         actionOutcome(ev),
		BatteryCritical: ev.BatteryCritical,
		Error:           ev.Err,
		DurationMS:      ev.Duration.Milliseconds(),
		Timestamp:       ev.At.UTC().Format(time.RFC3339),
	}
	topic := s.client.Topics().LockAction(msg.Action)
	if err := s.client.PublishJSON(topic, msg, false); err != nil {
		s.log.Warn("publishing lock action failed", "topic", topic, "error", err)
	}
}

// StateObserved implements dispatch.EventSink.
func (s *mqttEventSink) StateObserved(_ context.Context, ev dispatch.StateEvent) {
	msg := stateMessage{
		State:              ev.State.State,
		StateName:          ev.State.StateName,
		DoorState:          ev.State.DoorState,
		DoorStateName:      ev.State.DoorStateName,
		BatteryChargeState: ev.State.BatteryChargeState,
		BatteryCritical:    ev.State.BatteryCritical,
		LastUpdate:         ev.State.LastUpdateUTC(),
		Timestamp:          ev.At.UTC().Format(time.RFC3339),
	}
	topic := s.client.Topics().LockState()
	if err := s.client.PublishJSON(topic, msg, true); err != nil {
		s.log.Warn("publishing lock state failed", "topic", topic, "error", err)
	}
}

// telemetryWriter is the subset of *influxdb.Client the InfluxDB sink uses.
type telemetryWriter interface {
	WriteLockAction(deviceID, action, outcome string, duration time.Duration, at time.Time)
	WriteLockState(deviceID string, s influxdb.LockSample, at time.Time)
}

// influxEventSink records lock activity as time series. Writes are batched
// by the client, so neither method blocks.
type influxEventSink struct {
	writer   telemetryWriter
	deviceID string
}

// ActionPerformed implements dispatch.EventSink.
func (s *influxEventSink) ActionPerformed(_ context.Context, ev dispatch.ActionEvent) {
	s.writer.WriteLockAction(s.deviceID, ev.Action.String(), actionOutcome(ev), ev.Duration, ev.At)
	if ev.BatteryCritical != nil {
		s.writer.WriteLockState(s.deviceID, influxdb.LockSample{BatteryCritical: ev.BatteryCritical}, ev.At)
	}
}

// StateObserved implements dispatch.EventSink.
func (s *influxEventSink) StateObserved(_ context.Context, ev dispatch.StateEvent) {
	s.writer.WriteLockState(s.deviceID, influxdb.LockSample{
		State:              ev.State.State,
		StateName:          ev.State.StateName,
		DoorState:          ev.State.DoorState,
		BatteryChargeState: ev.State.BatteryChargeState,
		BatteryCritical:    ev.State.BatteryCritical,
	}, ev.At)
}

// actionOutcome is the outcome label, or "error" when the bridge was not
// reached at all.
func actionOutcome(ev dispatch.ActionEvent) string {
	if ev.Err != "" {
		return "error"
	}
	return ev.Outcome.String()
}

var (
	_ dispatch.EventSink = (*mqttEventSink)(nil)
	_ dispatch.EventSink = (*influxEventSink)(nil)
	_ statePublisher     = (*mqtt.Client)(nil)
	_ telemetryWriter    = (*influxdb.Client)(nil)
)
