package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementLockState  = "lock_state"
	MeasurementLockAction = "lock_action"
)

// LockSample is one status read. Nil fields were absent from the bridge
// response and are not written.
type LockSample struct {
	State              *int
	StateName          string
	DoorState          *int
	BatteryChargeState *int
	BatteryCritical    *bool
}

// WriteLockState records a status read for deviceID.
// Samples without any numeric field are skipped.
func (c *Client) WriteLockState(deviceID string, s LockSample, at time.Time) {
	if p := lockStatePoint(deviceID, s, at); p != nil {
		c.writePoint(p)
	}
}

// WriteLockAction records one completed bridge action.
//
// Parameters:
//   - deviceID: Bridge device ID (nukiId)
//   - action: Action name (lock, unlock, unlatch, lockngo)
//   - outcome: success, failure or unknown
//   - duration: Round-trip time of the bridge call
//   - at: Completion time
func (c *Client) WriteLockAction(deviceID, action, outcome string, duration time.Duration, at time.Time) {
	c.writePoint(lockActionPoint(deviceID, action, outcome, duration, at))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func lockStatePoint(deviceID string, s LockSample, at time.Time) *write.Point {
	fields := make(map[string]interface{}, 4)
	if s.State != nil {
		fields["state"] = int64(*s.State)
	}
	if s.DoorState != nil {
		fields["door_state"] = int64(*s.DoorState)
	}
	if s.BatteryChargeState != nil {
		fields["battery_percent"] = int64(*s.BatteryChargeState)
	}
	if s.BatteryCritical != nil {
		fields["battery_critical"] = *s.BatteryCritical
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{"device_id": deviceID}
	if s.StateName != "" {
		tags["state_name"] = s.StateName
	}
	return write.NewPoint(MeasurementLockState, tags, fields, at)
}

func lockActionPoint(deviceID, action, outcome string, duration time.Duration, at time.Time) *write.Point {
	success := int64(0)
	if outcome == "success" {
		success = 1
	}
	return write.NewPoint(
		MeasurementLockAction,
		map[string]string{
			"device_id": deviceID,
			"action":    action,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"success":     success,
		},
		at,
	)
}
