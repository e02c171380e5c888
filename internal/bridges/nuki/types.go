package nuki

import (
	"encoding/json"
	"time"
)

// Action is a lockAction code from the bridge API.
type Action int

// Supported lock actions.
const (
	ActionUnlock  Action = 1
	ActionLock    Action = 2
	ActionUnlatch Action = 3
	ActionLockNGo Action = 4
)

// String returns the action name used in logs, metrics and events.
func (a Action) String() string {
	switch a {
	case ActionUnlock:
		return "unlock"
	case ActionLock:
		return "lock"
	case ActionUnlatch:
		return "unlatch"
	case ActionLockNGo:
		return "lockngo"
	default:
		return "unknown"
	}
}

// Outcome is the bridge's verdict on an action.
type Outcome int

// The bridge reports success as a boolean that may be missing.
const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// String returns the outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ActionResult is the decoded /lockAction response.
type ActionResult struct {
	Outcome Outcome

	// BatteryCritical is nil when the bridge did not report it.
	BatteryCritical *bool
}

// LockState is the decoded /lockState response. Absent fields are nil or empty.
type LockState struct {
	State              *int
	StateName          string
	DoorState          *int
	DoorStateName      string
	BatteryChargeState *int
	BatteryCritical    *bool

	// LastUpdate is the raw lastActionDate, or timestamp when that is absent.
	LastUpdate string
}

// Empty reports whether the bridge returned none of the known fields.
func (s LockState) Empty() bool {
	return s.State == nil && s.StateName == "" &&
		s.DoorState == nil && s.DoorStateName == "" &&
		s.BatteryChargeState == nil && s.BatteryCritical == nil &&
		s.LastUpdate == ""
}

// LastUpdateUTC renders LastUpdate as "2006-01-02 15:04:05 UTC".
// Values that are not RFC 3339 are returned unchanged.
func (s LockState) LastUpdateUTC() string {
	if s.LastUpdate == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s.LastUpdate); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		}
	}
	return s.LastUpdate
}

// actionResponse mirrors the /lockAction body.
type actionResponse struct {
	Success         json.RawMessage `json:"success"`
	BatteryCritical *bool           `json:"batteryCritical"`
}

// stateResponse mirrors the /lockState body. Older firmware reports the door
// sensor as doorState; current firmware uses doorsensorState.
type stateResponse struct {
	State               *int   `json:"state"`
	StateName           string `json:"stateName"`
	DoorState           *int   `json:"doorState"`
	DoorStateName       string `json:"doorStateName"`
	DoorsensorState     *int   `json:"doorsensorState"`
	DoorsensorStateName string `json:"doorsensorStateName"`
	BatteryChargeState  *int   `json:"batteryChargeState"`
	BatteryCritical     *bool  `json:"batteryCritical"`
	LastActionDate      string `json:"lastActionDate"`
	Timestamp           string `json:"timestamp"`
}

func (r actionResponse) result() ActionResult {
	res := ActionResult{Outcome: OutcomeUnknown, BatteryCritical: r.BatteryCritical}
	// A literal null decodes without error but leaves ok nil: still unknown.
	var ok *bool
	if len(r.Success) > 0 && json.Unmarshal(r.Success, &ok) == nil && ok != nil {
		if *ok {
			res.Outcome = OutcomeSuccess
		} else {
			res.Outcome = OutcomeFailure
		}
	}
	return res
}

func (r stateResponse) state() LockState {
	s := LockState{
		State:              r.State,
		StateName:          r.StateName,
		DoorState:          r.DoorState,
		DoorStateName:      r.DoorStateName,
		BatteryChargeState: r.BatteryChargeState,
		BatteryCritical:    r.BatteryCritical,
		LastUpdate:         r.LastActionDate,
	}
	if s.DoorState == nil && s.DoorStateName == "" {
		s.DoorState = r.DoorsensorState
		s.DoorStateName = r.DoorsensorStateName
	}
	if s.LastUpdate == "" {
		s.LastUpdate = r.Timestamp
	}
	return s
}
