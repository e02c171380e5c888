package dispatch

import (
	"strconv"
	"strings"

	"github.com/nerrad567/lockbot/internal/access"
	"github.com/nerrad567/lockbot/internal/bridges/nuki"
	"github.com/nerrad567/lockbot/internal/confirm"
	"github.com/nerrad567/lockbot/internal/i18n"
)

// lockOperation binds a capability to its bridge action and texts.
type lockOperation struct {
	action     nuki.Action
	sendingKey string
	doneKey    string
}

var lockOperations = map[access.Capability]lockOperation{
	access.CapLock:    {action: nuki.ActionLock, sendingKey: "sending_lock", doneKey: "lock_ok"},
	access.CapUnlock:  {action: nuki.ActionUnlock, sendingKey: "sending_unlock", doneKey: "unlock_ok"},
	access.CapOpen:    {action: nuki.ActionUnlatch, sendingKey: "sending_open", doneKey: "open_ok"},
	access.CapLockNGo: {action: nuki.ActionLockNGo, sendingKey: "sending_lockngo", doneKey: "lockngo_ok"},
}

// performAction authorises c and runs its bridge action. Open must go
// through askOpenConfirmation first; this is its final step.
func (d *Dispatcher) performAction(t *turn, c access.Capability) string {
	if !d.policy.Authorize(t.id, c) {
		return d.refuse(t)
	}
	if c.RequiresConfirmation() {
		return d.askOpenConfirmation(t)
	}
	d.execute(t, c)
	return outcomeOK
}

// execute calls the bridge. Callers have authorised c.
func (d *Dispatcher) execute(t *turn, c access.Capability) {
	op := lockOperations[c]
	d.send(t, Response{Text: d.text(t, op.sendingKey, nil)})

	start := d.now()
	res, err := d.bridge.PerformAction(t.ctx, op.action)
	elapsed := d.now().Sub(start)

	result := res.Outcome.String()
	ev := ActionEvent{
		RequestID:       t.req.ID,
		Action:          op.action,
		Outcome:         res.Outcome,
		BatteryCritical: res.BatteryCritical,
		Duration:        elapsed,
		At:              start,
	}
	if err != nil {
		result = "error"
		ev.Err = err.Error()
		d.logger.Error("lock action failed", "request_id", t.req.ID, "action", op.action.String(), "error", err)
	}
	bridgeRequestsTotal.WithLabelValues(op.action.String(), result).Inc()
	bridgeRequestDuration.WithLabelValues(op.action.String()).Observe(elapsed.Seconds())
	d.events.ActionPerformed(t.ctx, ev)

	d.send(t, Response{
		Text:    d.formatAction(t, op, res, err),
		Buttons: d.mainMenu(t),
	})
}

func (d *Dispatcher) formatAction(t *turn, op lockOperation, res nuki.ActionResult, err error) string {
	parts := []string{d.text(t, op.doneKey, nil)}
	if err != nil {
		parts = append(parts, d.text(t, "bridge_error", i18n.Vars{"error": err.Error()}))
		return strings.Join(parts, "\n")
	}

	parts = append(parts, d.text(t, "bridge_response_header", nil))
	switch res.Outcome {
	case nuki.OutcomeSuccess:
		parts = append(parts, d.text(t, "bridge_success", nil))
	case nuki.OutcomeFailure:
		parts = append(parts, d.text(t, "bridge_failure", nil))
	default:
		parts = append(parts, d.text(t, "bridge_unknown", nil))
	}

	if res.BatteryCritical != nil {
		if *res.BatteryCritical {
			parts = append(parts, d.text(t, "battery_critical", nil))
		} else {
			parts = append(parts, d.text(t, "battery_ok", nil))
		}
	}
	return strings.Join(parts, "\n")
}

// askOpenConfirmation issues a token and shows the yes/no pair.
// The bridge is not called.
func (d *Dispatcher) askOpenConfirmation(t *turn) string {
	if !d.policy.Authorize(t.id, access.CapOpen) {
		return d.refuse(t)
	}

	token, err := d.tokens.Issue(t.id)
	if err != nil {
		d.logger.Error("issuing confirmation token failed", "request_id", t.req.ID, "error", err)
		d.send(t, Response{
			Text:    d.text(t, "bridge_error", i18n.Vars{"error": err.Error()}),
			Buttons: d.mainMenu(t),
		})
		return outcomeInvalid
	}

	d.send(t, Response{
		Text: d.text(t, "confirm_open_question", nil),
		Buttons: [][]Button{{
			{Label: d.label(t, "yes_open"), Data: ButtonPress{Kind: ButtonConfirmOpen, Token: token}.Data()},
			{Label: d.label(t, "no_cancel"), Data: ButtonPress{Kind: ButtonCancelOpen, Token: token}.Data()},
		}},
	})
	return outcomeOK
}

// confirmOpen resolves a "yes" press. Authorisation is checked again because
// capabilities may have been revoked since the token was issued.
func (d *Dispatcher) confirmOpen(t *turn, token string) string {
	decision := d.tokens.Confirm(t.id, token)
	confirmationsTotal.WithLabelValues(decision.String()).Inc()

	if decision != confirm.Approved {
		d.send(t, Response{Text: d.text(t, "confirm_open_expired", nil), Buttons: d.mainMenu(t)})
		return outcomeInvalid
	}
	if !d.policy.Authorize(t.id, access.CapOpen) {
		d.logger.Warn("open confirmed after capability was revoked", "request_id", t.req.ID, "identity", t.id)
		return d.refuse(t)
	}

	d.execute(t, access.CapOpen)
	return outcomeOK
}

// cancelOpen resolves a "no" press.
func (d *Dispatcher) cancelOpen(t *turn, token string) string {
	decision := d.tokens.Reject(t.id, token)
	confirmationsTotal.WithLabelValues(decision.String()).Inc()

	d.send(t, Response{Text: d.text(t, "confirm_open_cancelled", nil), Buttons: d.mainMenu(t)})
	return outcomeOK
}

func (d *Dispatcher) showStatus(t *turn) string {
	if !d.policy.Authorize(t.id, access.CapStatus) {
		return d.refuse(t)
	}

	d.send(t, Response{Text: d.text(t, "reading_state", nil)})

	start := d.now()
	state, err := d.bridge.ReadState(t.ctx)
	elapsed := d.now().Sub(start)
	bridgeRequestDuration.WithLabelValues("state").Observe(elapsed.Seconds())

	if err != nil {
		bridgeRequestsTotal.WithLabelValues("state", "error").Inc()
		d.logger.Error("lock state read failed", "request_id", t.req.ID, "error", err)
		d.send(t, Response{
			Text:    d.text(t, "bridge_error", i18n.Vars{"error": err.Error()}),
			Buttons: d.mainMenu(t),
		})
		return outcomeOK
	}

	bridgeRequestsTotal.WithLabelValues("state", "success").Inc()
	d.events.StateObserved(t.ctx, StateEvent{RequestID: t.req.ID, State: state, At: start})

	d.send(t, Response{Text: d.summarizeState(t, state), Buttons: d.mainMenu(t)})
	return outcomeOK
}

// summarizeState renders the fields the bridge reported, one per line.
func (d *Dispatcher) summarizeState(t *turn, s nuki.LockState) string {
	if s.Empty() {
		return d.text(t, "state_no_data", nil)
	}

	var parts []string
	if s.State != nil {
		name := s.StateName
		if name == "" {
			name = strconv.Itoa(*s.State)
		}
		parts = append(parts, d.text(t, "state_header_state", i18n.Vars{"state_name": name, "state": *s.State}))
	}
	if s.DoorState != nil {
		name := s.DoorStateName
		if name == "" {
			name = strconv.Itoa(*s.DoorState)
		}
		parts = append(parts, d.text(t, "state_header_door", i18n.Vars{"door_state_name": name, "door_state": *s.DoorState}))
	}
	if s.BatteryChargeState != nil {
		parts = append(parts, d.text(t, "state_header_battery", i18n.Vars{"batt_pct": *s.BatteryChargeState}))
	}
	if s.BatteryCritical != nil {
		parts = append(parts, d.text(t, "state_header_battery_critical", i18n.Vars{"critical": *s.BatteryCritical}))
	}
	if ts := s.LastUpdateUTC(); ts != "" {
		parts = append(parts, d.text(t, "state_header_timestamp", i18n.Vars{"ts": ts}))
	}
	if len(parts) == 0 {
		return d.text(t, "state_no_data", nil)
	}
	return strings.Join(parts, "\n")
}
