package session

import (
	"errors"
	"testing"

	"github.com/nerrad567/lockbot/internal/access"
)

const (
	admin access.Identity = 100
	user  access.Identity = 200
)

func newTestManager() *Manager {
	return NewManager(func(id access.Identity) bool { return id == admin })
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    Mode
		event   Event
		target  access.Identity
		want    Mode
		wantErr bool
	}{
		{name: "idle to add user", from: Mode{}, event: EventAddUser, want: Mode{State: AwaitingNewUserInput}},
		{name: "add user completes", from: Mode{State: AwaitingNewUserInput}, event: EventUserAdded, want: Mode{}},
		{name: "user added from idle is invalid", from: Mode{}, event: EventUserAdded, want: Mode{}, wantErr: true},
		{name: "list users", from: Mode{}, event: EventListUsers, want: Mode{State: ViewingUserList}},
		{name: "list to edit", from: Mode{State: ViewingUserList}, event: EventEditUser, target: 5, want: Mode{State: EditingUser, Target: 5}},
		{name: "edit to edit other", from: Mode{State: EditingUser, Target: 5}, event: EventEditUser, target: 6, want: Mode{State: EditingUser, Target: 6}},
		{name: "delete leaves target", from: Mode{State: EditingUser, Target: 5}, event: EventUserDeleted, want: Mode{State: ViewingUserList}},
		{name: "back from edit", from: Mode{State: EditingUser, Target: 5}, event: EventBack, want: Mode{}},
		{name: "cancel from add", from: Mode{State: AwaitingNewUserInput}, event: EventCancel, want: Mode{}},
		{name: "list abandons add wizard", from: Mode{State: AwaitingNewUserInput}, event: EventListUsers, want: Mode{State: ViewingUserList}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transition(tt.from, tt.event, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("transition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("transition() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApply_NonAdminStaysIdle(t *testing.T) {
	m := newTestManager()

	for _, ev := range []Event{EventAddUser, EventListUsers, EventEditUser} {
		if _, err := m.Apply(user, ev, 1); !errors.Is(err, ErrNotAdmin) {
			t.Errorf("Apply(user, %d) error = %v, want ErrNotAdmin", ev, err)
		}
	}
	if got := m.Get(user); got.State != Idle {
		t.Errorf("non-admin state = %v, want idle", got.State)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}

func TestApply_AddUserFlow(t *testing.T) {
	m := newTestManager()

	if _, err := m.Apply(admin, EventAddUser, 0); err != nil {
		t.Fatalf("Apply(add) error = %v", err)
	}
	if m.Get(admin).State != AwaitingNewUserInput {
		t.Fatalf("state = %v", m.Get(admin).State)
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}

	if _, err := m.Apply(admin, EventUserAdded, 0); err != nil {
		t.Fatalf("Apply(added) error = %v", err)
	}
	if m.Get(admin).State != Idle || m.Active() != 0 {
		t.Errorf("wizard did not return to idle")
	}

	// A second completion without a wizard is rejected and leaves state alone.
	if _, err := m.Apply(admin, EventUserAdded, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestModesAreIsolated(t *testing.T) {
	other := access.Identity(101)
	m := NewManager(func(id access.Identity) bool { return id == admin || id == other })

	m.Apply(admin, EventAddUser, 0)    //nolint:errcheck // Test setup
	m.Apply(other, EventEditUser, 555) //nolint:errcheck // Test setup

	if m.Get(admin).State != AwaitingNewUserInput {
		t.Errorf("admin state = %v", m.Get(admin).State)
	}
	if got := m.Get(other); got.State != EditingUser || got.Target != 555 {
		t.Errorf("other mode = %+v", got)
	}
}

func TestReset(t *testing.T) {
	m := newTestManager()

	if m.Reset(admin) {
		t.Error("Reset() on idle = true, want false")
	}
	m.Apply(admin, EventListUsers, 0) //nolint:errcheck // Test setup
	if !m.Reset(admin) {
		t.Error("Reset() on active = false, want true")
	}
	if m.Get(admin).State != Idle {
		t.Error("Reset() did not return to idle")
	}
}
