package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/lockbot/internal/access"
)

// State is the wizard state of one identity.
type State int

const (
	Idle State = iota
	AwaitingNewUserInput
	ViewingUserList
	EditingUser
)

// String returns a label suitable for logs.
func (s State) String() string {
	switch s {
	case AwaitingNewUserInput:
		return "awaiting_new_user"
	case ViewingUserList:
		return "viewing_user_list"
	case EditingUser:
		return "editing_user"
	default:
		return "idle"
	}
}

// Mode is a State plus the user being edited when State is EditingUser.
type Mode struct {
	State  State
	Target access.Identity
}

// Event drives a transition.
type Event int

const (
	// EventAddUser enters AwaitingNewUserInput.
	EventAddUser Event = iota
	// EventListUsers enters ViewingUserList.
	EventListUsers
	// EventEditUser enters EditingUser for the event target.
	EventEditUser
	// EventUserAdded completes the add-user wizard.
	EventUserAdded
	// EventUserDeleted leaves the editor for the post-delete notice.
	EventUserDeleted
	// EventBack returns to Idle from any state.
	EventBack
	// EventCancel returns to Idle from any state.
	EventCancel
)

// Errors returned by Apply.
var (
	ErrNotAdmin          = errors.New("session: identity is not an admin")
	ErrInvalidTransition = errors.New("session: invalid transition")
)

// transition computes the next mode. It is pure so the table is easy to test.
func transition(cur Mode, ev Event, target access.Identity) (Mode, error) {
	switch ev {
	case EventAddUser:
		return Mode{State: AwaitingNewUserInput}, nil
	case EventListUsers:
		return Mode{State: ViewingUserList}, nil
	case EventEditUser:
		return Mode{State: EditingUser, Target: target}, nil
	case EventUserAdded:
		if cur.State != AwaitingNewUserInput {
			return cur, fmt.Errorf("%w: user added while %s", ErrInvalidTransition, cur.State)
		}
		return Mode{State: Idle}, nil
	case EventUserDeleted:
		return Mode{State: ViewingUserList}, nil
	case EventBack, EventCancel:
		return Mode{State: Idle}, nil
	}
	return cur, fmt.Errorf("%w: unknown event %d", ErrInvalidTransition, ev)
}

// Manager holds the mode of every identity. Idle identities are not stored.
//
// All public methods are thread-safe.
type Manager struct {
	isAdmin func(access.Identity) bool

	mu    sync.Mutex
	modes map[access.Identity]Mode
}

// NewManager creates a manager. isAdmin gates every transition out of Idle.
func NewManager(isAdmin func(access.Identity) bool) *Manager {
	return &Manager{
		isAdmin: isAdmin,
		modes:   make(map[access.Identity]Mode),
	}
}

// Get returns the current mode of id.
func (m *Manager) Get(id access.Identity) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modes[id]
}

// Apply performs ev for id and returns the new mode. target is only used by
// EventEditUser. Non-admins are rejected with ErrNotAdmin and stay Idle.
func (m *Manager) Apply(id access.Identity, ev Event, target access.Identity) (Mode, error) {
	if !m.isAdmin(id) {
		return Mode{}, ErrNotAdmin
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := transition(m.modes[id], ev, target)
	if err != nil {
		return m.modes[id], err
	}
	if next.State == Idle {
		delete(m.modes, id)
	} else {
		m.modes[id] = next
	}
	return next, nil
}

// Reset returns id to Idle and reports whether it was in another state.
func (m *Manager) Reset(id access.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, active := m.modes[id]
	delete(m.modes, id)
	return active
}

// Active returns the number of identities not in Idle.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.modes)
}
