// Package status tracks the health of a live sync view.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/batterydied/chatter/internal/bus"
)

// EventKind is the bus event kind published on every transition.
const EventKind = bus.SyncPrefix + "view_status"

// State represents the health of a view.
type State string

const (
	Establishing State = "ESTABLISHING"
	Live         State = "LIVE"
	Degraded     State = "DEGRADED"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Establishing: {Live, Degraded, Closed},
	Live:         {Degraded, Closed},
	Degraded:     {Live, Closed},
	Closed:       {},
}

// Machine tracks and enforces the state of one view.
type Machine struct {
	mu      sync.RWMutex
	view    string
	current State
	reason  string
	bus     *bus.Bus
}

// NewMachine creates a new state machine for view, starting in Establishing.
func NewMachine(view string, b *bus.Bus) *Machine {
	return &Machine{
		view:    view,
		current: Establishing,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the reason given for the last transition.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("view %s: invalid transition from %s to %s", m.view, m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      EventKind,
			Timestamp: time.Now(),
			Payload: StatusChange{
				View:   m.view,
				From:   from,
				To:     to,
				Reason: reason,
			},
		})
	}
	return nil
}

// Ensure moves to the given state unless the machine is already there or
// the move is not allowed. It reports whether a transition happened.
func (m *Machine) Ensure(to State, reason string) bool {
	if m.Current() == to {
		return false
	}
	return m.Transition(to, reason) == nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	View   string
	From   State
	To     State
	Reason string
}
