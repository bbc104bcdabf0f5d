package mesh

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amasampo/mesh/internal/bus"
)

// State is the node's mesh presence.
type State string

const (
	Booting      State = "BOOTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Offline      State = "OFFLINE"
)

var validTransitions = map[State][]State{
	Booting:      {Connected, Offline},
	Connected:    {Reconnecting, Degraded, Offline},
	Reconnecting: {Connected, Degraded, Offline},
	Degraded:     {Connected, Reconnecting, Offline},
	Offline:      {Booting},
}

// Machine tracks and enforces mesh presence transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current presence state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state, rejecting moves the presence model
// does not allow.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindMeshStatus,
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for presence change events.
type StatusChange struct {
	From State
	To   State
}
