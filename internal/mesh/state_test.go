package mesh

import (
	"testing"

	"github.com/amasampo/mesh/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Booting {
		t.Errorf("initial state = %s, want %s", got, Booting)
	}
}

func TestValidTransitionChain(t *testing.T) {
	m := NewMachine(nil)
	for _, to := range []State{Connected, Degraded, Reconnecting, Connected, Offline, Booting} {
		if err := m.Transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Degraded); err == nil {
		t.Fatal("expected error for Booting -> Degraded")
	}
	if got := m.Current(); got != Booting {
		t.Errorf("state changed on rejected transition: %s", got)
	}
}

func TestTransitionPublishesStatusEvent(t *testing.T) {
	b := bus.New()
	events, unsubscribe := b.Subscribe(bus.KindMeshStatus, 4)
	defer unsubscribe()

	m := NewMachine(b)
	if err := m.Transition(Connected); err != nil {
		t.Fatalf("transition: %v", err)
	}

	ev := <-events
	change, ok := ev.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if change.From != Booting || change.To != Connected {
		t.Errorf("change = %+v", change)
	}
}
