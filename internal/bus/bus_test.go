package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wallet.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindWalletUpdated, Timestamp: time.Now(), Payload: "u1"})

	select {
	case evt := <-ch:
		if evt.Kind != KindWalletUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindWalletUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindListingUpdated})
	b.Publish(Event{Kind: KindSyncStarted})

	select {
	case evt := <-ch:
		if evt.Kind != KindSyncStarted {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSyncStarted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure listing event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestFanOutDeliversToAllSubscribers(t *testing.T) {
	b := New()
	const n = 5

	var chans []<-chan Event
	for i := 0; i < n; i++ {
		ch, unsub := b.Subscribe("listing.", 10)
		defer unsub()
		chans = append(chans, ch)
	}

	b.Publish(Event{Kind: KindListingUpdated})

	for i, ch := range chans {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i)
		}
		// Exactly once: no second delivery.
		select {
		case evt := <-ch:
			t.Errorf("subscriber %d received extra event: %v", i, evt)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestOrderingWithinSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 16)
	defer unsub()

	kinds := []string{KindListingUpdated, KindWalletUpdated, KindTransactionNew, KindSyncCompleted}
	for _, k := range kinds {
		b.Publish(Event{Kind: k})
	}

	for i, want := range kinds {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("event %d = %q, want %q", i, evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wallet.", 10)
	unsub()
	// Unsubscribe twice is a no-op.
	unsub()

	b.Publish(Event{Kind: KindWalletUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
