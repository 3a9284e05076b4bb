package messaging

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

func testEvent(step int) Event {
	return Event{
		RunID:      uuid.New(),
		Episode:    0,
		Step:       step,
		Transition: core.Transition{State: 0, Action: 0, Reward: 0.122, Next: 1, Done: true},
		Timestamp:  time.Now(),
	}
}

func TestBroker(t *testing.T) {
	t.Run("test fan out", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch1 := make(chan Event, 1)
		ch2 := make(chan Event, 1)

		if err := broker.Subscribe("recorder", ch1); err != nil {
			t.Fatalf("Failed to subscribe recorder: %v", err)
		}
		if err := broker.Subscribe("printer", ch2); err != nil {
			t.Fatalf("Failed to subscribe printer: %v", err)
		}

		ev := testEvent(1)
		if err := broker.Publish(ev); err != nil {
			t.Fatalf("Failed to publish event: %v", err)
		}

		for id, ch := range map[string]chan Event{"recorder": ch1, "printer": ch2} {
			select {
			case received := <-ch:
				if received.RunID != ev.RunID || received.Transition != ev.Transition {
					t.Errorf("Unexpected event received by %s: %+v", id, received)
				}
			case <-time.After(time.Second):
				t.Errorf("Timeout waiting for event on %s", id)
			}
		}
	})

	t.Run("test publish without subscribers", func(t *testing.T) {
		broker := NewBroker()
		if err := broker.Publish(testEvent(1)); err != nil {
			t.Errorf("Publish with no subscribers should succeed, got %v", err)
		}
	})

	t.Run("test subscription management", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch := make(chan Event, 1)

		if err := broker.Subscribe("recorder", ch); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		if err := broker.Subscribe("recorder", ch); err == nil {
			t.Error("Expected error for duplicate subscription, got nil")
		}

		if err := broker.Unsubscribe("recorder"); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}

		if err := broker.Unsubscribe("recorder"); err == nil {
			t.Error("Expected error for unsubscribing non-existent subscriber, got nil")
		}

		if err := broker.Publish(testEvent(1)); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}
		select {
		case ev := <-ch:
			t.Errorf("Unsubscribed channel received event: %+v", ev)
		case <-time.After(100 * time.Millisecond):
			// This is expected
		}
	})

	t.Run("test channel full behavior", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		slow := make(chan Event, 1)
		fast := make(chan Event, 2)

		if err := broker.Subscribe("slow", slow); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("fast", fast); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		if err := broker.Publish(testEvent(1)); err != nil {
			t.Fatalf("Failed to publish first event: %v", err)
		}

		if err := broker.Publish(testEvent(2)); err == nil {
			t.Error("Expected error when publishing to full channel, got nil")
		}

		// the subscriber with room still gets both events
		if len(fast) != 2 {
			t.Errorf("fast subscriber has %d events, want 2", len(fast))
		}
	})
}
