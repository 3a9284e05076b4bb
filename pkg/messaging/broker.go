package messaging

import (
	"fmt"
	"sync"
)

// SimpleBroker implements the Broker interface
// subscribers is a map where keys are subscriber IDs and values are channels for receiving events
type SimpleBroker struct {
	subscribers map[string]chan<- Event
	mu          sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Event),
	}
}

// Publish delivers ev to every subscriber without blocking. A full channel
// drops the event for that subscriber and is reported after the others are served.
func (b *SimpleBroker) Publish(ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var full []string
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			full = append(full, id)
		}
	}
	if len(full) > 0 {
		return fmt.Errorf("subscriber channel full, dropped event for %v", full)
	}
	return nil
}

// Subscribe registers a consumer to receive events
func (b *SimpleBroker) Subscribe(subscriberID string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[subscriberID]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", subscriberID)
	}

	b.subscribers[subscriberID] = ch
	return nil
}

// Unsubscribe removes a consumer's subscription
func (b *SimpleBroker) Unsubscribe(subscriberID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[subscriberID]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", subscriberID)
	}

	delete(b.subscribers, subscriberID)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Event)
}
