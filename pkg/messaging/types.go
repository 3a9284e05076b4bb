package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

// Event is one transition observed by a run
type Event struct {
	RunID      uuid.UUID       // Run that produced the transition
	Episode    int             // Episode index within the run
	Step       int             // Step index within the episode, from 1
	Transition core.Transition // The transition itself
	Truncated  bool            // Episode ended by the step cap
	Timestamp  time.Time       // When the step completed
}

// Publisher can emit events
type Publisher interface {
	Publish(ev Event) error
}

// Broker fans events out to subscribers
type Broker interface {
	Publisher
	// Subscribe registers a consumer to receive events
	Subscribe(subscriberID string, ch chan<- Event) error
	// Unsubscribe removes a consumer's subscription
	Unsubscribe(subscriberID string) error
}
