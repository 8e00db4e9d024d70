package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Handlers subscribe by event type, or to every event with Wildcard. Publish
// calls handlers synchronously in the publisher's goroutine, in subscription
// order, and joins their errors. Handlers must not block: sessions publish
// while holding their own lock.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type and
	// to wildcard subscribers.
	Publish(event Event) error
	// Subscribe registers a handler for an event type and returns a handle
	// that can cancel it later.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error

	// PublishAsync publishes in a separate goroutine. The returned channel
	// receives the joined handler error (or nil) and is then closed.
	PublishAsync(event Event) <-chan error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns the counters accumulated while observers were
	// registered.
	GetMetrics() EventBusMetrics
}

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is an immutable notification. Source identifies the publisher, for
// editor sessions the session id.
type Event struct {
	Type   string
	Source string
	Time   time.Time
	Data   map[string]any
}

type (
	// EventHandler is invoked per delivered event. Returned errors are
	// aggregated by Publish.
	EventHandler func(event Event) error
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is told about every delivery. Observers should return
// quickly.
type EventBusObserver interface {
	OnDelivered(event Event, handlers int, err error, duration time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
}
