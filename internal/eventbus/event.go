package eventbus

import "time"

// Delivery lifecycle event types.
const (
	EventDeliverySent   = "webpush.delivery.sent"
	EventDeliveryFailed = "webpush.delivery.failed"
	EventFlushCompleted = "webpush.flush.completed"
)

// Event represents an application event published to the bus.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)
