package webpush

// Notification is an immutable pending push, created at enqueue time.
// Payload is nil for silent "tickle" pushes. When Payload is set but either
// key field is missing, the notification is sent with an unencrypted body.
type Notification struct {
	Endpoint      string
	Payload       []byte
	SubscriberKey []byte // uncompressed P-256 point, 65 bytes
	AuthSecret    []byte // 16 bytes
}

// Group is one drained queue bucket: all notifications enqueued for a single
// service type, in enqueue order.
type Group struct {
	Type          ServiceType
	Notifications []Notification
}

// notificationQueue groups pending notifications by service type. Groups are
// ordered by first insertion; notifications within a group keep enqueue
// order. Drain is the only way to obtain and clear the contents.
type notificationQueue struct {
	order  []ServiceType
	groups map[ServiceType][]Notification
	size   int
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{groups: make(map[ServiceType][]Notification)}
}

// add appends n to the group for t, creating the group on first use.
func (q *notificationQueue) add(t ServiceType, n Notification) {
	if _, ok := q.groups[t]; !ok {
		q.order = append(q.order, t)
	}
	q.groups[t] = append(q.groups[t], n)
	q.size++
}

// len returns the number of pending notifications across all groups.
func (q *notificationQueue) len() int {
	return q.size
}

// types returns the service types currently queued, in group order.
func (q *notificationQueue) types() []ServiceType {
	return q.order
}

// drain returns all groups in insertion order and resets the queue. The
// returned batch is the caller's to consume exactly once.
func (q *notificationQueue) drain() []Group {
	groups := make([]Group, 0, len(q.order))
	for _, t := range q.order {
		groups = append(groups, Group{Type: t, Notifications: q.groups[t]})
	}
	q.order = nil
	q.groups = make(map[ServiceType][]Notification)
	q.size = 0
	return groups
}
