package domain

// Delivery channels. In-app delivery happens over the WebSocket gateway and
// has no delivery record; only transports with resolvable targets appear in a
// notification's deliveries map.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Per-channel delivery statuses. pending is set at creation; the worker moves
// a channel to exactly one of the other three and never back.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Domain event types accepted by the events endpoint.
const (
	EventTaskAssigned       = "task.assigned"
	EventTaskOverdue        = "task.overdue"
	EventHiveInspectionNote = "hive.inspection.note"
)

// Notification types produced by the event bridge.
const (
	NotifTaskAssigned   = "TASK_ASSIGNED"
	NotifTaskOverdue    = "TASK_OVERDUE"
	NotifInspectionNote = "INSPECTION_NOTE"
)

// WebSocket envelope types.
const (
	MsgConnected           = "connected"
	MsgNotificationCreated = "notification_created"
	MsgNotificationRead    = "notification_read"
	MsgPing                = "ping"
	MsgPong                = "pong"
	MsgMarkRead            = "markRead"
	MsgError               = "error"
)

// KnownEventType reports whether t is an accepted domain event type.
func KnownEventType(t string) bool {
	switch t {
	case EventTaskAssigned, EventTaskOverdue, EventHiveInspectionNote:
		return true
	}
	return false
}
