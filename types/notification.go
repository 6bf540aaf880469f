package types

// NotificationKind identifies which account email to send.
type NotificationKind string

const (
	NotificationWelcome      NotificationKind = "welcome"
	NotificationCancellation NotificationKind = "cancellation"
)

// Notification is an account lifecycle email request carried over the
// message broker.
type Notification struct {
	Kind  NotificationKind `json:"kind"`
	Email string           `json:"email"`
	Name  string           `json:"name"`
}
