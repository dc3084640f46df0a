package stream

import "github.com/sand/crypto-stream-client/internal/entities"

// Alert is a transient user-facing message carrying a navigable route.
type Alert struct {
	Title   string
	Message string
	// Route is the deep link the alert action should navigate to.
	Route string
}

// NotificationSink receives notifications in arrival order, newest first
// on the consumer side. It also owns the unread counter.
type NotificationSink interface {
	Push(notification entities.Notification)
	IncrementUnread()
}

// AlertSink receives transient alerts.
type AlertSink interface {
	Alert(alert Alert)
}

// NopNotificationSink discards notifications.
type NopNotificationSink struct{}

func (NopNotificationSink) Push(entities.Notification) {}
func (NopNotificationSink) IncrementUnread()           {}

// NopAlertSink discards alerts.
type NopAlertSink struct{}

func (NopAlertSink) Alert(Alert) {}
