package model

import (
	"encoding/json"
	"time"
)

// NotificationType is the fixed set of real-time notification kinds.
type NotificationType string

// Notification types. Anything else received on the wire is treated as NotifyOther.
const (
	NotifyTransaction NotificationType = "transaction"
	NotifyGroup       NotificationType = "group"
	NotifyPayment     NotificationType = "payment"
	NotifySystem      NotificationType = "system"
	NotifyUser        NotificationType = "user"
	NotifyOther       NotificationType = "other"
)

// NotificationTypes lists every type.
var NotificationTypes = []NotificationType{
	NotifyTransaction, NotifyGroup, NotifyPayment, NotifySystem, NotifyUser, NotifyOther,
}

// ParseNotificationType maps s onto the fixed enumeration.
func ParseNotificationType(s string) NotificationType {
	for _, t := range NotificationTypes {
		if string(t) == s {
			return t
		}
	}
	return NotifyOther
}

// Notification is the payload of a "notification" socket event.
type Notification struct {
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	Data       json.RawMessage  `json:"data,omitempty"`
	UserID     string           `json:"userId,omitempty"`
	ReceivedAt time.Time        `json:"receivedAt,omitempty"`
}
