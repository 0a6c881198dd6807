package models

import (
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationWaitlisted       NotificationType = "waitlisted"
	NotificationSeatAvailable    NotificationType = "seat_available"
	NotificationTripReminder     NotificationType = "trip_reminder"
	NotificationDriverReady      NotificationType = "driver_ready"
	NotificationDriverAlert      NotificationType = "driver_alert"
	NotificationDepositApproved  NotificationType = "deposit_approved"
	NotificationDepositRejected  NotificationType = "deposit_rejected"
	NotificationAccountBanned    NotificationType = "account_banned"
)

// Notification is the persisted enqueue record; delivery beyond this row
// (websocket push) is best-effort and carries no state of its own.
type Notification struct {
	gorm.Model
	UserID   uint             `json:"userId" gorm:"not null;index"`
	Type     NotificationType `json:"type" gorm:"not null"`
	Title    string           `json:"title" gorm:"not null"`
	Message  string           `json:"message" gorm:"not null"`
	Metadata string           `json:"metadata,omitempty"`
	IsRead   bool             `json:"isRead" gorm:"not null;default:false;index"`
}
