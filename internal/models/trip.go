package models

import (
	"time"

	"gorm.io/gorm"
)

type TripStatus string

const (
	TripStatusScheduled       TripStatus = "scheduled"
	TripStatusDriverConfirmed TripStatus = "driver_confirmed"
	TripStatusInProgress      TripStatus = "in_progress"
	TripStatusCompleted       TripStatus = "completed"
	TripStatusCancelled       TripStatus = "cancelled"
)

// Trip is a scheduled inter-city journey published by a driver.
// AvailableSeats is a stored counter kept in sync with bookings: it always
// equals TotalSeats minus the seats held by non-cancelled bookings.
type Trip struct {
	gorm.Model
	DriverID          uint       `json:"driverId" gorm:"not null;index"`
	Driver            User       `json:"driver"`
	FromCity          string     `json:"fromCity" gorm:"not null"`
	ToCity            string     `json:"toCity" gorm:"not null"`
	GatheringLocation string     `json:"gatheringLocation" gorm:"not null"`
	DepartureTime     time.Time  `json:"departureTime" gorm:"not null;index"`
	PriceCents        int64      `json:"priceCents" gorm:"not null"`
	TotalSeats        int        `json:"totalSeats" gorm:"not null"`
	AvailableSeats    int        `json:"availableSeats" gorm:"not null"`
	Status            TripStatus `json:"status" gorm:"not null;default:'scheduled';index"`
	Notes             string     `json:"notes,omitempty"`

	// Idempotency markers owned by the readiness scheduler and the
	// driver's ready confirmation. Written independently of the seat
	// counter, so they never contend with booking traffic.
	ReminderSentAt    *time.Time `json:"reminderSentAt,omitempty"`
	DriverConfirmedAt *time.Time `json:"driverConfirmedAt,omitempty"`
	AdminAlertSentAt  *time.Time `json:"adminAlertSentAt,omitempty"`
}

// IsTerminal reports whether the trip can no longer change state.
func (t *Trip) IsTerminal() bool {
	return t.Status == TripStatusCompleted || t.Status == TripStatusCancelled
}
