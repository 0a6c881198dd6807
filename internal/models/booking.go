package models

import (
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is one passenger's claim on seats of a trip. At most one
// non-cancelled booking may exist per (user, trip) pair.
type Booking struct {
	gorm.Model
	UserID uint          `json:"userId" gorm:"not null;index:idx_bookings_user_trip"`
	User   User          `json:"user"`
	TripID uint          `json:"tripId" gorm:"not null;index:idx_bookings_user_trip"`
	Trip   Trip          `json:"trip"`
	Seats  int           `json:"seats" gorm:"not null;default:1"`
	Status BookingStatus `json:"status" gorm:"not null;default:'pending';index"`
}

// ConsumesSeats reports whether the booking currently holds seat inventory.
func (b *Booking) ConsumesSeats() bool {
	return b.Status != BookingStatusCancelled
}

// WaitlistEntry is a queued request for a full trip. Positions for a given
// trip form a contiguous 1-based sequence with no gaps; the entry at
// position 1 is promoted first when a seat frees up.
type WaitlistEntry struct {
	gorm.Model
	UserID   uint `json:"userId" gorm:"not null;uniqueIndex:idx_waitlist_user_trip"`
	User     User `json:"user"`
	TripID   uint `json:"tripId" gorm:"not null;uniqueIndex:idx_waitlist_user_trip"`
	Trip     Trip `json:"trip"`
	Position int  `json:"position" gorm:"not null"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}
