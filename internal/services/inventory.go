package services

import (
	"context"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

// Inventory manages the seat counter and the waitlist of a trip. All
// methods expect the trip row to have been loaded with a row lock by
// the surrounding atomic unit, so available_seats can never go below
// zero or above total_seats.
type Inventory struct{}

// ReserveResult reports how a reservation ended: either seats were
// taken, or the caller was appended to the waitlist at Position.
type ReserveResult struct {
	Waitlisted bool
	Position   int
}

// Reserve takes seatCount seats on trip for userID, or appends the user
// to the waitlist when the trip is full. The caller still owns payment
// and booking creation.
func (Inventory) Reserve(ctx context.Context, s store.Store, trip *models.Trip, userID uint, seatCount int, now time.Time) (ReserveResult, error) {
	if seatCount < 1 {
		return ReserveResult{}, InvalidOperationError("Seat count must be at least 1")
	}
	if trip.IsTerminal() {
		return ReserveResult{}, InvalidOperationError("This trip is no longer available for booking")
	}
	if !trip.DepartureTime.After(now) {
		return ReserveResult{}, InvalidOperationError("This trip has already departed")
	}

	if trip.AvailableSeats >= seatCount {
		trip.AvailableSeats -= seatCount
		if err := s.SaveTrip(ctx, trip); err != nil {
			return ReserveResult{}, err
		}
		return ReserveResult{}, nil
	}

	// Full: join the waitlist instead
	if _, err := s.WaitlistEntryFor(ctx, userID, trip.ID); err == nil {
		return ReserveResult{}, ConflictError("You are already on the waitlist for this trip")
	} else if err != store.ErrNotFound {
		return ReserveResult{}, err
	}

	last, err := s.LastWaitlistPosition(ctx, trip.ID)
	if err != nil {
		return ReserveResult{}, err
	}

	entry := &models.WaitlistEntry{
		UserID:   userID,
		TripID:   trip.ID,
		Position: last + 1,
	}
	if err := s.CreateWaitlistEntry(ctx, entry); err != nil {
		return ReserveResult{}, err
	}
	return ReserveResult{Waitlisted: true, Position: entry.Position}, nil
}

// Release returns seatCount seats to the trip, capped at total_seats
func (Inventory) Release(ctx context.Context, s store.Store, trip *models.Trip, seatCount int) error {
	trip.AvailableSeats += seatCount
	if trip.AvailableSeats > trip.TotalSeats {
		trip.AvailableSeats = trip.TotalSeats
	}
	return s.SaveTrip(ctx, trip)
}

// PromoteNext pops the head of the trip's waitlist and closes the gap,
// leaving positions dense and 1-based. Returns ok=false when the
// waitlist is empty. Promotion only notifies; the promoted user books
// at their own pace and pays nothing until they do.
func (Inventory) PromoteNext(ctx context.Context, s store.Store, tripID uint) (uint, bool, error) {
	entry, err := s.FirstWaitlistEntry(ctx, tripID)
	if err == store.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	if err := s.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
		return 0, false, err
	}
	if err := s.CloseWaitlistGap(ctx, tripID, entry.Position); err != nil {
		return 0, false, err
	}
	return entry.UserID, true, nil
}
