package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

// BookingCoordinator drives the booking lifecycle. Each operation runs
// as one atomic unit: seats, wallet movements, booking rows, waitlist
// changes and their notifications commit together or not at all.
// Websocket pushes happen only after a successful commit.
type BookingCoordinator struct {
	store     store.Store
	ledger    *Ledger
	inventory Inventory
	notifier  *Notifier
	now       func() time.Time
}

func NewBookingCoordinator(s store.Store, ledger *Ledger, notifier *Notifier) *BookingCoordinator {
	return &BookingCoordinator{
		store:    s,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// BookingResult reports the outcome of a seat request
type BookingResult struct {
	Booking    *models.Booking `json:"booking,omitempty"`
	Waitlisted bool            `json:"waitlisted"`
	Position   int             `json:"position,omitempty"`
	TotalCents int64           `json:"totalCents"`
}

// BookSeat books seatCount seats on a trip for userID, charging the
// full price from the wallet, or waitlists the user when the trip is
// full. Waitlisting charges nothing.
func (b *BookingCoordinator) BookSeat(ctx context.Context, userID, tripID uint, seatCount int) (*BookingResult, error) {
	var result BookingResult
	var pending []models.Notification

	err := runAtomic(ctx, b.store, func(s store.Store) error {
		result = BookingResult{}
		pending = pending[:0]

		user, err := s.GetUser(ctx, userID)
		if err != nil {
			return notFoundAs(err, "User not found")
		}
		if user.IsBanned {
			return ForbiddenError("Your account is suspended")
		}

		trip, err := s.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return notFoundAs(err, "Trip not found")
		}
		if trip.DriverID == userID {
			return InvalidOperationError("You cannot book a seat on your own trip")
		}

		if _, err := s.ActiveBooking(ctx, userID, tripID); err == nil {
			return ConflictError("You already have a booking on this trip")
		} else if err != store.ErrNotFound {
			return err
		}

		res, err := b.inventory.Reserve(ctx, s, trip, userID, seatCount, b.now())
		if err != nil {
			return err
		}

		if res.Waitlisted {
			note := models.Notification{
				UserID:   userID,
				Type:     models.NotificationWaitlisted,
				Title:    "Added to waitlist",
				Message:  fmt.Sprintf("The trip %s → %s is full. You are #%d on the waitlist.", trip.FromCity, trip.ToCity, res.Position),
				Metadata: fmt.Sprintf(`{"tripId":%d,"position":%d}`, trip.ID, res.Position),
			}
			if err := b.notifier.Enqueue(ctx, s, &note); err != nil {
				return err
			}
			pending = append(pending, note)
			result = BookingResult{Waitlisted: true, Position: res.Position}
			return nil
		}

		totalCents := trip.PriceCents * int64(seatCount)
		metadata := fmt.Sprintf(`{"tripId":%d,"seats":%d}`, trip.ID, seatCount)
		if _, err := b.ledger.Debit(ctx, s, userID, totalCents, fmt.Sprintf("BOOKING-TRIP-%d", trip.ID), metadata); err != nil {
			return err
		}

		booking := &models.Booking{
			UserID: userID,
			TripID: trip.ID,
			Seats:  seatCount,
			Status: models.BookingStatusConfirmed,
		}
		if err := s.CreateBooking(ctx, booking); err != nil {
			return err
		}

		note := models.Notification{
			UserID:   userID,
			Type:     models.NotificationBookingConfirmed,
			Title:    "Booking confirmed",
			Message:  fmt.Sprintf("Your booking for %s → %s on %s is confirmed. %s EGP was charged.", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("Jan 2, 15:04"), utils.FormatEGP(totalCents)),
			Metadata: fmt.Sprintf(`{"tripId":%d,"bookingId":%d}`, trip.ID, booking.ID),
		}
		if err := b.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		pending = append(pending, note)

		result = BookingResult{Booking: booking, TotalCents: totalCents}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.notifier.Push(pending...)
	go publishTripEvent(tripID, "seats_changed")
	return &result, nil
}

// CancelBooking cancels the caller's booking, refunds the full amount
// for a confirmed booking, releases the seats and promotes the head of
// the waitlist. Returns the refunded amount in piastres.
func (b *BookingCoordinator) CancelBooking(ctx context.Context, userID, bookingID uint) (int64, error) {
	var refundCents int64
	var tripID uint
	var pending []models.Notification

	err := runAtomic(ctx, b.store, func(s store.Store) error {
		refundCents = 0
		pending = pending[:0]

		booking, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return notFoundAs(err, "Booking not found")
		}
		if booking.UserID != userID {
			return ForbiddenError("This booking does not belong to you")
		}
		switch booking.Status {
		case models.BookingStatusCancelled:
			return InvalidOperationError("This booking is already cancelled")
		case models.BookingStatusCompleted:
			return InvalidOperationError("A completed booking cannot be cancelled")
		}

		trip, err := s.GetTripForUpdate(ctx, booking.TripID)
		if err != nil {
			return notFoundAs(err, "Trip not found")
		}
		tripID = trip.ID

		wasConfirmed := booking.Status == models.BookingStatusConfirmed
		booking.Status = models.BookingStatusCancelled
		if err := s.SaveBooking(ctx, booking); err != nil {
			return err
		}

		if err := b.inventory.Release(ctx, s, trip, booking.Seats); err != nil {
			return err
		}

		if wasConfirmed {
			refundCents = trip.PriceCents * int64(booking.Seats)
			metadata := fmt.Sprintf(`{"tripId":%d,"bookingId":%d}`, trip.ID, booking.ID)
			if _, err := b.ledger.Credit(ctx, s, userID, refundCents, models.TransactionTypeRefund, fmt.Sprintf("REFUND-BOOKING-%d", booking.ID), metadata); err != nil {
				return err
			}
		}

		promoted, ok, err := b.inventory.PromoteNext(ctx, s, trip.ID)
		if err != nil {
			return err
		}
		if ok {
			note := models.Notification{
				UserID:   promoted,
				Type:     models.NotificationSeatAvailable,
				Title:    "A seat is available",
				Message:  fmt.Sprintf("A seat opened up on %s → %s departing %s. Book now before it fills up again.", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("Jan 2, 15:04")),
				Metadata: fmt.Sprintf(`{"tripId":%d}`, trip.ID),
			}
			if err := b.notifier.Enqueue(ctx, s, &note); err != nil {
				return err
			}
			pending = append(pending, note)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	b.notifier.Push(pending...)
	go publishTripEvent(tripID, "seats_changed")
	return refundCents, nil
}

// CancelTrip cancels a whole trip on behalf of its driver. Confirmed
// passengers are refunded in full; everyone with a live booking or a
// waitlist entry is notified.
func (b *BookingCoordinator) CancelTrip(ctx context.Context, driverID, tripID uint) error {
	var pending []models.Notification

	err := runAtomic(ctx, b.store, func(s store.Store) error {
		pending = pending[:0]

		trip, err := s.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return notFoundAs(err, "Trip not found")
		}
		if trip.DriverID != driverID {
			return ForbiddenError("This trip does not belong to you")
		}
		if trip.IsTerminal() {
			return InvalidOperationError(fmt.Sprintf("Trip is already %s", trip.Status))
		}

		return b.cancelTripLocked(ctx, s, trip, "The driver cancelled this trip.", &pending)
	})
	if err != nil {
		return err
	}

	b.notifier.Push(pending...)
	go publishTripEvent(tripID, "trip_cancelled")
	return nil
}

// CompleteTrip marks a departed trip as completed and settles its
// confirmed bookings
func (b *BookingCoordinator) CompleteTrip(ctx context.Context, driverID, tripID uint) error {
	return runAtomic(ctx, b.store, func(s store.Store) error {
		// Locked read: the full-row SaveTrip below must not overwrite a
		// seat count committed by a booking that raced this call.
		trip, err := s.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return notFoundAs(err, "Trip not found")
		}
		if trip.DriverID != driverID {
			return ForbiddenError("This trip does not belong to you")
		}
		if trip.IsTerminal() {
			return InvalidOperationError(fmt.Sprintf("Trip is already %s", trip.Status))
		}
		if trip.DepartureTime.After(b.now()) {
			return InvalidOperationError("Trip cannot be completed before its departure time")
		}

		trip.Status = models.TripStatusCompleted
		if err := s.SaveTrip(ctx, trip); err != nil {
			return err
		}

		bookings, err := s.BookingsByTrip(ctx, trip.ID, models.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		for i := range bookings {
			bookings[i].Status = models.BookingStatusCompleted
			if err := s.SaveBooking(ctx, &bookings[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// cancelTripLocked performs the shared trip-cancellation path on a trip
// already loaded under the unit's row lock. Used by driver cancellation
// and by the no-show path.
func (b *BookingCoordinator) cancelTripLocked(ctx context.Context, s store.Store, trip *models.Trip, reason string, pending *[]models.Notification) error {
	trip.Status = models.TripStatusCancelled
	if err := s.SaveTrip(ctx, trip); err != nil {
		return err
	}

	bookings, err := s.BookingsByTrip(ctx, trip.ID, models.BookingStatusPending, models.BookingStatusConfirmed)
	if err != nil {
		return err
	}
	for i := range bookings {
		booking := &bookings[i]
		wasConfirmed := booking.Status == models.BookingStatusConfirmed
		if wasConfirmed {
			refund := trip.PriceCents * int64(booking.Seats)
			metadata := fmt.Sprintf(`{"tripId":%d,"bookingId":%d}`, trip.ID, booking.ID)
			if _, err := b.ledger.Credit(ctx, s, booking.UserID, refund, models.TransactionTypeRefund, fmt.Sprintf("REFUND-BOOKING-%d", booking.ID), metadata); err != nil {
				return err
			}
		}

		booking.Status = models.BookingStatusCancelled
		if err := s.SaveBooking(ctx, booking); err != nil {
			return err
		}

		message := fmt.Sprintf("Your trip %s → %s on %s was cancelled. %s", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("Jan 2, 15:04"), reason)
		if wasConfirmed {
			message += " Your payment has been refunded."
		}
		note := models.Notification{
			UserID:   booking.UserID,
			Type:     models.NotificationBookingCancelled,
			Title:    "Trip cancelled",
			Message:  message,
			Metadata: fmt.Sprintf(`{"tripId":%d,"bookingId":%d}`, trip.ID, booking.ID),
		}
		if err := b.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		*pending = append(*pending, note)
	}

	waitlist, err := s.Waitlist(ctx, trip.ID)
	if err != nil {
		return err
	}
	for _, entry := range waitlist {
		note := models.Notification{
			UserID:   entry.UserID,
			Type:     models.NotificationBookingCancelled,
			Title:    "Trip cancelled",
			Message:  fmt.Sprintf("The trip %s → %s on %s you were waitlisted for was cancelled. %s", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("Jan 2, 15:04"), reason),
			Metadata: fmt.Sprintf(`{"tripId":%d}`, trip.ID),
		}
		if err := b.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		*pending = append(*pending, note)
	}
	return s.ClearWaitlist(ctx, trip.ID)
}

// publishTripEvent fires a best-effort pub/sub event after commit
func publishTripEvent(tripID uint, event string) {
	if RedisClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = PublishTripUpdate(ctx, tripID, event, nil)
	_ = InvalidateTripSearchCache(ctx)
}
