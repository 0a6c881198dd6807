package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

// Readiness can only be confirmed this close to departure
const confirmWindow = 60 * time.Minute

// Two strikes and the driver is out until an admin intervenes
const noShowBanThreshold = 2

// DriverService covers the driver readiness flow: confirming a trip
// shortly before departure, and the admin marking a no-show when the
// driver never did.
type DriverService struct {
	store       store.Store
	coordinator *BookingCoordinator
	notifier    *Notifier
	now         func() time.Time
}

func NewDriverService(s store.Store, coordinator *BookingCoordinator, notifier *Notifier) *DriverService {
	return &DriverService{
		store:       s,
		coordinator: coordinator,
		notifier:    notifier,
		now:         time.Now,
	}
}

// ConfirmReady records the driver's readiness confirmation. Only the
// trip's own driver may confirm, only for a live trip, and only within
// the final hour before departure.
func (d *DriverService) ConfirmReady(ctx context.Context, driverID, tripID uint) (*models.Trip, error) {
	var confirmed *models.Trip
	var pending []models.Notification

	err := runAtomic(ctx, d.store, func(s store.Store) error {
		pending = pending[:0]

		// SaveTrip writes the whole row, so take the row lock even though
		// this path only changes markers. An unlocked read here could
		// clobber a seat decrement committed by a concurrent booking.
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
		if trip.DriverConfirmedAt != nil {
			return InvalidOperationError("You have already confirmed readiness for this trip")
		}

		now := d.now()
		if trip.DepartureTime.Sub(now) > confirmWindow {
			return InvalidOperationError("Readiness can only be confirmed within 60 minutes of departure")
		}

		confirmedAt := now
		trip.DriverConfirmedAt = &confirmedAt
		trip.Status = models.TripStatusDriverConfirmed
		if err := s.SaveTrip(ctx, trip); err != nil {
			return err
		}

		bookings, err := s.BookingsByTrip(ctx, trip.ID, models.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		for _, booking := range bookings {
			note := models.Notification{
				UserID:   booking.UserID,
				Type:     models.NotificationDriverReady,
				Title:    "Your driver is ready",
				Message:  fmt.Sprintf("The driver confirmed the trip %s → %s departing %s. Head to %s.", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("15:04"), trip.GatheringLocation),
				Metadata: fmt.Sprintf(`{"tripId":%d}`, trip.ID),
			}
			if err := d.notifier.Enqueue(ctx, s, &note); err != nil {
				return err
			}
			pending = append(pending, note)
		}

		confirmed = trip
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.notifier.Push(pending...)
	go publishTripEvent(tripID, "driver_confirmed")
	return confirmed, nil
}

// NoShowResult reports the driver's standing after a no-show was recorded
type NoShowResult struct {
	NoShowCount int  `json:"noShowCount"`
	IsBanned    bool `json:"isBanned"`
}

// MarkNoShow records that the driver failed to show for a trip. The
// trip is cancelled with full refunds to its passengers, any open
// alerts for it are resolved, and the driver is permanently banned on
// the second strike.
func (d *DriverService) MarkNoShow(ctx context.Context, adminID, driverID, tripID uint) (*NoShowResult, error) {
	var result NoShowResult
	var pending []models.Notification

	err := runAtomic(ctx, d.store, func(s store.Store) error {
		pending = pending[:0]

		driver, err := s.GetUser(ctx, driverID)
		if err != nil || driver.Role != models.UserRoleDriver {
			return NotFoundError("Driver not found")
		}

		trip, err := s.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return notFoundAs(err, "Trip not found")
		}
		if trip.DriverID != driverID {
			return InvalidOperationError("Trip does not belong to this driver")
		}
		if trip.Status == models.TripStatusCompleted {
			return InvalidOperationError("A completed trip cannot be marked as a no-show")
		}

		driver.NoShowCount++
		if driver.NoShowCount >= noShowBanThreshold && !driver.IsBanned {
			driver.IsBanned = true
			driver.BanReason = fmt.Sprintf("Automatically banned after %d no-show events", driver.NoShowCount)
		}
		if err := s.SaveUser(ctx, driver); err != nil {
			return err
		}

		if trip.Status != models.TripStatusCancelled {
			if err := d.coordinator.cancelTripLocked(ctx, s, trip, "The driver did not show up.", &pending); err != nil {
				return err
			}
		}

		resolvedAt := d.now()
		if err := s.ResolveAlerts(ctx, tripID, driverID, adminID, resolvedAt); err != nil {
			return err
		}

		title := "No-show recorded"
		message := fmt.Sprintf("A no-show was recorded against your account for the trip %s → %s. Strike %d of %d.", trip.FromCity, trip.ToCity, driver.NoShowCount, noShowBanThreshold)
		noteType := models.NotificationDriverAlert
		if driver.IsBanned {
			title = "Account suspended"
			message = fmt.Sprintf("Your account has been suspended after %d no-show events. Contact support to appeal.", driver.NoShowCount)
			noteType = models.NotificationAccountBanned
		}
		note := models.Notification{
			UserID:   driverID,
			Type:     noteType,
			Title:    title,
			Message:  message,
			Metadata: fmt.Sprintf(`{"tripId":%d,"noShowCount":%d}`, tripID, driver.NoShowCount),
		}
		if err := d.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		pending = append(pending, note)

		result = NoShowResult{NoShowCount: driver.NoShowCount, IsBanned: driver.IsBanned}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.notifier.Push(pending...)
	go publishTripEvent(tripID, "trip_cancelled")
	return &result, nil
}
