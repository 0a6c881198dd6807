package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

const (
	schedulerInterval = time.Minute

	// Reminder fires when departure is about three hours out. The window
	// is two minutes wide so a tick landing a little early or late still
	// catches the trip exactly once; the reminder_sent_at marker keeps
	// later ticks from firing again.
	reminderWindowStart = 179 * time.Minute
	reminderWindowEnd   = 181 * time.Minute

	// Escalation fires when departure is within this horizon and the
	// driver still has not confirmed readiness.
	escalationHorizon = 15 * time.Minute
)

// ReadinessScheduler walks scheduled trips once a minute and enforces
// the two readiness rules: remind the driver three hours before
// departure, and raise an admin alert when departure is fifteen minutes
// out with no readiness confirmation. Each trip is handled in its own
// atomic unit, so one broken trip never blocks the rest of the sweep.
type ReadinessScheduler struct {
	store    store.Store
	notifier *Notifier
	interval time.Duration
	now      func() time.Time
}

func NewReadinessScheduler(s store.Store, notifier *Notifier) *ReadinessScheduler {
	return &ReadinessScheduler{
		store:    s,
		notifier: notifier,
		interval: schedulerInterval,
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled
func (rs *ReadinessScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	log.Printf("Readiness scheduler started (interval %s)", rs.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Readiness scheduler stopped")
			return
		case <-ticker.C:
			rs.Tick(ctx, rs.now())
		}
	}
}

// Tick runs one sweep at the given instant
func (rs *ReadinessScheduler) Tick(ctx context.Context, now time.Time) {
	rs.sendDepartureReminders(ctx, now)
	rs.escalateUnconfirmed(ctx, now)
}

func (rs *ReadinessScheduler) sendDepartureReminders(ctx context.Context, now time.Time) {
	trips, err := rs.store.TripsNeedingReminder(ctx, now.Add(reminderWindowStart), now.Add(reminderWindowEnd))
	if err != nil {
		log.Printf("Scheduler: reminder query failed: %v", err)
		return
	}

	for _, candidate := range trips {
		tripID := candidate.ID
		var pushed []models.Notification

		err := rs.store.Atomically(ctx, func(s store.Store) error {
			pushed = pushed[:0]

			trip, err := s.GetTripForUpdate(ctx, tripID)
			if err != nil {
				return err
			}
			// Re-check under the lock: another instance may have beaten us
			if trip.Status != models.TripStatusScheduled || trip.ReminderSentAt != nil {
				return nil
			}

			confirmed, err := s.CountBookingsByTrip(ctx, trip.ID, models.BookingStatusConfirmed)
			if err != nil {
				return err
			}

			note := models.Notification{
				UserID:   trip.DriverID,
				Type:     models.NotificationTripReminder,
				Title:    "Departure in 3 hours",
				Message:  fmt.Sprintf("Your trip %s → %s departs at %s with %d confirmed passenger(s). Please confirm you are ready.", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("15:04"), confirmed),
				Metadata: fmt.Sprintf(`{"tripId":%d,"confirmedBookings":%d}`, trip.ID, confirmed),
			}
			if err := rs.notifier.Enqueue(ctx, s, &note); err != nil {
				return err
			}
			pushed = append(pushed, note)

			sentAt := now
			trip.ReminderSentAt = &sentAt
			return s.SaveTrip(ctx, trip)
		})
		if err != nil {
			log.Printf("Scheduler: reminder for trip %d failed: %v", tripID, err)
			continue
		}
		rs.notifier.Push(pushed...)
	}
}

func (rs *ReadinessScheduler) escalateUnconfirmed(ctx context.Context, now time.Time) {
	trips, err := rs.store.TripsAwaitingReadiness(ctx, now, now.Add(escalationHorizon))
	if err != nil {
		log.Printf("Scheduler: escalation query failed: %v", err)
		return
	}

	for _, candidate := range trips {
		tripID := candidate.ID
		var pushed []models.Notification
		var alert models.AdminAlert

		err := rs.store.Atomically(ctx, func(s store.Store) error {
			pushed = pushed[:0]

			trip, err := s.GetTripForUpdate(ctx, tripID)
			if err != nil {
				return err
			}
			if trip.Status != models.TripStatusScheduled || trip.DriverConfirmedAt != nil || trip.AdminAlertSentAt != nil {
				return nil
			}

			driver, err := s.GetUser(ctx, trip.DriverID)
			if err != nil {
				return err
			}
			confirmed, err := s.CountBookingsByTrip(ctx, trip.ID, models.BookingStatusConfirmed)
			if err != nil {
				return err
			}

			alert = models.AdminAlert{
				Type:     models.AlertTypeDriverNoReady,
				TripID:   trip.ID,
				DriverID: trip.DriverID,
				Message: fmt.Sprintf("Driver %s (%s) has not confirmed readiness for %s → %s departing %s. %d passenger(s) affected.",
					driver.Username, driver.PhoneNumber, trip.FromCity, trip.ToCity, trip.DepartureTime.Format("15:04"), confirmed),
			}
			if err := s.CreateAlert(ctx, &alert); err != nil {
				return err
			}

			note := models.Notification{
				UserID:   trip.DriverID,
				Type:     models.NotificationDriverAlert,
				Title:    "Urgent: confirm your trip",
				Message:  fmt.Sprintf("Your trip %s → %s departs at %s and you have not confirmed readiness. Operations has been alerted.", trip.FromCity, trip.ToCity, trip.DepartureTime.Format("15:04")),
				Metadata: fmt.Sprintf(`{"tripId":%d,"alertId":%d}`, trip.ID, alert.ID),
			}
			if err := rs.notifier.Enqueue(ctx, s, &note); err != nil {
				return err
			}
			pushed = append(pushed, note)

			sentAt := now
			trip.AdminAlertSentAt = &sentAt
			return s.SaveTrip(ctx, trip)
		})
		if err != nil {
			log.Printf("Scheduler: escalation for trip %d failed: %v", tripID, err)
			continue
		}

		rs.notifier.Push(pushed...)
		if alert.ID != 0 {
			rs.notifier.PushAlert(alert)
			if RedisClient != nil {
				pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = PublishAdminAlert(pubCtx, alert.ID, alert.TripID, alert.DriverID, alert.Message)
				cancel()
			}
		}
	}
}
