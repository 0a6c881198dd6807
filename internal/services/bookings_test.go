package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

func TestBookSeatConfirmsAndCharges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 25000)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 2)
	require.NoError(t, err)
	require.False(t, result.Waitlisted)
	require.Equal(t, models.BookingStatusConfirmed, result.Booking.Status)
	require.Equal(t, int64(20000), result.TotalCents)

	require.Equal(t, int64(5000), env.balance(t, rider.ID))
	require.Equal(t, 2, env.tripByID(t, trip.ID).AvailableSeats)

	notes := env.store.Notifications(rider.ID)
	require.Len(t, notes, 1)
	require.Equal(t, models.NotificationBookingConfirmed, notes[0].Type)
}

func TestBookSeatRejectsOwnTrip(t *testing.T) {
	env := newTestEnv(t)

	driver := env.addUser(t, models.UserRoleDriver, 50000)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	_, err := env.coordinator.BookSeat(context.Background(), driver.ID, trip.ID, 1)
	requireKind(t, err, KindInvalidOperation)
}

func TestBookSeatRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	_, err = env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	requireKind(t, err, KindConflict)
}

func TestBookSeatRejectsDepartedTrip(t *testing.T) {
	env := newTestEnv(t)

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, -time.Hour)

	_, err := env.coordinator.BookSeat(context.Background(), rider.ID, trip.ID, 1)
	requireKind(t, err, KindInvalidOperation)
}

func TestBookSeatInsufficientFundsLeavesEverythingUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 5000) // price is 10000
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	requireKind(t, err, KindInsufficientFunds)

	// The seat decrement inside the failed unit must have rolled back
	require.Equal(t, 4, env.tripByID(t, trip.ID).AvailableSeats)
	require.Equal(t, int64(5000), env.balance(t, rider.ID))
	require.Empty(t, env.store.Notifications(rider.ID))

	_, err = env.store.ActiveBooking(ctx, rider.ID, trip.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBookSeatFullTripJoinsWaitlist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	first := env.addUser(t, models.UserRoleClient, 50000)
	second := env.addUser(t, models.UserRoleClient, 50000)
	third := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 1, 6*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, first.ID, trip.ID, 1)
	require.NoError(t, err)
	require.False(t, result.Waitlisted)

	result, err = env.coordinator.BookSeat(ctx, second.ID, trip.ID, 1)
	require.NoError(t, err)
	require.True(t, result.Waitlisted)
	require.Equal(t, 1, result.Position)
	// Joining the waitlist costs nothing
	require.Equal(t, int64(50000), env.balance(t, second.ID))

	result, err = env.coordinator.BookSeat(ctx, third.ID, trip.ID, 1)
	require.NoError(t, err)
	require.True(t, result.Waitlisted)
	require.Equal(t, 2, result.Position)

	// Re-joining is rejected
	_, err = env.coordinator.BookSeat(ctx, second.ID, trip.ID, 1)
	requireKind(t, err, KindConflict)
}

func TestCancelBookingRefundsAndPromotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	waiter := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 1, 6*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)
	_, err = env.coordinator.BookSeat(ctx, waiter.ID, trip.ID, 1)
	require.NoError(t, err)

	refund, err := env.coordinator.CancelBooking(ctx, rider.ID, result.Booking.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10000), refund)
	require.Equal(t, int64(50000), env.balance(t, rider.ID))

	// The freed seat goes back to inventory and the head of the
	// waitlist is told, but nothing is booked on their behalf
	require.Equal(t, 1, env.tripByID(t, trip.ID).AvailableSeats)
	_, err = env.store.ActiveBooking(ctx, waiter.ID, trip.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	entries, err := env.store.Waitlist(ctx, trip.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	notes := env.store.Notifications(waiter.ID)
	require.NotEmpty(t, notes)
	require.Equal(t, models.NotificationSeatAvailable, notes[len(notes)-1].Type)
}

func TestCancelBookingClosesWaitlistGap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 1, 6*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	var waiters []*models.User
	for i := 0; i < 3; i++ {
		w := env.addUser(t, models.UserRoleClient, 50000)
		waiters = append(waiters, w)
		_, err := env.coordinator.BookSeat(ctx, w.ID, trip.ID, 1)
		require.NoError(t, err)
	}

	_, err = env.coordinator.CancelBooking(ctx, rider.ID, result.Booking.ID)
	require.NoError(t, err)

	// First waiter was promoted off the list; the rest shifted up
	entries, err := env.store.Waitlist(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, waiters[1].ID, entries[0].UserID)
	require.Equal(t, 1, entries[0].Position)
	require.Equal(t, waiters[2].ID, entries[1].UserID)
	require.Equal(t, 2, entries[1].Position)
}

func TestCancelBookingOnlyByOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	other := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	_, err = env.coordinator.CancelBooking(ctx, other.ID, result.Booking.ID)
	requireKind(t, err, KindForbidden)

	// Cancelling twice is rejected
	_, err = env.coordinator.CancelBooking(ctx, rider.ID, result.Booking.ID)
	require.NoError(t, err)
	_, err = env.coordinator.CancelBooking(ctx, rider.ID, result.Booking.ID)
	requireKind(t, err, KindInvalidOperation)
}

func TestCancelTripRefundsEveryoneAndClearsWaitlist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	riderA := env.addUser(t, models.UserRoleClient, 50000)
	riderB := env.addUser(t, models.UserRoleClient, 50000)
	waiter := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 2, 6*time.Hour)

	_, err := env.coordinator.BookSeat(ctx, riderA.ID, trip.ID, 1)
	require.NoError(t, err)
	_, err = env.coordinator.BookSeat(ctx, riderB.ID, trip.ID, 1)
	require.NoError(t, err)
	_, err = env.coordinator.BookSeat(ctx, waiter.ID, trip.ID, 1)
	require.NoError(t, err)

	require.NoError(t, env.coordinator.CancelTrip(ctx, driver.ID, trip.ID))

	require.Equal(t, models.TripStatusCancelled, env.tripByID(t, trip.ID).Status)
	require.Equal(t, int64(50000), env.balance(t, riderA.ID))
	require.Equal(t, int64(50000), env.balance(t, riderB.ID))

	entries, err := env.store.Waitlist(ctx, trip.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	// Both passengers and the waitlisted user hear about it
	for _, u := range []*models.User{riderA, riderB, waiter} {
		notes := env.store.Notifications(u.ID)
		require.NotEmpty(t, notes)
		require.Equal(t, models.NotificationBookingCancelled, notes[len(notes)-1].Type)
	}

	// A cancelled trip cannot be cancelled again
	err = env.coordinator.CancelTrip(ctx, driver.ID, trip.ID)
	requireKind(t, err, KindInvalidOperation)
}

func TestCancelTripOnlyByItsDriver(t *testing.T) {
	env := newTestEnv(t)

	driver := env.addUser(t, models.UserRoleDriver, 0)
	other := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	err := env.coordinator.CancelTrip(context.Background(), other.ID, trip.ID)
	requireKind(t, err, KindForbidden)
}

func TestCompleteTripSettlesBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 2*time.Hour)

	result, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	// Too early
	err = env.coordinator.CompleteTrip(ctx, driver.ID, trip.ID)
	requireKind(t, err, KindInvalidOperation)

	env.now = env.now.Add(3 * time.Hour)
	require.NoError(t, env.coordinator.CompleteTrip(ctx, driver.ID, trip.ID))

	require.Equal(t, models.TripStatusCompleted, env.tripByID(t, trip.ID).Status)
	booking, err := env.store.GetBooking(ctx, result.Booking.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusCompleted, booking.Status)
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 2, 6*time.Hour)

	const riders = 6
	ids := make([]uint, riders)
	for i := range ids {
		rider := env.addUser(t, models.UserRoleClient, 50000)
		ids[i] = rider.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, riders)
	confirmed := make(chan uint, riders)
	waitlisted := make(chan uint, riders)
	for _, id := range ids {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			result, err := env.coordinator.BookSeat(ctx, userID, trip.ID, 1)
			if err != nil {
				errs <- err
				return
			}
			if result.Waitlisted {
				waitlisted <- userID
			} else {
				confirmed <- userID
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	close(confirmed)
	close(waitlisted)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, confirmed, 2)
	require.Len(t, waitlisted, riders-2)
	require.Equal(t, 0, env.tripByID(t, trip.ID).AvailableSeats)

	// Waitlist positions are dense and unique
	entries, err := env.store.Waitlist(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, entries, riders-2)
	for i, entry := range entries {
		require.Equal(t, i+1, entry.Position)
	}
}

// flakyStore injects a storage failure into booking creation while
// delegating everything else to the wrapped store.
type flakyStore struct {
	store.Store
	failures int
	calls    int
}

func (f *flakyStore) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return f.Store.Atomically(ctx, func(s store.Store) error {
		return fn(&flakyStore{Store: s, failures: f.failures, calls: f.calls})
	})
}

func (f *flakyStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	f.calls++
	if f.failures != 0 {
		return fmt.Errorf("simulated storage failure %d", f.calls)
	}
	return f.Store.CreateBooking(ctx, b)
}

func TestBookSeatStorageFailureRollsBackEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	flaky := &flakyStore{Store: env.store, failures: -1}
	coordinator := NewBookingCoordinator(flaky, env.ledger, env.notifier)
	coordinator.now = func() time.Time { return env.now }

	_, err := coordinator.BookSeat(ctx, rider.ID, trip.ID, 2)
	require.Error(t, err)
	var svcErr *Error
	require.False(t, errors.As(err, &svcErr), "storage failures must not surface as business rejections")

	// Debit and seat decrement both rolled back on every attempt
	require.Equal(t, int64(50000), env.balance(t, rider.ID))
	require.Equal(t, 4, env.tripByID(t, trip.ID).AvailableSeats)
	require.Empty(t, env.store.Notifications(rider.ID))
}

// staleTripStore serves unlocked trip reads from a snapshot taken before
// another unit of work committed, while locked reads see the current row.
type staleTripStore struct {
	store.Store
	stale models.Trip
}

func (s *staleTripStore) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return s.Store.Atomically(ctx, func(tx store.Store) error {
		return fn(&staleTripStore{Store: tx, stale: s.stale})
	})
}

func (s *staleTripStore) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	if id == s.stale.ID {
		trip := s.stale
		return &trip, nil
	}
	return s.Store.GetTrip(ctx, id)
}

func TestCompleteTripKeepsConcurrentSeatDecrement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 30*time.Minute)

	// Snapshot the row, then let a booking commit its seat decrement.
	snapshot := *env.tripByID(t, trip.ID)
	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 3, env.tripByID(t, trip.ID).AvailableSeats)

	coordinator := NewBookingCoordinator(&staleTripStore{Store: env.store, stale: snapshot}, env.ledger, env.notifier)
	env.now = trip.DepartureTime.Add(time.Minute)
	coordinator.now = func() time.Time { return env.now }

	require.NoError(t, coordinator.CompleteTrip(ctx, driver.ID, trip.ID))

	// Completion writes the whole row and must not restore the stale count.
	got := env.tripByID(t, trip.ID)
	require.Equal(t, models.TripStatusCompleted, got.Status)
	require.Equal(t, 3, got.AvailableSeats)
}

func TestCancelTripPendingBookingNotRefundWorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	paid := env.addUser(t, models.UserRoleClient, 20000)
	unpaid := env.addUser(t, models.UserRoleClient, 0)
	trip := env.addTrip(t, driver.ID, 4, 6*time.Hour)

	_, err := env.coordinator.BookSeat(ctx, paid.ID, trip.ID, 1)
	require.NoError(t, err)

	// A booking that never reached payment stays pending.
	pendingBooking := &models.Booking{
		UserID: unpaid.ID,
		TripID: trip.ID,
		Seats:  1,
		Status: models.BookingStatusPending,
	}
	require.NoError(t, env.store.CreateBooking(ctx, pendingBooking))

	require.NoError(t, env.coordinator.CancelTrip(ctx, driver.ID, trip.ID))

	paidNotes := env.store.Notifications(paid.ID)
	require.NotEmpty(t, paidNotes)
	require.Contains(t, paidNotes[len(paidNotes)-1].Message, "Your payment has been refunded.")

	unpaidNotes := env.store.Notifications(unpaid.ID)
	require.NotEmpty(t, unpaidNotes)
	require.NotContains(t, unpaidNotes[len(unpaidNotes)-1].Message, "refunded")
	require.Equal(t, int64(0), env.balance(t, unpaid.ID))
}
