package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

func TestConfirmReadyWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 45*time.Minute)
	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	confirmed, err := env.driver.ConfirmReady(ctx, driver.ID, trip.ID)
	require.NoError(t, err)
	require.Equal(t, models.TripStatusDriverConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.DriverConfirmedAt)

	// Passengers hear that the driver is ready
	notes := env.store.Notifications(rider.ID)
	require.Equal(t, models.NotificationDriverReady, notes[len(notes)-1].Type)

	// Confirming twice is rejected
	_, err = env.driver.ConfirmReady(ctx, driver.ID, trip.ID)
	requireKind(t, err, KindInvalidOperation)
}

func TestConfirmReadyTooEarly(t *testing.T) {
	env := newTestEnv(t)

	driver := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 4, 2*time.Hour)

	_, err := env.driver.ConfirmReady(context.Background(), driver.ID, trip.ID)
	requireKind(t, err, KindInvalidOperation)
}

func TestConfirmReadyOnlyByItsDriver(t *testing.T) {
	env := newTestEnv(t)

	driver := env.addUser(t, models.UserRoleDriver, 0)
	other := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 4, 30*time.Minute)

	_, err := env.driver.ConfirmReady(context.Background(), other.ID, trip.ID)
	requireKind(t, err, KindForbidden)
}

func TestConfirmReadySuppressesEscalation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 4, 30*time.Minute)

	_, err := env.driver.ConfirmReady(ctx, driver.ID, trip.ID)
	require.NoError(t, err)

	env.now = env.now.Add(20 * time.Minute)
	env.scheduler.Tick(ctx, env.now)

	require.Empty(t, env.store.Alerts(false))
}

func TestMarkNoShowFirstStrike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 10*time.Minute)
	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)

	// The scheduler has already escalated
	env.scheduler.Tick(ctx, env.now)
	require.Len(t, env.store.Alerts(false), 1)

	result, err := env.driver.MarkNoShow(ctx, admin.ID, driver.ID, trip.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.NoShowCount)
	require.False(t, result.IsBanned)

	// The trip is cancelled with refunds, and the alert resolved
	require.Equal(t, models.TripStatusCancelled, env.tripByID(t, trip.ID).Status)
	require.Equal(t, int64(50000), env.balance(t, rider.ID))
	require.Empty(t, env.store.Alerts(false))

	resolved := env.store.Alerts(true)
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].ResolvedBy)
	require.Equal(t, admin.ID, *resolved[0].ResolvedBy)
}

func TestMarkNoShowSecondStrikeBans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	driver := env.addUser(t, models.UserRoleDriver, 0)
	tripA := env.addTrip(t, driver.ID, 4, 10*time.Minute)
	tripB := env.addTrip(t, driver.ID, 4, 10*time.Minute)

	result, err := env.driver.MarkNoShow(ctx, admin.ID, driver.ID, tripA.ID)
	require.NoError(t, err)
	require.False(t, result.IsBanned)

	result, err = env.driver.MarkNoShow(ctx, admin.ID, driver.ID, tripB.ID)
	require.NoError(t, err)
	require.True(t, result.IsBanned)
	require.Equal(t, 2, result.NoShowCount)

	banned, err := env.store.GetUser(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, banned.IsBanned)
	require.Contains(t, banned.BanReason, "2 no-show events")

	notes := env.store.Notifications(driver.ID)
	require.Equal(t, models.NotificationAccountBanned, notes[len(notes)-1].Type)
}

func TestBannedDriverCannotBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	driver := env.addUser(t, models.UserRoleDriver, 50000)
	otherDriver := env.addUser(t, models.UserRoleDriver, 0)
	tripA := env.addTrip(t, driver.ID, 4, 10*time.Minute)
	tripB := env.addTrip(t, driver.ID, 4, 10*time.Minute)
	openTrip := env.addTrip(t, otherDriver.ID, 4, 6*time.Hour)

	_, err := env.driver.MarkNoShow(ctx, admin.ID, driver.ID, tripA.ID)
	require.NoError(t, err)
	_, err = env.driver.MarkNoShow(ctx, admin.ID, driver.ID, tripB.ID)
	require.NoError(t, err)

	_, err = env.coordinator.BookSeat(ctx, driver.ID, openTrip.ID, 1)
	requireKind(t, err, KindForbidden)
}

func TestMarkNoShowRejectsWrongDriver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	driver := env.addUser(t, models.UserRoleDriver, 0)
	other := env.addUser(t, models.UserRoleDriver, 0)
	trip := env.addTrip(t, driver.ID, 4, 10*time.Minute)

	_, err := env.driver.MarkNoShow(ctx, admin.ID, other.ID, trip.ID)
	requireKind(t, err, KindInvalidOperation)

	// A client account is not a driver
	client := env.addUser(t, models.UserRoleClient, 0)
	_, err = env.driver.MarkNoShow(ctx, admin.ID, client.ID, trip.ID)
	requireKind(t, err, KindNotFound)
}

func TestConfirmReadyKeepsConcurrentSeatDecrement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	driver := env.addUser(t, models.UserRoleDriver, 0)
	rider := env.addUser(t, models.UserRoleClient, 50000)
	trip := env.addTrip(t, driver.ID, 4, 45*time.Minute)

	// Snapshot the row, then let a booking commit its seat decrement.
	snapshot := *env.tripByID(t, trip.ID)
	_, err := env.coordinator.BookSeat(ctx, rider.ID, trip.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 3, env.tripByID(t, trip.ID).AvailableSeats)

	svc := NewDriverService(&staleTripStore{Store: env.store, stale: snapshot}, env.coordinator, env.notifier)
	svc.now = func() time.Time { return env.now }

	confirmed, err := svc.ConfirmReady(ctx, driver.ID, trip.ID)
	require.NoError(t, err)
	require.Equal(t, models.TripStatusDriverConfirmed, confirmed.Status)

	// Confirmation writes the whole row and must not restore the stale count.
	require.Equal(t, 3, env.tripByID(t, trip.ID).AvailableSeats)
}
