package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

// testEnv wires the core services against the in-memory store with a
// frozen clock.
type testEnv struct {
	store       *store.Memory
	ledger      *Ledger
	notifier    *Notifier
	coordinator *BookingCoordinator
	driver      *DriverService
	wallet      *WalletService
	scheduler   *ReadinessScheduler
	now         time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemory()
	notifier := NewNotifier(nil)
	ledger := NewLedger(mem)
	coordinator := NewBookingCoordinator(mem, ledger, notifier)
	driver := NewDriverService(mem, coordinator, notifier)
	wallet := NewWalletService(mem, ledger, notifier)
	scheduler := NewReadinessScheduler(mem, notifier)

	env := &testEnv{
		store:       mem,
		ledger:      ledger,
		notifier:    notifier,
		coordinator: coordinator,
		driver:      driver,
		wallet:      wallet,
		scheduler:   scheduler,
		now:         time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	coordinator.now = clock
	driver.now = clock
	wallet.now = clock
	scheduler.now = clock
	return env
}

func (e *testEnv) addUser(t *testing.T, role models.UserRole, balanceCents int64) *models.User {
	t.Helper()
	ctx := context.Background()

	user := &models.User{
		Username:    "user",
		Email:       "user@example.com",
		Role:        role,
		PhoneNumber: "+201000000000",
	}
	require.NoError(t, e.store.SaveUser(ctx, user))

	if balanceCents > 0 {
		wallet := &models.Wallet{UserID: user.ID, BalanceCents: balanceCents}
		require.NoError(t, e.store.CreateWallet(ctx, wallet))
	}
	return user
}

// addTrip creates a scheduled trip departing at the given offset from
// the env clock, priced at 100 EGP per seat.
func (e *testEnv) addTrip(t *testing.T, driverID uint, seats int, departsIn time.Duration) *models.Trip {
	t.Helper()

	trip := &models.Trip{
		DriverID:          driverID,
		FromCity:          "Cairo",
		ToCity:            "Alexandria",
		GatheringLocation: "Ramses Station",
		DepartureTime:     e.now.Add(departsIn),
		PriceCents:        10000,
		TotalSeats:        seats,
		AvailableSeats:    seats,
		Status:            models.TripStatusScheduled,
	}
	require.NoError(t, e.store.SaveTrip(context.Background(), trip))
	return trip
}

func (e *testEnv) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	balance, err := e.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func (e *testEnv) tripByID(t *testing.T, id uint) *models.Trip {
	t.Helper()
	trip, err := e.store.GetTrip(context.Background(), id)
	require.NoError(t, err)
	return trip
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := err.(*Error)
	require.True(t, ok, "expected a service error, got %v", err)
	require.Equal(t, kind, svcErr.Kind)
}
