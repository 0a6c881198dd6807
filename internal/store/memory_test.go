package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

func TestAtomicallyRollsBackOnError(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	trip := &models.Trip{
		FromCity:       "Cairo",
		ToCity:         "Aswan",
		DepartureTime:  time.Now().Add(time.Hour),
		TotalSeats:     4,
		AvailableSeats: 4,
		Status:         models.TripStatusScheduled,
	}
	require.NoError(t, mem.SaveTrip(ctx, trip))

	boom := errors.New("boom")
	err := mem.Atomically(ctx, func(s Store) error {
		loaded, err := s.GetTripForUpdate(ctx, trip.ID)
		require.NoError(t, err)
		loaded.AvailableSeats = 0
		require.NoError(t, s.SaveTrip(ctx, loaded))

		wallet := &models.Wallet{UserID: 42, BalanceCents: 100}
		require.NoError(t, s.CreateWallet(ctx, wallet))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every write inside the failed unit is gone
	reloaded, err := mem.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.Equal(t, 4, reloaded.AvailableSeats)
	_, err = mem.GetWallet(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAtomicallyCommitsOnSuccess(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	err := mem.Atomically(ctx, func(s Store) error {
		return s.CreateWallet(ctx, &models.Wallet{UserID: 7, BalanceCents: 500})
	})
	require.NoError(t, err)

	wallet, err := mem.GetWallet(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(500), wallet.BalanceCents)
}

func TestNestedAtomicallySharesTheUnit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := mem.Atomically(ctx, func(s Store) error {
		if err := s.CreateWallet(ctx, &models.Wallet{UserID: 1}); err != nil {
			return err
		}
		return s.Atomically(ctx, func(inner Store) error {
			if err := inner.CreateWallet(ctx, &models.Wallet{UserID: 2}); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	// Outer and inner writes roll back together
	_, err = mem.GetWallet(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = mem.GetWallet(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWaitlistOrdering(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		entry := &models.WaitlistEntry{UserID: uint(i), TripID: 9, Position: i}
		require.NoError(t, mem.CreateWaitlistEntry(ctx, entry))
	}

	first, err := mem.FirstWaitlistEntry(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 1, first.Position)

	require.NoError(t, mem.DeleteWaitlistEntry(ctx, first.ID))
	require.NoError(t, mem.CloseWaitlistGap(ctx, 9, first.Position))

	entries, err := mem.Waitlist(ctx, 9)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 1, entries[0].Position)
	require.Equal(t, uint(2), entries[0].UserID)
	require.Equal(t, 2, entries[1].Position)
	require.Equal(t, uint(3), entries[1].UserID)

	last, err := mem.LastWaitlistPosition(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 2, last)
}

func TestTripCandidateQueries(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	add := func(departsIn time.Duration, mutate func(*models.Trip)) *models.Trip {
		trip := &models.Trip{
			FromCity:       "Cairo",
			ToCity:         "Luxor",
			DepartureTime:  now.Add(departsIn),
			TotalSeats:     4,
			AvailableSeats: 4,
			Status:         models.TripStatusScheduled,
		}
		if mutate != nil {
			mutate(trip)
		}
		require.NoError(t, mem.SaveTrip(ctx, trip))
		return trip
	}

	inWindow := add(180*time.Minute, nil)
	add(240*time.Minute, nil)
	add(180*time.Minute, func(tr *models.Trip) {
		sent := now
		tr.ReminderSentAt = &sent
	})

	trips, err := mem.TripsNeedingReminder(ctx, now.Add(179*time.Minute), now.Add(181*time.Minute))
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Equal(t, inWindow.ID, trips[0].ID)

	soon := add(10*time.Minute, nil)
	add(10*time.Minute, func(tr *models.Trip) {
		confirmed := now
		tr.DriverConfirmedAt = &confirmed
	})
	add(-5*time.Minute, nil) // already departed

	pending, err := mem.TripsAwaitingReadiness(ctx, now, now.Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, soon.ID, pending[0].ID)
}
