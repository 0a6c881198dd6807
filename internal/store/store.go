package store

import (
	"context"
	"errors"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface used by the core services. Atomically
// runs fn against a transaction-scoped Store: either every write inside fn
// commits, or none do. All multi-step mutations (booking, cancellation,
// deposit approval, no-show, scheduler rules) go through it.
type Store interface {
	Atomically(ctx context.Context, fn func(Store) error) error

	// Users
	GetUser(ctx context.Context, id uint) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error

	// Trips. GetTripForUpdate takes a row lock so that concurrent seat
	// reservations serialize on the trip's counter.
	GetTrip(ctx context.Context, id uint) (*models.Trip, error)
	GetTripForUpdate(ctx context.Context, id uint) (*models.Trip, error)
	SaveTrip(ctx context.Context, t *models.Trip) error
	TripsNeedingReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Trip, error)
	TripsAwaitingReadiness(ctx context.Context, now, deadline time.Time) ([]models.Trip, error)

	// Bookings
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	ActiveBooking(ctx context.Context, userID, tripID uint) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	SaveBooking(ctx context.Context, b *models.Booking) error
	BookingsByTrip(ctx context.Context, tripID uint, statuses ...models.BookingStatus) ([]models.Booking, error)
	CountBookingsByTrip(ctx context.Context, tripID uint, status models.BookingStatus) (int64, error)

	// Waitlist
	WaitlistEntryFor(ctx context.Context, userID, tripID uint) (*models.WaitlistEntry, error)
	LastWaitlistPosition(ctx context.Context, tripID uint) (int, error)
	CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error
	FirstWaitlistEntry(ctx context.Context, tripID uint) (*models.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, id uint) error
	CloseWaitlistGap(ctx context.Context, tripID uint, afterPosition int) error
	Waitlist(ctx context.Context, tripID uint) ([]models.WaitlistEntry, error)
	ClearWaitlist(ctx context.Context, tripID uint) error

	// Wallets and ledger entries
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	CreateWallet(ctx context.Context, w *models.Wallet) error
	SaveWallet(ctx context.Context, w *models.Wallet) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	TransactionsByWallet(ctx context.Context, walletID uint, limit int) ([]models.Transaction, error)

	// Deposit requests
	GetDeposit(ctx context.Context, id uint) (*models.DepositRequest, error)
	CreateDeposit(ctx context.Context, d *models.DepositRequest) error
	SaveDeposit(ctx context.Context, d *models.DepositRequest) error

	// Admin alerts
	CreateAlert(ctx context.Context, a *models.AdminAlert) error
	ResolveAlerts(ctx context.Context, tripID, driverID, resolvedBy uint, at time.Time) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
}
