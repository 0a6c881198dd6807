package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

// Gorm is the Postgres-backed Store. Atomic units map to database
// transactions; the trip row lock uses SELECT ... FOR UPDATE.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Atomically(ctx context.Context, fn func(Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := g.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (g *Gorm) SaveUser(ctx context.Context, u *models.User) error {
	return g.db.WithContext(ctx).Save(u).Error
}

func (g *Gorm) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := g.db.WithContext(ctx).First(&trip, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &trip, nil
}

func (g *Gorm) GetTripForUpdate(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	err := g.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&trip, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &trip, nil
}

func (g *Gorm) SaveTrip(ctx context.Context, t *models.Trip) error {
	return g.db.WithContext(ctx).Save(t).Error
}

func (g *Gorm) TripsNeedingReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Trip, error) {
	var trips []models.Trip
	err := g.db.WithContext(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND departure_time BETWEEN ? AND ?",
			models.TripStatusScheduled, windowStart, windowEnd).
		Find(&trips).Error
	return trips, err
}

func (g *Gorm) TripsAwaitingReadiness(ctx context.Context, now, deadline time.Time) ([]models.Trip, error) {
	var trips []models.Trip
	err := g.db.WithContext(ctx).
		Where("status = ? AND driver_confirmed_at IS NULL AND admin_alert_sent_at IS NULL AND departure_time BETWEEN ? AND ?",
			models.TripStatusScheduled, now, deadline).
		Find(&trips).Error
	return trips, err
}

func (g *Gorm) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := g.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (g *Gorm) ActiveBooking(ctx context.Context, userID, tripID uint) (*models.Booking, error) {
	var booking models.Booking
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND trip_id = ? AND status <> ?", userID, tripID, models.BookingStatusCancelled).
		First(&booking).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (g *Gorm) CreateBooking(ctx context.Context, b *models.Booking) error {
	return g.db.WithContext(ctx).Create(b).Error
}

func (g *Gorm) SaveBooking(ctx context.Context, b *models.Booking) error {
	return g.db.WithContext(ctx).Save(b).Error
}

func (g *Gorm) BookingsByTrip(ctx context.Context, tripID uint, statuses ...models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := g.db.WithContext(ctx).Where("trip_id = ?", tripID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Find(&bookings).Error
	return bookings, err
}

func (g *Gorm) CountBookingsByTrip(ctx context.Context, tripID uint, status models.BookingStatus) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Booking{}).
		Where("trip_id = ? AND status = ?", tripID, status).
		Count(&count).Error
	return count, err
}

func (g *Gorm) WaitlistEntryFor(ctx context.Context, userID, tripID uint) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND trip_id = ?", userID, tripID).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (g *Gorm) LastWaitlistPosition(ctx context.Context, tripID uint) (int, error) {
	var entry models.WaitlistEntry
	err := g.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("position DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return entry.Position, nil
}

func (g *Gorm) CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	return g.db.WithContext(ctx).Create(e).Error
}

func (g *Gorm) FirstWaitlistEntry(ctx context.Context, tripID uint) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := g.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("position ASC").
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (g *Gorm) DeleteWaitlistEntry(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Unscoped().Delete(&models.WaitlistEntry{}, id).Error
}

func (g *Gorm) CloseWaitlistGap(ctx context.Context, tripID uint, afterPosition int) error {
	return g.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("trip_id = ? AND position > ?", tripID, afterPosition).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

func (g *Gorm) Waitlist(ctx context.Context, tripID uint) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := g.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("position ASC").
		Find(&entries).Error
	return entries, err
}

func (g *Gorm) ClearWaitlist(ctx context.Context, tripID uint) error {
	return g.db.WithContext(ctx).Unscoped().
		Where("trip_id = ?", tripID).
		Delete(&models.WaitlistEntry{}).Error
}

func (g *Gorm) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wallet, nil
}

func (g *Gorm) CreateWallet(ctx context.Context, w *models.Wallet) error {
	return g.db.WithContext(ctx).Create(w).Error
}

func (g *Gorm) SaveWallet(ctx context.Context, w *models.Wallet) error {
	return g.db.WithContext(ctx).Save(w).Error
}

func (g *Gorm) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return g.db.WithContext(ctx).Create(t).Error
}

func (g *Gorm) TransactionsByWallet(ctx context.Context, walletID uint, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	q := g.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&transactions).Error
	return transactions, err
}

func (g *Gorm) GetDeposit(ctx context.Context, id uint) (*models.DepositRequest, error) {
	var deposit models.DepositRequest
	if err := g.db.WithContext(ctx).First(&deposit, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &deposit, nil
}

func (g *Gorm) CreateDeposit(ctx context.Context, d *models.DepositRequest) error {
	return g.db.WithContext(ctx).Create(d).Error
}

func (g *Gorm) SaveDeposit(ctx context.Context, d *models.DepositRequest) error {
	return g.db.WithContext(ctx).Save(d).Error
}

func (g *Gorm) CreateAlert(ctx context.Context, a *models.AdminAlert) error {
	return g.db.WithContext(ctx).Create(a).Error
}

func (g *Gorm) ResolveAlerts(ctx context.Context, tripID, driverID, resolvedBy uint, at time.Time) error {
	return g.db.WithContext(ctx).Model(&models.AdminAlert{}).
		Where("trip_id = ? AND driver_id = ? AND is_resolved = ?", tripID, driverID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		}).Error
}

func (g *Gorm) CreateNotification(ctx context.Context, n *models.Notification) error {
	return g.db.WithContext(ctx).Create(n).Error
}
