package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

// Memory is an in-process Store used by the service tests. Atomically takes
// a snapshot of the whole state and restores it when fn fails, which gives
// the same all-or-nothing semantics the Postgres store gets from database
// transactions. A single mutex serializes atomic units, so concurrent
// callers observe the same one-winner behavior as row locking.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Atomically(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memState struct {
	nextID        uint
	users         map[uint]models.User
	trips         map[uint]models.Trip
	bookings      map[uint]models.Booking
	waitlist      map[uint]models.WaitlistEntry
	wallets       map[uint]models.Wallet
	transactions  map[uint]models.Transaction
	deposits      map[uint]models.DepositRequest
	alerts        map[uint]models.AdminAlert
	notifications map[uint]models.Notification
}

func newMemState() *memState {
	return &memState{
		users:         make(map[uint]models.User),
		trips:         make(map[uint]models.Trip),
		bookings:      make(map[uint]models.Booking),
		waitlist:      make(map[uint]models.WaitlistEntry),
		wallets:       make(map[uint]models.Wallet),
		transactions:  make(map[uint]models.Transaction),
		deposits:      make(map[uint]models.DepositRequest),
		alerts:        make(map[uint]models.AdminAlert),
		notifications: make(map[uint]models.Notification),
	}
}

func cloneMap[V any](src map[uint]V) map[uint]V {
	dst := make(map[uint]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:        s.nextID,
		users:         cloneMap(s.users),
		trips:         cloneMap(s.trips),
		bookings:      cloneMap(s.bookings),
		waitlist:      cloneMap(s.waitlist),
		wallets:       cloneMap(s.wallets),
		transactions:  cloneMap(s.transactions),
		deposits:      cloneMap(s.deposits),
		alerts:        cloneMap(s.alerts),
		notifications: cloneMap(s.notifications),
	}
}

func (s *memState) id() uint {
	s.nextID++
	return s.nextID
}

// memTx is the transaction-scoped view handed to Atomically callbacks. It
// shares the owning Memory's state and holds no lock of its own.
type memTx struct {
	state *memState
}

// Atomically on a transaction view runs fn in the enclosing unit.
func (t *memTx) Atomically(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *memTx) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memTx) SaveUser(ctx context.Context, u *models.User) error {
	if u.ID == 0 {
		u.ID = t.state.id()
		u.CreatedAt = time.Now()
	}
	t.state.users[u.ID] = *u
	return nil
}

func (t *memTx) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	trip, ok := t.state.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &trip, nil
}

func (t *memTx) GetTripForUpdate(ctx context.Context, id uint) (*models.Trip, error) {
	return t.GetTrip(ctx, id)
}

func (t *memTx) SaveTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == 0 {
		trip.ID = t.state.id()
		trip.CreatedAt = time.Now()
	}
	t.state.trips[trip.ID] = *trip
	return nil
}

func (t *memTx) TripsNeedingReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Trip, error) {
	var trips []models.Trip
	for _, trip := range t.state.trips {
		if trip.Status == models.TripStatusScheduled &&
			trip.ReminderSentAt == nil &&
			!trip.DepartureTime.Before(windowStart) &&
			!trip.DepartureTime.After(windowEnd) {
			trips = append(trips, trip)
		}
	}
	sortTrips(trips)
	return trips, nil
}

func (t *memTx) TripsAwaitingReadiness(ctx context.Context, now, deadline time.Time) ([]models.Trip, error) {
	var trips []models.Trip
	for _, trip := range t.state.trips {
		if trip.Status == models.TripStatusScheduled &&
			trip.DriverConfirmedAt == nil &&
			trip.AdminAlertSentAt == nil &&
			!trip.DepartureTime.Before(now) &&
			!trip.DepartureTime.After(deadline) {
			trips = append(trips, trip)
		}
	}
	sortTrips(trips)
	return trips, nil
}

func sortTrips(trips []models.Trip) {
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
}

func (t *memTx) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	b, ok := t.state.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (t *memTx) ActiveBooking(ctx context.Context, userID, tripID uint) (*models.Booking, error) {
	for _, b := range t.state.bookings {
		if b.UserID == userID && b.TripID == tripID && b.ConsumesSeats() {
			b := b
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateBooking(ctx context.Context, b *models.Booking) error {
	b.ID = t.state.id()
	b.CreatedAt = time.Now()
	t.state.bookings[b.ID] = *b
	return nil
}

func (t *memTx) SaveBooking(ctx context.Context, b *models.Booking) error {
	t.state.bookings[b.ID] = *b
	return nil
}

func (t *memTx) BookingsByTrip(ctx context.Context, tripID uint, statuses ...models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	for _, b := range t.state.bookings {
		if b.TripID != tripID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, b.Status) {
			continue
		}
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}

func containsStatus(statuses []models.BookingStatus, s models.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (t *memTx) CountBookingsByTrip(ctx context.Context, tripID uint, status models.BookingStatus) (int64, error) {
	var count int64
	for _, b := range t.state.bookings {
		if b.TripID == tripID && b.Status == status {
			count++
		}
	}
	return count, nil
}

func (t *memTx) WaitlistEntryFor(ctx context.Context, userID, tripID uint) (*models.WaitlistEntry, error) {
	for _, e := range t.state.waitlist {
		if e.UserID == userID && e.TripID == tripID {
			e := e
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) LastWaitlistPosition(ctx context.Context, tripID uint) (int, error) {
	last := 0
	for _, e := range t.state.waitlist {
		if e.TripID == tripID && e.Position > last {
			last = e.Position
		}
	}
	return last, nil
}

func (t *memTx) CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	e.ID = t.state.id()
	e.CreatedAt = time.Now()
	t.state.waitlist[e.ID] = *e
	return nil
}

func (t *memTx) FirstWaitlistEntry(ctx context.Context, tripID uint) (*models.WaitlistEntry, error) {
	var first *models.WaitlistEntry
	for _, e := range t.state.waitlist {
		if e.TripID != tripID {
			continue
		}
		if first == nil || e.Position < first.Position {
			e := e
			first = &e
		}
	}
	if first == nil {
		return nil, ErrNotFound
	}
	return first, nil
}

func (t *memTx) DeleteWaitlistEntry(ctx context.Context, id uint) error {
	delete(t.state.waitlist, id)
	return nil
}

func (t *memTx) CloseWaitlistGap(ctx context.Context, tripID uint, afterPosition int) error {
	for id, e := range t.state.waitlist {
		if e.TripID == tripID && e.Position > afterPosition {
			e.Position--
			t.state.waitlist[id] = e
		}
	}
	return nil
}

func (t *memTx) Waitlist(ctx context.Context, tripID uint) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	for _, e := range t.state.waitlist {
		if e.TripID == tripID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

func (t *memTx) ClearWaitlist(ctx context.Context, tripID uint) error {
	for id, e := range t.state.waitlist {
		if e.TripID == tripID {
			delete(t.state.waitlist, id)
		}
	}
	return nil
}

func (t *memTx) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	for _, w := range t.state.wallets {
		if w.UserID == userID {
			w := w
			return &w, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateWallet(ctx context.Context, w *models.Wallet) error {
	w.ID = t.state.id()
	w.CreatedAt = time.Now()
	t.state.wallets[w.ID] = *w
	return nil
}

func (t *memTx) SaveWallet(ctx context.Context, w *models.Wallet) error {
	t.state.wallets[w.ID] = *w
	return nil
}

func (t *memTx) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	tr.ID = t.state.id()
	tr.CreatedAt = time.Now()
	t.state.transactions[tr.ID] = *tr
	return nil
}

func (t *memTx) TransactionsByWallet(ctx context.Context, walletID uint, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for _, tr := range t.state.transactions {
		if tr.WalletID == walletID {
			transactions = append(transactions, tr)
		}
	}
	sort.Slice(transactions, func(i, j int) bool { return transactions[i].ID > transactions[j].ID })
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (t *memTx) GetDeposit(ctx context.Context, id uint) (*models.DepositRequest, error) {
	d, ok := t.state.deposits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (t *memTx) CreateDeposit(ctx context.Context, d *models.DepositRequest) error {
	d.ID = t.state.id()
	d.CreatedAt = time.Now()
	t.state.deposits[d.ID] = *d
	return nil
}

func (t *memTx) SaveDeposit(ctx context.Context, d *models.DepositRequest) error {
	t.state.deposits[d.ID] = *d
	return nil
}

func (t *memTx) CreateAlert(ctx context.Context, a *models.AdminAlert) error {
	a.ID = t.state.id()
	a.CreatedAt = time.Now()
	t.state.alerts[a.ID] = *a
	return nil
}

func (t *memTx) ResolveAlerts(ctx context.Context, tripID, driverID, resolvedBy uint, at time.Time) error {
	for id, a := range t.state.alerts {
		if a.TripID == tripID && a.DriverID == driverID && !a.IsResolved {
			a.IsResolved = true
			a.ResolvedBy = &resolvedBy
			resolvedAt := at
			a.ResolvedAt = &resolvedAt
			t.state.alerts[id] = a
		}
	}
	return nil
}

func (t *memTx) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = t.state.id()
	n.CreatedAt = time.Now()
	t.state.notifications[n.ID] = *n
	return nil
}

// Non-transactional access delegates through a short-lived view under the
// store mutex.

func (m *Memory) view(fn func(*memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{state: m.state})
}

func (m *Memory) GetUser(ctx context.Context, id uint) (u *models.User, err error) {
	err = m.view(func(t *memTx) error { u, err = t.GetUser(ctx, id); return err })
	return
}

func (m *Memory) SaveUser(ctx context.Context, u *models.User) error {
	return m.view(func(t *memTx) error { return t.SaveUser(ctx, u) })
}

func (m *Memory) GetTrip(ctx context.Context, id uint) (trip *models.Trip, err error) {
	err = m.view(func(t *memTx) error { trip, err = t.GetTrip(ctx, id); return err })
	return
}

func (m *Memory) GetTripForUpdate(ctx context.Context, id uint) (trip *models.Trip, err error) {
	err = m.view(func(t *memTx) error { trip, err = t.GetTripForUpdate(ctx, id); return err })
	return
}

func (m *Memory) SaveTrip(ctx context.Context, trip *models.Trip) error {
	return m.view(func(t *memTx) error { return t.SaveTrip(ctx, trip) })
}

func (m *Memory) TripsNeedingReminder(ctx context.Context, windowStart, windowEnd time.Time) (trips []models.Trip, err error) {
	err = m.view(func(t *memTx) error { trips, err = t.TripsNeedingReminder(ctx, windowStart, windowEnd); return err })
	return
}

func (m *Memory) TripsAwaitingReadiness(ctx context.Context, now, deadline time.Time) (trips []models.Trip, err error) {
	err = m.view(func(t *memTx) error { trips, err = t.TripsAwaitingReadiness(ctx, now, deadline); return err })
	return
}

func (m *Memory) GetBooking(ctx context.Context, id uint) (b *models.Booking, err error) {
	err = m.view(func(t *memTx) error { b, err = t.GetBooking(ctx, id); return err })
	return
}

func (m *Memory) ActiveBooking(ctx context.Context, userID, tripID uint) (b *models.Booking, err error) {
	err = m.view(func(t *memTx) error { b, err = t.ActiveBooking(ctx, userID, tripID); return err })
	return
}

func (m *Memory) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.view(func(t *memTx) error { return t.CreateBooking(ctx, b) })
}

func (m *Memory) SaveBooking(ctx context.Context, b *models.Booking) error {
	return m.view(func(t *memTx) error { return t.SaveBooking(ctx, b) })
}

func (m *Memory) BookingsByTrip(ctx context.Context, tripID uint, statuses ...models.BookingStatus) (bookings []models.Booking, err error) {
	err = m.view(func(t *memTx) error { bookings, err = t.BookingsByTrip(ctx, tripID, statuses...); return err })
	return
}

func (m *Memory) CountBookingsByTrip(ctx context.Context, tripID uint, status models.BookingStatus) (count int64, err error) {
	err = m.view(func(t *memTx) error { count, err = t.CountBookingsByTrip(ctx, tripID, status); return err })
	return
}

func (m *Memory) WaitlistEntryFor(ctx context.Context, userID, tripID uint) (e *models.WaitlistEntry, err error) {
	err = m.view(func(t *memTx) error { e, err = t.WaitlistEntryFor(ctx, userID, tripID); return err })
	return
}

func (m *Memory) LastWaitlistPosition(ctx context.Context, tripID uint) (pos int, err error) {
	err = m.view(func(t *memTx) error { pos, err = t.LastWaitlistPosition(ctx, tripID); return err })
	return
}

func (m *Memory) CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	return m.view(func(t *memTx) error { return t.CreateWaitlistEntry(ctx, e) })
}

func (m *Memory) FirstWaitlistEntry(ctx context.Context, tripID uint) (e *models.WaitlistEntry, err error) {
	err = m.view(func(t *memTx) error { e, err = t.FirstWaitlistEntry(ctx, tripID); return err })
	return
}

func (m *Memory) DeleteWaitlistEntry(ctx context.Context, id uint) error {
	return m.view(func(t *memTx) error { return t.DeleteWaitlistEntry(ctx, id) })
}

func (m *Memory) CloseWaitlistGap(ctx context.Context, tripID uint, afterPosition int) error {
	return m.view(func(t *memTx) error { return t.CloseWaitlistGap(ctx, tripID, afterPosition) })
}

func (m *Memory) Waitlist(ctx context.Context, tripID uint) (entries []models.WaitlistEntry, err error) {
	err = m.view(func(t *memTx) error { entries, err = t.Waitlist(ctx, tripID); return err })
	return
}

func (m *Memory) ClearWaitlist(ctx context.Context, tripID uint) error {
	return m.view(func(t *memTx) error { return t.ClearWaitlist(ctx, tripID) })
}

func (m *Memory) GetWallet(ctx context.Context, userID uint) (w *models.Wallet, err error) {
	err = m.view(func(t *memTx) error { w, err = t.GetWallet(ctx, userID); return err })
	return
}

func (m *Memory) CreateWallet(ctx context.Context, w *models.Wallet) error {
	return m.view(func(t *memTx) error { return t.CreateWallet(ctx, w) })
}

func (m *Memory) SaveWallet(ctx context.Context, w *models.Wallet) error {
	return m.view(func(t *memTx) error { return t.SaveWallet(ctx, w) })
}

func (m *Memory) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	return m.view(func(t *memTx) error { return t.CreateTransaction(ctx, tr) })
}

func (m *Memory) TransactionsByWallet(ctx context.Context, walletID uint, limit int) (transactions []models.Transaction, err error) {
	err = m.view(func(t *memTx) error { transactions, err = t.TransactionsByWallet(ctx, walletID, limit); return err })
	return
}

func (m *Memory) GetDeposit(ctx context.Context, id uint) (d *models.DepositRequest, err error) {
	err = m.view(func(t *memTx) error { d, err = t.GetDeposit(ctx, id); return err })
	return
}

func (m *Memory) CreateDeposit(ctx context.Context, d *models.DepositRequest) error {
	return m.view(func(t *memTx) error { return t.CreateDeposit(ctx, d) })
}

func (m *Memory) SaveDeposit(ctx context.Context, d *models.DepositRequest) error {
	return m.view(func(t *memTx) error { return t.SaveDeposit(ctx, d) })
}

func (m *Memory) CreateAlert(ctx context.Context, a *models.AdminAlert) error {
	return m.view(func(t *memTx) error { return t.CreateAlert(ctx, a) })
}

func (m *Memory) ResolveAlerts(ctx context.Context, tripID, driverID, resolvedBy uint, at time.Time) error {
	return m.view(func(t *memTx) error { return t.ResolveAlerts(ctx, tripID, driverID, resolvedBy, at) })
}

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.view(func(t *memTx) error { return t.CreateNotification(ctx, n) })
}

// Alerts returns all alerts, newest first. Test helper; the HTTP surface
// reads alerts straight from the database.
func (m *Memory) Alerts(resolved bool) []models.AdminAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var alerts []models.AdminAlert
	for _, a := range m.state.alerts {
		if a.IsResolved == resolved {
			alerts = append(alerts, a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID > alerts[j].ID })
	return alerts
}

// Notifications returns a user's notifications in creation order. Test helper.
func (m *Memory) Notifications(userID uint) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var notes []models.Notification
	for _, n := range m.state.notifications {
		if n.UserID == userID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}
