package services

import (
	"context"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

// Notifier persists in-app notifications and pushes them to connected
// clients. Enqueue writes through the store it is given, so a caller
// inside an atomic unit gets the notification row committed (or rolled
// back) together with the business writes. Push happens after commit
// and is best-effort.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a notifier. The hub may be nil; pushes are then
// skipped and only the persisted rows remain.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Enqueue persists a notification through s and returns the stored row
func (n *Notifier) Enqueue(ctx context.Context, s store.Store, note *models.Notification) error {
	return s.CreateNotification(ctx, note)
}

// Push sends already-committed notifications over the websocket hub
func (n *Notifier) Push(notes ...models.Notification) {
	if n.hub == nil {
		return
	}
	for _, note := range notes {
		n.hub.SendNotification(note)
	}
}

// PushAlert fans a committed admin alert out to connected admins
func (n *Notifier) PushAlert(alert models.AdminAlert) {
	if n.hub == nil {
		return
	}
	n.hub.SendAdminAlert(alert)
}
