package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

// WalletService handles the deposit request flow. Users submit a
// deposit with a receipt; an admin approves or rejects it. Approval is
// the only path that credits a wallet with a DEPOSIT transaction.
type WalletService struct {
	store    store.Store
	ledger   *Ledger
	notifier *Notifier
	now      func() time.Time
}

func NewWalletService(s store.Store, ledger *Ledger, notifier *Notifier) *WalletService {
	return &WalletService{
		store:    s,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// Overview returns the user's wallet and recent transactions, creating
// the wallet on first touch
func (w *WalletService) Overview(ctx context.Context, userID uint, limit int) (*models.Wallet, []models.Transaction, error) {
	var wallet *models.Wallet
	var txns []models.Transaction

	err := w.store.Atomically(ctx, func(s store.Store) error {
		var err error
		wallet, err = w.ledger.GetOrCreateWallet(ctx, s, userID)
		if err != nil {
			return err
		}
		txns, err = s.TransactionsByWallet(ctx, wallet.ID, limit)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return wallet, txns, nil
}

// RequestDeposit files a pending deposit request for admin review.
// Nothing is credited until approval.
func (w *WalletService) RequestDeposit(ctx context.Context, userID uint, amountCents int64, paymentMethod, receiptURL string) (*models.DepositRequest, error) {
	if amountCents <= 0 {
		return nil, InvalidOperationError("Deposit amount must be positive")
	}
	if paymentMethod == "" {
		return nil, InvalidOperationError("Payment method is required")
	}

	deposit := &models.DepositRequest{
		UserID:        userID,
		AmountCents:   amountCents,
		PaymentMethod: paymentMethod,
		ReceiptURL:    receiptURL,
		Status:        models.DepositStatusPending,
	}

	err := runAtomic(ctx, w.store, func(s store.Store) error {
		if _, err := w.ledger.GetOrCreateWallet(ctx, s, userID); err != nil {
			return err
		}
		return s.CreateDeposit(ctx, deposit)
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// ApproveDeposit credits the requested amount to the user's wallet and
// closes the request. Only pending requests can be approved, and each
// request credits at most once.
func (w *WalletService) ApproveDeposit(ctx context.Context, adminID, depositID uint) (int64, error) {
	var newBalance int64
	var pending []models.Notification

	err := runAtomic(ctx, w.store, func(s store.Store) error {
		pending = pending[:0]

		deposit, err := s.GetDeposit(ctx, depositID)
		if err != nil {
			return notFoundAs(err, "Deposit request not found")
		}
		if deposit.Status != models.DepositStatusPending {
			return InvalidOperationError(fmt.Sprintf("Deposit request is already %s", deposit.Status))
		}

		reviewedAt := w.now()
		deposit.Status = models.DepositStatusApproved
		deposit.ReviewedBy = &adminID
		deposit.ReviewedAt = &reviewedAt
		if err := s.SaveDeposit(ctx, deposit); err != nil {
			return err
		}

		metadata := fmt.Sprintf(`{"depositId":%d,"method":%q,"reviewedBy":%d}`, deposit.ID, deposit.PaymentMethod, adminID)
		txn, err := w.ledger.Credit(ctx, s, deposit.UserID, deposit.AmountCents, models.TransactionTypeDeposit, fmt.Sprintf("DEPOSIT-%d", deposit.ID), metadata)
		if err != nil {
			return err
		}

		wallet, err := s.GetWallet(ctx, deposit.UserID)
		if err != nil {
			return err
		}
		newBalance = wallet.BalanceCents

		note := models.Notification{
			UserID:   deposit.UserID,
			Type:     models.NotificationDepositApproved,
			Title:    "Deposit approved",
			Message:  fmt.Sprintf("Your deposit of %s EGP was approved. New balance: %s EGP.", utils.FormatEGP(deposit.AmountCents), utils.FormatEGP(newBalance)),
			Metadata: fmt.Sprintf(`{"depositId":%d,"transactionId":%d}`, deposit.ID, txn.ID),
		}
		if err := w.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		pending = append(pending, note)
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.notifier.Push(pending...)
	return newBalance, nil
}

// RejectDeposit closes the request without crediting anything
func (w *WalletService) RejectDeposit(ctx context.Context, adminID, depositID uint, reason string) error {
	var pending []models.Notification

	err := runAtomic(ctx, w.store, func(s store.Store) error {
		pending = pending[:0]

		deposit, err := s.GetDeposit(ctx, depositID)
		if err != nil {
			return notFoundAs(err, "Deposit request not found")
		}
		if deposit.Status != models.DepositStatusPending {
			return InvalidOperationError(fmt.Sprintf("Deposit request is already %s", deposit.Status))
		}

		reviewedAt := w.now()
		deposit.Status = models.DepositStatusRejected
		deposit.ReviewedBy = &adminID
		deposit.ReviewedAt = &reviewedAt
		deposit.AdminNote = reason
		if err := s.SaveDeposit(ctx, deposit); err != nil {
			return err
		}

		message := fmt.Sprintf("Your deposit of %s EGP was rejected.", utils.FormatEGP(deposit.AmountCents))
		if reason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, reason)
		}
		note := models.Notification{
			UserID:   deposit.UserID,
			Type:     models.NotificationDepositRejected,
			Title:    "Deposit rejected",
			Message:  message,
			Metadata: fmt.Sprintf(`{"depositId":%d}`, deposit.ID),
		}
		if err := w.notifier.Enqueue(ctx, s, &note); err != nil {
			return err
		}
		pending = append(pending, note)
		return nil
	})
	if err != nil {
		return err
	}

	w.notifier.Push(pending...)
	return nil
}
