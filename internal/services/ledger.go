package services

import (
	"context"
	"fmt"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/store"
)

// Ledger owns wallet balances. Every balance change goes through Debit
// or Credit, which write the wallet row and its transaction row through
// the same store, so a caller inside an atomic unit keeps both writes in
// one commit. Balances are stored in piastres (1/100 EGP) and never go
// negative.
type Ledger struct {
	store store.Store
}

func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first touch
func (l *Ledger) GetOrCreateWallet(ctx context.Context, s store.Store, userID uint) (*models.Wallet, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	wallet = &models.Wallet{UserID: userID, BalanceCents: 0}
	if err := s.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// Debit withdraws amountCents from the user's wallet for a payment and
// records the transaction. Fails with an insufficient-funds rejection
// when the balance does not cover the amount; the wallet is untouched
// in that case.
func (l *Ledger) Debit(ctx context.Context, s store.Store, userID uint, amountCents int64, reference, metadata string) (*models.Transaction, error) {
	if amountCents <= 0 {
		return nil, InvalidOperationError("Debit amount must be positive")
	}

	wallet, err := l.GetOrCreateWallet(ctx, s, userID)
	if err != nil {
		return nil, err
	}

	if wallet.BalanceCents < amountCents {
		return nil, InsufficientFundsError(amountCents, wallet.BalanceCents)
	}

	wallet.BalanceCents -= amountCents
	if err := s.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		WalletID:    wallet.ID,
		Type:        models.TransactionTypePayment,
		AmountCents: amountCents,
		Status:      models.TransactionStatusCompleted,
		Reference:   reference,
		Metadata:    metadata,
	}
	if err := s.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Credit adds amountCents to the user's wallet and records the
// transaction. txType must be a deposit or a refund.
func (l *Ledger) Credit(ctx context.Context, s store.Store, userID uint, amountCents int64, txType models.TransactionType, reference, metadata string) (*models.Transaction, error) {
	if amountCents <= 0 {
		return nil, InvalidOperationError("Credit amount must be positive")
	}
	if txType != models.TransactionTypeDeposit && txType != models.TransactionTypeRefund {
		return nil, InvalidOperationError(fmt.Sprintf("Invalid credit type: %s", txType))
	}

	wallet, err := l.GetOrCreateWallet(ctx, s, userID)
	if err != nil {
		return nil, err
	}

	wallet.BalanceCents += amountCents
	if err := s.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		WalletID:    wallet.ID,
		Type:        txType,
		AmountCents: amountCents,
		Status:      models.TransactionStatusCompleted,
		Reference:   reference,
		Metadata:    metadata,
	}
	if err := s.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Balance reads the user's current balance without creating a wallet
func (l *Ledger) Balance(ctx context.Context, userID uint) (int64, error) {
	wallet, err := l.store.GetWallet(ctx, userID)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return wallet.BalanceCents, nil
}
