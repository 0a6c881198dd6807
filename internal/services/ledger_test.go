package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

func TestDebitRejectsOverdraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.addUser(t, models.UserRoleClient, 5000)

	_, err := env.ledger.Debit(ctx, env.store, user.ID, 10000, "BOOKING-TRIP-1", "")
	requireKind(t, err, KindInsufficientFunds)
	require.Contains(t, err.Error(), "Required: 100.00 EGP")
	require.Contains(t, err.Error(), "Current balance: 50.00 EGP")

	// The wallet is untouched
	require.Equal(t, int64(5000), env.balance(t, user.ID))
}

func TestDebitAndCreditWriteLedgerEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.addUser(t, models.UserRoleClient, 30000)

	txn, err := env.ledger.Debit(ctx, env.store, user.ID, 10000, "BOOKING-TRIP-7", `{"tripId":7}`)
	require.NoError(t, err)
	require.Equal(t, models.TransactionTypePayment, txn.Type)
	require.Equal(t, int64(10000), txn.AmountCents)
	require.Equal(t, int64(20000), env.balance(t, user.ID))

	_, err = env.ledger.Credit(ctx, env.store, user.ID, 10000, models.TransactionTypeRefund, "REFUND-BOOKING-3", "")
	require.NoError(t, err)
	require.Equal(t, int64(30000), env.balance(t, user.ID))

	wallet, err := env.store.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	entries, err := env.store.TransactionsByWallet(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCreditRejectsPaymentType(t *testing.T) {
	env := newTestEnv(t)

	user := env.addUser(t, models.UserRoleClient, 0)

	_, err := env.ledger.Credit(context.Background(), env.store, user.ID, 1000, models.TransactionTypePayment, "X", "")
	requireKind(t, err, KindInvalidOperation)

	_, err = env.ledger.Credit(context.Background(), env.store, user.ID, -1000, models.TransactionTypeRefund, "X", "")
	requireKind(t, err, KindInvalidOperation)
}

func TestBalanceWithoutWalletIsZero(t *testing.T) {
	env := newTestEnv(t)

	user := env.addUser(t, models.UserRoleClient, 0)
	require.Equal(t, int64(0), env.balance(t, user.ID))
}
