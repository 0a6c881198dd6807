package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

func TestRequestDepositStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.addUser(t, models.UserRoleClient, 0)

	deposit, err := env.wallet.RequestDeposit(ctx, user.ID, 20000, "vodafone_cash", "https://example.com/receipt.jpg")
	require.NoError(t, err)
	require.Equal(t, models.DepositStatusPending, deposit.Status)

	// Nothing is credited until an admin approves
	require.Equal(t, int64(0), env.balance(t, user.ID))
}

func TestRequestDepositRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.addUser(t, models.UserRoleClient, 0)

	_, err := env.wallet.RequestDeposit(ctx, user.ID, 0, "instapay", "")
	requireKind(t, err, KindInvalidOperation)

	_, err = env.wallet.RequestDeposit(ctx, user.ID, -500, "instapay", "")
	requireKind(t, err, KindInvalidOperation)

	_, err = env.wallet.RequestDeposit(ctx, user.ID, 500, "", "")
	requireKind(t, err, KindInvalidOperation)
}

func TestApproveDepositCreditsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	user := env.addUser(t, models.UserRoleClient, 0)

	deposit, err := env.wallet.RequestDeposit(ctx, user.ID, 20000, "instapay", "")
	require.NoError(t, err)

	newBalance, err := env.wallet.ApproveDeposit(ctx, admin.ID, deposit.ID)
	require.NoError(t, err)
	require.Equal(t, int64(20000), newBalance)
	require.Equal(t, int64(20000), env.balance(t, user.ID))

	updated, err := env.store.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	require.Equal(t, models.DepositStatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	require.Equal(t, admin.ID, *updated.ReviewedBy)

	// A second approval must not double-credit
	_, err = env.wallet.ApproveDeposit(ctx, admin.ID, deposit.ID)
	requireKind(t, err, KindInvalidOperation)
	require.Equal(t, int64(20000), env.balance(t, user.ID))

	notes := env.store.Notifications(user.ID)
	require.Len(t, notes, 1)
	require.Equal(t, models.NotificationDepositApproved, notes[0].Type)
}

func TestRejectDepositCreditsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	user := env.addUser(t, models.UserRoleClient, 0)

	deposit, err := env.wallet.RequestDeposit(ctx, user.ID, 20000, "bank_transfer", "")
	require.NoError(t, err)

	require.NoError(t, env.wallet.RejectDeposit(ctx, admin.ID, deposit.ID, "receipt unreadable"))
	require.Equal(t, int64(0), env.balance(t, user.ID))

	updated, err := env.store.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	require.Equal(t, models.DepositStatusRejected, updated.Status)
	require.Equal(t, "receipt unreadable", updated.AdminNote)

	// A rejected request cannot be approved afterwards
	_, err = env.wallet.ApproveDeposit(ctx, admin.ID, deposit.ID)
	requireKind(t, err, KindInvalidOperation)

	notes := env.store.Notifications(user.ID)
	require.Len(t, notes, 1)
	require.Equal(t, models.NotificationDepositRejected, notes[0].Type)
	require.Contains(t, notes[0].Message, "receipt unreadable")
}

func TestApproveDepositMissingRequest(t *testing.T) {
	env := newTestEnv(t)

	admin := env.addUser(t, models.UserRoleAdmin, 0)
	_, err := env.wallet.ApproveDeposit(context.Background(), admin.ID, 999)
	requireKind(t, err, KindNotFound)
}

func TestOverviewCreatesWalletOnFirstTouch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.addUser(t, models.UserRoleClient, 0)

	wallet, txns, err := env.wallet.Overview(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Equal(t, user.ID, wallet.UserID)
	require.Equal(t, int64(0), wallet.BalanceCents)
	require.Empty(t, txns)
}
