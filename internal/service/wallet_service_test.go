package service

import (
	"context"
	"errors"
	"testing"

	"talentpay/internal/apperr"
	"talentpay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletBalanceAndTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	escrow := f.wallet(t, model.WalletOwnerCompanyEscrow, "p1")
	bal, err := f.wallets.GetWalletBalance(ctx, escrow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Balance)
	assert.Equal(t, model.WalletOwnerCompanyEscrow, bal.OwnerType)

	// 托管账户：1 笔入账 + 3 笔发放
	list, err := f.wallets.ListTransactions(ctx, escrow.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(4), list.Total)

	holding := f.wallet(t, model.WalletOwnerTalentHolding, "p1")
	list, err = f.wallets.ListTransactions(ctx, holding.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.PageSize)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, int64(700_000), list.Transactions[0].Amount)
}

func TestWalletNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallets.GetWalletBalance(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
	_, err = f.wallets.ListTransactions(ctx, "missing", 1, 20)
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
	_, err = f.wallets.FindWallet(ctx, model.WalletOwnerMember, "nobody")
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))
}
