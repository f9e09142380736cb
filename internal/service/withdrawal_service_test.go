package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"talentpay/internal/apperr"
	"talentpay/internal/model"
	"talentpay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBank = BankInfo{BankName: "招商银行", BankAccountNumber: "6225880000000000", BankAccountHolder: "张三"}

// mentorWallet 发放一个里程碑后导师组长钱包有 2,000,000
func mentorWallet(t *testing.T, f *fixture) *model.Wallet {
	t.Helper()
	f.release(t, "p1", "m1", 10_000_000, "mentor-lead", "talent-lead")
	return f.wallet(t, model.WalletOwnerMentor, "mentor-lead")
}

func (f *fixture) transaction(t *testing.T, id string) *model.Transaction {
	t.Helper()
	trans, err := repository.NewTransactionRepository(f.db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	require.NotNil(t, trans)
	return trans
}

func TestRequestWithdrawalReservesFunds(t *testing.T) {
	f := newFixture(t)
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(context.Background(), "mentor-lead", &WithdrawRequest{
		WalletID: w.ID, Amount: 500_000, BankInfo: testBank,
	})
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, req.Status)
	assert.Equal(t, int64(1_500_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))

	trans := f.transaction(t, req.TransactionID)
	assert.Equal(t, model.TransactionTypeWithdrawal, trans.Type)
	assert.Equal(t, model.TransactionStatusPending, trans.Status)
	assert.Nil(t, trans.DestinationWalletID)
	assert.Equal(t, []string{model.EventWithdrawalRequested}, f.events(t, req.ID))
}

func TestRequestWithdrawalOverBalance(t *testing.T) {
	f := newFixture(t)
	w := mentorWallet(t, f)

	_, err := f.withdrawals.RequestWithdrawal(context.Background(), "mentor-lead", &WithdrawRequest{
		WalletID: w.ID, Amount: 2_000_001, BankInfo: testBank,
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))
	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
	assert.Equal(t, int64(0), f.countTransactions(t, model.TransactionTypeWithdrawal))
}

func TestRequestWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	_, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 0, BankInfo: testBank})
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))

	// 低于最低提现金额
	_, err = f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 99, BankInfo: testBank})
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))

	_, err = f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{
		WalletID: w.ID, Amount: 1000, BankInfo: BankInfo{BankName: "招商银行"},
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = f.withdrawals.RequestWithdrawal(ctx, "someone-else", &WithdrawRequest{WalletID: w.ID, Amount: 1000, BankInfo: testBank})
	assert.True(t, errors.Is(err, apperr.ErrNotWalletOwner))

	_, err = f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: "missing", Amount: 1000, BankInfo: testBank})
	assert.True(t, errors.Is(err, apperr.ErrWalletNotFound))

	// 代持账户的 owner 是项目，不允许直接提现
	holding := f.wallet(t, model.WalletOwnerTalentHolding, "p1")
	_, err = f.withdrawals.RequestWithdrawal(ctx, "p1", &WithdrawRequest{WalletID: holding.ID, Amount: 1000, BankInfo: testBank})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
}

// memberWallet 直接准备一个指定余额的成员钱包
func memberWallet(t *testing.T, f *fixture, userID string, balance int64) *model.Wallet {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewWalletRepository(f.db)
	w, err := repo.GetOrCreate(ctx, nil, model.WalletOwnerMember, userID)
	require.NoError(t, err)
	require.NoError(t, repo.Increase(ctx, f.db, w.ID, balance))
	return w
}

func TestRequestWithdrawalBelowMinimumAndOverBalance(t *testing.T) {
	f := newFixture(t)
	w := memberWallet(t, f, "member-1", 50)

	_, err := f.withdrawals.RequestWithdrawal(context.Background(), "member-1", &WithdrawRequest{
		WalletID: w.ID, Amount: 80, BankInfo: testBank,
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance), err)
	assert.Equal(t, int64(50), f.balance(t, model.WalletOwnerMember, "member-1"))
}

func TestRequestWithdrawalConcurrentlyNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := memberWallet(t, f, "member-1", 2000)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.withdrawals.RequestWithdrawal(ctx, "member-1", &WithdrawRequest{
				WalletID: w.ID, Amount: 1500, BankInfo: testBank,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance), err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(500), f.balance(t, model.WalletOwnerMember, "member-1"))

	list, err := f.withdrawals.ListByUser(ctx, "member-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestRejectRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 500_000, BankInfo: testBank})
	require.NoError(t, err)

	_, err = f.withdrawals.Reject(ctx, req.ID, "admin-1", "  ")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	rejected, err := f.withdrawals.Reject(ctx, req.ID, "admin-1", "银行信息有误")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "银行信息有误", rejected.AdminNote)
	assert.Equal(t, "admin-1", rejected.ReviewedBy)

	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
	assert.Equal(t, model.TransactionStatusFailed, f.transaction(t, req.TransactionID).Status)
	assert.Equal(t, int64(1), f.countTransactions(t, model.TransactionTypeRefund))

	// 终态不能再迁移
	_, err = f.withdrawals.Approve(ctx, req.ID, "admin-1", nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	_, err = f.withdrawals.Reject(ctx, req.ID, "admin-1", "再次驳回")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
}

func TestCancelByOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 300_000, BankInfo: testBank})
	require.NoError(t, err)

	_, err = f.withdrawals.Cancel(ctx, req.ID, "intruder")
	assert.True(t, errors.Is(err, apperr.ErrNotWalletOwner))
	assert.Equal(t, int64(1_700_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))

	cancelled, err := f.withdrawals.Cancel(ctx, req.ID, "mentor-lead")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
}

func TestPayoutSuccessFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 500_000, BankInfo: testBank})
	require.NoError(t, err)

	// 未审批不能打款
	_, err = f.withdrawals.MarkProcessing(ctx, req.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	approved, err := f.withdrawals.Approve(ctx, req.ID, "admin-1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusApproved, approved.Status)
	assert.NotNil(t, approved.ScheduledAt)

	// 已审批后用户不能撤销
	_, err = f.withdrawals.Cancel(ctx, req.ID, "mentor-lead")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = f.withdrawals.MarkProcessing(ctx, req.ID)
	require.NoError(t, err)

	done, replayed, err := f.withdrawals.ConfirmPayout(ctx, req.ID, &PayoutConfirmation{PayoutReference: "bank-ref-1", Success: true})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, model.WithdrawalStatusCompleted, done.Status)
	assert.Equal(t, "bank-ref-1", done.PayoutReference)
	assert.NotNil(t, done.ProcessedAt)
	assert.Equal(t, model.TransactionStatusCompleted, f.transaction(t, req.TransactionID).Status)

	// 回调重复投递
	_, replayed, err = f.withdrawals.ConfirmPayout(ctx, req.ID, &PayoutConfirmation{PayoutReference: "bank-ref-1", Success: true})
	require.NoError(t, err)
	assert.True(t, replayed)

	_, _, err = f.withdrawals.ConfirmPayout(ctx, req.ID, &PayoutConfirmation{Success: false})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	assert.Equal(t, int64(1_500_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
	assert.Equal(t, []string{
		model.EventWithdrawalRequested,
		model.EventWithdrawalApproved,
		model.EventWithdrawalProcessing,
		model.EventWithdrawalCompleted,
	}, f.events(t, req.ID))

	// 提现完成后资金离开系统
	total, err := f.wallets.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9_500_000), total)
}

func TestPayoutFailureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 500_000, BankInfo: testBank})
	require.NoError(t, err)
	_, err = f.withdrawals.Approve(ctx, req.ID, "admin-1", nil)
	require.NoError(t, err)
	_, err = f.withdrawals.MarkProcessing(ctx, req.ID)
	require.NoError(t, err)

	failed, _, err := f.withdrawals.ConfirmPayout(ctx, req.ID, &PayoutConfirmation{Success: false, Note: "账户已注销"})
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusFailed, failed.Status)
	assert.Equal(t, "账户已注销", failed.AdminNote)
	assert.Equal(t, model.TransactionStatusFailed, f.transaction(t, req.TransactionID).Status)
	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))

	_, replayed, err := f.withdrawals.ConfirmPayout(ctx, req.ID, &PayoutConfirmation{Success: false})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, int64(1), f.countTransactions(t, model.TransactionTypeRefund))
	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMentor, "mentor-lead"))
}

func TestDueForPayoutRespectsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	now, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 1000, BankInfo: testBank})
	require.NoError(t, err)
	later, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 1000, BankInfo: testBank})
	require.NoError(t, err)

	_, err = f.withdrawals.Approve(ctx, now.ID, "admin-1", nil)
	require.NoError(t, err)
	tomorrow := time.Now().Add(24 * time.Hour)
	_, err = f.withdrawals.Approve(ctx, later.ID, "admin-1", &tomorrow)
	require.NoError(t, err)

	due, err := f.withdrawals.DueForPayout(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, now.ID, due[0].ID)
}

func TestListWithdrawals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	for i := 0; i < 3; i++ {
		_, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 1000, BankInfo: testBank})
		require.NoError(t, err)
	}

	mine, err := f.withdrawals.ListByUser(ctx, "mentor-lead", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Total)
	assert.Len(t, mine.Withdrawals, 2)

	pending, err := f.withdrawals.ListByStatus(ctx, model.WithdrawalStatusPending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending.Total)

	approved, err := f.withdrawals.ListByStatus(ctx, model.WithdrawalStatusApproved, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), approved.Total)

	_, err = f.withdrawals.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrWithdrawalNotFound))
}

func TestWithdrawalTransactionsAfterReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := mentorWallet(t, f)

	req, err := f.withdrawals.RequestWithdrawal(ctx, "mentor-lead", &WithdrawRequest{WalletID: w.ID, Amount: 300_000, BankInfo: testBank})
	require.NoError(t, err)
	_, err = f.withdrawals.Reject(ctx, req.ID, "admin-1", "账户信息有误")
	require.NoError(t, err)

	list, err := f.withdrawals.ListTransactions(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	types := []string{list[0].Type, list[1].Type}
	assert.ElementsMatch(t, []string{model.TransactionTypeWithdrawal, model.TransactionTypeRefund}, types)

	_, err = f.withdrawals.ListTransactions(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrWithdrawalNotFound))
}
