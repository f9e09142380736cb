package service

import (
	"context"
	"testing"

	"talentpay/internal/config"
	"talentpay/internal/model"
	"talentpay/internal/repository"
	"talentpay/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTopic = "talentpay.test.events"

type fixture struct {
	db          *gorm.DB
	cfg         *config.Config
	fees        *FeeConfigService
	wallets     *WalletService
	milestones  *MilestoneService
	teamFunds   *TeamFundService
	withdrawals *WithdrawalService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Kafka.Topic.PaymentEvents = testTopic
	cfg.Business.MinWithdrawalAmount = 100
	cfg.Business.LockTTLSeconds = 10
	cfg.FeePolicy = config.FeePolicyConfig{
		Name:            "default",
		SystemFeeRate:   "0.10",
		MentorShareRate: "0.20",
		TalentShareRate: "0.70",
	}
	return cfg
}

// newFixture 内存 SQLite + miniredis，写入默认 10/20/70 策略
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	locker := testutil.NewLocker(t)
	cfg := testConfig()

	f := &fixture{
		db:          db,
		cfg:         cfg,
		fees:        NewFeeConfigService(db),
		wallets:     NewWalletService(db),
		milestones:  NewMilestoneService(db, locker, cfg),
		teamFunds:   NewTeamFundService(db, locker, cfg),
		withdrawals: NewWithdrawalService(db, locker, cfg),
	}
	require.NoError(t, f.fees.EnsureDefault(context.Background(), cfg.FeePolicy))
	return f
}

// deposit 同步里程碑并入账
func (f *fixture) deposit(t *testing.T, projectID, milestoneID string, budget int64) *model.Milestone {
	t.Helper()
	ctx := context.Background()

	_, err := f.milestones.RegisterMilestone(ctx, &RegisterMilestoneRequest{
		ID:             milestoneID,
		ProjectID:      projectID,
		Title:          "里程碑 " + milestoneID,
		Budget:         budget,
		MentorLeaderID: "mentor-lead",
		TalentLeaderID: "talent-lead",
	})
	require.NoError(t, err)

	resp, err := f.milestones.Deposit(ctx, milestoneID, &DepositRequest{
		ConfirmationID: "confirm-" + milestoneID,
		Amount:         budget,
	})
	require.NoError(t, err)
	return resp.Milestone
}

// release 入账、计算、执行一条龙
func (f *fixture) release(t *testing.T, projectID, milestoneID string, budget int64, mentorLeader, talentLeader string) *ExecutionResult {
	t.Helper()
	ctx := context.Background()

	f.deposit(t, projectID, milestoneID, budget)
	rec, err := f.milestones.CalculateDisbursement(ctx, milestoneID, &CalculateDisbursementRequest{
		MentorLeaderID: mentorLeader,
		TalentLeaderID: talentLeader,
		TotalAmount:    budget,
	})
	require.NoError(t, err)

	result, err := f.milestones.ExecuteDisbursement(ctx, rec.ID)
	require.NoError(t, err)
	return result
}

// balance 按归属查询钱包余额，钱包不存在视为 0
func (f *fixture) balance(t *testing.T, ownerType, ownerID string) int64 {
	t.Helper()
	w, err := repository.NewWalletRepository(f.db).GetByOwner(context.Background(), nil, ownerType, ownerID)
	if err == repository.ErrWalletNotFound {
		return 0
	}
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) wallet(t *testing.T, ownerType, ownerID string) *model.Wallet {
	t.Helper()
	w, err := f.wallets.FindWallet(context.Background(), ownerType, ownerID)
	require.NoError(t, err)
	return w
}

func (f *fixture) events(t *testing.T, key string) []string {
	t.Helper()
	msgs, err := repository.NewOutboxRepository(f.db, testTopic).ListByKey(context.Background(), key)
	require.NoError(t, err)
	var types []string
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}

func (f *fixture) countTransactions(t *testing.T, txType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Transaction{}).Where("type = ?", txType).Count(&n).Error)
	return n
}
