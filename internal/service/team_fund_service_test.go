package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"talentpay/internal/apperr"
	"talentpay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeWithinHeldAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 10_000_000, "mentor-lead", "talent-lead")

	resp, err := f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RecipientID: "member-1", Amount: 2_000_000})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeInternalDistribution, resp.Transaction.Type)
	assert.Equal(t, int64(5_000_000), resp.Holding.HeldByLeader)

	resp, err = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RecipientID: "member-2", Amount: 2_500_000})
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), resp.Holding.HeldByLeader)
	assert.Equal(t, int64(4_500_000), resp.Holding.TotalDistributed)

	_, err = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RecipientID: "member-3", Amount: 3_000_000})
	assert.True(t, errors.Is(err, apperr.ErrExceedsHeldAmount))

	assert.Equal(t, int64(2_000_000), f.balance(t, model.WalletOwnerMember, "member-1"))
	assert.Equal(t, int64(2_500_000), f.balance(t, model.WalletOwnerMember, "member-2"))
	assert.Equal(t, int64(0), f.balance(t, model.WalletOwnerMember, "member-3"))
	assert.Equal(t, int64(2_500_000), f.balance(t, model.WalletOwnerTalentHolding, "p1"))

	entries, err := f.teamFunds.ListEntries(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, []string{model.EventTeamFundDistributed, model.EventTeamFundDistributed}, f.events(t, "p1"))
}

func TestDistributeRequiresLeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	_, err := f.teamFunds.Distribute(ctx, "p1", "member-1", &DistributeRequest{RecipientID: "member-1", Amount: 100})
	assert.True(t, errors.Is(err, apperr.ErrNotLeader))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = f.teamFunds.Distribute(ctx, "p1", "", &DistributeRequest{RecipientID: "member-1", Amount: 100})
	assert.True(t, errors.Is(err, apperr.ErrNotLeader))

	assert.Equal(t, int64(700_000), f.balance(t, model.WalletOwnerTalentHolding, "p1"))
}

func TestDistributeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	_, err := f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RecipientID: "member-1", Amount: 0})
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))

	_, err = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{Amount: 10})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	// 没有收到过团队资金的项目
	_, err = f.teamFunds.Distribute(ctx, "p2", "talent-lead", &DistributeRequest{RecipientID: "member-1", Amount: 10})
	assert.True(t, errors.Is(err, apperr.ErrExceedsHeldAmount))
}

func TestDistributeReplayWithRequestID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	req := &DistributeRequest{RequestID: "req-1", RecipientID: "member-1", Amount: 100_000}
	first, err := f.teamFunds.Distribute(ctx, "p1", "talent-lead", req)
	require.NoError(t, err)
	second, err := f.teamFunds.Distribute(ctx, "p1", "talent-lead", req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(100_000), f.balance(t, model.WalletOwnerMember, "member-1"))
	assert.Equal(t, int64(600_000), second.Holding.HeldByLeader)
}

func TestDistributeReplayChecksCallerAndParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	_, err := f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RequestID: "r1", RecipientID: "a", Amount: 100})
	require.NoError(t, err)

	// 非组长复用同一个 request_id
	_, err = f.teamFunds.Distribute(ctx, "p1", "intruder", &DistributeRequest{RequestID: "r1", RecipientID: "b", Amount: 5000})
	assert.True(t, errors.Is(err, apperr.ErrNotLeader))

	_, err = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RequestID: "r1", RecipientID: "a", Amount: 200})
	assert.True(t, errors.Is(err, apperr.ErrIdempotencyConflict))

	_, err = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RequestID: "r1", RecipientID: "b", Amount: 100})
	assert.True(t, errors.Is(err, apperr.ErrIdempotencyConflict))

	assert.Equal(t, int64(100), f.balance(t, model.WalletOwnerMember, "a"))
	status, err := f.teamFunds.HoldingStatus(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), status.TotalDistributed)
}

func TestDistributeConcurrentlyNeverExceedsHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.teamFunds.Distribute(ctx, "p1", "talent-lead", &DistributeRequest{RecipientID: "member-1", Amount: 100_000})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrExceedsHeldAmount), err)
	}
	assert.Equal(t, 7, succeeded)

	holding, err := f.teamFunds.HoldingStatus(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), holding.HeldByLeader)
	assert.Equal(t, int64(700_000), f.balance(t, model.WalletOwnerMember, "member-1"))
}

func TestHoldingAccumulatesAcrossMilestones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")
	f.release(t, "p1", "m2", 2_000_000, "mentor-lead", "talent-lead")

	holding, err := f.teamFunds.HoldingStatus(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2_100_000), holding.TotalReceived)
	assert.Equal(t, int64(2_100_000), holding.HeldByLeader)
	assert.Equal(t, int64(2_100_000), f.balance(t, model.WalletOwnerTalentHolding, "p1"))
}

func TestHoldingStatusEmptyProject(t *testing.T) {
	f := newFixture(t)
	holding, err := f.teamFunds.HoldingStatus(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, "", holding.LeaderID)
	assert.Equal(t, int64(0), holding.HeldByLeader)
	assert.Nil(t, holding.LastReleaseAt)
}

func TestListStaleHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.release(t, "p1", "m1", 1_000_000, "mentor-lead", "talent-lead")
	f.release(t, "p2", "m2", 1_000_000, "mentor-lead", "talent-lead-2")
	_, err := f.teamFunds.Distribute(ctx, "p2", "talent-lead-2", &DistributeRequest{RecipientID: "member-1", Amount: 700_000})
	require.NoError(t, err)

	stale, err := f.teamFunds.ListStaleHoldings(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, stale)

	f.teamFunds.now = func() time.Time { return time.Now().Add(10 * 24 * time.Hour) }
	stale, err = f.teamFunds.ListStaleHoldings(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "p1", stale[0].ProjectID)
	assert.Equal(t, "talent-lead", stale[0].LeaderID)
	assert.GreaterOrEqual(t, stale[0].DaysSinceLastRelease, 9)
}
