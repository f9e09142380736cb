package service

import (
	"context"
	"errors"
	"testing"

	"talentpay/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultSeedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.fees.EnsureDefault(ctx, f.cfg.FeePolicy))
	list, err := f.fees.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Active)
	assert.Equal(t, "default", list[0].Name)
	assert.Equal(t, 1, list[0].Version)
}

func TestCreateRejectsInvalidPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, r := range []FeeRates{rates("0.10", "0.20", "0.50"), rates("0.10", "0.40", "0.70")} {
		_, err := f.fees.Create(ctx, &CreateFeeConfigRequest{Name: "bad", FeeRates: r})
		assert.True(t, errors.Is(err, apperr.ErrInvalidPolicy))
	}

	_, err := f.fees.Create(ctx, &CreateFeeConfigRequest{Name: " ", FeeRates: rates("0.10", "0.20", "0.70")})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	list, err := f.fees.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateBumpsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active, err := f.fees.GetActive(ctx)
	require.NoError(t, err)

	updated, err := f.fees.Update(ctx, active.ID, rates("0.05", "0.15", "0.80"), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, active.Version+1, updated.Version)
	assert.Equal(t, "admin-1", updated.UpdatedBy)

	_, err = f.fees.Update(ctx, active.ID, rates("0.05", "0.15", "0.70"), "admin-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidPolicy))

	_, err = f.fees.Update(ctx, "missing", rates("0.05", "0.15", "0.80"), "admin-1")
	assert.True(t, errors.Is(err, apperr.ErrPolicyNotFound))
}

func TestActivateKeepsSingleActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	promo, err := f.fees.Create(ctx, &CreateFeeConfigRequest{Name: "promo", FeeRates: rates("0", "0.25", "0.75")})
	require.NoError(t, err)
	assert.False(t, promo.Active)

	_, err = f.fees.Activate(ctx, promo.ID)
	require.NoError(t, err)

	active, err := f.fees.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, promo.ID, active.ID)

	list, err := f.fees.List(ctx)
	require.NoError(t, err)
	activeCount := 0
	for _, c := range list {
		if c.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	_, err = f.fees.Activate(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrPolicyNotFound))
}

func TestCreateAndActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.fees.Create(ctx, &CreateFeeConfigRequest{Name: "v2", FeeRates: rates("0.15", "0.15", "0.70"), Activate: true})
	require.NoError(t, err)
	assert.True(t, created.Active)

	f.deposit(t, "p1", "m1", 1_000_000)
	preview, err := f.milestones.PreviewDisbursement(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, preview.PolicyID)
	assert.Equal(t, int64(150_000), preview.SystemFee)
}
