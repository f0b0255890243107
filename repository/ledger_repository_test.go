package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery/domain/entities"
	"lottery/repository/testutil"
)

func TestLedgerRepository_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	alice := testutil.TestAddress("alice")
	bob := testutil.TestAddress("bob")

	t.Run("get before deploy returns nil", func(t *testing.T) {
		state, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("create opens round one", func(t *testing.T) {
		openedAt := time.Now().UTC().Truncate(time.Second)
		state, err := repo.Create(ctx, testutil.TestOperator, openedAt)
		require.NoError(t, err)

		assert.Equal(t, testutil.TestOperator, state.Operator)
		assert.Equal(t, uint64(1), state.Round.Number)
		assert.True(t, state.Round.IsOpen())
		assert.True(t, state.Round.IsEmpty())
		assert.True(t, state.Round.Pool.IsZero())
		assert.True(t, openedAt.Equal(state.Round.OpenedAt))
	})

	t.Run("second create fails", func(t *testing.T) {
		_, err := repo.Create(ctx, bob, time.Now())
		assert.Error(t, err)
	})

	t.Run("entries are returned in order with the pool", func(t *testing.T) {
		first := testutil.CreateTestEntry(1, 0, alice)
		require.NoError(t, repo.AddEntry(ctx, first, entities.MinimumStake()))
		assert.NotZero(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())

		second := testutil.CreateTestEntry(1, 1, bob)
		second.Stake = entities.Ether(2)
		pool := new(uint256.Int).Add(entities.MinimumStake(), entities.Ether(2))
		require.NoError(t, repo.AddEntry(ctx, second, pool))

		third := testutil.CreateTestEntry(1, 2, alice)
		pool = new(uint256.Int).Add(pool, entities.MinimumStake())
		require.NoError(t, repo.AddEntry(ctx, third, pool))

		state, err := repo.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, []common.Address{alice, bob, alice}, state.Round.Entrants)
		assert.Equal(t, pool.Dec(), state.Round.Pool.Dec())
	})

	t.Run("duplicate position is rejected", func(t *testing.T) {
		err := repo.AddEntry(ctx, testutil.CreateTestEntry(1, 1, alice), entities.Ether(5))
		assert.Error(t, err)
	})

	t.Run("entry for a closed round is rejected", func(t *testing.T) {
		err := repo.AddEntry(ctx, testutil.CreateTestEntry(7, 0, alice), entities.MinimumStake())
		assert.Error(t, err)
	})

	t.Run("advance resets the open round and keeps old entrants", func(t *testing.T) {
		next := entities.NewRound(2, time.Now().UTC())
		require.NoError(t, repo.AdvanceRound(ctx, next))

		state, err := repo.GetForUpdate(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), state.Round.Number)
		assert.True(t, state.Round.IsEmpty())
		assert.True(t, state.Round.Pool.IsZero())

		old, err := repo.GetEntrants(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, old, 3)
	})

	t.Run("advance never moves backwards", func(t *testing.T) {
		err := repo.AdvanceRound(ctx, entities.NewRound(2, time.Now()))
		assert.Error(t, err)
	})

	t.Run("unknown round has no entrants", func(t *testing.T) {
		entrants, err := repo.GetEntrants(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, entrants)
	})
}

func TestLedgerRepository_LargePool(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, testutil.TestOperator, time.Now())
	require.NoError(t, err)

	// 2^256 - 1 must survive the NUMERIC round trip
	full := new(uint256.Int).SetAllOne()
	entry := testutil.CreateTestEntry(1, 0, testutil.TestAddress("whale"))
	entry.Stake = full.Clone()
	require.NoError(t, repo.AddEntry(ctx, entry, full))

	state, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, full.Eq(state.Round.Pool))
}
