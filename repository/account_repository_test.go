package repository

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery/domain/entities"
	"lottery/repository/testutil"
)

func TestAccountRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	addr := testutil.TestAddress("alice")

	t.Run("missing account returns nil", func(t *testing.T) {
		account, err := repo.GetByAddress(ctx, addr)
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("update of missing account fails", func(t *testing.T) {
		err := repo.UpdateBalance(ctx, addr, uint256.NewInt(1))
		assert.Error(t, err)
	})

	t.Run("get or create starts at zero", func(t *testing.T) {
		account, err := repo.GetOrCreateForUpdate(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, addr, account.Address)
		assert.True(t, account.Balance.IsZero())
	})

	t.Run("get or create is idempotent", func(t *testing.T) {
		require.NoError(t, repo.UpdateBalance(ctx, addr, entities.Ether(3)))

		account, err := repo.GetOrCreateForUpdate(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, entities.Ether(3).Dec(), account.Balance.Dec())
	})

	t.Run("for update reads the same row", func(t *testing.T) {
		account, err := repo.GetByAddressForUpdate(ctx, addr)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, entities.Ether(3).Dec(), account.Balance.Dec())
	})
}
