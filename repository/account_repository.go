package repository

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"lottery/database"
	"lottery/domain/entities"
	"lottery/infrastructure/observability"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const selectAccount = `
	SELECT address, balance::text, created_at, updated_at
	FROM accounts
	WHERE address = $1
`

// GetByAddress retrieves an account, or nil if it does not exist
func (r *AccountRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Account, error) {
	defer observability.MeasureDatabaseQuery("account", "GetByAddress")()
	return r.get(ctx, selectAccount, address)
}

// GetByAddressForUpdate retrieves an account with a row lock held until the transaction ends
func (r *AccountRepository) GetByAddressForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	defer observability.MeasureDatabaseQuery("account", "GetByAddressForUpdate")()
	return r.get(ctx, selectAccount+" FOR UPDATE", address)
}

// GetOrCreateForUpdate locks the account, creating it with a zero balance if needed
func (r *AccountRepository) GetOrCreateForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	defer observability.MeasureDatabaseQuery("account", "GetOrCreateForUpdate")()

	_, err := r.q.Exec(ctx, `
		INSERT INTO accounts (address, balance)
		VALUES ($1, 0)
		ON CONFLICT (address) DO NOTHING
	`, address.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", address.Hex(), err)
	}

	account, err := r.get(ctx, selectAccount+" FOR UPDATE", address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s vanished after insert", address.Hex())
	}
	return account, nil
}

// UpdateBalance sets an account's balance
func (r *AccountRepository) UpdateBalance(ctx context.Context, address common.Address, newBalance *uint256.Int) error {
	defer observability.MeasureDatabaseQuery("account", "UpdateBalance")()

	query := `
		UPDATE accounts
		SET balance = $2::numeric, updated_at = NOW()
		WHERE address = $1
	`

	tag, err := r.q.Exec(ctx, query, address.Hex(), newBalance.Dec())
	if err != nil {
		return fmt.Errorf("failed to update balance for %s: %w", address.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", address.Hex())
	}

	return nil
}

func (r *AccountRepository) get(ctx context.Context, query string, address common.Address) (*entities.Account, error) {
	var (
		account entities.Account
		raw     string
		balance string
	)

	err := r.q.QueryRow(ctx, query, address.Hex()).Scan(&raw, &balance, &account.CreatedAt, &account.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address.Hex(), err)
	}

	if account.Address, err = parseAddress(raw); err != nil {
		return nil, err
	}
	if account.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}

	return &account, nil
}
