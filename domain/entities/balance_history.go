package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeStake   TransactionType = "stake"
	TransactionTypePayout  TransactionType = "payout"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	Address             common.Address  `db:"address"`
	BalanceBefore       *uint256.Int    `db:"balance_before"`
	BalanceAfter        *uint256.Int    `db:"balance_after"`
	ChangeAmount        *big.Int        `db:"change_amount"` // Negative for debits
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RoundNumber         *uint64         `db:"round_number"`
	CreatedAt           time.Time       `db:"created_at"`
}

// NewCredit builds a history entry for an amount added to a balance
func NewCredit(address common.Address, before, amount *uint256.Int, txType TransactionType) *BalanceHistory {
	after := new(uint256.Int).Add(before, amount)
	return &BalanceHistory{
		Address:             address,
		BalanceBefore:       before.Clone(),
		BalanceAfter:        after,
		ChangeAmount:        amount.ToBig(),
		TransactionType:     txType,
		TransactionMetadata: map[string]any{},
	}
}

// NewDebit builds a history entry for an amount removed from a balance.
// The caller must ensure before >= amount.
func NewDebit(address common.Address, before, amount *uint256.Int, txType TransactionType) *BalanceHistory {
	after := new(uint256.Int).Sub(before, amount)
	return &BalanceHistory{
		Address:             address,
		BalanceBefore:       before.Clone(),
		BalanceAfter:        after,
		ChangeAmount:        new(big.Int).Neg(amount.ToBig()),
		TransactionType:     txType,
		TransactionMetadata: map[string]any{},
	}
}
