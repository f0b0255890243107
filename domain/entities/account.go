package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is an external wallet balance that stakes are paid from and payouts are paid into
type Account struct {
	Address   common.Address `db:"address"`
	Balance   *uint256.Int   `db:"balance"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// CanCover returns true if the account holds at least amount
func (a *Account) CanCover(amount *uint256.Int) bool {
	if a.Balance == nil {
		return amount.IsZero()
	}
	return !a.Balance.Lt(amount)
}
